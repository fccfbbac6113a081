package fallback

import "testing"

func srcSet(avail ...bool) []*Source {
	out := make([]*Source, len(avail))
	for i, a := range avail {
		out[i] = &Source{Name: "s", Priority: i, Available: a}
	}
	return out
}

func TestComputeLevel(t *testing.T) {
	cases := []struct {
		name    string
		sources []*Source
		want    Level
	}{
		{"no sources", nil, LevelCritical},
		{"all unavailable", srcSet(false, false, false), LevelCritical},
		{"all available", srcSet(true, true, true), LevelNone},
		{"only last resort", srcSet(false, false, true), LevelSevere},
		{"only last of two", srcSet(false, true), LevelSevere},
		{"less than half", srcSet(true, false, false), LevelModerate},
		{"one of four", srcSet(true, false, false, false), LevelModerate},
		{"half of four", srcSet(true, true, false, false), LevelMinimal},
		{"most available", srcSet(true, true, false), LevelMinimal},
		{"single available source", srcSet(true), LevelNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeLevel(tc.sources); got != tc.want {
				t.Errorf("computeLevel() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	severe := Describe(LevelSevere)
	if severe.DataQuality != "stale" {
		t.Errorf("DataQuality = %s, want stale", severe.DataQuality)
	}
	if len(severe.AvailableFeatures) != 1 || severe.AvailableFeatures[0] != "tasks" {
		t.Errorf("AvailableFeatures = %v, want [tasks]", severe.AvailableFeatures)
	}

	none := Describe(LevelNone)
	if len(none.DisabledFeatures) != 0 {
		t.Errorf("DisabledFeatures = %v, want none", none.DisabledFeatures)
	}
	if none.Message == "" {
		t.Error("Message is empty")
	}

	// Unknown levels report as critical.
	if got := Describe(Level("bogus")); got.Level != LevelCritical {
		t.Errorf("Describe(bogus).Level = %s, want %s", got.Level, LevelCritical)
	}
}
