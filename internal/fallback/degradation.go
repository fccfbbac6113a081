// Package fallback routes data requests across named, prioritized
// sources and grades the result with a degradation level so callers
// know how much to trust the data they received.
package fallback

// Level is the 5-tier degradation indicator recomputed from source
// availability. It is derived state and never persisted.
type Level string

const (
	LevelNone     Level = "none"
	LevelMinimal  Level = "minimal"
	LevelModerate Level = "moderate"
	LevelSevere   Level = "severe"
	LevelCritical Level = "critical"
)

// LevelInfo describes what a degradation level means for the UI:
// which features still work, which are disabled, and a status message
// suitable for a banner.
type LevelInfo struct {
	Level             Level    `json:"level"`
	AvailableFeatures []string `json:"available_features"`
	DisabledFeatures  []string `json:"disabled_features"`
	DataQuality       string   `json:"data_quality"`
	Message           string   `json:"message"`
}

var levelTable = map[Level]LevelInfo{
	LevelNone: {
		Level:             LevelNone,
		AvailableFeatures: []string{"tasks", "stats", "next-task", "complexity-report", "live-refresh"},
		DisabledFeatures:  nil,
		DataQuality:       "full",
		Message:           "All data sources available.",
	},
	LevelMinimal: {
		Level:             LevelMinimal,
		AvailableFeatures: []string{"tasks", "stats", "next-task", "complexity-report"},
		DisabledFeatures:  []string{"live-refresh"},
		DataQuality:       "good",
		Message:           "Primary source degraded; serving from an alternate source.",
	},
	LevelModerate: {
		Level:             LevelModerate,
		AvailableFeatures: []string{"tasks", "stats", "next-task"},
		DisabledFeatures:  []string{"complexity-report", "live-refresh"},
		DataQuality:       "partial",
		Message:           "Most data sources unavailable; data may be incomplete.",
	},
	LevelSevere: {
		Level:             LevelSevere,
		AvailableFeatures: []string{"tasks"},
		DisabledFeatures:  []string{"stats", "next-task", "complexity-report", "live-refresh"},
		DataQuality:       "stale",
		Message:           "Only static fallback data available; shown data may be out of date.",
	},
	LevelCritical: {
		Level:             LevelCritical,
		AvailableFeatures: nil,
		DisabledFeatures:  []string{"tasks", "stats", "next-task", "complexity-report", "live-refresh"},
		DataQuality:       "placeholder",
		Message:           "No data sources available; showing placeholder data only.",
	},
}

// Describe returns the fixed info record for a level. Unknown levels
// report as critical.
func Describe(level Level) LevelInfo {
	if info, ok := levelTable[level]; ok {
		return info
	}
	return levelTable[LevelCritical]
}

// computeLevel derives the degradation level from the current source
// set. sources must be sorted by ascending priority.
func computeLevel(sources []*Source) Level {
	total := len(sources)
	if total == 0 {
		return LevelCritical
	}

	available := 0
	for _, src := range sources {
		if src.Available {
			available++
		}
	}

	switch {
	case available == 0:
		return LevelCritical
	case available == total:
		return LevelNone
	case available == 1 && sources[total-1].Available:
		// Only the last-resort source is left.
		return LevelSevere
	case available*2 < total:
		return LevelModerate
	default:
		return LevelMinimal
	}
}
