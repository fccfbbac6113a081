package storage

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Property 1: Total Size Never Exceeds The Budget
// =============================================================================

// Feature: storage, Property 1: Total Size Never Exceeds The Budget
// *For any* sequence of Set calls that individually fit the budget, the
// store's total live size SHALL never exceed the configured maximum
// immediately after any Set returns.
//
// **Validates: LRU eviction keeps the size invariant**
func TestProperty1_TotalSizeNeverExceedsBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSize := int64(rapid.IntRange(64, 512).Draw(rt, "maxSize"))
		s, err := NewStore(Options{MaxSize: maxSize})
		if err != nil {
			rt.Fatalf("NewStore() error = %v", err)
		}

		numOps := rapid.IntRange(1, 30).Draw(rt, "numOps")
		for i := 0; i < numOps; i++ {
			key := fmt.Sprintf("key-%d", rapid.IntRange(0, 9).Draw(rt, fmt.Sprintf("key%d", i)))
			body := rapid.StringOfN(rapid.RuneFrom([]rune("abcdefgh")), 0, 40, -1).Draw(rt, fmt.Sprintf("body%d", i))

			err := s.Set(key, body, SetOptions{TTL: time.Hour})
			if err != nil {
				// Only an entry bigger than the whole budget may fail.
				continue
			}

			stats := s.Stats()
			if stats.TotalSize > maxSize {
				rt.Fatalf("TotalSize %d exceeds budget %d after Set %d", stats.TotalSize, maxSize, i)
			}
		}
	})
}

// =============================================================================
// Property 2: Latest Value Per Key Wins
// =============================================================================

// Feature: storage, Property 2: Latest Value Per Key Wins
// *For any* sequence of Set calls, a Get for a surviving key SHALL
// return the value most recently Set for it.
//
// **Validates: replacement semantics under repeated writes**
func TestProperty2_LatestValuePerKeyWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, err := NewStore(Options{MaxSize: 1 << 20})
		if err != nil {
			rt.Fatalf("NewStore() error = %v", err)
		}

		latest := make(map[string]string)
		numOps := rapid.IntRange(1, 30).Draw(rt, "numOps")
		for i := 0; i < numOps; i++ {
			key := fmt.Sprintf("key-%d", rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("key%d", i)))
			body := rapid.StringOfN(rapid.RuneFrom([]rune("abcdefgh")), 0, 20, -1).Draw(rt, fmt.Sprintf("body%d", i))

			if err := s.Set(key, body, SetOptions{TTL: time.Hour}); err != nil {
				rt.Fatalf("Set(%q) error = %v", key, err)
			}
			latest[key] = body
		}

		// The budget is large enough that nothing was evicted, so every
		// key must resolve to its most recent value.
		for key, want := range latest {
			var got string
			ok, err := s.Get(key, &got)
			if err != nil {
				rt.Fatalf("Get(%q) error = %v", key, err)
			}
			if !ok {
				rt.Fatalf("Get(%q) = miss, want hit", key)
			}
			if got != want {
				rt.Errorf("Get(%q) = %q, want %q", key, got, want)
			}
		}
	})
}

// =============================================================================
// Property 3: Transform Pipelines Round-Trip
// =============================================================================

// Feature: storage, Property 3: Transform Pipelines Round-Trip
// *For any* payload, Invert(Apply(payload)) SHALL return the original
// bytes for both the identity and gzip pipelines.
//
// **Validates: reversible payload codecs**
func TestProperty3_PipelineRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(rt, "data")

		for _, p := range []Pipeline{
			DefaultPipeline(),
			{Compression: Gzip(), Encryption: Identity()},
		} {
			applied, err := p.Apply(data)
			if err != nil {
				rt.Fatalf("Apply() error = %v", err)
			}
			inverted, err := p.Invert(applied)
			if err != nil {
				rt.Fatalf("Invert() error = %v", err)
			}
			if string(inverted) != string(data) {
				rt.Errorf("round-trip mismatch: got %d bytes, want %d", len(inverted), len(data))
			}
		}
	})
}
