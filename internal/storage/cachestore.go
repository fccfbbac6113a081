package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// indexFileName is the shared index record summarizing all persisted
// entries' metadata and totals.
const indexFileName = "index.json"

// EntryMetadata describes a cache entry without its payload. It is
// stored next to the payload on disk and aggregated in the index.
type EntryMetadata struct {
	Key            string        `json:"key"`
	CreatedAt      time.Time     `json:"created_at"`
	TTL            time.Duration `json:"ttl"`
	Source         string        `json:"source,omitempty"`
	SizeBytes      int64         `json:"size_bytes"`
	AccessCount    int64         `json:"access_count"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`
	Compressed     bool          `json:"compressed,omitempty"`
	Encrypted      bool          `json:"encrypted,omitempty"`
}

// cacheEntry pairs metadata with the transformed payload. A nil payload
// means the entry is known from the index but not yet loaded from disk.
// Only persisted entries have disk records and appear in the index.
type cacheEntry struct {
	meta      EntryMetadata
	payload   []byte
	persisted bool
}

// index is the on-disk shape of the shared index record.
type index struct {
	Version   string                   `json:"version"`
	Entries   map[string]EntryMetadata `json:"entries"`
	TotalSize int64                    `json:"total_size"`
	Count     int                      `json:"count"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// EventSink receives cache notifications (hit, miss, evicted, expired).
// Not required for correctness; implementations must not block.
type EventSink interface {
	CacheEvent(event, key string)
}

type nopSink struct{}

func (nopSink) CacheEvent(string, string) {}

// SetOptions control a single Set call.
type SetOptions struct {
	TTL     time.Duration // <= 0 means the store default
	Source  string
	Persist bool
}

// CacheStats reports cache health for status surfaces.
type CacheStats struct {
	Entries       int           `json:"entries"`
	TotalSize     int64         `json:"total_size"`
	MaxSize       int64         `json:"max_size"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Evictions     int64         `json:"evictions"`
	Expirations   int64         `json:"expirations"`
	HitRate       float64       `json:"hit_rate"`
	AvgHitLatency time.Duration `json:"avg_hit_latency"`
}

// Options configure a Store.
type Options struct {
	// Dir is the cache directory. Empty disables persistence.
	Dir        string
	MaxSize    int64
	DefaultTTL time.Duration
	Pipeline   Pipeline
	Sink       EventSink
}

// Store is the offline cache store. Entries expire lazily on Get and
// are evicted least-recently-accessed first when an insert would exceed
// the size budget. With persistence enabled each entry lives as a
// payload record and a metadata record on disk, summarized in a shared
// index record.
type Store struct {
	dir        string
	maxSize    int64
	defaultTTL time.Duration
	pipeline   Pipeline
	sink       EventSink

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	totalSize int64

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	hitLatency  time.Duration

	janitorDone chan struct{}
	now         func() time.Time
}

// NewStore creates a Store. When opts.Dir is non-empty the directory is
// created and any existing index is loaded (payloads stay on disk until
// first access).
func NewStore(opts Options) (*Store, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 50 * 1024 * 1024
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.Pipeline.Compression == nil {
		opts.Pipeline.Compression = Identity()
	}
	if opts.Pipeline.Encryption == nil {
		opts.Pipeline.Encryption = Identity()
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}

	s := &Store{
		dir:        opts.Dir,
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		pipeline:   opts.Pipeline,
		sink:       opts.Sink,
		entries:    make(map[string]*cacheEntry),
		now:        time.Now,
	}

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		s.loadIndex()
	}

	return s, nil
}

// Set serializes data, runs it through the transform pipeline, evicts
// until the entry fits the size budget, and stores it. Total live size
// never exceeds the configured maximum immediately after Set returns.
func (s *Store) Set(key string, data any, opts SetOptions) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("serializing cache entry %q: %w", key, err)
	}
	payload, err := s.pipeline.Apply(raw)
	if err != nil {
		return fmt.Errorf("transforming cache entry %q: %w", key, err)
	}

	size := int64(len(payload))
	if size > s.maxSize {
		return fmt.Errorf("cache entry %q (%d bytes) exceeds the cache size budget (%d bytes)", key, size, s.maxSize)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replacing a key frees its old size and drops its on-disk records
	// first, even when the new value will not be persisted. Leaving the
	// superseded records behind would let a restarted store resurrect
	// the old value.
	replaced := false
	if old, ok := s.entries[key]; ok {
		s.removeLocked(old, true)
		replaced = true
	}

	s.evictForLocked(size)

	now := s.now()
	compressed, encrypted := s.pipeline.flags()
	entry := &cacheEntry{
		meta: EntryMetadata{
			Key:            key,
			CreatedAt:      now,
			TTL:            ttl,
			Source:         opts.Source,
			SizeBytes:      size,
			LastAccessedAt: now,
			Compressed:     compressed,
			Encrypted:      encrypted,
		},
		payload: payload,
	}
	s.entries[key] = entry
	s.totalSize += size

	if s.dir != "" {
		if opts.Persist {
			if err := s.persistLocked(entry); err != nil {
				return err
			}
			entry.persisted = true
			s.writeIndexLocked()
		} else if replaced {
			// The index must forget the dropped records.
			s.writeIndexLocked()
		}
	}

	return nil
}

// Get looks the key up, loading from disk if needed, and unmarshals the
// reverse-transformed payload into out. It returns false on a miss. An
// expired entry found on read is deleted before returning absent, so a
// second Get is still absent.
func (s *Store) Get(key string, out any) (bool, error) {
	start := time.Now()

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		s.mu.Unlock()
		s.sink.CacheEvent("miss", key)
		return false, nil
	}

	if s.now().After(entry.meta.CreatedAt.Add(entry.meta.TTL)) {
		s.removeLocked(entry, true)
		s.expirations++
		s.misses++
		if s.dir != "" {
			s.writeIndexLocked()
		}
		s.mu.Unlock()
		s.sink.CacheEvent("expired", key)
		return false, nil
	}

	if entry.payload == nil {
		payload, err := os.ReadFile(s.payloadPath(key))
		if err != nil {
			// The index promised an entry the disk no longer has.
			s.removeLocked(entry, true)
			s.misses++
			s.mu.Unlock()
			s.sink.CacheEvent("miss", key)
			return false, fmt.Errorf("cache corrupted: reading payload for %q: %w", key, err)
		}
		entry.payload = payload
	}

	entry.meta.AccessCount++
	entry.meta.LastAccessedAt = s.now()
	payload := entry.payload
	s.hits++
	s.hitLatency += time.Since(start)
	s.mu.Unlock()

	s.sink.CacheEvent("hit", key)

	raw, err := s.pipeline.Invert(payload)
	if err != nil {
		return false, fmt.Errorf("cache corrupted: decoding payload for %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache corrupted: parsing payload for %q: %w", key, err)
	}
	return true, nil
}

// Delete removes the key from memory and disk.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	s.removeLocked(entry, true)
	if s.dir != "" {
		s.writeIndexLocked()
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		s.removeLocked(entry, true)
	}
	if s.dir != "" {
		s.writeIndexLocked()
	}
	return nil
}

// Cleanup removes all expired entries and returns how many were
// removed. Advisory housekeeping: Get expires lazily regardless.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, entry := range s.entries {
		if s.now().After(entry.meta.CreatedAt.Add(entry.meta.TTL)) {
			s.removeLocked(entry, true)
			s.expirations++
			removed++
		}
	}
	if removed > 0 && s.dir != "" {
		s.writeIndexLocked()
	}
	return removed
}

// StartJanitor runs Cleanup on the given interval until Close is
// called. Calling it twice restarts the timer.
func (s *Store) StartJanitor(interval time.Duration) {
	s.mu.Lock()
	if s.janitorDone != nil {
		close(s.janitorDone)
	}
	done := make(chan struct{})
	s.janitorDone = done
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Close stops the janitor and flushes the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.janitorDone != nil {
		close(s.janitorDone)
		s.janitorDone = nil
	}
	if s.dir != "" {
		s.writeIndexLocked()
	}
	return nil
}

// Stats returns a snapshot of cache health.
func (s *Store) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := CacheStats{
		Entries:     len(s.entries),
		TotalSize:   s.totalSize,
		MaxSize:     s.maxSize,
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	if s.hits > 0 {
		stats.AvgHitLatency = s.hitLatency / time.Duration(s.hits)
	}
	return stats
}

// evictForLocked frees space for an incoming entry of the given size by
// removing entries in ascending last-access order.
func (s *Store) evictForLocked(incoming int64) {
	if s.totalSize+incoming <= s.maxSize {
		return
	}

	candidates := make([]*cacheEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].meta.LastAccessedAt.Before(candidates[j].meta.LastAccessedAt)
	})

	for _, entry := range candidates {
		if s.totalSize+incoming <= s.maxSize {
			break
		}
		key := entry.meta.Key
		s.removeLocked(entry, true)
		s.evictions++
		s.sink.CacheEvent("evicted", key)
	}
	if s.dir != "" {
		s.writeIndexLocked()
	}
}

// removeLocked drops an entry from memory and, when removeDisk is set,
// from the cache directory.
func (s *Store) removeLocked(entry *cacheEntry, removeDisk bool) {
	key := entry.meta.Key
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.totalSize -= entry.meta.SizeBytes
	}
	if removeDisk && s.dir != "" {
		_ = os.Remove(s.payloadPath(key))
		_ = os.Remove(s.metaPath(key))
	}
}

// persistLocked writes the payload and metadata records for an entry.
func (s *Store) persistLocked(entry *cacheEntry) error {
	key := entry.meta.Key
	if err := os.WriteFile(s.payloadPath(key), entry.payload, 0o644); err != nil {
		return fmt.Errorf("writing cache payload for %q: %w", key, err)
	}
	meta, err := json.MarshalIndent(entry.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache metadata for %q: %w", key, err)
	}
	if err := os.WriteFile(s.metaPath(key), meta, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata for %q: %w", key, err)
	}
	return nil
}

// writeIndexLocked rewrites the shared index record. Only persisted
// entries are listed; an indexed key must have its payload and metadata
// records on disk. Failures are swallowed: the index is a summary,
// per-entry records are the source of truth.
func (s *Store) writeIndexLocked() {
	idx := index{
		Version:   "1.0",
		Entries:   make(map[string]EntryMetadata, len(s.entries)),
		UpdatedAt: s.now(),
	}
	for key, entry := range s.entries {
		if !entry.persisted {
			continue
		}
		idx.Entries[key] = entry.meta
		idx.TotalSize += entry.meta.SizeBytes
	}
	idx.Count = len(idx.Entries)
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.dir, indexFileName), data, 0o644)
}

// loadIndex restores entry metadata from the index record. Payloads are
// loaded lazily on first Get. A missing or unreadable index starts the
// store empty.
func (s *Store) loadIndex() {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if err != nil {
		return
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return
	}
	for key, meta := range idx.Entries {
		meta.Key = key
		s.entries[key] = &cacheEntry{meta: meta, persisted: true}
		s.totalSize += meta.SizeBytes
	}
}

// payloadPath and metaPath name the two on-disk records for a key using
// a filesystem-safe encoding.
func (s *Store) payloadPath(key string) string {
	return filepath.Join(s.dir, encodeKey(key)+".payload")
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.dir, encodeKey(key)+".meta.json")
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
