// Package datastore is the typed cache store: it validates scraped records
// against their schema, compresses large payloads, tracks freshness per key
// and answers aggregate queries.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"

	"github.com/xiy/canvas-mcp/internal/codec"
	"github.com/xiy/canvas-mcp/internal/config"
	"github.com/xiy/canvas-mcp/internal/metrics"
	"github.com/xiy/canvas-mcp/internal/schema"
	"github.com/xiy/canvas-mcp/internal/store"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// ErrNotFoundText is the error reported by reads of missing keys.
const ErrNotFoundText = "Data not found"

const (
	defaultSource  = "unknown"
	defaultQuality = 100
)

// envelope is the persisted shape of one record. Exactly one of Data and
// Payload is set; Payload holds the compressed JSON of Data.
type envelope struct {
	Data     json.RawMessage      `json:"data,omitempty"`
	Payload  string               `json:"payload,omitempty"`
	Metadata types.RecordMetadata `json:"_metadata"`
}

type memoryEntry struct {
	data any
	meta types.RecordMetadata
}

// Service coordinates validation, compression, freshness and queries.
type Service struct {
	store     store.Store
	cfg       config.Config
	logger    *log.Logger
	metrics   *metrics.Metrics
	memory    *cache.Cache
	queries   *cache.Cache
	now       func() time.Time
	namespace string

	mu   sync.Mutex
	root rootRecord
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records store activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the cache store and loads (or migrates) its root record.
func New(ctx context.Context, st store.Store, cfg config.Config, logger *log.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		store:     st,
		cfg:       cfg,
		logger:    logger,
		memory:    cache.New(schema.UnknownTTL, 10*time.Minute),
		queries:   cache.New(cfg.QueryCacheTTL(), 2*cfg.QueryCacheTTL()),
		now:       func() time.Time { return time.Now().UTC() },
		namespace: cfg.Namespace,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if err := s.loadRoot(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Key returns the durable key of (tag, id).
func (s *Service) Key(tag schema.TypeTag, id string) string {
	if strings.TrimSpace(id) == "" {
		id = schema.DefaultID
	}
	return s.namespace + "_" + string(tag) + "_" + id
}

func (s *Service) prefix(tag schema.TypeTag) string {
	return s.namespace + "_" + string(tag) + "_"
}

// StoreData validates data against the schema of tag and writes it. Content
// problems never reject a write; only a malformed tag or a backend failure
// yields Success=false.
func (s *Service) StoreData(ctx context.Context, tag string, data any, opts types.StoreOptions) types.StoreResult {
	typeTag := schema.TypeTag(strings.TrimSpace(tag))
	if typeTag == "" {
		return types.StoreResult{Error: "type is required"}
	}
	if strings.Contains(string(typeTag), "_") {
		return types.StoreResult{Error: fmt.Sprintf("type %q must not contain '_'", typeTag)}
	}

	now := s.now()
	validated, known := schema.Validate(typeTag, data, now)
	if !known {
		s.logger.Warn("storing record with unknown type; skipping validation", "type", typeTag)
	}

	payload, err := json.Marshal(validated)
	if err != nil {
		return types.StoreResult{Error: fmt.Sprintf("marshal record: %v", err)}
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = schema.DefaultID
	}
	meta := types.RecordMetadata{
		Type:      string(typeTag),
		ID:        id,
		Timestamp: now,
		Source:    opts.Source,
		Quality:   clampQuality(opts.Quality),
		Version:   opts.Version,
	}
	if meta.Source == "" {
		meta.Source = defaultSource
	}

	env := envelope{Data: payload}
	if len(payload) > s.cfg.CompressionThresholdBytes {
		enc, err := codec.Compress(payload)
		if err != nil {
			s.metrics.CompressionErrors.Inc()
			s.logger.Warn("compression failed; storing uncompressed", "type", typeTag, "id", id, "error", err)
		} else {
			env = envelope{Payload: enc}
			meta.Compressed = true
			meta.OriginalSize = len(payload)
			meta.CompressedSize = len(enc)
		}
	}
	env.Metadata = meta

	b, err := json.Marshal(env)
	if err != nil {
		return types.StoreResult{Error: fmt.Sprintf("marshal envelope: %v", err)}
	}

	key := s.Key(typeTag, id)
	if err := s.store.Put(ctx, key, b, now); err != nil {
		s.logger.Error("store write failed", "key", key, "error", err)
		return types.StoreResult{Key: key, Error: err.Error()}
	}

	ttl := schema.TTL(typeTag)
	if err := s.track(ctx, key, typeTag, now, ttl); err != nil {
		s.logger.Warn("root record update failed", "key", key, "error", err)
	}
	s.memory.Set(key, memoryEntry{data: validated, meta: meta}, ttl)
	s.queries.Flush()

	s.metrics.Writes.WithLabelValues(string(typeTag), fmt.Sprint(meta.Compressed)).Inc()
	s.metrics.WriteBytes.Observe(float64(len(payload)))
	s.logger.Debug("stored record", "key", key, "bytes", len(payload), "compressed", meta.Compressed)

	return types.StoreResult{
		Success:    true,
		Key:        key,
		Compressed: meta.Compressed,
		SizeBytes:  len(payload),
	}
}

// GetData reads one record. A memory hit within the type TTL returns
// immediately; otherwise the durable copy is decoded and re-cached.
func (s *Service) GetData(ctx context.Context, tag, id string, opts types.GetOptions) types.GetResult {
	typeTag := schema.TypeTag(strings.TrimSpace(tag))
	key := s.Key(typeTag, id)
	now := s.now()

	if !opts.BypassCache {
		if v, ok := s.memory.Get(key); ok {
			entry := v.(memoryEntry)
			s.metrics.Reads.WithLabelValues(string(typeTag), "memory").Inc()
			return types.GetResult{
				Success:   true,
				Data:      cloneValue(entry.data),
				Metadata:  entry.meta,
				FromCache: true,
				Stale:     s.stale(key, entry.meta, now),
			}
		}
	}

	entry, err := s.load(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Reads.WithLabelValues(string(typeTag), "miss").Inc()
			return types.GetResult{Error: ErrNotFoundText}
		}
		s.logger.Warn("read failed", "key", key, "error", err)
		return types.GetResult{Error: err.Error()}
	}
	s.memory.Set(key, entry, schema.TTL(typeTag))
	s.metrics.Reads.WithLabelValues(string(typeTag), "durable").Inc()

	return types.GetResult{
		Success:  true,
		Data:     cloneValue(entry.data),
		Metadata: entry.meta,
		Stale:    s.stale(key, entry.meta, now),
	}
}

// load reads and decodes the durable copy of key.
func (s *Service) load(ctx context.Context, key string) (memoryEntry, error) {
	b, err := s.store.Get(ctx, key)
	if err != nil {
		return memoryEntry{}, err
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return memoryEntry{}, fmt.Errorf("decode envelope %s: %w", key, err)
	}

	raw := []byte(env.Data)
	if env.Payload != "" {
		decoded, err := codec.Decompress(env.Payload)
		if err != nil {
			s.metrics.CompressionErrors.Inc()
			if len(env.Data) == 0 {
				return memoryEntry{}, fmt.Errorf("decompress %s: %w", key, err)
			}
			s.logger.Warn("decompression failed; using uncompressed copy", "key", key, "error", err)
		} else {
			raw = decoded
		}
	}

	var data any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return memoryEntry{}, fmt.Errorf("decode data %s: %w", key, err)
		}
	}
	return memoryEntry{data: data, meta: env.Metadata}, nil
}

// CleanupOldData deletes every record stored more than maxAge ago and
// returns how many were removed.
func (s *Service) CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge)
	keys, err := s.store.Keys(ctx, s.namespace+"_")
	if err != nil {
		return 0, err
	}

	old := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == s.rootKey() {
			continue
		}
		b, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return 0, err
		}
		var env struct {
			Metadata types.RecordMetadata `json:"_metadata"`
		}
		if err := json.Unmarshal(b, &env); err != nil {
			s.logger.Warn("cleanup found undecodable record; removing", "key", key, "error", err)
			old = append(old, key)
			continue
		}
		if env.Metadata.Timestamp.Before(cutoff) {
			old = append(old, key)
		}
	}
	if len(old) == 0 {
		return 0, nil
	}

	n, err := s.store.Delete(ctx, old...)
	if err != nil {
		return 0, err
	}
	for _, key := range old {
		s.memory.Delete(key)
	}
	if err := s.untrack(ctx, old); err != nil {
		s.logger.Warn("root record update failed after cleanup", "error", err)
	}
	s.queries.Flush()
	s.metrics.CleanupDeleted.Add(float64(n))
	s.logger.Info("cleanup removed old records", "count", n, "cutoff", cutoff)
	return n, nil
}

// Freshness lists the TTL state of every tracked key, newest first.
func (s *Service) Freshness() []types.Freshness {
	now := s.now()
	s.mu.Lock()
	out := make([]types.Freshness, 0, len(s.root.Freshness))
	for key, f := range s.root.Freshness {
		ttl := time.Duration(f.TTLMillis) * time.Millisecond
		out = append(out, types.Freshness{
			Key:         key,
			Type:        f.Type,
			LastUpdated: f.LastUpdated,
			TTL:         ttl,
			Stale:       now.Sub(f.LastUpdated) > ttl,
		})
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].Key < out[j].Key
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out
}

// Summary aggregates counters for the admin dashboard.
type Summary struct {
	Keys   int64
	Bytes  int64
	ByType map[string]int
	Stale  int
}

// Summary reports backend and freshness counters.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Keys: st.Keys, Bytes: st.Bytes, ByType: map[string]int{}}
	for _, f := range s.Freshness() {
		sum.ByType[f.Type]++
		if f.Stale {
			sum.Stale++
		}
	}
	return sum, nil
}

func (s *Service) stale(key string, meta types.RecordMetadata, now time.Time) bool {
	s.mu.Lock()
	f, ok := s.root.Freshness[key]
	s.mu.Unlock()
	if ok {
		return now.Sub(f.LastUpdated) > time.Duration(f.TTLMillis)*time.Millisecond
	}
	return now.Sub(meta.Timestamp) > schema.TTL(schema.TypeTag(meta.Type))
}

func clampQuality(q *int) int {
	if q == nil {
		return defaultQuality
	}
	switch {
	case *q < 0:
		return 0
	case *q > 100:
		return 100
	default:
		return *q
	}
}
