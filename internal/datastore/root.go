package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/xiy/canvas-mcp/internal/schema"
	"github.com/xiy/canvas-mcp/internal/store"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// storageVersion 1 roots carried indexes only; version 2 added freshness.
const storageVersion = 2

type rootRecord struct {
	Version   int                       `json:"version"`
	Indexes   map[string][]string       `json:"indexes"`
	Freshness map[string]freshnessEntry `json:"freshness"`
}

type freshnessEntry struct {
	Type        string    `json:"type"`
	LastUpdated time.Time `json:"lastUpdated"`
	TTLMillis   int64     `json:"ttl"`
}

func (s *Service) rootKey() string {
	return s.namespace + "__root"
}

func (s *Service) loadRoot(ctx context.Context) error {
	root := rootRecord{}
	b, err := s.store.Get(ctx, s.rootKey())
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load root record: %w", err)
	default:
		if err := json.Unmarshal(b, &root); err != nil {
			return fmt.Errorf("decode root record: %w", err)
		}
	}

	if root.Version > storageVersion {
		return fmt.Errorf("unsupported storage version %d (current %d)", root.Version, storageVersion)
	}
	migrated := false
	if root.Version < storageVersion {
		rebuilt, err := s.rebuildRoot(ctx)
		if err != nil {
			return fmt.Errorf("migrate storage from version %d: %w", root.Version, err)
		}
		s.logger.Info("migrated storage format", "from", root.Version, "to", storageVersion, "records", len(rebuilt.Freshness))
		root = rebuilt
		migrated = true
	}
	if root.Indexes == nil {
		root.Indexes = map[string][]string{}
	}
	if root.Freshness == nil {
		root.Freshness = map[string]freshnessEntry{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	if migrated {
		return s.persistRootLocked(ctx)
	}
	return nil
}

// rebuildRoot derives indexes and freshness from the stored envelopes.
func (s *Service) rebuildRoot(ctx context.Context) (rootRecord, error) {
	root := rootRecord{
		Version:   storageVersion,
		Indexes:   map[string][]string{},
		Freshness: map[string]freshnessEntry{},
	}
	keys, err := s.store.Keys(ctx, s.namespace+"_")
	if err != nil {
		return root, err
	}
	for _, key := range keys {
		if key == s.rootKey() {
			continue
		}
		b, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var env struct {
			Metadata types.RecordMetadata `json:"_metadata"`
		}
		if err := json.Unmarshal(b, &env); err != nil || env.Metadata.Type == "" {
			s.logger.Warn("skipping undecodable record during migration", "key", key)
			continue
		}
		tag := schema.TypeTag(env.Metadata.Type)
		root.Indexes[env.Metadata.Type] = append(root.Indexes[env.Metadata.Type], key)
		root.Freshness[key] = freshnessEntry{
			Type:        env.Metadata.Type,
			LastUpdated: env.Metadata.Timestamp,
			TTLMillis:   schema.TTL(tag).Milliseconds(),
		}
	}
	return root, nil
}

func (s *Service) track(ctx context.Context, key string, tag schema.TypeTag, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root.Indexes == nil {
		s.root.Indexes = map[string][]string{}
	}
	if s.root.Freshness == nil {
		s.root.Freshness = map[string]freshnessEntry{}
	}
	if !slices.Contains(s.root.Indexes[string(tag)], key) {
		s.root.Indexes[string(tag)] = append(s.root.Indexes[string(tag)], key)
	}
	s.root.Freshness[key] = freshnessEntry{Type: string(tag), LastUpdated: now, TTLMillis: ttl.Milliseconds()}
	return s.persistRootLocked(ctx)
}

func (s *Service) untrack(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		f, ok := s.root.Freshness[key]
		delete(s.root.Freshness, key)
		if !ok {
			continue
		}
		s.root.Indexes[f.Type] = slices.DeleteFunc(s.root.Indexes[f.Type], func(k string) bool { return k == key })
		if len(s.root.Indexes[f.Type]) == 0 {
			delete(s.root.Indexes, f.Type)
		}
	}
	return s.persistRootLocked(ctx)
}

// persistRootLocked writes the root record; s.mu must be held.
func (s *Service) persistRootLocked(ctx context.Context) error {
	s.root.Version = storageVersion
	b, err := json.Marshal(s.root)
	if err != nil {
		return fmt.Errorf("marshal root record: %w", err)
	}
	return s.store.Put(ctx, s.rootKey(), b, s.now())
}

// IndexedKeys returns the keys recorded for tag.
func (s *Service) IndexedKeys(tag schema.TypeTag) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.root.Indexes[string(tag)])
}
