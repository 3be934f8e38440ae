package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/xiy/canvas-mcp/internal/schema"
	"github.com/xiy/canvas-mcp/internal/store"
	"github.com/xiy/canvas-mcp/pkg/types"
)

const defaultUpcomingDays = 7

// source names where a collection is read from: every record of Tag, or
// only Field of each record when Field is set.
type source struct {
	Tag   schema.TypeTag
	Field string
}

type loadedRecord struct {
	key   string
	data  any
	meta  types.RecordMetadata
	items []map[string]any
}

// QueryData runs q against the stored records. Results are cached for the
// configured query TTL under a hash of q.
func (s *Service) QueryData(ctx context.Context, q types.Query) types.QueryResult {
	s.metrics.Queries.WithLabelValues(string(q.Type)).Inc()
	cacheKey, err := queryHash(q)
	if err == nil {
		if v, ok := s.queries.Get(cacheKey); ok {
			s.metrics.QueryCacheHits.Inc()
			res := v.(types.QueryResult)
			res.Items = cloneItems(res.Items)
			res.FromCache = true
			return res
		}
	}

	var items []map[string]any
	switch q.Type {
	case types.QueryCourses:
		items, err = s.collectItems(ctx, source{Tag: schema.Course}, source{Tag: schema.Dashboard, Field: "courses"})
	case types.QueryAssignments:
		items, err = s.collectItems(ctx, source{Tag: schema.Assignment})
	case types.QueryGrades:
		items, err = s.collectItems(ctx, source{Tag: schema.Grade})
	case types.QueryUpcoming:
		items, err = s.upcoming(ctx, q.Days)
	case types.QuerySearch:
		items, err = s.search(ctx, q.Term)
	default:
		return types.QueryResult{Type: q.Type, Error: fmt.Sprintf("unknown query type %q", q.Type)}
	}
	if err != nil {
		s.logger.Warn("query failed", "type", q.Type, "error", err)
		return types.QueryResult{Type: q.Type, Error: err.Error()}
	}

	items = applyFilters(items, q.Filters)
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	res := types.QueryResult{Success: true, Type: q.Type, Items: items, Count: len(items)}
	if cacheKey != "" {
		s.queries.SetDefault(cacheKey, res)
	}
	res.Items = cloneItems(items)
	return res
}

func queryHash(q types.Query) (string, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

// scan loads every record stored under tag.
func (s *Service) scan(ctx context.Context, tag schema.TypeTag) ([]loadedRecord, error) {
	keys, err := s.store.Keys(ctx, s.prefix(tag))
	if err != nil {
		return nil, err
	}
	out := make([]loadedRecord, 0, len(keys))
	for _, key := range keys {
		entry, err := s.cachedLoad(ctx, key, tag)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			s.logger.Warn("skipping unreadable record", "key", key, "error", err)
			continue
		}
		out = append(out, loadedRecord{key: key, data: entry.data, meta: entry.meta})
	}
	return out, nil
}

func (s *Service) cachedLoad(ctx context.Context, key string, tag schema.TypeTag) (memoryEntry, error) {
	if v, ok := s.memory.Get(key); ok {
		return v.(memoryEntry), nil
	}
	entry, err := s.load(ctx, key)
	if err != nil {
		return entry, err
	}
	s.memory.Set(key, entry, schema.TTL(tag))
	return entry, nil
}

// collect loads the records of every source and extracts their items.
func (s *Service) collect(ctx context.Context, sources ...source) ([]loadedRecord, error) {
	var out []loadedRecord
	for _, src := range sources {
		recs, err := s.scan(ctx, src.Tag)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			rec.items = extractItems(src, rec.data)
			if len(rec.items) == 0 {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Service) collectItems(ctx context.Context, sources ...source) ([]map[string]any, error) {
	recs, err := s.collect(ctx, sources...)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.items...)
	}
	return items, nil
}

// extractItems returns the collection carried by a record: the elements of an
// array payload, the collection field of an object payload, or the object
// itself.
func extractItems(src source, data any) []map[string]any {
	field := src.Field
	if field == "" {
		if def, ok := schema.Lookup(src.Tag); ok {
			field = def.Collection
		}
	}

	switch v := data.(type) {
	case []any:
		return objects(v)
	case map[string]any:
		if arr, ok := v[field].([]any); ok && field != "" {
			return objects(arr)
		}
		if src.Field != "" || len(v) == 0 {
			return nil
		}
		return []map[string]any{v}
	default:
		return nil
	}
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func applyFilters(items []map[string]any, filters map[string]any) []map[string]any {
	if len(filters) == 0 {
		return items
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if matchesFilters(item, filters) {
			out = append(out, item)
		}
	}
	return out
}

func matchesFilters(item, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := item[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

type upcomingSource struct {
	src       source
	dateField string
	kind      string
}

var upcomingSources = []upcomingSource{
	{src: source{Tag: schema.Assignment}, dateField: "dueDate", kind: "assignment"},
	{src: source{Tag: schema.Todo}, dateField: "dueDate", kind: "todo"},
	{src: source{Tag: schema.Dashboard, Field: "todo"}, dateField: "dueDate", kind: "todo"},
	{src: source{Tag: schema.CalendarEvent}, dateField: "start", kind: "calendar-event"},
}

// upcoming merges dated assignments, to-dos and calendar events within the
// next days, soonest first. Submitted assignments are skipped.
func (s *Service) upcoming(ctx context.Context, days int) ([]map[string]any, error) {
	if days <= 0 {
		days = defaultUpcomingDays
	}
	now := s.now()
	horizon := now.Add(time.Duration(days) * 24 * time.Hour)

	type dated struct {
		at   time.Time
		item map[string]any
	}
	var found []dated
	for _, us := range upcomingSources {
		items, err := s.collectItems(ctx, us.src)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if submitted, _ := item["submitted"].(bool); submitted {
				continue
			}
			at, ok := schema.ParseTime(item[us.dateField])
			if !ok || at.Before(now) || at.After(horizon) {
				continue
			}
			annotated := copyItem(item)
			annotated["_type"] = us.kind
			annotated["_due"] = at.UTC().Format(time.RFC3339)
			found = append(found, dated{at: at, item: annotated})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
	out := make([]map[string]any, 0, len(found))
	for _, d := range found {
		out = append(out, d.item)
	}
	return out, nil
}

// search scores every stored item by the density of term in its JSON text:
// occurrences / content length × 1000.
func (s *Service) search(ctx context.Context, term string) ([]map[string]any, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, errors.New("search term is required")
	}

	s.mu.Lock()
	tags := make([]schema.TypeTag, 0, len(s.root.Indexes))
	for tag := range s.root.Indexes {
		tags = append(tags, schema.TypeTag(tag))
	}
	s.mu.Unlock()
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	type scored struct {
		score float64
		item  map[string]any
	}
	var hits []scored
	for _, tag := range tags {
		recs, err := s.collect(ctx, source{Tag: tag})
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			for _, item := range rec.items {
				b, err := json.Marshal(item)
				if err != nil || len(b) == 0 {
					continue
				}
				content := strings.ToLower(string(b))
				n := strings.Count(content, term)
				if n == 0 {
					continue
				}
				score := float64(n) / float64(len(content)) * 1000
				annotated := copyItem(item)
				annotated["_type"] = string(tag)
				annotated["_key"] = rec.key
				annotated["_relevance"] = score
				hits = append(hits, scored{score: score, item: annotated})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.item)
	}
	return out, nil
}

// cloneValue deep-copies a decoded JSON value; results handed to callers
// must not alias the memory or query caches.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneItems(items []map[string]any) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, item := range items {
		out[i] = cloneValue(item).(map[string]any)
	}
	return out
}

func copyItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item)+3)
	for k, v := range item {
		out[k] = v
	}
	return out
}
