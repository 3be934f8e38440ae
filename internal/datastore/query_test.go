package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiy/canvas-mcp/pkg/types"
)

func TestQueryData_CoursesMergesDashboardAndFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	require.True(t, svc.StoreData(ctx, "course", []any{
		map[string]any{"id": "1", "name": "Biology 101"},
		map[string]any{"id": "2", "name": "Chemistry 200"},
	}, types.StoreOptions{ID: "list"}).Success)
	require.True(t, svc.StoreData(ctx, "dashboard", map[string]any{
		"courses": []any{map[string]any{"id": "3", "name": "History 110"}},
	}, types.StoreOptions{}).Success)

	all := svc.QueryData(ctx, types.Query{Type: types.QueryCourses})
	require.True(t, all.Success, all.Error)
	assert.Equal(t, 3, all.Count)

	filtered := svc.QueryData(ctx, types.Query{Type: types.QueryCourses, Filters: map[string]any{"name": "Chemistry 200"}})
	require.True(t, filtered.Success)
	require.Equal(t, 1, filtered.Count)
	assert.Equal(t, "2", filtered.Items[0]["id"])

	limited := svc.QueryData(ctx, types.Query{Type: types.QueryCourses, Limit: 2})
	assert.Equal(t, 2, limited.Count)
}

func TestQueryData_CachedUntilNextWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	require.True(t, svc.StoreData(ctx, "grade", []any{map[string]any{"courseName": "Biology", "score": 9, "maxPoints": 10}}, types.StoreOptions{}).Success)

	first := svc.QueryData(ctx, types.Query{Type: types.QueryGrades})
	require.True(t, first.Success)
	assert.False(t, first.FromCache)

	second := svc.QueryData(ctx, types.Query{Type: types.QueryGrades})
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Count, second.Count)

	require.True(t, svc.StoreData(ctx, "grade", []any{}, types.StoreOptions{ID: "empty"}).Success)
	third := svc.QueryData(ctx, types.Query{Type: types.QueryGrades})
	assert.False(t, third.FromCache)
}

func TestQueryData_ItemsDoNotAliasCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	require.True(t, svc.StoreData(ctx, "course", map[string]any{"id": "1", "name": "Biology 101"}, types.StoreOptions{ID: "1"}).Success)

	first := svc.QueryData(ctx, types.Query{Type: types.QueryCourses})
	require.Equal(t, 1, first.Count)
	first.Items[0]["name"] = "changed"

	cached := svc.QueryData(ctx, types.Query{Type: types.QueryCourses})
	require.True(t, cached.FromCache)
	assert.Equal(t, "Biology 101", cached.Items[0]["name"])
	cached.Items[0]["name"] = "changed"

	got := svc.GetData(ctx, "course", "1", types.GetOptions{})
	assert.Equal(t, "Biology 101", got.Data.(map[string]any)["name"])
}

func TestQueryData_UpcomingMergesSourcesSoonestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, clk := newTestService(t)
	now := clk.now()
	day := 24 * time.Hour

	require.True(t, svc.StoreData(ctx, "assignment", []any{
		map[string]any{"name": "Essay", "dueDate": now.Add(2 * day).Format(time.RFC3339)},
		map[string]any{"name": "Done lab", "dueDate": now.Add(day).Format(time.RFC3339), "submitted": true},
		map[string]any{"name": "Final", "dueDate": now.Add(10 * day).Format(time.RFC3339)},
		map[string]any{"name": "Undated"},
		map[string]any{"name": "Past", "dueDate": now.Add(-day).Format(time.RFC3339)},
	}, types.StoreOptions{}).Success)
	require.True(t, svc.StoreData(ctx, "todo", []any{
		map[string]any{"title": "Reading", "dueDate": now.Add(day).Format(time.RFC3339)},
	}, types.StoreOptions{}).Success)
	require.True(t, svc.StoreData(ctx, "calendar-event", []any{
		map[string]any{"title": "Midterm", "start": now.Add(3 * day).Format(time.RFC3339)},
	}, types.StoreOptions{}).Success)

	res := svc.QueryData(ctx, types.Query{Type: types.QueryUpcoming})
	require.True(t, res.Success, res.Error)
	require.Equal(t, 3, res.Count)
	assert.Equal(t, "Reading", res.Items[0]["title"])
	assert.Equal(t, "todo", res.Items[0]["_type"])
	assert.Equal(t, "Essay", res.Items[1]["name"])
	assert.Equal(t, "Midterm", res.Items[2]["title"])
	assert.Equal(t, "calendar-event", res.Items[2]["_type"])

	wide := svc.QueryData(ctx, types.Query{Type: types.QueryUpcoming, Days: 14})
	assert.Equal(t, 4, wide.Count)
}

func TestQueryData_SearchRanksByDensity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	require.True(t, svc.StoreData(ctx, "course", map[string]any{"name": "Biology"}, types.StoreOptions{ID: "a"}).Success)
	require.True(t, svc.StoreData(ctx, "course", map[string]any{"name": "Biology Biology lab", "term": "biology"}, types.StoreOptions{ID: "b"}).Success)
	require.True(t, svc.StoreData(ctx, "course", map[string]any{"name": "Chemistry"}, types.StoreOptions{ID: "c"}).Success)

	res := svc.QueryData(ctx, types.Query{Type: types.QuerySearch, Term: "BIOLOGY"})
	require.True(t, res.Success, res.Error)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "canvas_course_b", res.Items[0]["_key"])
	assert.Equal(t, "course", res.Items[0]["_type"])
	assert.Greater(t, res.Items[0]["_relevance"].(float64), res.Items[1]["_relevance"].(float64))
}

func TestQueryData_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	res := svc.QueryData(ctx, types.Query{Type: "weather"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown query type")

	res = svc.QueryData(ctx, types.Query{Type: types.QuerySearch, Term: "  "})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestSnapshot_BuildsReadModel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, clk := newTestService(t)

	low := 60
	require.True(t, svc.StoreData(ctx, "course", []any{
		map[string]any{"id": 1, "name": "Biology 101"},
	}, types.StoreOptions{}).Success)
	clk.advance(time.Minute)
	require.True(t, svc.StoreData(ctx, "dashboard", map[string]any{
		"courses": []any{map[string]any{"id": "1", "name": "Biology 101"}, map[string]any{"name": "Art"}},
		"todo":    []any{map[string]any{"title": "Reading"}},
	}, types.StoreOptions{Quality: &low}).Success)
	require.True(t, svc.StoreData(ctx, "grade", []any{
		map[string]any{"courseName": "Biology 101", "score": "45", "maxPoints": 50},
		map[string]any{"courseName": "Biology 101", "assignmentName": "Quiz 2"},
	}, types.StoreOptions{}).Success)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Courses, 2)
	assert.Equal(t, "1", snap.Courses[0].ID)
	require.Len(t, snap.Grades, 2)
	require.NotNil(t, snap.Grades[0].Score)
	assert.InDelta(t, 45.0, *snap.Grades[0].Score, 0.001)
	assert.Nil(t, snap.Grades[1].Score)
	require.Len(t, snap.Todo, 1)
	assert.Nil(t, snap.Todo[0].DueDate)
	assert.Equal(t, clk.now(), snap.LastUpdated)
	assert.Equal(t, (100+60+100)/3, snap.DataQuality)
	assert.False(t, snap.Empty())
}
