package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func TestValidate_CoercesDeclaredFields(t *testing.T) {
	t.Parallel()
	out, known := Validate(Grade, map[string]any{
		"courseName":     "Biology",
		"assignmentName": "Lab 1",
		"score":          "45",
		"maxPoints":      50,
		"letter":         nil,
		"extra":          "kept",
	}, fixedNow)
	require.True(t, known)

	rec, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 45.0, rec["score"])
	assert.Equal(t, 50.0, rec["maxPoints"])
	assert.Equal(t, "", rec["letter"])
	assert.Equal(t, "", rec["courseId"])
	assert.Equal(t, "kept", rec["extra"])
}

func TestValidate_FailedCoercionKeepsOriginal(t *testing.T) {
	t.Parallel()
	out, _ := Validate(Assignment, map[string]any{
		"name":           "Essay",
		"pointsPossible": "lots",
		"dueDate":        "not a date at all",
	}, fixedNow)
	rec := out.(map[string]any)
	assert.Equal(t, "lots", rec["pointsPossible"])
	assert.Equal(t, "not a date at all", rec["dueDate"])
}

func TestValidate_NullableDateStaysNull(t *testing.T) {
	t.Parallel()
	out, _ := Validate(Assignment, map[string]any{"name": "C", "dueDate": nil}, fixedNow)
	rec := out.(map[string]any)
	v, present := rec["dueDate"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestValidate_DatesNormalizeToRFC3339(t *testing.T) {
	t.Parallel()
	out, _ := Validate(Announcement, map[string]any{"title": "Exam moved", "postedAt": "2026-10-14 09:30:00"}, fixedNow)
	rec := out.(map[string]any)
	assert.Equal(t, "2026-10-14T09:30:00Z", rec["postedAt"])

	out, _ = Validate(Dashboard, map[string]any{"lastUpdated": nil}, fixedNow)
	rec = out.(map[string]any)
	assert.Equal(t, float64(fixedNow.UnixMilli()), rec["lastUpdated"])
	assert.Equal(t, []any{}, rec["courses"])
}

func TestValidate_ArraysAndGarbage(t *testing.T) {
	t.Parallel()
	out, known := Validate(Course, []any{
		map[string]any{"id": 101, "name": "Biology"},
		"stray",
	}, fixedNow)
	require.True(t, known)
	items := out.([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "101", items[0].(map[string]any)["id"])
	assert.Equal(t, "stray", items[1])

	out, _ = Validate(Course, "just a string", fixedNow)
	assert.Equal(t, map[string]any{}, out)
}

func TestValidate_UnknownTagPassesThrough(t *testing.T) {
	t.Parallel()
	in := map[string]any{"anything": 1.0}
	out, known := Validate(TypeTag("quiz-bank"), in, fixedNow)
	assert.False(t, known)
	assert.Equal(t, in, out)
}

func TestCoerce_Booleans(t *testing.T) {
	t.Parallel()
	f := Field{Kind: KindBoolean}
	assert.Equal(t, true, Coerce(f, "yes", fixedNow))
	assert.Equal(t, false, Coerce(f, 0.0, fixedNow))
	assert.Equal(t, "maybe", Coerce(f, "maybe", fixedNow))
}

func TestTTL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5*time.Minute, TTL(Todo))
	assert.Equal(t, 24*time.Hour, TTL(Syllabus))
	assert.Equal(t, UnknownTTL, TTL(TypeTag("mystery")))
}
