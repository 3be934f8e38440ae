package assistant

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiy/canvas-mcp/internal/config"
	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/internal/metrics"
	"github.com/xiy/canvas-mcp/internal/respond"
	"github.com/xiy/canvas-mcp/pkg/types"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func fptr(v float64) *float64 { return &v }

func sampleData() *types.CanvasData {
	return &types.CanvasData{
		Courses: []types.Course{
			{ID: "1", Name: "Biology 101", CourseCode: "BIO 101"},
			{ID: "2", Name: "Chemistry 200", CourseCode: "CHEM 200"},
		},
		Grades: []types.Grade{
			{CourseID: "1", CourseName: "Biology 101", AssignmentName: "Lab 1", Score: fptr(45), MaxPoints: fptr(50)},
		},
		Assignments: []types.Assignment{
			{CourseID: "1", CourseName: "Biology 101", Name: "Midterm Exam", DueDate: at(72 * time.Hour)},
			{CourseID: "2", CourseName: "Chemistry 200", Name: "Problem Set", DueDate: at(30 * time.Hour)},
		},
	}
}

type fakeSource struct {
	data *types.CanvasData
	err  error
}

func (f fakeSource) Snapshot(context.Context) (*types.CanvasData, error) { return f.data, f.err }

func newTestEngine(t *testing.T, source SnapshotSource, opts ...Option) *Engine {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(config.Default(), source, logger, opts...)
}

func TestProcessQuery_AnswersGradeQuestion(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	resp := e.ProcessQuery(context.Background(), "what is my grade in Biology", "c1", sampleData())

	assert.Equal(t, "GRADES", resp.Intent)
	assert.Greater(t, resp.Confidence, 0.3)
	assert.Equal(t, []string{"Biology"}, resp.Parameters["courseName"])
	assert.Contains(t, resp.Response, "Biology 101")
	assert.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, testNow, resp.Timestamp)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Empty(t, resp.Error)
}

func TestProcessQuery_LowConfidenceAsksForClarification(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)

	resp := e.ProcessQuery(context.Background(), "lecture", "c1", sampleData())
	assert.Equal(t, "CALENDAR", resp.Intent)
	assert.Less(t, resp.Confidence, 0.3)
	assert.Contains(t, resp.Response, "rephrase")

	resp = e.ProcessQuery(context.Background(), "blorp", "c1", sampleData())
	assert.Equal(t, "UNKNOWN", resp.Intent)
	assert.Zero(t, resp.Confidence)
	assert.Contains(t, resp.Response, "rephrase")
}

func TestProcessQuery_OverdueListsOnlyPastDue(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	data := sampleData()
	data.Assignments = append(data.Assignments, types.Assignment{CourseName: "Biology 101", Name: "Lab Report", DueDate: at(-48 * time.Hour)})

	resp := e.ProcessQuery(context.Background(), "what's overdue?", "c1", data)
	assert.Equal(t, "ASSIGNMENTS", resp.Intent)
	assert.InDelta(t, 1.0/3, resp.Confidence, 1e-9)
	assert.Contains(t, resp.Response, "Overdue assignments")
	assert.Contains(t, resp.Response, "Lab Report")
	assert.NotContains(t, resp.Response, "Midterm Exam")
}

func TestProcessQuery_FollowUpReusesCourse(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	ctx := context.Background()

	e.ProcessQuery(ctx, "what is my grade in Biology", "c1", sampleData())
	resp := e.ProcessQuery(ctx, "what assignments are due for that course?", "c1", sampleData())

	assert.Equal(t, "ASSIGNMENTS", resp.Intent)
	assert.Equal(t, []string{"Biology"}, resp.Parameters["courseName"])
	assert.Contains(t, resp.Response, "Midterm Exam")
	assert.NotContains(t, resp.Response, "Problem Set")

	plain := e.ProcessQuery(ctx, "what assignments are due", "c1", sampleData())
	assert.NotContains(t, plain.Parameters, "courseName")
	assert.Contains(t, plain.Response, "Problem Set")
}

func TestProcessQuery_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	ctx := context.Background()

	e.ProcessQuery(ctx, "what is my grade in Biology", "a", sampleData())
	resp := e.ProcessQuery(ctx, "what assignments are due for that course?", "b", sampleData())
	assert.NotContains(t, resp.Parameters, "courseName")

	a, ok := e.Session("a")
	require.True(t, ok)
	assert.Equal(t, "Biology", a.LastCourse)
	assert.Equal(t, intent.Grades, a.LastIntent)

	b, ok := e.Session("b")
	require.True(t, ok)
	assert.Empty(t, b.LastCourse)
	assert.Equal(t, intent.Assignments, b.LastIntent)

	e.Forget("a")
	_, ok = e.Session("a")
	assert.False(t, ok)
}

func TestProcessQuery_GeneratesConversationID(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	resp := e.ProcessQuery(context.Background(), "hello", "", nil)

	_, err := uuid.Parse(resp.ConversationID)
	require.NoError(t, err)
	_, ok := e.Session(resp.ConversationID)
	assert.True(t, ok)

	fixed := newTestEngine(t, nil, WithIDGenerator(func() string { return "fixed" }))
	assert.Equal(t, "fixed", fixed.ProcessQuery(context.Background(), "hello", "  ", nil).ConversationID)
}

func TestProcessQuery_IdleSessionsExpire(t *testing.T) {
	t.Parallel()
	m := metrics.New(nil)
	e := newTestEngine(t, nil, WithMetrics(m), WithSessionIdle(20*time.Millisecond))
	for i := 0; i < 100; i++ {
		e.ProcessQuery(context.Background(), "my grades", "", sampleData())
	}
	assert.LessOrEqual(t, testutil.ToFloat64(m.Sessions), 100.0)

	assert.Eventually(t, func() bool {
		return len(e.sessions.Items()) == 0
	}, time.Second, 10*time.Millisecond)

	e.ProcessQuery(context.Background(), "my grades", "kept", sampleData())
	_, ok := e.Session("kept")
	assert.True(t, ok)
}

func TestSession_KeepsLastFiveTurns(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	queries := []string{
		"hello",
		"my grades",
		"my courses",
		"my calendar",
		"any announcements",
		"syllabus for Biology",
		"unread discussions",
	}
	for _, q := range queries {
		e.ProcessQuery(context.Background(), q, "c1", sampleData())
	}

	s, ok := e.Session("c1")
	require.True(t, ok)
	history := s.History()
	require.Len(t, history, historySize)

	got := make([]intent.Intent, 0, len(history))
	for _, turn := range history {
		got = append(got, turn.Intent)
	}
	assert.Equal(t, []intent.Intent{intent.Courses, intent.Calendar, intent.Announcements, intent.Syllabus, intent.Discussions}, got)
	assert.Equal(t, intent.Discussions, s.LastIntent)
	assert.Equal(t, "Biology", s.LastCourse)
}

func TestProcessQuery_PanicBecomesFallback(t *testing.T) {
	t.Parallel()
	m := metrics.New(nil)
	e := newTestEngine(t, nil, WithMetrics(m))
	e.generate = func(intent.Intent, respond.Context, string) respond.Response { panic("boom") }

	resp := e.ProcessQuery(context.Background(), "what is my grade in Biology", "c1", sampleData())
	assert.Equal(t, "UNKNOWN", resp.Intent)
	assert.Zero(t, resp.Confidence)
	assert.Equal(t, respond.Fallback().Text, resp.Response)
	assert.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "boom", resp.Error)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Intents.WithLabelValues("UNKNOWN")))
}

func TestProcessQuery_CanceledContextFallsBack(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := e.ProcessQuery(ctx, "my grades", "c1", sampleData())
	assert.Equal(t, "UNKNOWN", resp.Intent)
	assert.Equal(t, context.Canceled.Error(), resp.Error)
}

func TestAsk_UsesSnapshotSource(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, fakeSource{data: sampleData()})
	resp := e.Ask(context.Background(), "what classes am I taking", "c1")
	assert.Equal(t, "COURSES", resp.Intent)
	assert.Contains(t, resp.Response, "Chemistry 200")

	broken := newTestEngine(t, fakeSource{err: errors.New("store offline")})
	resp = broken.Ask(context.Background(), "my grades", "c1")
	assert.Equal(t, "GRADES", resp.Intent)
	assert.Equal(t, respond.NoData().Text, resp.Response)
	assert.Equal(t, "store offline", resp.Error)
}
