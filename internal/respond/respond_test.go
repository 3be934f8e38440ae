package respond

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/pkg/types"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func at(d time.Duration) *time.Time { return ptr(testNow.Add(d)) }

func sampleData() *types.CanvasData {
	return &types.CanvasData{
		Courses: []types.Course{
			{ID: "1", Name: "Biology 101", CourseCode: "BIO 101", Instructor: "Dr. Reyes"},
			{ID: "2", Name: "Chemistry 200", CourseCode: "CHEM 200"},
		},
		Grades: []types.Grade{
			{CourseID: "1", CourseName: "Biology 101", AssignmentName: "Lab 1", Score: ptr(45.0), MaxPoints: ptr(50.0)},
			{CourseID: "1", CourseName: "Biology 101", AssignmentName: "Quiz 1", Score: ptr(18.0), MaxPoints: ptr(20.0)},
			{CourseID: "1", CourseName: "Biology 101", AssignmentName: "Essay"},
		},
		Assignments: []types.Assignment{
			{CourseID: "1", CourseName: "Biology 101", Name: "Midterm Exam", Type: "quiz", DueDate: at(72 * time.Hour), PointsPossible: ptr(30.0)},
			{CourseID: "2", CourseName: "Chemistry 200", Name: "Problem Set", DueDate: at(30 * time.Hour)},
		},
		Announcements: []types.Announcement{
			{CourseName: "Biology 101", Title: "Older news", PostedAt: at(-72 * time.Hour)},
			{CourseName: "Biology 101", Title: "Newest news", PostedAt: at(-2 * time.Hour)},
			{CourseName: "Chemistry 200", Title: "Undated news"},
		},
	}
}

func paramsFor(query string) intent.Parameters { return intent.Extract(query) }

func order(t *testing.T, text string, parts ...string) {
	t.Helper()
	last := -1
	for _, p := range parts {
		idx := strings.Index(text, p)
		require.GreaterOrEqual(t, idx, 0, "%q not found in:\n%s", p, text)
		require.Greater(t, idx, last, "%q out of order in:\n%s", p, text)
		last = idx
	}
}

func TestAssignments_SortedByDueWithUndatedLast(t *testing.T) {
	t.Parallel()
	data := &types.CanvasData{Assignments: []types.Assignment{
		{Name: "Alpha essay", DueDate: at(24 * time.Hour)},
		{Name: "Beta lab", DueDate: at(-24 * time.Hour)},
		{Name: "Gamma reading"},
	}}
	res := Assignments(Context{Now: testNow, Params: intent.Parameters{}, Data: data})
	order(t, res.Text, "Beta lab - overdue", "Alpha essay - due tomorrow", "Gamma reading - no due date")
}

func TestPercent_SumsOnlyNumericPairs(t *testing.T) {
	t.Parallel()
	grades := sampleData().Grades
	pct, earned, total, ok := Percent(grades)
	require.True(t, ok)
	assert.InDelta(t, 90.0, pct, 1e-9)
	assert.Equal(t, 63.0, earned)
	assert.Equal(t, 70.0, total)
	assert.Equal(t, "90.0%", FormatPercent(grades))
	assert.Equal(t, "No grades available", FormatPercent([]types.Grade{{AssignmentName: "x"}}))
}

func TestGrades_PerCourse(t *testing.T) {
	t.Parallel()
	res := Grades(Context{Now: testNow, Params: paramsFor("what are my grades"), Data: sampleData()})
	assert.Contains(t, res.Text, "Biology 101: 90.0%")
	assert.Contains(t, res.Text, "Chemistry 200: No grades available")
	assert.NotEmpty(t, res.Suggestions)

	one := Grades(Context{Now: testNow, Params: paramsFor("what is my grade in biology"), Data: sampleData()})
	assert.Contains(t, one.Text, "Your grade in Biology 101")
	assert.Contains(t, one.Text, "Lab 1: 45/50")
	assert.Contains(t, one.Text, "Essay: not graded yet")
}

func TestGrades_UnmatchedCourseListsKnownCourses(t *testing.T) {
	t.Parallel()
	res := Grades(Context{Now: testNow, Params: paramsFor(`grade in "Astronomy"`), Data: sampleData()})
	assert.Contains(t, res.Text, `couldn't find a course matching "Astronomy"`)
	assert.Contains(t, res.Text, "Biology 101 (BIO 101)")
	assert.Contains(t, res.Text, "Chemistry 200 (CHEM 200)")
}

func TestCourseMatch_BothDirections(t *testing.T) {
	t.Parallel()
	data := sampleData()
	scope, ok := resolveCourse(Context{Params: paramsFor(`grade in "Intro Biology 101 with lab"`), Data: data})
	require.True(t, ok)
	assert.Equal(t, "Biology 101", scope.label())

	scope, ok = resolveCourse(Context{Params: paramsFor("grade in chem"), Data: data})
	require.True(t, ok)
	assert.Equal(t, "Chemistry 200", scope.label())
}

func TestNoData_ForEveryDataBackedIntent(t *testing.T) {
	t.Parallel()
	c := Context{Now: testNow, Params: intent.Parameters{}, Data: &types.CanvasData{}}
	for _, gen := range []func(Context) Response{Grades, GradeCalculation, Assignments, Upcoming, Quizzes, Courses, Announcements, Syllabus, Discussions, Todo, Calendar} {
		res := gen(c)
		assert.Equal(t, NoData().Text, res.Text)
	}
	nilData := Grades(Context{Now: testNow})
	assert.Equal(t, NoData().Text, nilData.Text)
}

func TestDueLabel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		due  *time.Time
		want string
	}{
		{nil, "no due date"},
		{at(-time.Minute), "overdue"},
		{at(5 * time.Hour), "due today"},
		{at(24 * time.Hour), "due tomorrow"},
		{at(4 * 24 * time.Hour), "due in 4 days"},
		{at(10 * 24 * time.Hour), "due Thu Mar 12"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, dueLabel(tc.due, testNow))
	}
}

func TestCappedBullets_AddsTrailer(t *testing.T) {
	t.Parallel()
	lines := []string{"a", "b", "c", "d", "e", "f", "g"}
	assert.Equal(t, "• a\n• b\n• c\n• d\n• e\n+2 more", cappedBullets(lines, shortList))
	assert.Equal(t, "• a\n• b\n• c", cappedBullets(lines[:3], shortList))
}

func TestAssignments_PlusSignNameKeepsBullet(t *testing.T) {
	t.Parallel()
	data := &types.CanvasData{Assignments: []types.Assignment{
		{Name: "+5 Extra Credit", DueDate: at(24 * time.Hour)},
	}}
	res := Assignments(Context{Now: testNow, Params: intent.Parameters{}, Data: data})
	assert.Contains(t, res.Text, "• +5 Extra Credit")
}

func TestAnnouncements_NewestFirst(t *testing.T) {
	t.Parallel()
	res := Announcements(Context{Now: testNow, Params: intent.Parameters{}, Data: sampleData()})
	order(t, res.Text, "Newest news", "Older news", "Undated news")
	assert.Contains(t, res.Text, "2 hours ago")
}

func TestQuizzes_Heuristic(t *testing.T) {
	t.Parallel()
	assert.True(t, IsQuiz("Mid-term EXAM"))
	assert.True(t, IsQuiz("Pop Quiz #2"))
	assert.True(t, IsQuiz("Self-Assessment"))
	assert.False(t, IsQuiz("Lab report"))

	res := Quizzes(Context{Now: testNow, Params: intent.Parameters{}, Data: sampleData()})
	assert.Contains(t, res.Text, "Midterm Exam (Biology 101) - due in 3 days")
	assert.NotContains(t, res.Text, "Problem Set")
}

func TestUpcoming_RespectsTimeFrame(t *testing.T) {
	t.Parallel()
	data := sampleData()
	data.Todo = []types.TodoItem{{Title: "Read chapter 4", DueDate: at(3 * time.Hour)}}

	week := Upcoming(Context{Now: testNow, Params: paramsFor("what's due this week"), Data: data})
	order(t, week.Text, "Read chapter 4", "Problem Set", "Midterm Exam")

	today := Upcoming(Context{Now: testNow, Params: paramsFor("what's due today"), Data: data})
	assert.Contains(t, today.Text, "Read chapter 4")
	assert.NotContains(t, today.Text, "Problem Set")
}

func TestGradeCalculation_RequiredAverage(t *testing.T) {
	t.Parallel()
	res := GradeCalculation(Context{Now: testNow, Params: paramsFor("what do I need to get an A in Biology"), Data: sampleData()})
	assert.Contains(t, res.Text, "Biology 101: currently 90.0% (63/70 points).")
	assert.Contains(t, res.Text, "A (93%)")

	res = GradeCalculation(Context{Now: testNow, Params: paramsFor("need 80% in Biology"), Data: sampleData()})
	assert.Contains(t, res.Text, "average of 56.7% on the remaining 30 points")
}

func TestHelpAndGreetingWorkWithoutData(t *testing.T) {
	t.Parallel()
	assert.Contains(t, Help(Context{}).Text, "Grades")
	assert.Contains(t, Greeting(Context{}).Text, "Hi!")
	assert.Contains(t, Greeting(Context{Now: testNow, Data: sampleData()}).Text, "2 courses and 2 assignments")
	assert.Contains(t, Clarification("blorp").Text, "rephrase")
}
