// Package respond renders answers for each intent from a snapshot of the
// student's Canvas data.
package respond

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/pkg/types"
)

const (
	shortList = 5
	longList  = 10
)

// Context carries everything a generator reads.
type Context struct {
	Now    time.Time
	Params intent.Parameters
	Data   *types.CanvasData
}

// Response is a rendered answer.
type Response struct {
	Text        string
	Suggestions []string
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

func (c Context) empty() bool {
	return c.Data.Empty()
}

// NoData is returned by every data-backed generator when nothing is cached.
func NoData() Response {
	return Response{
		Text: strings.Join([]string{
			"I don't have any Canvas data cached yet, so I can't answer that.",
			"",
			"This usually means Canvas hasn't been synced since the cache was cleared or the last sync failed.",
			"",
			"To fix it:",
			"• Open Canvas in your browser and let the extension finish a sync.",
			"• Make sure you're logged in to Canvas.",
			"• Ask again in a minute.",
		}, "\n"),
		Suggestions: []string{"help", "What can you do?"},
	}
}

// courseScope is the set of courses a question is about; all is set when
// the question names no course.
type courseScope struct {
	name    string
	matches []types.Course
	all     bool
}

// resolveCourse matches the courseName parameter against the snapshot. ok
// is false when a name was given and nothing matched.
func resolveCourse(c Context) (courseScope, bool) {
	name := c.Params.Value(intent.CourseName)
	if name == "" {
		return courseScope{all: true}, true
	}
	target := strings.ToLower(name)
	scope := courseScope{name: name}
	for _, course := range c.Data.Courses {
		if courseMatches(target, course) {
			scope.matches = append(scope.matches, course)
		}
	}
	return scope, len(scope.matches) > 0
}

func courseMatches(target string, course types.Course) bool {
	if course.ID != "" && target == strings.ToLower(course.ID) {
		return true
	}
	for _, field := range []string{course.Name, course.CourseCode} {
		if fuzzyEqual(target, strings.ToLower(field)) {
			return true
		}
	}
	return false
}

// fuzzyEqual is case-folded containment in either direction.
func fuzzyEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// includes reports whether an item tagged with courseID/courseName belongs
// to the scope.
func (s courseScope) includes(courseID, courseName string) bool {
	if s.all {
		return true
	}
	name := strings.ToLower(courseName)
	for _, m := range s.matches {
		if courseID != "" && courseID == m.ID {
			return true
		}
		if fuzzyEqual(name, strings.ToLower(m.Name)) || fuzzyEqual(name, strings.ToLower(m.CourseCode)) {
			return true
		}
	}
	return false
}

func (s courseScope) label() string {
	if s.all {
		return ""
	}
	if len(s.matches) == 1 {
		return s.matches[0].Name
	}
	return s.name
}

func unmatchedCourse(name string, data *types.CanvasData) Response {
	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't find a course matching %q.", name)
	if len(data.Courses) > 0 {
		b.WriteString("\n\nYour courses:\n")
		b.WriteString(cappedBullets(courseNames(data.Courses), longList))
	}
	return Response{
		Text:        strings.TrimRight(b.String(), "\n"),
		Suggestions: []string{"What courses am I taking?"},
	}
}

func courseNames(courses []types.Course) []string {
	out := make([]string, 0, len(courses))
	for _, c := range courses {
		name := c.Name
		if c.CourseCode != "" && !strings.Contains(name, c.CourseCode) {
			name += " (" + c.CourseCode + ")"
		}
		out = append(out, name)
	}
	return out
}

func bullets(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("• " + l + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// cappedBullets lists the first max lines and counts the rest on an
// unbulleted "+N more" line.
func cappedBullets(lines []string, max int) string {
	if len(lines) <= max {
		return bullets(lines)
	}
	return bullets(lines[:max]) + fmt.Sprintf("\n+%d more", len(lines)-max)
}

// dueLabel describes a due date relative to now.
func dueLabel(due *time.Time, now time.Time) string {
	if due == nil {
		return "no due date"
	}
	d := due.In(now.Location())
	if d.Before(now) {
		return "overdue"
	}
	switch days := dayDiff(now, d); {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days <= 7:
		return fmt.Sprintf("due in %d days", days)
	default:
		return "due " + d.Format("Mon Jan 2")
	}
}

// dayDiff counts calendar days from a to b in a's location.
func dayDiff(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// byDue sorts ascending by due date with undated items last.
func byDue[T any](items []T, due func(T) *time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := due(items[i]), due(items[j])
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
}

// newestFirst sorts descending by timestamp with undated items last.
func newestFirst[T any](items []T, at func(T) *time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		ai, aj := at(items[i]), at(items[j])
		switch {
		case ai == nil:
			return false
		case aj == nil:
			return true
		default:
			return ai.After(*aj)
		}
	})
}

func withTips(body string, in intent.Intent) string {
	t := Tips(in)
	if len(t) == 0 {
		return body
	}
	return body + "\n\nTips:\n" + bullets(t)
}

var tips = map[intent.Intent][]string{
	intent.Grades:           {"Ask \"what's my grade in <course>\" for one course.", "Ask \"what do I need to get an A\" to plan ahead."},
	intent.GradeCalculation: {"Include a target like \"B+\" or \"85%\".", "Name the course, e.g. \"in Biology\"."},
	intent.Assignments:      {"Add a course name to narrow the list.", "Ask \"what's due this week\" for the near term."},
	intent.Upcoming:         {"Try \"what's due tomorrow\" or \"next 3 days\"."},
	intent.Quizzes:          {"Ask \"when is the exam for <course>\" for one course."},
	intent.Courses:          {"Ask about grades or assignments in any of these courses."},
	intent.Announcements:    {"Add a course name to see one course's announcements."},
	intent.Syllabus:         {"Put the course name in quotes for an exact match."},
	intent.Discussions:      {"Add a course name to focus on one discussion board."},
	intent.Todo:             {"Ask \"what's due this week\" to include assignments."},
	intent.Calendar:         {"Ask \"what's coming up\" for deadlines as well as events."},
}

// Tips returns the usage tips shown under answers of in.
func Tips(in intent.Intent) []string {
	return tips[in]
}

var suggestions = map[intent.Intent][]string{
	intent.Grades:           {"What do I need to get an A?", "What assignments are due?"},
	intent.GradeCalculation: {"What are my grades?", "What's due this week?"},
	intent.Assignments:      {"What's due this week?", "Do I have any quizzes coming up?"},
	intent.Upcoming:         {"What assignments are due?", "What's on my calendar?"},
	intent.Quizzes:          {"What's due this week?", "What are my grades?"},
	intent.Courses:          {"What are my grades?", "Any announcements?"},
	intent.Announcements:    {"What's due this week?", "Any new discussion replies?"},
	intent.Syllabus:         {"What are my grades?", "What assignments are due?"},
	intent.Discussions:      {"Any announcements?", "What's due this week?"},
	intent.Todo:             {"What's due this week?", "What's on my calendar?"},
	intent.Calendar:         {"What's due this week?", "What's on my to-do list?"},
	intent.Help:             {"What are my grades?", "What's due this week?", "What courses am I taking?"},
	intent.Greeting:         {"What's due this week?", "What are my grades?"},
	intent.Unknown:          {"What are my grades?", "What's due this week?", "help"},
}

// Suggestions returns follow-up questions for in.
func Suggestions(in intent.Intent) []string {
	if s, ok := suggestions[in]; ok {
		return append([]string(nil), s...)
	}
	return append([]string(nil), suggestions[intent.Unknown]...)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
