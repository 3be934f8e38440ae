package respond

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// Percent returns 100 × Σscore / Σmax over grades carrying both numbers.
func Percent(grades []types.Grade) (pct, earned, total float64, ok bool) {
	for _, g := range grades {
		if g.Score == nil || g.MaxPoints == nil {
			continue
		}
		earned += *g.Score
		total += *g.MaxPoints
	}
	if total <= 0 {
		return 0, earned, total, false
	}
	return 100 * earned / total, earned, total, true
}

// FormatPercent renders a course percentage with one decimal.
func FormatPercent(grades []types.Grade) string {
	pct, _, _, ok := Percent(grades)
	if !ok {
		return "No grades available"
	}
	return fmt.Sprintf("%.1f%%", pct)
}

// coursesInScope lists the courses an answer covers. Without a course list
// the course names found on items stand in.
func coursesInScope(scope courseScope, data *types.CanvasData, itemCourses func() []string) []types.Course {
	if !scope.all {
		return scope.matches
	}
	if len(data.Courses) > 0 {
		return data.Courses
	}
	var out []types.Course
	seen := map[string]bool{}
	for _, name := range itemCourses() {
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, types.Course{Name: name})
	}
	return out
}

func single(course types.Course) courseScope {
	return courseScope{name: course.Name, matches: []types.Course{course}}
}

func gradesFor(course types.Course, grades []types.Grade) []types.Grade {
	scope := single(course)
	var out []types.Grade
	for _, g := range grades {
		if scope.includes(g.CourseID, g.CourseName) {
			out = append(out, g)
		}
	}
	return out
}

func gradeCourseNames(data *types.CanvasData) func() []string {
	return func() []string {
		out := make([]string, 0, len(data.Grades))
		for _, g := range data.Grades {
			out = append(out, g.CourseName)
		}
		return out
	}
}

// Grades answers "what is my grade" questions.
func Grades(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}

	courses := coursesInScope(scope, c.Data, gradeCourseNames(c.Data))
	if len(courses) == 0 {
		return Response{Text: withTips("No grades available yet.", intent.Grades), Suggestions: Suggestions(intent.Grades)}
	}

	var b strings.Builder
	if scope.all {
		b.WriteString("Your current grades:\n")
	} else {
		fmt.Fprintf(&b, "Your grade in %s:\n", scope.label())
	}
	lines := make([]string, 0, len(courses))
	for _, course := range courses {
		lines = append(lines, fmt.Sprintf("%s: %s", course.Name, FormatPercent(gradesFor(course, c.Data.Grades))))
	}
	b.WriteString(cappedBullets(lines, longList))

	if len(courses) == 1 {
		items := gradesFor(courses[0], c.Data.Grades)
		if len(items) > 0 {
			b.WriteString("\n\nGraded items:\n")
			b.WriteString(cappedBullets(gradeLines(items), shortList))
		}
	}
	return Response{Text: withTips(b.String(), intent.Grades), Suggestions: Suggestions(intent.Grades)}
}

func gradeLines(grades []types.Grade) []string {
	out := make([]string, 0, len(grades))
	for _, g := range grades {
		name := g.AssignmentName
		if name == "" {
			name = "Untitled"
		}
		switch {
		case g.Score != nil && g.MaxPoints != nil:
			out = append(out, fmt.Sprintf("%s: %s/%s", name, num(*g.Score), num(*g.MaxPoints)))
		case g.Letter != "":
			out = append(out, fmt.Sprintf("%s: %s", name, g.Letter))
		default:
			out = append(out, name+": not graded yet")
		}
	}
	return out
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var letterFloor = []struct {
	letter string
	min    float64
}{
	{"A+", 97}, {"A", 93}, {"A-", 90},
	{"B+", 87}, {"B", 83}, {"B-", 80},
	{"C+", 77}, {"C", 73}, {"C-", 70},
	{"D+", 67}, {"D", 63}, {"D-", 60},
	{"F", 0},
}

// targetPercent reads a gradeTarget value ("87%" or "B+").
func targetPercent(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		return f, err == nil
	}
	v = strings.ToUpper(v)
	for _, lf := range letterFloor {
		if lf.letter == v {
			return lf.min, true
		}
	}
	return 0, false
}

// GradeCalculation answers "what do I need" questions.
func GradeCalculation(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	courses := coursesInScope(scope, c.Data, gradeCourseNames(c.Data))
	if len(courses) == 0 {
		return Response{Text: withTips("No grades available yet.", intent.GradeCalculation), Suggestions: Suggestions(intent.GradeCalculation)}
	}

	rawTarget := c.Params.Value(intent.GradeTarget)
	target, hasTarget := targetPercent(rawTarget)

	blocks := make([]string, 0, len(courses))
	for i, course := range courses {
		if i == shortList {
			blocks = append(blocks, fmt.Sprintf("+%d more", len(courses)-shortList))
			break
		}
		blocks = append(blocks, calcBlock(c, course, rawTarget, target, hasTarget))
	}

	body := strings.Join(blocks, "\n\n")
	if !hasTarget {
		body += "\n\nTell me a target like \"B+\" or \"85%\" and I'll work out what you need."
	}
	return Response{Text: withTips(body, intent.GradeCalculation), Suggestions: Suggestions(intent.GradeCalculation)}
}

func calcBlock(c Context, course types.Course, rawTarget string, target float64, hasTarget bool) string {
	pct, earned, total, ok := Percent(gradesFor(course, c.Data.Grades))
	if !ok {
		return course.Name + ": No grades available"
	}
	line := fmt.Sprintf("%s: currently %.1f%% (%s/%s points).", course.Name, pct, num(earned), num(total))
	if !hasTarget {
		return line
	}

	label := rawTarget
	if !strings.HasSuffix(rawTarget, "%") {
		label = fmt.Sprintf("%s (%s%%)", strings.ToUpper(rawTarget), num(target))
	}

	remaining := remainingPoints(course, c.Data.Assignments)
	if remaining <= 0 {
		gap := target - pct
		if gap <= 0 {
			return line + fmt.Sprintf(" You're at or above %s.", label)
		}
		return line + fmt.Sprintf(" You're %.1f points below %s and no remaining graded work is listed.", gap, label)
	}

	needed := target/100*(total+remaining) - earned
	required := 100 * needed / remaining
	switch {
	case required <= 0:
		return line + fmt.Sprintf(" You're on track for %s even with zero on the remaining %s points.", label, num(remaining))
	case required > 100:
		return line + fmt.Sprintf(" Reaching %s would take %.1f%% on the remaining %s points, so it's out of reach.", label, required, num(remaining))
	default:
		return line + fmt.Sprintf(" To finish at %s you need an average of %.1f%% on the remaining %s points.", label, required, num(remaining))
	}
}

// remainingPoints sums pointsPossible of unsubmitted work in course.
func remainingPoints(course types.Course, assignments []types.Assignment) float64 {
	scope := single(course)
	total := 0.0
	for _, a := range assignments {
		if a.Submitted || a.PointsPossible == nil || !scope.includes(a.CourseID, a.CourseName) {
			continue
		}
		total += *a.PointsPossible
	}
	return total
}

func assignmentLine(a types.Assignment, now time.Time, withCourse bool) string {
	line := a.Name
	if withCourse && a.CourseName != "" {
		line += " (" + a.CourseName + ")"
	}
	label := dueLabel(a.DueDate, now)
	if a.Submitted {
		label = "submitted"
	}
	return line + " - " + label
}

func scopedAssignments(scope courseScope, data *types.CanvasData) []types.Assignment {
	out := make([]types.Assignment, 0, len(data.Assignments))
	for _, a := range data.Assignments {
		if scope.includes(a.CourseID, a.CourseName) {
			out = append(out, a)
		}
	}
	return out
}

// Assignments lists assignments by due date, undated last.
func Assignments(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	if c.Params.Value(intent.TimeFrame) == "overdue" {
		return overdue(c, scope, c.now())
	}
	items := scopedAssignments(scope, c.Data)
	if kind := c.Params.Value(intent.AssignmentType); kind != "" && !genericType[kind] {
		items = filterByType(items, kind)
	}
	byDue(items, func(a types.Assignment) *time.Time { return a.DueDate })

	where := ""
	if !scope.all {
		where = " in " + scope.label()
	}
	if len(items) == 0 {
		return Response{Text: withTips("No assignments found"+where+".", intent.Assignments), Suggestions: Suggestions(intent.Assignments)}
	}
	now := c.now()
	lines := make([]string, 0, len(items))
	for _, a := range items {
		lines = append(lines, assignmentLine(a, now, scope.all))
	}
	body := fmt.Sprintf("Assignments%s:\n%s", where, cappedBullets(lines, longList))
	return Response{Text: withTips(body, intent.Assignments), Suggestions: Suggestions(intent.Assignments)}
}

// genericType words name every assignment and never narrow a listing.
var genericType = map[string]bool{"assignment": true, "homework": true}

func filterByType(items []types.Assignment, kind string) []types.Assignment {
	kind = normalize(kind)
	out := items[:0]
	for _, a := range items {
		if strings.Contains(normalize(a.Type), kind) || strings.Contains(normalize(a.Name), kind) {
			out = append(out, a)
		}
	}
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalize(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

var quizMarkers = []string{"quiz", "exam", "test", "assessment"}

// IsQuiz reports whether an assignment type or name looks like an
// assessment.
func IsQuiz(s string) bool {
	n := normalize(s)
	for _, m := range quizMarkers {
		if strings.Contains(n, m) {
			return true
		}
	}
	return false
}

// Quizzes lists upcoming quizzes and exams.
func Quizzes(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	now := c.now()
	var upcoming []types.Assignment
	past := 0
	for _, a := range scopedAssignments(scope, c.Data) {
		if !IsQuiz(a.Type) && !IsQuiz(a.Name) {
			continue
		}
		if a.DueDate != nil && a.DueDate.Before(now) {
			past++
			continue
		}
		upcoming = append(upcoming, a)
	}
	byDue(upcoming, func(a types.Assignment) *time.Time { return a.DueDate })

	where := ""
	if !scope.all {
		where = " in " + scope.label()
	}
	var body string
	if len(upcoming) == 0 {
		body = "No upcoming quizzes or exams" + where + "."
	} else {
		lines := make([]string, 0, len(upcoming))
		for _, a := range upcoming {
			lines = append(lines, assignmentLine(a, now, scope.all))
		}
		body = fmt.Sprintf("Upcoming quizzes and exams%s:\n%s", where, cappedBullets(lines, shortList))
	}
	switch {
	case past == 1:
		body += "\n\n(1 past quiz or exam not shown.)"
	case past > 1:
		body += fmt.Sprintf("\n\n(%d past quizzes or exams not shown.)", past)
	}
	return Response{Text: withTips(body, intent.Quizzes), Suggestions: Suggestions(intent.Quizzes)}
}

// horizon turns a timeFrame value into the end of the window it names.
func horizon(now time.Time, frame string) time.Time {
	endOfDay := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
	}
	frame = strings.ToLower(strings.TrimSpace(frame))
	switch frame {
	case "today", "tonight":
		return endOfDay(now)
	case "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1))
	case "next week":
		return now.AddDate(0, 0, 14)
	case "this month", "next month":
		return now.AddDate(0, 1, 0)
	case "this semester", "this term":
		return now.AddDate(0, 4, 0)
	}
	if n, unit, ok := countFrame(frame); ok {
		if strings.HasPrefix(unit, "week") {
			return now.AddDate(0, 0, 7*n)
		}
		return now.AddDate(0, 0, n)
	}
	return now.AddDate(0, 0, 7)
}

var countExpr = regexp.MustCompile(`(\d{1,3})\s+(days?|weeks?)`)

func countFrame(frame string) (int, string, bool) {
	m := countExpr.FindStringSubmatch(frame)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, "", false
	}
	return n, m[2], true
}

type dated struct {
	at   time.Time
	line string
}

// Upcoming merges assignments, to-dos and calendar events inside the time
// frame the question names (a week by default).
func Upcoming(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	now := c.now()
	frame := c.Params.Value(intent.TimeFrame)
	if frame == "overdue" {
		return overdue(c, scope, now)
	}
	end := horizon(now, frame)
	within := func(t *time.Time) bool { return t != nil && !t.Before(now) && !t.After(end) }

	var items []dated
	for _, a := range scopedAssignments(scope, c.Data) {
		if a.Submitted || !within(a.DueDate) {
			continue
		}
		items = append(items, dated{at: *a.DueDate, line: assignmentLine(a, now, scope.all)})
	}
	for _, td := range c.Data.Todo {
		if !scope.includes("", td.CourseName) || !within(td.DueDate) {
			continue
		}
		items = append(items, dated{at: *td.DueDate, line: td.Title + " - " + dueLabel(td.DueDate, now)})
	}
	for _, ev := range c.Data.Calendar {
		if !scope.includes("", ev.CourseName) || !within(ev.Start) {
			continue
		}
		items = append(items, dated{at: *ev.Start, line: ev.Title + " - " + ev.Start.In(now.Location()).Format("Mon Jan 2 3:04 PM")})
	}
	sortDated(items)

	period := "the next 7 days"
	if frame != "" && frame != "soon" && frame != "upcoming" {
		period = frame
	}
	if len(items) == 0 {
		return Response{Text: withTips("Nothing due "+periodPhrase(period)+". Enjoy the breathing room!", intent.Upcoming), Suggestions: Suggestions(intent.Upcoming)}
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.line)
	}
	body := fmt.Sprintf("Coming up %s:\n%s", periodPhrase(period), cappedBullets(lines, longList))
	return Response{Text: withTips(body, intent.Upcoming), Suggestions: Suggestions(intent.Upcoming)}
}

func periodPhrase(p string) string {
	if strings.HasPrefix(p, "the ") {
		return "in " + p
	}
	return p
}

func overdue(c Context, scope courseScope, now time.Time) Response {
	var items []types.Assignment
	for _, a := range scopedAssignments(scope, c.Data) {
		if !a.Submitted && a.DueDate != nil && a.DueDate.Before(now) {
			items = append(items, a)
		}
	}
	if len(items) == 0 {
		return Response{Text: withTips("Nothing overdue. Nice work!", intent.Upcoming), Suggestions: Suggestions(intent.Upcoming)}
	}
	byDue(items, func(a types.Assignment) *time.Time { return a.DueDate })
	lines := make([]string, 0, len(items))
	for _, a := range items {
		lines = append(lines, assignmentLine(a, now, scope.all))
	}
	body := "Overdue assignments:\n" + cappedBullets(lines, longList)
	return Response{Text: withTips(body, intent.Upcoming), Suggestions: Suggestions(intent.Upcoming)}
}

func sortDated(items []dated) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
}
