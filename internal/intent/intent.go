// Package intent classifies free-text student questions and pulls structured
// parameters (course, time frame, grade target, assignment type) out of them.
package intent

// Intent is the coarse category of a question.
type Intent int

const (
	Grades Intent = iota
	GradeCalculation
	Assignments
	Upcoming
	Quizzes
	Courses
	Announcements
	Syllabus
	Discussions
	Todo
	Calendar
	Help
	Greeting
	Unknown
)

// Ordered lists every classifiable intent in evaluation order. Ties go to
// the earlier entry.
var Ordered = []Intent{
	Grades, GradeCalculation, Assignments, Upcoming, Quizzes, Courses,
	Announcements, Syllabus, Discussions, Todo, Calendar, Help, Greeting,
}

var names = map[Intent]string{
	Grades:           "GRADES",
	GradeCalculation: "GRADE_CALCULATION",
	Assignments:      "ASSIGNMENTS",
	Upcoming:         "UPCOMING",
	Quizzes:          "QUIZZES",
	Courses:          "COURSES",
	Announcements:    "ANNOUNCEMENTS",
	Syllabus:         "SYLLABUS",
	Discussions:      "DISCUSSIONS",
	Todo:             "TODO",
	Calendar:         "CALENDAR",
	Help:             "HELP",
	Greeting:         "GREETING",
	Unknown:          "UNKNOWN",
}

func (i Intent) String() string {
	if n, ok := names[i]; ok {
		return n
	}
	return names[Unknown]
}
