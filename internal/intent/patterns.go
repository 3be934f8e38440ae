package intent

// pattern is the scoring table of one intent. Keywords score Weight per
// match, phrases score twice that. Both are plain substrings of the lowered
// query; an entry that must stand alone as a word carries its own spaces.
type pattern struct {
	Keywords []string
	Phrases  []string
	Weight   float64
}

var patterns = map[Intent]pattern{
	Grades: {
		Weight:   1.0,
		Keywords: []string{"grade", "grades", "score", "scores", "gpa", "marks", "percentage", "standing"},
		Phrases:  []string{"what is my grade", "what's my grade", "my grades", "how am i doing", "current grade", "grade in"},
	},
	GradeCalculation: {
		Weight:   1.2,
		Keywords: []string{"calculate", "need to get", "what if", "to pass", "target", "final grade"},
		Phrases:  []string{"what do i need", "need on the final", "to get an a", "calculate my grade", "to get a b", "to pass the class"},
	},
	Assignments: {
		Weight:   1.0,
		Keywords: []string{"assignment", "assignments", "homework", "due", "essay", "project", "submit", "deadline", "hw"},
		Phrases:  []string{"what's due", "what is due", "my assignments", "homework due", "need to submit"},
	},
	Upcoming: {
		Weight:   1.1,
		Keywords: []string{"upcoming", "this week", "next week", "soon", "tomorrow", "coming up", "next few days"},
		Phrases:  []string{"what's coming up", "due this week", "due soon", "due tomorrow", "what's next", "this week"},
	},
	Quizzes: {
		Weight:   1.1,
		Keywords: []string{"quiz", "quizzes", "exam", "exams", "test", "tests", "midterm", "final exam", "assessment"},
		Phrases:  []string{"next quiz", "next exam", "upcoming exam", "when is the exam", "when is my test", "quiz for"},
	},
	Courses: {
		Weight:   1.0,
		Keywords: []string{"course", "courses", "class", "classes", "enrolled", "taking"},
		Phrases:  []string{"my courses", "my classes", "what classes", "which courses", "list my courses", "am i taking"},
	},
	Announcements: {
		Weight:   1.0,
		Keywords: []string{"announcement", "announcements", "news", "posted", "update", "updates"},
		Phrases:  []string{"any announcements", "latest announcements", "what's new", "recent announcements"},
	},
	Syllabus: {
		Weight:   1.0,
		Keywords: []string{"syllabus", "syllabi", "policy", "policies", "office hours", "outline"},
		Phrases:  []string{"show the syllabus", "syllabus for", "grading policy", "late policy"},
	},
	Discussions: {
		Weight:   1.0,
		Keywords: []string{"discussion", "discussions", "forum", "thread", "threads", "replies"},
		Phrases:  []string{"discussion board", "new replies", "unread discussions"},
	},
	Todo: {
		Weight:   1.0,
		Keywords: []string{"todo", "to-do", "to do", "tasks", "task", "checklist"},
		Phrases:  []string{"my to do list", "my todo list", "what should i do", "what do i have to do"},
	},
	Calendar: {
		Weight:   0.8,
		Keywords: []string{"calendar", "event", "events", "schedule", "lecture", "meeting"},
		Phrases:  []string{"my calendar", "on my calendar", "my schedule"},
	},
	Help: {
		Weight:   1.0,
		Keywords: []string{"help", "commands", "how to use", "features"},
		Phrases:  []string{"what can you do", "help me", "how does this work", "what can i ask"},
	},
	Greeting: {
		Weight:   1.0,
		Keywords: []string{"hello", "howdy", "greetings", "thanks"},
		Phrases:  []string{"good morning", "good afternoon", "good evening", "thank you", " hi ", " hi!", " hi,", " hey ", " hey!", " hey,"},
	},
}
