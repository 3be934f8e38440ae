package respond

import (
	"fmt"
	"strings"

	"github.com/xiy/canvas-mcp/internal/intent"
)

// Help describes what can be asked. It works without cached data.
func Help(Context) Response {
	body := strings.Join([]string{
		"I can answer questions about your Canvas courses from the data the extension has synced:",
		bullets([]string{
			"Grades: \"What's my grade in Biology?\"",
			"Grade planning: \"What do I need to get a B+ in Chemistry?\"",
			"Assignments: \"What assignments are due?\"",
			"Deadlines: \"What's due this week?\"",
			"Quizzes and exams: \"When is my next exam?\"",
			"Courses: \"What classes am I taking?\"",
			"Announcements, syllabi, discussions, to-dos and your calendar",
		}),
	}, "\n")
	return Response{Text: body, Suggestions: Suggestions(intent.Help)}
}

// Greeting says hello and, when data is cached, gives a short summary.
func Greeting(c Context) Response {
	if c.empty() {
		return Response{
			Text:        "Hi! I can help with your Canvas courses once some data has been synced. Ask \"help\" to see what I can do.",
			Suggestions: Suggestions(intent.Help),
		}
	}
	now := c.now()
	due := 0
	for _, a := range c.Data.Assignments {
		if !a.Submitted && a.DueDate != nil && !a.DueDate.Before(now) && dayDiff(now, *a.DueDate) <= 7 {
			due++
		}
	}
	text := fmt.Sprintf("Hi! You have %d %s", len(c.Data.Courses), plural(len(c.Data.Courses), "course", "courses"))
	if due > 0 {
		text += fmt.Sprintf(" and %d %s due in the next week", due, plural(due, "assignment", "assignments"))
	}
	text += ". What would you like to know?"
	return Response{Text: text, Suggestions: Suggestions(intent.Greeting)}
}

// Clarification is used when the best intent is not confident enough.
func Clarification(query string) Response {
	text := "I'm not sure what you're asking"
	if q := strings.TrimSpace(query); q != "" {
		text += fmt.Sprintf(" with %q", truncate(q, 80))
	}
	text += ". Could you rephrase? For example:\n" + bullets([]string{
		"What's my grade in Biology?",
		"What's due this week?",
		"When is my next quiz?",
	})
	return Response{Text: text, Suggestions: Suggestions(intent.Unknown)}
}

// Fallback is returned when processing a query fails unexpectedly.
func Fallback() Response {
	return Response{
		Text:        "Sorry, something went wrong while answering that. Please try again or rephrase your question.",
		Suggestions: Suggestions(intent.Unknown),
	}
}
