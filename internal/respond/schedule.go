package respond

import (
	"fmt"
	"time"

	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// Todo lists the to-do items by due date.
func Todo(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	var items []types.TodoItem
	for _, td := range c.Data.Todo {
		if scope.includes("", td.CourseName) {
			items = append(items, td)
		}
	}
	if len(items) == 0 {
		return Response{Text: withTips("Your to-do list is empty.", intent.Todo), Suggestions: Suggestions(intent.Todo)}
	}
	byDue(items, func(td types.TodoItem) *time.Time { return td.DueDate })

	now := c.now()
	lines := make([]string, 0, len(items))
	for _, td := range items {
		line := td.Title
		if scope.all && td.CourseName != "" {
			line += " (" + td.CourseName + ")"
		}
		lines = append(lines, line+" - "+dueLabel(td.DueDate, now))
	}
	body := fmt.Sprintf("Your to-do list (%d %s):\n%s", len(items), plural(len(items), "item", "items"), cappedBullets(lines, longList))
	return Response{Text: withTips(body, intent.Todo), Suggestions: Suggestions(intent.Todo)}
}

// Calendar lists events from today on, soonest first.
func Calendar(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	now := c.now()
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	var items []types.CalendarEvent
	for _, ev := range c.Data.Calendar {
		if ev.Start == nil || ev.Start.Before(startOfDay) || !scope.includes("", ev.CourseName) {
			continue
		}
		items = append(items, ev)
	}
	if len(items) == 0 {
		return Response{Text: withTips("Nothing on your calendar from today on.", intent.Calendar), Suggestions: Suggestions(intent.Calendar)}
	}
	byDue(items, func(ev types.CalendarEvent) *time.Time { return ev.Start })

	lines := make([]string, 0, len(items))
	for _, ev := range items {
		line := ev.Start.In(now.Location()).Format("Mon Jan 2 3:04 PM") + ": " + ev.Title
		if scope.all && ev.CourseName != "" {
			line += " (" + ev.CourseName + ")"
		}
		if ev.Location != "" {
			line += " @ " + ev.Location
		}
		lines = append(lines, line)
	}
	body := "On your calendar:\n" + cappedBullets(lines, longList)
	return Response{Text: withTips(body, intent.Calendar), Suggestions: Suggestions(intent.Calendar)}
}
