package respond

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// Courses lists enrolled courses with their current grade.
func Courses(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	courses := c.Data.Courses
	if !scope.all {
		courses = scope.matches
	}
	if len(courses) == 0 {
		return Response{Text: withTips("No courses found in your cached data.", intent.Courses), Suggestions: Suggestions(intent.Courses)}
	}

	lines := make([]string, 0, len(courses))
	for _, course := range courses {
		parts := []string{courseNames([]types.Course{course})[0]}
		if course.Instructor != "" {
			parts = append(parts, course.Instructor)
		}
		if course.Term != "" {
			parts = append(parts, course.Term)
		}
		if grades := gradesFor(course, c.Data.Grades); len(grades) > 0 {
			parts = append(parts, FormatPercent(grades))
		}
		lines = append(lines, strings.Join(parts, " - "))
	}
	body := fmt.Sprintf("You're enrolled in %d %s:\n%s", len(courses), plural(len(courses), "course", "courses"), cappedBullets(lines, longList))
	return Response{Text: withTips(body, intent.Courses), Suggestions: Suggestions(intent.Courses)}
}

// Announcements lists the newest announcements first.
func Announcements(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	var items []types.Announcement
	for _, a := range c.Data.Announcements {
		if scope.includes(a.CourseID, a.CourseName) {
			items = append(items, a)
		}
	}
	newestFirst(items, func(a types.Announcement) *time.Time { return a.PostedAt })

	where := ""
	if !scope.all {
		where = " in " + scope.label()
	}
	if len(items) == 0 {
		return Response{Text: withTips("No announcements"+where+".", intent.Announcements), Suggestions: Suggestions(intent.Announcements)}
	}
	now := c.now()
	lines := make([]string, 0, len(items))
	for _, a := range items {
		line := a.Title
		if scope.all && a.CourseName != "" {
			line += " (" + a.CourseName + ")"
		}
		if a.PostedAt != nil {
			line += ", posted " + humanize.RelTime(*a.PostedAt, now, "ago", "from now")
		}
		if a.Message != "" {
			line += "\n  " + truncate(a.Message, 140)
		}
		lines = append(lines, line)
	}
	body := fmt.Sprintf("Recent announcements%s:\n%s", where, cappedBullets(lines, shortList))
	return Response{Text: withTips(body, intent.Announcements), Suggestions: Suggestions(intent.Announcements)}
}

// Syllabus shows syllabus excerpts, one per matching course.
func Syllabus(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	var items []types.Syllabus
	for _, s := range c.Data.Syllabi {
		if scope.includes(s.CourseID, s.CourseName) {
			items = append(items, s)
		}
	}
	if len(items) == 0 {
		where := ""
		if !scope.all {
			where = " for " + scope.label()
		}
		return Response{Text: withTips("No syllabus cached"+where+" yet. Open the course syllabus page in Canvas to sync it.", intent.Syllabus), Suggestions: Suggestions(intent.Syllabus)}
	}

	if scope.all && len(items) > 1 {
		names := make([]string, 0, len(items))
		for _, s := range items {
			names = append(names, s.CourseName)
		}
		body := "I have syllabi for these courses; which one do you want?\n" + cappedBullets(names, longList)
		return Response{Text: withTips(body, intent.Syllabus), Suggestions: Suggestions(intent.Syllabus)}
	}

	blocks := make([]string, 0, len(items))
	for _, s := range items {
		blocks = append(blocks, fmt.Sprintf("Syllabus for %s:\n%s", s.CourseName, truncate(s.Content, 600)))
	}
	return Response{Text: withTips(strings.Join(blocks, "\n\n"), intent.Syllabus), Suggestions: Suggestions(intent.Syllabus)}
}

// Discussions lists threads with the most recent activity first.
func Discussions(c Context) Response {
	if c.empty() {
		return NoData()
	}
	scope, ok := resolveCourse(c)
	if !ok {
		return unmatchedCourse(scope.name, c.Data)
	}
	var items []types.Discussion
	unread := 0
	for _, d := range c.Data.Discussions {
		if scope.includes(d.CourseID, d.CourseName) {
			items = append(items, d)
			unread += d.Unread
		}
	}
	newestFirst(items, func(d types.Discussion) *time.Time { return d.LastReplyAt })

	where := ""
	if !scope.all {
		where = " in " + scope.label()
	}
	if len(items) == 0 {
		return Response{Text: withTips("No discussions"+where+".", intent.Discussions), Suggestions: Suggestions(intent.Discussions)}
	}
	now := c.now()
	lines := make([]string, 0, len(items))
	for _, d := range items {
		line := d.Title
		if scope.all && d.CourseName != "" {
			line += " (" + d.CourseName + ")"
		}
		if d.Unread > 0 {
			line += fmt.Sprintf(", %d unread", d.Unread)
		}
		if d.LastReplyAt != nil {
			line += ", last reply " + humanize.RelTime(*d.LastReplyAt, now, "ago", "from now")
		}
		lines = append(lines, line)
	}
	body := fmt.Sprintf("Discussions%s (%d unread):\n%s", where, unread, cappedBullets(lines, shortList))
	return Response{Text: withTips(body, intent.Discussions), Suggestions: Suggestions(intent.Discussions)}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
