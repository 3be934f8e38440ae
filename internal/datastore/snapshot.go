package datastore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiy/canvas-mcp/internal/schema"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// Snapshot assembles every stored collection into the read model the query
// engine answers from. Collections load concurrently.
func (s *Service) Snapshot(ctx context.Context) (*types.CanvasData, error) {
	out := &types.CanvasData{}

	var (
		metaMu sync.Mutex
		metas  = map[string]types.RecordMetadata{}
	)
	load := func(ctx context.Context, sources ...source) ([]map[string]any, error) {
		recs, err := s.collect(ctx, sources...)
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, len(recs))
		metaMu.Lock()
		for _, rec := range recs {
			metas[rec.key] = rec.meta
			items = append(items, rec.items...)
		}
		metaMu.Unlock()
		return items, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Course}, source{Tag: schema.Dashboard, Field: "courses"})
		if err != nil {
			return fmt.Errorf("load courses: %w", err)
		}
		out.Courses = dedupeCourses(mapItems(items, toCourse))
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Assignment})
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		out.Assignments = mapItems(items, toAssignment)
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Grade})
		if err != nil {
			return fmt.Errorf("load grades: %w", err)
		}
		out.Grades = mapItems(items, toGrade)
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Announcement}, source{Tag: schema.Dashboard, Field: "announcements"})
		if err != nil {
			return fmt.Errorf("load announcements: %w", err)
		}
		out.Announcements = mapItems(items, toAnnouncement)
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Discussion})
		if err != nil {
			return fmt.Errorf("load discussions: %w", err)
		}
		out.Discussions = mapItems(items, toDiscussion)
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Syllabus})
		if err != nil {
			return fmt.Errorf("load syllabi: %w", err)
		}
		out.Syllabi = mapItems(items, toSyllabus)
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.CalendarEvent})
		if err != nil {
			return fmt.Errorf("load calendar: %w", err)
		}
		out.Calendar = mapItems(items, toCalendarEvent)
		return nil
	})
	g.Go(func() error {
		items, err := load(gctx, source{Tag: schema.Todo}, source{Tag: schema.Dashboard, Field: "todo"})
		if err != nil {
			return fmt.Errorf("load todo: %w", err)
		}
		out.Todo = mapItems(items, toTodo)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(metas) > 0 {
		total := 0
		for _, m := range metas {
			if m.Timestamp.After(out.LastUpdated) {
				out.LastUpdated = m.Timestamp
			}
			total += m.Quality
		}
		out.DataQuality = total / len(metas)
	}
	return out, nil
}

func mapItems[T any](items []map[string]any, conv func(map[string]any) T) []T {
	if len(items) == 0 {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, conv(item))
	}
	return out
}

func dedupeCourses(in []types.Course) []types.Course {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, c := range in {
		key := c.ID
		if key == "" {
			key = "name:" + strings.ToLower(c.Name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func toCourse(m map[string]any) types.Course {
	return types.Course{
		ID:         str(m, "id"),
		Name:       str(m, "name"),
		CourseCode: str(m, "courseCode"),
		Term:       str(m, "term"),
		Instructor: str(m, "instructor"),
	}
}

func toAssignment(m map[string]any) types.Assignment {
	submitted, _ := m["submitted"].(bool)
	return types.Assignment{
		ID:             str(m, "id"),
		CourseID:       str(m, "courseId"),
		CourseName:     str(m, "courseName"),
		Name:           str(m, "name"),
		Type:           str(m, "type"),
		DueDate:        timePtr(m, "dueDate"),
		PointsPossible: num(m, "pointsPossible"),
		Submitted:      submitted,
		URL:            str(m, "url"),
	}
}

func toGrade(m map[string]any) types.Grade {
	return types.Grade{
		CourseID:       str(m, "courseId"),
		CourseName:     str(m, "courseName"),
		AssignmentName: str(m, "assignmentName"),
		Score:          num(m, "score"),
		MaxPoints:      num(m, "maxPoints"),
		Letter:         str(m, "letter"),
	}
}

func toAnnouncement(m map[string]any) types.Announcement {
	return types.Announcement{
		CourseID:   str(m, "courseId"),
		CourseName: str(m, "courseName"),
		Title:      str(m, "title"),
		Message:    str(m, "message"),
		Author:     str(m, "author"),
		PostedAt:   timePtr(m, "postedAt"),
	}
}

func toDiscussion(m map[string]any) types.Discussion {
	unread := 0
	if n := num(m, "unread"); n != nil {
		unread = int(*n)
	}
	return types.Discussion{
		CourseID:    str(m, "courseId"),
		CourseName:  str(m, "courseName"),
		Title:       str(m, "title"),
		LastReplyAt: timePtr(m, "lastReplyAt"),
		Unread:      unread,
	}
}

func toSyllabus(m map[string]any) types.Syllabus {
	return types.Syllabus{
		CourseID:   str(m, "courseId"),
		CourseName: str(m, "courseName"),
		Content:    str(m, "content"),
	}
}

func toCalendarEvent(m map[string]any) types.CalendarEvent {
	return types.CalendarEvent{
		Title:      str(m, "title"),
		CourseName: str(m, "courseName"),
		Start:      timePtr(m, "start"),
		End:        timePtr(m, "end"),
		Location:   str(m, "location"),
	}
}

func toTodo(m map[string]any) types.TodoItem {
	return types.TodoItem{
		Title:      str(m, "title"),
		CourseName: str(m, "courseName"),
		Type:       str(m, "type"),
		DueDate:    timePtr(m, "dueDate"),
	}
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}

func num(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func timePtr(m map[string]any, key string) *time.Time {
	t, ok := schema.ParseTime(m[key])
	if !ok {
		return nil
	}
	return &t
}
