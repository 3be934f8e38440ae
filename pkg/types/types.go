package types

import "time"

// RecordMetadata is attached to every stored record under "_metadata".
type RecordMetadata struct {
	Type           string    `json:"type"`
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	Quality        int       `json:"quality"`
	Version        string    `json:"version,omitempty"`
	Compressed     bool      `json:"compressed"`
	OriginalSize   int       `json:"original_size,omitempty"`
	CompressedSize int       `json:"compressed_size,omitempty"`
}

// StoreOptions describes one write from the scraper side.
type StoreOptions struct {
	ID      string `json:"id,omitempty"`
	Version string `json:"version,omitempty"`
	Quality *int   `json:"quality,omitempty"`
	Source  string `json:"source,omitempty"`
}

// StoreResult reports the outcome of a write.
type StoreResult struct {
	Success    bool   `json:"success"`
	Key        string `json:"key,omitempty"`
	Compressed bool   `json:"compressed"`
	SizeBytes  int    `json:"size_bytes"`
	Error      string `json:"error,omitempty"`
}

// GetOptions controls reads.
type GetOptions struct {
	BypassCache bool `json:"bypass_cache,omitempty"`
}

// GetResult is returned by reads; Success is false when nothing is stored.
type GetResult struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Metadata  RecordMetadata `json:"_metadata"`
	FromCache bool           `json:"from_cache"`
	Stale     bool           `json:"stale"`
	Error     string         `json:"error,omitempty"`
}

// QueryType selects an aggregator in the query layer.
type QueryType string

const (
	QueryCourses     QueryType = "courses"
	QueryAssignments QueryType = "assignments"
	QueryGrades      QueryType = "grades"
	QueryUpcoming    QueryType = "upcoming"
	QuerySearch      QueryType = "search"
)

// Query is the input of the query layer.
type Query struct {
	Type    QueryType      `json:"type"`
	Filters map[string]any `json:"filters,omitempty"`
	Term    string         `json:"term,omitempty"`
	Days    int            `json:"days,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// QueryResult is the output of the query layer.
type QueryResult struct {
	Success   bool             `json:"success"`
	Type      QueryType        `json:"type"`
	Items     []map[string]any `json:"items"`
	Count     int              `json:"count"`
	FromCache bool             `json:"from_cache"`
	Error     string           `json:"error,omitempty"`
}

// Freshness describes the TTL window of one stored key.
type Freshness struct {
	Key         string        `json:"key"`
	Type        string        `json:"type"`
	LastUpdated time.Time     `json:"last_updated"`
	TTL         time.Duration `json:"ttl"`
	Stale       bool          `json:"stale"`
}

// CanvasData is the read-side snapshot consumed by the query engine.
type CanvasData struct {
	Courses       []Course        `json:"courses,omitempty"`
	Assignments   []Assignment    `json:"assignments,omitempty"`
	Grades        []Grade         `json:"grades,omitempty"`
	Announcements []Announcement  `json:"announcements,omitempty"`
	Discussions   []Discussion    `json:"discussions,omitempty"`
	Syllabi       []Syllabus      `json:"syllabi,omitempty"`
	Calendar      []CalendarEvent `json:"calendar,omitempty"`
	Todo          []TodoItem      `json:"todo,omitempty"`
	LastUpdated   time.Time       `json:"lastUpdated"`
	DataQuality   int             `json:"dataQuality"`
}

// Empty reports whether the snapshot has nothing to answer from.
func (d *CanvasData) Empty() bool {
	if d == nil {
		return true
	}
	return len(d.Courses) == 0 && len(d.Assignments) == 0 && len(d.Grades) == 0 &&
		len(d.Announcements) == 0 && len(d.Discussions) == 0 && len(d.Syllabi) == 0 &&
		len(d.Calendar) == 0 && len(d.Todo) == 0
}

// Course is one enrolled course.
type Course struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"courseCode,omitempty"`
	Term       string `json:"term,omitempty"`
	Instructor string `json:"instructor,omitempty"`
}

// Assignment is a gradable item with an optional due date.
type Assignment struct {
	ID             string     `json:"id,omitempty"`
	CourseID       string     `json:"courseId,omitempty"`
	CourseName     string     `json:"courseName,omitempty"`
	Name           string     `json:"name"`
	Type           string     `json:"type,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	PointsPossible *float64   `json:"pointsPossible,omitempty"`
	Submitted      bool       `json:"submitted,omitempty"`
	URL            string     `json:"url,omitempty"`
}

// Grade is one scored item; Score and MaxPoints may be missing.
type Grade struct {
	CourseID       string   `json:"courseId,omitempty"`
	CourseName     string   `json:"courseName,omitempty"`
	AssignmentName string   `json:"assignmentName,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	MaxPoints      *float64 `json:"maxPoints,omitempty"`
	Letter         string   `json:"letter,omitempty"`
}

// Announcement is a course-level post.
type Announcement struct {
	CourseID   string     `json:"courseId,omitempty"`
	CourseName string     `json:"courseName,omitempty"`
	Title      string     `json:"title"`
	Message    string     `json:"message,omitempty"`
	Author     string     `json:"author,omitempty"`
	PostedAt   *time.Time `json:"postedAt,omitempty"`
}

// Discussion is a course discussion thread.
type Discussion struct {
	CourseID    string     `json:"courseId,omitempty"`
	CourseName  string     `json:"courseName,omitempty"`
	Title       string     `json:"title"`
	LastReplyAt *time.Time `json:"lastReplyAt,omitempty"`
	Unread      int        `json:"unread,omitempty"`
}

// Syllabus holds the syllabus body for one course.
type Syllabus struct {
	CourseID   string `json:"courseId,omitempty"`
	CourseName string `json:"courseName,omitempty"`
	Content    string `json:"content"`
}

// CalendarEvent is a dated entry on the student's calendar.
type CalendarEvent struct {
	Title      string     `json:"title"`
	CourseName string     `json:"courseName,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	Location   string     `json:"location,omitempty"`
}

// TodoItem is an entry of the "to do" list.
type TodoItem struct {
	Title      string     `json:"title"`
	CourseName string     `json:"courseName,omitempty"`
	Type       string     `json:"type,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
}

// QueryResponse is returned by the query engine for every processed query.
type QueryResponse struct {
	Intent         string              `json:"intent"`
	Confidence     float64             `json:"confidence"`
	Parameters     map[string][]string `json:"parameters"`
	Response       string              `json:"response"`
	Suggestions    []string            `json:"suggestions"`
	Timestamp      time.Time           `json:"timestamp"`
	ConversationID string              `json:"conversationId"`
	Error          string              `json:"error,omitempty"`
}

// AskInput is the MCP argument shape for processing a query.
type AskInput struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Reset          bool   `json:"reset,omitempty"`
}

// StoreInput is the MCP argument shape for a write.
type StoreInput struct {
	Type    string `json:"type"`
	Data    any    `json:"data"`
	ID      string `json:"id,omitempty"`
	Version string `json:"version,omitempty"`
	Quality *int   `json:"quality,omitempty"`
	Source  string `json:"source,omitempty"`
}

// GetInput is the MCP argument shape for a read.
type GetInput struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	BypassCache bool   `json:"bypass_cache,omitempty"`
}

// CleanupInput is the MCP argument shape for a cleanup sweep.
type CleanupInput struct {
	MaxAgeHours int `json:"max_age_hours"`
}
