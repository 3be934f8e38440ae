// Package schema declares the record shapes the cache store understands and
// coerces scraped values into them.
package schema

import "time"

// TypeTag identifies the shape of a stored record.
type TypeTag string

const (
	Course        TypeTag = "course"
	Assignment    TypeTag = "assignment"
	Grade         TypeTag = "grade"
	Announcement  TypeTag = "announcement"
	Discussion    TypeTag = "discussion"
	Todo          TypeTag = "todo"
	CalendarEvent TypeTag = "calendar-event"
	Syllabus      TypeTag = "syllabus"
	Dashboard     TypeTag = "dashboard"
)

// DefaultID is used when a write does not name an instance.
const DefaultID = "default"

// Kind is the primitive semantic kind of a field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindDate
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Field declares one schema entry. Nullable fields keep null instead of a
// zero value.
type Field struct {
	Kind     Kind
	Nullable bool
}

// Definition is the schema of one type tag.
type Definition struct {
	Tag        TypeTag
	Fields     map[string]Field
	TTL        time.Duration
	Collection string
}

// UnknownTTL applies to tags without a definition.
const UnknownTTL = time.Hour

func req(k Kind) Field { return Field{Kind: k} }
func opt(k Kind) Field { return Field{Kind: k, Nullable: true} }

var definitions = map[TypeTag]Definition{
	Course: {
		Tag:        Course,
		Collection: "courses",
		TTL:        12 * time.Hour,
		Fields: map[string]Field{
			"id":         req(KindString),
			"name":       req(KindString),
			"courseCode": req(KindString),
			"term":       req(KindString),
			"instructor": req(KindString),
		},
	},
	Assignment: {
		Tag:        Assignment,
		Collection: "assignments",
		TTL:        30 * time.Minute,
		Fields: map[string]Field{
			"id":             req(KindString),
			"courseId":       req(KindString),
			"courseName":     req(KindString),
			"name":           req(KindString),
			"type":           req(KindString),
			"dueDate":        opt(KindDate),
			"pointsPossible": opt(KindNumber),
			"submitted":      req(KindBoolean),
			"url":            req(KindString),
		},
	},
	Grade: {
		Tag:        Grade,
		Collection: "grades",
		TTL:        time.Hour,
		Fields: map[string]Field{
			"courseId":       req(KindString),
			"courseName":     req(KindString),
			"assignmentName": req(KindString),
			"score":          opt(KindNumber),
			"maxPoints":      opt(KindNumber),
			"letter":         req(KindString),
		},
	},
	Announcement: {
		Tag:        Announcement,
		Collection: "announcements",
		TTL:        30 * time.Minute,
		Fields: map[string]Field{
			"courseId":   req(KindString),
			"courseName": req(KindString),
			"title":      req(KindString),
			"message":    req(KindString),
			"author":     req(KindString),
			"postedAt":   opt(KindDate),
		},
	},
	Discussion: {
		Tag:        Discussion,
		Collection: "discussions",
		TTL:        30 * time.Minute,
		Fields: map[string]Field{
			"courseId":    req(KindString),
			"courseName":  req(KindString),
			"title":       req(KindString),
			"lastReplyAt": opt(KindDate),
			"unread":      req(KindNumber),
		},
	},
	Todo: {
		Tag:        Todo,
		Collection: "todo",
		TTL:        5 * time.Minute,
		Fields: map[string]Field{
			"title":      req(KindString),
			"courseName": req(KindString),
			"type":       req(KindString),
			"dueDate":    opt(KindDate),
		},
	},
	CalendarEvent: {
		Tag:        CalendarEvent,
		Collection: "calendar",
		TTL:        time.Hour,
		Fields: map[string]Field{
			"title":      req(KindString),
			"courseName": req(KindString),
			"start":      opt(KindDate),
			"end":        opt(KindDate),
			"location":   req(KindString),
		},
	},
	Syllabus: {
		Tag:        Syllabus,
		Collection: "syllabi",
		TTL:        24 * time.Hour,
		Fields: map[string]Field{
			"courseId":   req(KindString),
			"courseName": req(KindString),
			"content":    req(KindString),
		},
	},
	Dashboard: {
		Tag:        Dashboard,
		Collection: "dashboard",
		TTL:        10 * time.Minute,
		Fields: map[string]Field{
			"courses":       req(KindArray),
			"todo":          req(KindArray),
			"announcements": req(KindArray),
			"lastUpdated":   req(KindTimestamp),
		},
	},
}

// Lookup returns the definition of tag.
func Lookup(tag TypeTag) (Definition, bool) {
	def, ok := definitions[tag]
	return def, ok
}

// Tags lists every known tag in a stable order.
func Tags() []TypeTag {
	return []TypeTag{Course, Assignment, Grade, Announcement, Discussion, Todo, CalendarEvent, Syllabus, Dashboard}
}

// TTL returns the freshness window of tag.
func TTL(tag TypeTag) time.Duration {
	if def, ok := definitions[tag]; ok {
		return def.TTL
	}
	return UnknownTTL
}

// Known reports whether tag has a schema.
func Known(tag TypeTag) bool {
	_, ok := definitions[tag]
	return ok
}
