package intent

import (
	"regexp"
	"sort"
	"strings"
)

// Kind names one parameter kind.
type Kind string

const (
	CourseName     Kind = "courseName"
	TimeFrame      Kind = "timeFrame"
	GradeTarget    Kind = "gradeTarget"
	AssignmentType Kind = "assignmentType"
)

// Kinds lists the parameter kinds in reporting order.
var Kinds = []Kind{CourseName, TimeFrame, GradeTarget, AssignmentType}

// Candidate is one extracted value. Lower Priority wins.
type Candidate struct {
	Value    string `json:"value"`
	Priority int    `json:"priority"`
	Pattern  string `json:"pattern"`

	pos int
}

// Parameters holds the ranked candidates of every kind that matched.
type Parameters map[Kind][]Candidate

// Best returns the top ranked candidate of kind.
func (p Parameters) Best(kind Kind) (Candidate, bool) {
	cs := p[kind]
	if len(cs) == 0 {
		return Candidate{}, false
	}
	return cs[0], true
}

// Value returns the top ranked value of kind, or "".
func (p Parameters) Value(kind Kind) string {
	c, _ := p.Best(kind)
	return c.Value
}

// Values returns the ranked values of kind.
func (p Parameters) Values(kind Kind) []string {
	cs := p[kind]
	if len(cs) == 0 {
		return nil
	}
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Value)
	}
	return out
}

// Strings flattens the parameters into kind -> ranked values.
func (p Parameters) Strings() map[string][]string {
	out := make(map[string][]string, len(p))
	for kind := range p {
		out[string(kind)] = p.Values(kind)
	}
	return out
}

// Set replaces kind with a single candidate.
func (p Parameters) Set(kind Kind, c Candidate) {
	p[kind] = []Candidate{c}
}

type paramPattern struct {
	name     string
	priority int
	re       *regexp.Regexp
	clean    func(string) string
}

var (
	courseNamePatterns = []paramPattern{
		{name: "quoted", priority: 0, re: regexp.MustCompile(`["“]([^"“”]{2,80})["”]`)},
		{
			name:     "assessment-for",
			priority: 1,
			re:       regexp.MustCompile(`(?i:quiz|quizzes|exam|exams|test|tests|midterm|final|assignment|assignments|homework)\s+(?i:for|in|on)\s+([A-Za-z][\w&-]*(?:\s+[A-Za-z0-9&][\w&-]*){0,4})`),
			clean:    cleanCoursePhrase,
		},
		{name: "course-code", priority: 2, re: regexp.MustCompile(`\b([A-Z]{2,4}\s?\d{3})\b`)},
		{
			name:     "for-in",
			priority: 3,
			re:       regexp.MustCompile(`\b(?i:for|in)\s+([A-Za-z][\w&-]*(?:\s+[A-Za-z0-9&][\w&-]*){0,4})`),
			clean:    cleanCoursePhrase,
		},
	}

	timeFramePatterns = []paramPattern{
		{name: "day", priority: 0, re: regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|yesterday)\b`), clean: strings.ToLower},
		{name: "relative-period", priority: 1, re: regexp.MustCompile(`(?i)\b((?:this|next|last)\s+(?:week|weekend|month|semester|term))\b`), clean: strings.ToLower},
		{name: "day-count", priority: 2, re: regexp.MustCompile(`(?i)\b((?:in|within|next)\s+\d{1,3}\s+(?:days?|weeks?))\b`), clean: strings.ToLower},
		{name: "vague", priority: 3, re: regexp.MustCompile(`(?i)\b(soon|upcoming|overdue|later)\b`), clean: strings.ToLower},
	}

	gradeTargetPatterns = []paramPattern{
		{name: "percentage", priority: 0, re: regexp.MustCompile(`\b(\d{1,3}(?:\.\d+)?\s?%)`), clean: func(s string) string { return strings.ReplaceAll(s, " ", "") }},
		{name: "letter", priority: 1, re: regexp.MustCompile(`\b(?i:get|earn|achieve|want|need|target|keep)\s+(?:an?\s+)?([ABCDF][+-]?)(?:[^\w+-]|$)`)},
	}

	assignmentTypePatterns = []paramPattern{
		{
			name:     "type",
			priority: 0,
			re:       regexp.MustCompile(`(?i)\b(quiz|quizzes|exams?|tests?|midterms?|finals?|homework|essays?|projects?|labs?|papers?|discussions?|assignments?)\b`),
			clean:    singularType,
		},
	}

	extractors = map[Kind][]paramPattern{
		CourseName:     courseNamePatterns,
		TimeFrame:      timeFramePatterns,
		GradeTarget:    gradeTargetPatterns,
		AssignmentType: assignmentTypePatterns,
	}
)

// Extract runs every pattern over the original-case query and ranks the
// matches. Kinds without a match are absent.
func Extract(query string) Parameters {
	out := Parameters{}
	if strings.TrimSpace(query) == "" {
		return out
	}
	for _, kind := range Kinds {
		if cs := extractKind(query, extractors[kind]); len(cs) > 0 {
			out[kind] = cs
		}
	}
	return out
}

func extractKind(query string, pats []paramPattern) []Candidate {
	byValue := map[string]int{}
	var cs []Candidate
	for _, p := range pats {
		for _, m := range p.re.FindAllStringSubmatchIndex(query, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			value := strings.TrimSpace(query[m[2]:m[3]])
			if p.clean != nil {
				value = p.clean(value)
			}
			if value == "" {
				continue
			}
			c := Candidate{Value: value, Priority: p.priority, Pattern: p.name, pos: m[2]}
			if idx, ok := byValue[value]; ok {
				if c.Priority < cs[idx].Priority {
					cs[idx] = c
				}
				continue
			}
			byValue[value] = len(cs)
			cs = append(cs, c)
		}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Priority != cs[j].Priority {
			return cs[i].Priority < cs[j].Priority
		}
		return cs[i].pos < cs[j].pos
	})
	return cs
}

var (
	leadingFiller = map[string]bool{"my": true, "the": true, "a": true, "an": true, "our": true}
	phraseStop    = map[string]bool{
		"this": true, "next": true, "last": true, "today": true, "tonight": true, "tomorrow": true,
		"yesterday": true, "week": true, "weeks": true, "month": true, "days": true, "day": true,
		"due": true, "please": true, "and": true, "or": true, "so": true, "right": true, "now": true,
		"is": true, "are": true, "was": true, "the": true, "before": true, "after": true, "by": true,
		"in": true, "for": true, "on": true, "at": true, "with": true,
		"it": true, "its": true, "that": true, "those": true, "them": true, "there": true,
	}
	trailingNoun = map[string]bool{"class": true, "course": true, "classes": true, "courses": true}
)

// cleanCoursePhrase trims a free-text course phrase down to the course
// words: leading articles go, and the phrase stops at the first time or
// filler word.
func cleanCoursePhrase(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && leadingFiller[strings.ToLower(words[0])] {
		words = words[1:]
	}
	for i, w := range words {
		if phraseStop[strings.ToLower(w)] {
			words = words[:i]
			break
		}
	}
	for len(words) > 0 && trailingNoun[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	out := strings.Join(words, " ")
	if len(out) < 2 {
		return ""
	}
	return out
}

var typeSingular = map[string]string{
	"quizzes": "quiz", "exams": "exam", "tests": "test", "midterms": "midterm", "finals": "final",
	"essays": "essay", "projects": "project", "labs": "lab", "papers": "paper",
	"discussions": "discussion", "assignments": "assignment",
}

func singularType(s string) string {
	s = strings.ToLower(s)
	if v, ok := typeSingular[s]; ok {
		return v
	}
	return s
}
