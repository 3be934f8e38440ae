// Package assistant is the query understanding engine: it classifies a
// question, extracts its parameters, keeps per-conversation context and
// renders the answer from cached Canvas data.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/xiy/canvas-mcp/internal/config"
	"github.com/xiy/canvas-mcp/internal/intent"
	"github.com/xiy/canvas-mcp/internal/metrics"
	"github.com/xiy/canvas-mcp/internal/respond"
	"github.com/xiy/canvas-mcp/pkg/types"
)

// SnapshotSource supplies the cached Canvas data questions are answered from.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*types.CanvasData, error)
}

// Engine answers student questions. It is safe for concurrent use; each
// conversation id has its own session.
type Engine struct {
	classifier    intent.Classifier
	lowConfidence float64
	source        SnapshotSource
	logger        *log.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
	newID         func() string
	generate      func(intent.Intent, respond.Context, string) respond.Response
	sessionIdle   time.Duration

	// mu guards the fields of every cached *Session.
	mu       sync.Mutex
	sessions *cache.Cache
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records engine activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator replaces the conversation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithSessionIdle sets how long an untouched conversation keeps its context.
func WithSessionIdle(d time.Duration) Option {
	return func(e *Engine) { e.sessionIdle = d }
}

// New builds an engine. source may be nil when only ProcessQuery is used.
func New(cfg config.Config, source SnapshotSource, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		classifier:    intent.NewClassifier(cfg.ConfidenceNormalizer),
		lowConfidence: cfg.LowConfidenceThreshold,
		source:        source,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
		generate:      dispatch,
		sessionIdle:   cfg.SessionIdle(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	if e.sessionIdle <= 0 {
		e.sessionIdle = 30 * time.Minute
	}
	e.sessions = cache.New(e.sessionIdle, e.sessionIdle)
	return e
}

// Ask loads the current snapshot and answers query.
func (e *Engine) Ask(ctx context.Context, query, conversationID string) types.QueryResponse {
	var data *types.CanvasData
	var loadErr error
	if e.source != nil {
		data, loadErr = e.source.Snapshot(ctx)
		if loadErr != nil {
			e.logger.Warn("snapshot unavailable; answering without data", "error", loadErr)
			data = nil
		}
	}
	resp := e.ProcessQuery(ctx, query, conversationID, data)
	if loadErr != nil && resp.Error == "" {
		resp.Error = loadErr.Error()
	}
	return resp
}

// ProcessQuery classifies query, updates the conversation's context and
// renders the answer from data. It never fails: internal errors produce the
// fallback response with the error attached.
func (e *Engine) ProcessQuery(ctx context.Context, query, conversationID string, data *types.CanvasData) (resp types.QueryResponse) {
	start := time.Now()
	now := e.now()
	if strings.TrimSpace(conversationID) == "" {
		conversationID = e.newID()
	}

	defer func() {
		if r := recover(); r != nil {
			e.metrics.Fallbacks.Inc()
			e.logger.Error("query processing failed", "conversation", conversationID, "panic", r)
			resp = fallbackResponse(now, conversationID, fmt.Errorf("%v", r))
		}
		e.metrics.Intents.WithLabelValues(resp.Intent).Inc()
		e.metrics.IntentLatency.Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		e.metrics.Fallbacks.Inc()
		return fallbackResponse(now, conversationID, err)
	}

	cls := e.classifier.Classify(query)
	params := intent.Extract(query)

	session := e.session(conversationID)
	e.applyFollowUp(session, query, params)

	rc := respond.Context{Now: now, Params: params, Data: data}
	var r respond.Response
	if cls.Confidence < e.lowConfidence {
		r = respond.Clarification(query)
	} else {
		r = e.generate(cls.Intent, rc, query)
	}
	if len(r.Suggestions) == 0 {
		r.Suggestions = respond.Suggestions(cls.Intent)
	}

	flat := params.Strings()
	e.mu.Lock()
	session.record(Turn{Intent: cls.Intent, Parameters: flat, At: now}, params)
	e.mu.Unlock()

	e.logger.Debug("processed query", "conversation", conversationID, "intent", cls.Intent, "confidence", cls.Confidence)
	return types.QueryResponse{
		Intent:         cls.Intent.String(),
		Confidence:     cls.Confidence,
		Parameters:     flat,
		Response:       r.Text,
		Suggestions:    r.Suggestions,
		Timestamp:      now,
		ConversationID: conversationID,
	}
}

// dispatch is the single point mapping an intent to its generator.
func dispatch(in intent.Intent, rc respond.Context, query string) respond.Response {
	switch in {
	case intent.Grades:
		return respond.Grades(rc)
	case intent.GradeCalculation:
		return respond.GradeCalculation(rc)
	case intent.Assignments:
		return respond.Assignments(rc)
	case intent.Upcoming:
		return respond.Upcoming(rc)
	case intent.Quizzes:
		return respond.Quizzes(rc)
	case intent.Courses:
		return respond.Courses(rc)
	case intent.Announcements:
		return respond.Announcements(rc)
	case intent.Syllabus:
		return respond.Syllabus(rc)
	case intent.Discussions:
		return respond.Discussions(rc)
	case intent.Todo:
		return respond.Todo(rc)
	case intent.Calendar:
		return respond.Calendar(rc)
	case intent.Help:
		return respond.Help(rc)
	case intent.Greeting:
		return respond.Greeting(rc)
	case intent.Unknown:
		return respond.Clarification(query)
	default:
		panic(fmt.Sprintf("unhandled intent %d", in))
	}
}

var referential = regexp.MustCompile(`(?i)\b(it|its|that class|that course|this class|this course|the same|there|them|those)\b|^\s*(and|what about|how about)\b`)

// applyFollowUp fills in the course (and time frame) of a referential
// question from the previous turn of the conversation.
func (e *Engine) applyFollowUp(s *Session, query string, params intent.Parameters) {
	if !referential.MatchString(query) {
		return
	}
	e.mu.Lock()
	lastCourse, lastFrame := s.LastCourse, s.LastTimeFrame
	e.mu.Unlock()

	if _, ok := params.Best(intent.CourseName); !ok && lastCourse != "" {
		params.Set(intent.CourseName, intent.Candidate{Value: lastCourse, Priority: 4, Pattern: "conversation"})
	}
	if _, ok := params.Best(intent.TimeFrame); !ok && lastFrame != "" {
		params.Set(intent.TimeFrame, intent.Candidate{Value: lastFrame, Priority: 4, Pattern: "conversation"})
	}
}

// session returns the context of conversation id, creating it if needed,
// and restarts its idle timer.
func (e *Engine) session(id string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.lookup(id)
	if !ok {
		s = newSession(id)
	}
	e.sessions.SetDefault(id, s)
	e.metrics.Sessions.Set(float64(e.sessions.ItemCount()))
	return s
}

func (e *Engine) lookup(id string) (*Session, bool) {
	v, ok := e.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Session returns a copy of the context of conversation id.
func (e *Engine) Session(id string) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.lookup(id)
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Forget drops the context of conversation id.
func (e *Engine) Forget(id string) {
	e.sessions.Delete(id)
	e.metrics.Sessions.Set(float64(e.sessions.ItemCount()))
}

func fallbackResponse(now time.Time, conversationID string, err error) types.QueryResponse {
	fb := respond.Fallback()
	resp := types.QueryResponse{
		Intent:         intent.Unknown.String(),
		Confidence:     0,
		Parameters:     map[string][]string{},
		Response:       fb.Text,
		Suggestions:    fb.Suggestions,
		Timestamp:      now,
		ConversationID: conversationID,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
