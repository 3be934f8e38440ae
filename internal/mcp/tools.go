package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xiy/canvas-mcp/internal/schema"
	"github.com/xiy/canvas-mcp/pkg/types"
)

const (
	toolStoreData    = "canvas_store_data"
	toolGetData      = "canvas_get_data"
	toolQueryData    = "canvas_query_data"
	toolProcessQuery = "canvas_process_query"
	toolFreshness    = "canvas_freshness"
	toolCleanup      = "canvas_cleanup"

	defaultCleanupHours = 24 * 7
)

// ToolDefinition models MCP tool metadata.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolHandler func(ctx context.Context, args json.RawMessage) (map[string]any, error)

func toolDefinitions() []ToolDefinition {
	tags := make([]string, 0, len(schema.Tags()))
	for _, t := range schema.Tags() {
		tags = append(tags, string(t))
	}
	queryTypes := []string{
		string(types.QueryCourses), string(types.QueryAssignments), string(types.QueryGrades),
		string(types.QueryUpcoming), string(types.QuerySearch),
	}
	return []ToolDefinition{
		{
			Name:        toolStoreData,
			Description: "Validate and cache one scraped Canvas record.",
			InputSchema: jsonSchema(map[string]any{
				"type":    propString("Record type tag; known tags are validated: " + strings.Join(tags, ", ") + "."),
				"data":    map[string]any{"description": "Record payload (object or array)."},
				"id":      propString("Record id (default \"default\")."),
				"version": propString("Optional version label."),
				"quality": propNumber("Data quality 0-100 (default 100)."),
				"source":  propString("Where the record was scraped from."),
			}, []string{"type", "data"}),
		},
		{
			Name:        toolGetData,
			Description: "Read one cached record with its metadata and freshness.",
			InputSchema: jsonSchema(map[string]any{
				"type":         propString("Record type tag."),
				"id":           propString("Record id."),
				"bypass_cache": propBoolean("Skip the in-memory cache."),
			}, []string{"type", "id"}),
		},
		{
			Name:        toolQueryData,
			Description: "Aggregate cached records: courses, assignments, grades, upcoming deadlines or full-text search.",
			InputSchema: jsonSchema(map[string]any{
				"type":    propStringEnum("Query type.", queryTypes),
				"filters": map[string]any{"type": "object", "description": "Exact-match field filters."},
				"term":    propString("Search term (search only)."),
				"days":    propNumber("Upcoming window in days (default 7)."),
				"limit":   propNumber("Maximum items."),
			}, []string{"type"}),
		},
		{
			Name:        toolProcessQuery,
			Description: "Answer a student's free-text question about their courses from cached data.",
			InputSchema: jsonSchema(map[string]any{
				"query":           propString("The question."),
				"conversation_id": propString("Conversation id; a new one is generated when empty."),
				"reset":           propBoolean("Forget the conversation's earlier context before answering."),
			}, []string{"query"}),
		},
		{
			Name:        toolFreshness,
			Description: "List cached keys with their last update and staleness.",
			InputSchema: jsonSchema(map[string]any{}, []string{}),
		},
		{
			Name:        toolCleanup,
			Description: "Remove cached records older than the given age.",
			InputSchema: jsonSchema(map[string]any{
				"max_age_hours": propNumber("Maximum record age in hours (default 168)."),
			}, []string{}),
		},
	}
}

func (s *Server) toolHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		toolStoreData: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			var in types.StoreInput
			if err := decodeArgs(toolStoreData, args, &in); err != nil {
				return nil, err
			}
			res := s.data.StoreData(ctx, in.Type, in.Data, types.StoreOptions{
				ID: in.ID, Version: in.Version, Quality: in.Quality, Source: in.Source,
			})
			return toolResult(res, !res.Success, res.Error)
		},
		toolGetData: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			var in types.GetInput
			if err := decodeArgs(toolGetData, args, &in); err != nil {
				return nil, err
			}
			res := s.data.GetData(ctx, in.Type, in.ID, types.GetOptions{BypassCache: in.BypassCache})
			return toolResult(res, !res.Success, res.Error)
		},
		toolQueryData: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			var in types.Query
			if err := decodeArgs(toolQueryData, args, &in); err != nil {
				return nil, err
			}
			res := s.data.QueryData(ctx, in)
			return toolResult(res, !res.Success, res.Error)
		},
		toolProcessQuery: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			var in types.AskInput
			if err := decodeArgs(toolProcessQuery, args, &in); err != nil {
				return nil, err
			}
			if in.Query == "" {
				return nil, errors.New("query is required")
			}
			if in.Reset && in.ConversationID != "" {
				s.engine.Forget(in.ConversationID)
			}
			return toolResult(s.engine.Ask(ctx, in.Query, in.ConversationID), false, "")
		},
		toolFreshness: func(context.Context, json.RawMessage) (map[string]any, error) {
			return toolResult(map[string]any{"records": s.data.Freshness()}, false, "")
		},
		toolCleanup: func(ctx context.Context, args json.RawMessage) (map[string]any, error) {
			var in types.CleanupInput
			if err := decodeArgs(toolCleanup, args, &in); err != nil {
				return nil, err
			}
			if in.MaxAgeHours <= 0 {
				in.MaxAgeHours = defaultCleanupHours
			}
			n, err := s.data.CleanupOldData(ctx, time.Duration(in.MaxAgeHours)*time.Hour)
			if err != nil {
				return nil, err
			}
			return toolResult(map[string]any{"deleted": n, "max_age_hours": in.MaxAgeHours}, false, "")
		},
	}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (map[string]any, error) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}
	h, ok := s.tools[p.Name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", p.Name)
	}
	return h(ctx, p.Arguments)
}

func decodeArgs(tool string, args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid %s arguments: %w", tool, err)
	}
	return nil
}

// toolResult wraps v as tool output. Failed results still carry v as
// structured content so callers see the success flag.
func toolResult(v any, failed bool, errText string) (map[string]any, error) {
	text := errText
	if !failed || text == "" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		text = string(b)
	}
	return map[string]any{
		"content":           []map[string]any{{"type": "text", "text": text}},
		"structuredContent": v,
		"isError":           failed,
	}, nil
}

func toolError(err error) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": err.Error()}},
		"isError": true,
	}
}

func jsonSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func propString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func propStringEnum(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func propNumber(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func propBoolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}
