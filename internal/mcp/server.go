// Package mcp exposes the cache store and the query engine as MCP tools over
// JSON-RPC on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/canvas-mcp/internal/store"
	"github.com/xiy/canvas-mcp/pkg/types"
)

const (
	jsonRPCVersion         = "2.0"
	defaultProtocolVersion = "2024-11-05"

	codeParseError     = -32700
	codeMethodNotFound = -32601
)

// DataService is the cache store surface the tools call.
type DataService interface {
	StoreData(ctx context.Context, tag string, data any, opts types.StoreOptions) types.StoreResult
	GetData(ctx context.Context, tag, id string, opts types.GetOptions) types.GetResult
	QueryData(ctx context.Context, q types.Query) types.QueryResult
	CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error)
	Freshness() []types.Freshness
}

// QueryEngine answers free-text questions.
type QueryEngine interface {
	Ask(ctx context.Context, query, conversationID string) types.QueryResponse
	Forget(conversationID string)
}

// RequestLogSink receives summarized MCP request events.
type RequestLogSink interface {
	InsertMCPRequestLog(ctx context.Context, rec store.MCPRequestLog) error
}

// Server handles MCP JSON-RPC messages over stdio.
type Server struct {
	name    string
	version string
	data    DataService
	engine  QueryEngine
	logger  *log.Logger
	sink    RequestLogSink
	tools   map[string]toolHandler

	requests atomic.Uint64
	errors   atomic.Uint64
}

// NewServer creates an MCP server. sink may be nil.
func NewServer(name, version string, data DataService, engine QueryEngine, logger *log.Logger, sink RequestLogSink) *Server {
	s := &Server{name: name, version: version, data: data, engine: engine, logger: logger, sink: sink}
	s.tools = s.toolHandlers()
	return s
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Serve handles requests from in until EOF or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	c := newConn(in, out)
	defer c.flush()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, mode, err := c.read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.logger.Warn("invalid JSON-RPC request", "error", err)
			resp := errorResponse(nil, codeParseError, "parse error", err.Error())
			s.recordRequest(ctx, request{Method: "parse_error"}, resp, 0)
			if err := c.write(resp, mode); err != nil {
				return err
			}
			continue
		}

		started := time.Now()
		resp, reply := s.handle(ctx, req)
		s.recordRequest(ctx, req, resp, time.Since(started))
		if !reply {
			continue
		}
		if err := c.write(resp, mode); err != nil {
			return err
		}
	}
}

// handle answers one request. The bool is false for notifications.
func (s *Server) handle(ctx context.Context, req request) (response, bool) {
	s.requests.Add(1)
	hasID := len(req.ID) > 0
	id := decodeID(req.ID)

	switch req.Method {
	case "notifications/initialized":
		return response{}, false
	case "initialize":
		var p struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		_ = json.Unmarshal(req.Params, &p)
		pv := strings.TrimSpace(p.ProtocolVersion)
		if pv == "" {
			pv = defaultProtocolVersion
		}
		return result(id, map[string]any{
			"protocolVersion": pv,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}), hasID
	case "ping":
		return result(id, map[string]any{}), hasID
	case "tools/list":
		return result(id, map[string]any{"tools": toolDefinitions()}), hasID
	case "tools/call":
		res, err := s.callTool(ctx, req.Params)
		if err != nil {
			s.errors.Add(1)
			return result(id, toolError(err)), hasID
		}
		if isErr, _ := res["isError"].(bool); isErr {
			s.errors.Add(1)
		}
		return result(id, res), hasID
	default:
		if !hasID {
			return response{}, false
		}
		return errorResponse(id, codeMethodNotFound, "method not found", req.Method), true
	}
}

func (s *Server) recordRequest(ctx context.Context, req request, resp response, took time.Duration) {
	if s.sink == nil {
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "unknown"
	}
	ok, errText := outcome(resp)
	rec := store.MCPRequestLog{
		Method:     method,
		ToolName:   toolName(req),
		Success:    ok,
		ErrorText:  errText,
		DurationMS: took.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.sink.InsertMCPRequestLog(ctx, rec); err != nil {
		s.logger.Warn("failed to persist MCP request log", "error", err)
	}
}

func toolName(req request) string {
	if req.Method != "tools/call" || len(req.Params) == 0 {
		return ""
	}
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(p.Name)
}

// outcome reports whether resp succeeded and, if not, why.
func outcome(resp response) (bool, string) {
	if resp.Error != nil {
		return false, strings.TrimSpace(resp.Error.Message)
	}
	res, ok := resp.Result.(map[string]any)
	if !ok {
		return true, ""
	}
	if isErr, _ := res["isError"].(bool); !isErr {
		return true, ""
	}
	if content, ok := res["content"].([]map[string]any); ok && len(content) > 0 {
		if text, _ := content[0]["text"].(string); strings.TrimSpace(text) != "" {
			return false, firstLine(text)
		}
	}
	return false, "tool call failed"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if line, _, ok := strings.Cut(s, "\n"); ok {
		return line
	}
	return s
}

func result(id, v any) response {
	return response{JSONRPC: jsonRPCVersion, ID: id, Result: v}
}

func errorResponse(id any, code int, msg string, data any) response {
	return response{JSONRPC: jsonRPCVersion, ID: id, Error: &rpcError{Code: code, Message: msg, Data: data}}
}

func decodeID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// Stats returns server counters for dashboards.
func (s *Server) Stats() map[string]any {
	return map[string]any{
		"requests": s.requests.Load(),
		"errors":   s.errors.Load(),
		"ts":       time.Now().UTC(),
	}
}
