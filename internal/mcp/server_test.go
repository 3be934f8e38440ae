package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/canvas-mcp/internal/store"
	"github.com/xiy/canvas-mcp/pkg/types"
)

type fakeData struct {
	stored  []types.StoreInput
	cleaned time.Duration
}

func (f *fakeData) StoreData(_ context.Context, tag string, data any, opts types.StoreOptions) types.StoreResult {
	f.stored = append(f.stored, types.StoreInput{Type: tag, Data: data, ID: opts.ID})
	return types.StoreResult{Success: true, Key: "canvas_" + tag + "_" + opts.ID}
}

func (f *fakeData) GetData(_ context.Context, _, _ string, _ types.GetOptions) types.GetResult {
	return types.GetResult{Success: false, Error: "Data not found"}
}

func (f *fakeData) QueryData(_ context.Context, q types.Query) types.QueryResult {
	return types.QueryResult{Success: true, Type: q.Type, Items: []map[string]any{{"name": "Biology"}}, Count: 1}
}

func (f *fakeData) CleanupOldData(_ context.Context, maxAge time.Duration) (int64, error) {
	f.cleaned = maxAge
	return 3, nil
}

func (f *fakeData) Freshness() []types.Freshness { return nil }

type fakeEngine struct {
	forgotten map[string]bool
}

func (f fakeEngine) Forget(conversationID string) { f.forgotten[conversationID] = true }

func (fakeEngine) Ask(_ context.Context, query, conversationID string) types.QueryResponse {
	return types.QueryResponse{Intent: "GRADES", Response: "echo: " + query, ConversationID: conversationID}
}

type captureSink struct {
	rows []store.MCPRequestLog
}

func (c *captureSink) InsertMCPRequestLog(_ context.Context, rec store.MCPRequestLog) error {
	c.rows = append(c.rows, rec)
	return nil
}

func newTestServer(sink RequestLogSink) (*Server, *fakeData) {
	data := &fakeData{}
	return NewServer("canvas-mcp", "test", data, fakeEngine{forgotten: map[string]bool{}}, log.NewWithOptions(io.Discard, log.Options{}), sink), data
}

func callTool(t *testing.T, srv *Server, name, args string) map[string]any {
	t.Helper()
	params := json.RawMessage(`{"name":"` + name + `","arguments":` + args + `}`)
	resp, ok := srv.handle(context.Background(), request{JSONRPC: "2.0", ID: json.RawMessage(`7`), Method: "tools/call", Params: params})
	if !ok {
		t.Fatal("expected response")
	}
	res, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	return res
}

func TestHandle_ToolsList(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(nil)

	resp, ok := srv.handle(context.Background(), request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/list"})
	if !ok {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	tools, ok := result["tools"].([]ToolDefinition)
	if !ok || len(tools) != 6 {
		t.Fatalf("expected 6 tools, got %v", result["tools"])
	}
	for _, tool := range tools {
		if _, ok := srv.tools[tool.Name]; !ok {
			t.Fatalf("tool %q has no handler", tool.Name)
		}
	}
}

func TestHandle_NotificationHasNoReply(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(nil)
	if _, ok := srv.handle(context.Background(), request{Method: "notifications/initialized"}); ok {
		t.Fatal("expected no reply to a notification")
	}
	resp, ok := srv.handle(context.Background(), request{ID: json.RawMessage(`2`), Method: "resources/list"})
	if !ok || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}
}

func TestToolCall_StoreAndQuery(t *testing.T) {
	t.Parallel()
	srv, data := newTestServer(nil)

	res := callTool(t, srv, toolStoreData, `{"type":"course","id":"101","data":{"name":"Biology"}}`)
	if res["isError"] != false {
		t.Fatalf("store failed: %v", res)
	}
	if len(data.stored) != 1 || data.stored[0].Type != "course" || data.stored[0].ID != "101" {
		t.Fatalf("unexpected stored input %+v", data.stored)
	}

	res = callTool(t, srv, toolQueryData, `{"type":"courses","limit":5}`)
	qr, ok := res["structuredContent"].(types.QueryResult)
	if !ok || qr.Type != types.QueryCourses || qr.Count != 1 {
		t.Fatalf("unexpected query result %v", res["structuredContent"])
	}
}

func TestToolCall_GetNotFoundIsError(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(nil)
	res := callTool(t, srv, toolGetData, `{"type":"course","id":"missing"}`)
	if res["isError"] != true {
		t.Fatalf("expected isError, got %v", res)
	}
	content := res["content"].([]map[string]any)
	if content[0]["text"] != "Data not found" {
		t.Fatalf("expected not found text, got %v", content[0]["text"])
	}
}

func TestToolCall_ProcessQueryAndCleanup(t *testing.T) {
	t.Parallel()
	srv, data := newTestServer(nil)

	res := callTool(t, srv, toolProcessQuery, `{"query":"my grades","conversation_id":"c1"}`)
	qr, ok := res["structuredContent"].(types.QueryResponse)
	if !ok || qr.Response != "echo: my grades" || qr.ConversationID != "c1" {
		t.Fatalf("unexpected query response %v", res["structuredContent"])
	}

	forgotten := srv.engine.(fakeEngine).forgotten
	if forgotten["c1"] {
		t.Fatal("expected context to be kept without reset")
	}
	callTool(t, srv, toolProcessQuery, `{"query":"start over","conversation_id":"c1","reset":true}`)
	if !forgotten["c1"] {
		t.Fatal("expected reset to forget the conversation")
	}

	res = callTool(t, srv, toolProcessQuery, `{}`)
	if res["isError"] != true {
		t.Fatalf("expected empty query to fail, got %v", res)
	}

	callTool(t, srv, toolCleanup, `{}`)
	if data.cleaned != 168*time.Hour {
		t.Fatalf("expected default max age of a week, got %v", data.cleaned)
	}
}

func TestReadWriteFramedMessage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := writeMessage(bw, response{JSONRPC: "2.0", ID: 1, Result: map[string]any{"ok": true}}, wireModeFramed); err != nil {
		t.Fatalf("writeMessage() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("Content-Length: ")) {
		t.Fatalf("expected framed output, got %q", buf.String())
	}

	payload, mode, err := readMessage(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatalf("readMessage() error = %v", err)
	}
	if mode != wireModeFramed {
		t.Fatalf("expected framed mode, got %v", mode)
	}
	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", got["jsonrpc"])
	}
}

func TestReadMessage_JSONLine(t *testing.T) {
	t.Parallel()
	br := bufio.NewReader(bytes.NewReader([]byte("\n\n{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n")))

	payload, mode, err := readMessage(br)
	if err != nil {
		t.Fatalf("readMessage() error = %v", err)
	}
	if mode != wireModeJSONLine {
		t.Fatalf("expected JSON-line mode, got %v", mode)
	}
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("json.Unmarshal(payload) error = %v", err)
	}
	if req.Method != "ping" {
		t.Fatalf("expected method ping, got %q", req.Method)
	}
	if _, _, err := readMessage(br); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestServe_JSONLineInitialize(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(nil)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"initialize\",\"params\":{\"protocolVersion\":\"2024-11-05\"}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	line := bytes.TrimSpace(out.Bytes())
	if bytes.Contains(line, []byte("Content-Length:")) {
		t.Fatalf("expected JSON-line response, got framed output: %q", string(line))
	}
	var resp struct {
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("json.Unmarshal(response) error = %v", err)
	}
	if resp.Result.ServerInfo.Name != "canvas-mcp" {
		t.Fatalf("expected server name canvas-mcp, got %q", resp.Result.ServerInfo.Name)
	}
}

func TestServe_LogsRequestEvents(t *testing.T) {
	t.Parallel()
	sink := &captureSink{}
	srv, _ := newTestServer(sink)

	in := bytes.NewBufferString(
		"{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"tools/call\",\"params\":{\"name\":\"canvas_get_data\",\"arguments\":{\"type\":\"course\",\"id\":\"x\"}}}\n" +
			"not json\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if len(sink.rows) != 2 {
		t.Fatalf("expected 2 request log rows, got %d", len(sink.rows))
	}
	got := sink.rows[0]
	if got.Method != "tools/call" || got.ToolName != toolGetData {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.Success || got.ErrorText != "Data not found" {
		t.Fatalf("expected failed row with not found text, got %+v", got)
	}
	if sink.rows[1].Method != "parse_error" || sink.rows[1].Success {
		t.Fatalf("expected failed parse_error row, got %+v", sink.rows[1])
	}
	if n := srv.Stats()["errors"]; n != uint64(1) {
		t.Fatalf("expected 1 tool error, got %v", n)
	}
}
