// Package admin is the local terminal dashboard over the cache store.
package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/xiy/canvas-mcp/internal/datastore"
	"github.com/xiy/canvas-mcp/internal/store"
	"github.com/xiy/canvas-mcp/pkg/types"
)

const refreshEvery = 2 * time.Second

// CacheSource is the cache store surface the dashboard reads.
type CacheSource interface {
	Summary(ctx context.Context) (datastore.Summary, error)
	Freshness() []types.Freshness
}

// RequestLogSource lists recent MCP requests.
type RequestLogSource interface {
	RecentMCPRequestLogs(ctx context.Context, limit int) ([]store.MCPRequestLog, error)
}

type tickMsg time.Time

type dashboardMsg struct {
	summary   datastore.Summary
	freshness []types.Freshness
	reqLogs   []store.MCPRequestLog
	err       error
	took      time.Duration
}

type model struct {
	ctx       context.Context
	cache     CacheSource
	logs      RequestLogSource
	summary   datastore.Summary
	freshness []types.Freshness
	reqLogs   []store.MCPRequestLog
	lastErr   error
	lastTick  time.Time
	logLines  []string
	maxLogs   int
	rowLimit  int
	width     int
	height    int
}

// Run starts the dashboard and blocks until the user quits.
func Run(ctx context.Context, cache CacheSource, logs RequestLogSource) error {
	m := model{ctx: ctx, cache: cache, logs: logs, maxLogs: 10, rowLimit: 8}
	m = m.appendLog("admin UI started")
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m.appendLog("received quit signal"), tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, tea.Batch(m.fetch(), tickCmd())
	case dashboardMsg:
		m.lastErr = msg.err
		if msg.err != nil {
			return m.appendLog(fmt.Sprintf("refresh error: %v", msg.err)), nil
		}
		m.summary, m.freshness, m.reqLogs = msg.summary, msg.freshness, msg.reqLogs
		m = m.appendLog(fmt.Sprintf("refresh ok keys=%d stale=%d req=%d (%s)",
			msg.summary.Keys, msg.summary.Stale, len(msg.reqLogs), formatDuration(msg.took)))
	}
	return m, nil
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("canvas-mcp admin")
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("q to quit • refresh every 2s")

	logBody := "(no log events yet)"
	if len(m.logLines) > 0 {
		logBody = strings.Join(m.logLines, "\n")
	}

	paneWidth, paneHeight := 54, 9
	if m.width > 0 {
		paneWidth = max(38, (m.width-3)/2)
	}
	if m.height > 0 {
		paneHeight = max(8, (m.height-8)/2)
	}

	now := time.Now()
	top := joinColumns(
		renderPane("Cache", formatSummary(m.summary, m.lastTick, m.lastErr), paneWidth, paneHeight),
		renderPane("General Logs", logBody, paneWidth, paneHeight),
	)
	bottom := joinColumns(
		renderPane("MCP Requests", formatRequestPane(m.reqLogs), paneWidth, paneHeight),
		renderPane("Freshness", formatFreshnessPane(m.freshness, now, m.rowLimit), paneWidth, paneHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, title, meta, "", top, bottom)
}

func (m model) fetch() tea.Cmd {
	ctx, cache, logs, limit := m.ctx, m.cache, m.logs, m.rowLimit
	return func() tea.Msg {
		start := time.Now()
		sum, err := cache.Summary(ctx)
		if err != nil {
			return dashboardMsg{err: err, took: time.Since(start)}
		}
		msg := dashboardMsg{summary: sum, freshness: cache.Freshness()}
		if logs != nil {
			msg.reqLogs, msg.err = logs.RecentMCPRequestLogs(ctx, limit)
		}
		msg.took = time.Since(start)
		return msg
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) appendLog(line string) model {
	if strings.TrimSpace(line) == "" {
		return m
	}
	m.logLines = append(m.logLines, fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), line))
	if m.maxLogs <= 0 {
		m.maxLogs = 10
	}
	if len(m.logLines) > m.maxLogs {
		m.logLines = m.logLines[len(m.logLines)-m.maxLogs:]
	}
	return m
}

func formatSummary(sum datastore.Summary, lastTick time.Time, lastErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stored keys:     %s\n", humanize.Comma(sum.Keys))
	fmt.Fprintf(&b, "Stored bytes:    %s\n", humanize.Bytes(uint64(max(0, sum.Bytes))))
	fmt.Fprintf(&b, "Stale records:   %d\n", sum.Stale)

	tags := make([]string, 0, len(sum.ByType))
	for tag := range sum.ByType {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Fprintf(&b, "  %-14s %d\n", tag, sum.ByType[tag])
	}

	last := "-"
	if !lastTick.IsZero() {
		last = lastTick.Format(time.RFC3339)
	}
	b.WriteString("Last refresh:    " + last)
	if lastErr != nil {
		b.WriteString("\n\nLast error: " + truncateText(compactWhitespace(lastErr.Error()), 120))
	}
	return b.String()
}

func formatRequestPane(rows []store.MCPRequestLog) string {
	if len(rows) == 0 {
		return "(no MCP requests yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		method := strings.TrimSpace(row.Method)
		if row.ToolName != "" {
			method += ":" + strings.TrimSpace(row.ToolName)
		}
		status := "ok"
		if !row.Success {
			status = "err"
		}
		line := fmt.Sprintf("[%s] %-3s %-30s %4dms", formatClock(row.CreatedAt), status, truncateText(method, 30), max(0, row.DurationMS))
		if !row.Success && strings.TrimSpace(row.ErrorText) != "" {
			line += " " + truncateText(compactWhitespace(row.ErrorText), 52)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatFreshnessPane(rows []types.Freshness, now time.Time, limit int) string {
	if len(rows) == 0 {
		return "(nothing cached yet)"
	}
	lines := make([]string, 0, min(len(rows), limit)+1)
	for i, row := range rows {
		if limit > 0 && i == limit {
			lines = append(lines, fmt.Sprintf("+%d more", len(rows)-limit))
			break
		}
		state := "fresh"
		if row.Stale {
			state = "STALE"
		}
		lines = append(lines, fmt.Sprintf("%-5s %-32s %s", state, truncateText(row.Key, 32), humanize.RelTime(row.LastUpdated, now, "ago", "from now")))
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func renderPane(title, body string, width, height int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(title + "\n\n" + body)
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format("15:04:05")
}

func truncateText(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
