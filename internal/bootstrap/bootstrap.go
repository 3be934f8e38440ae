// Package bootstrap registers the canvas-mcp stdio server with the agent
// CLIs installed on this machine.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultServerName = "canvas"
	defaultServeCmd   = "canvas-mcp serve"
)

var lookPath = exec.LookPath

// Options control CLI bootstrap behavior.
type Options struct {
	ConfigPath string
	Scope      string
	ServerName string
	ServeCmd   string
	Clients    []string
	DryRun     bool
}

// Command captures an executable command.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes system commands.
type Runner interface {
	Run(name string, args ...string) error
}

// OSRunner executes commands via os/exec.
type OSRunner struct{}

func (OSRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// client describes how one agent CLI registers MCP servers. scoped CLIs take
// "-s <scope>"; separator CLIs expect "--" before the server command.
type client struct {
	name      string
	scoped    bool
	separator bool
}

// clients lists the supported agent CLIs in registration order.
var clients = []client{
	{name: "codex", separator: true},
	{name: "claude", scoped: true, separator: true},
	{name: "gemini", scoped: true},
}

// SupportedClients returns the names accepted in Options.Clients.
func SupportedClients() []string {
	out := make([]string, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.name)
	}
	return out
}

// Bootstrap registers the server with every selected, installed CLI and
// writes the executed commands to an audit log.
func Bootstrap(logger *log.Logger, opts Options, runner Runner) error {
	if runner == nil {
		runner = OSRunner{}
	}
	cmds, err := BuildCommands(opts)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		return errors.New("no supported agent CLI found on PATH")
	}

	auditPath, err := auditLogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(auditPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(auditPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "# canvas-mcp bootstrap %s\n", time.Now().UTC().Format(time.RFC3339))
	for _, c := range cmds {
		line := c.String()
		fmt.Fprintln(f, line)
		logger.Info("bootstrap command", "cmd", line, "dry_run", opts.DryRun)
		if opts.DryRun {
			continue
		}
		if err := runner.Run(c.Name, c.Args...); err != nil {
			// remove fails when nothing is registered yet.
			if len(c.Args) > 1 && c.Args[1] == "remove" {
				logger.Debug("ignoring remove error", "cmd", line, "error", err)
				continue
			}
			return fmt.Errorf("run %q: %w", line, err)
		}
	}

	logger.Info("bootstrap complete", "audit_log", auditPath)
	return nil
}

// BuildCommands returns remove+add pairs for every selected CLI found on
// PATH, in a fixed order. An empty Clients selects all of them.
func BuildCommands(opts Options) ([]Command, error) {
	if opts.Scope == "" {
		opts.Scope = "user"
	}
	if opts.Scope != "user" && opts.Scope != "project" {
		return nil, fmt.Errorf("invalid scope %q (expected user or project)", opts.Scope)
	}
	if strings.TrimSpace(opts.ConfigPath) == "" {
		return nil, errors.New("config path is required")
	}
	if strings.TrimSpace(opts.ServerName) == "" {
		opts.ServerName = defaultServerName
	}
	serve := strings.Fields(opts.ServeCmd)
	if len(serve) == 0 {
		serve = strings.Fields(defaultServeCmd)
	}
	serve = append(serve, "--config", opts.ConfigPath)

	selected, err := selectClients(opts.Clients)
	if err != nil {
		return nil, err
	}

	var cmds []Command
	for _, c := range selected {
		if !commandExists(c.name) {
			continue
		}
		target := []string{opts.ServerName}
		if c.scoped {
			target = []string{"-s", opts.Scope, opts.ServerName}
		}
		add := append([]string{"mcp", "add"}, target...)
		if c.separator {
			add = append(add, "--")
		}
		cmds = append(cmds,
			Command{Name: c.name, Args: append([]string{"mcp", "remove"}, target...)},
			Command{Name: c.name, Args: append(add, serve...)},
		)
	}
	return cmds, nil
}

func selectClients(names []string) ([]client, error) {
	if len(names) == 0 {
		return clients, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []client
	for _, c := range clients {
		if want[c.name] {
			out = append(out, c)
			delete(want, c.name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unsupported client %q (expected one of %s)", n, strings.Join(SupportedClients(), ", "))
	}
	return out, nil
}

func commandExists(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

func auditLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".canvas-mcp", "bootstrap-last.log"), nil
}
