package bootstrap

import (
	"errors"
	"strings"
	"testing"
)

func withCLIs(t *testing.T, installed ...string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		for _, n := range installed {
			if n == name {
				return "/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestBuildCommands_ScopeValidation(t *testing.T) {
	_, err := BuildCommands(Options{ConfigPath: "/tmp/cfg.yaml", Scope: "bad"})
	if err == nil {
		t.Fatal("expected invalid scope error")
	}
}

func TestBuildCommands_DeterministicWhenCLIsPresent(t *testing.T) {
	withCLIs(t, "codex", "claude", "gemini")

	cmds, err := BuildCommands(Options{ConfigPath: "/tmp/cfg.yaml"})
	if err != nil {
		t.Fatalf("BuildCommands() error = %v", err)
	}
	if len(cmds) != 6 {
		t.Fatalf("expected 6 commands (remove+add for 3 CLIs), got %d", len(cmds))
	}
	if cmds[0].Name != "codex" || cmds[2].Name != "claude" || cmds[4].Name != "gemini" {
		t.Fatalf("unexpected command ordering: %v", cmds)
	}
	if got, want := cmds[3].String(), "claude mcp add -s user canvas -- canvas-mcp serve --config /tmp/cfg.yaml"; got != want {
		t.Fatalf("claude add = %q, want %q", got, want)
	}
	if got := cmds[5].String(); strings.Contains(got, " -- ") {
		t.Fatalf("gemini add should not use a separator: %q", got)
	}
}

func TestBuildCommands_SelectsClients(t *testing.T) {
	withCLIs(t, "codex", "claude")

	cmds, err := BuildCommands(Options{ConfigPath: "/tmp/cfg.yaml", Clients: []string{"Claude", "gemini"}})
	if err != nil {
		t.Fatalf("BuildCommands() error = %v", err)
	}
	if len(cmds) != 2 || cmds[0].Name != "claude" {
		t.Fatalf("expected only claude commands, got %v", cmds)
	}

	if _, err := BuildCommands(Options{ConfigPath: "/tmp/cfg.yaml", Clients: []string{"vim"}}); err == nil {
		t.Fatal("expected unsupported client error")
	}
}
