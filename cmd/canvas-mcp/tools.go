package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/xiy/canvas-mcp/internal/admin"
	"github.com/xiy/canvas-mcp/internal/bootstrap"
	"github.com/xiy/canvas-mcp/internal/config"
)

func newAdminCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: "Open the terminal dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// the dashboard owns the terminal; keep log lines out of it.
			a, err := opts.open(ctx, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()
			return admin.Run(ctx, a.data, a.backend)
		},
	}
}

func newBootstrapCmd(opts *rootOptions) *cobra.Command {
	var b bootstrap.Options
	cmd := &cobra.Command{
		Use:   "bootstrap-clis",
		Short: "Register the MCP server with installed agent CLIs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b.ConfigPath = config.ExpandPath(opts.configPath)
			return bootstrap.Bootstrap(log.New(cmd.ErrOrStderr()), b, nil)
		},
	}
	cmd.Flags().StringVar(&b.Scope, "scope", "user", "Config scope: user or project")
	cmd.Flags().StringVar(&b.ServerName, "server-name", "canvas", "MCP server registration name")
	cmd.Flags().StringVar(&b.ServeCmd, "serve-command", "canvas-mcp serve", "Command MCP clients use to launch the stdio server")
	cmd.Flags().StringSliceVar(&b.Clients, "client", nil, fmt.Sprintf("Only configure these CLIs (%v)", bootstrap.SupportedClients()))
	cmd.Flags().BoolVar(&b.DryRun, "dry-run", false, "Print intended commands without executing")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "canvas-mcp", version)
			return err
		},
	}
}
