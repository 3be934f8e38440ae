package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xiy/canvas-mcp/internal/assistant"
	"github.com/xiy/canvas-mcp/internal/config"
	"github.com/xiy/canvas-mcp/internal/datastore"
	"github.com/xiy/canvas-mcp/internal/metrics"
	"github.com/xiy/canvas-mcp/internal/store"
)

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}
	root := &cobra.Command{
		Use:           "canvas-mcp",
		Short:         "Canvas LMS cache store and student assistant over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "~/.canvas-mcp/config.yaml", "Path to config file")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("backend", "", "Storage backend: sqlite or redis")
	flags.String("db-path", "", "SQLite database path")
	flags.String("redis-addr", "", "Redis address")
	for key, name := range map[string]string{
		"log_level":  "log-level",
		"backend":    "backend",
		"db_path":    "db-path",
		"redis_addr": "redis-addr",
	} {
		_ = opts.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newQueryCmd(opts),
		newImportCmd(opts),
		newKeysCmd(opts),
		newCleanupCmd(opts),
		newAdminCmd(opts),
		newBootstrapCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file and overlays flags and CANVAS_MCP_*
// environment variables.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.ExpandPath(o.configPath))
	if err != nil {
		return cfg, err
	}
	if err := cfg.Apply(o.v); err != nil {
		return cfg, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app is the wired runtime shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   *log.Logger
	registry *prometheus.Registry
	backend  store.Backend
	data     *datastore.Service
	engine   *assistant.Engine
}

func (o *rootOptions) open(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(logOut, cfg)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	data, err := datastore.New(ctx, backend, cfg, logger, datastore.WithMetrics(m))
	if err != nil {
		backend.Close()
		return nil, err
	}
	engine := assistant.New(cfg, data, logger, assistant.WithMetrics(m))
	return &app{cfg: cfg, logger: logger, registry: reg, backend: backend, data: data, engine: engine}, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}

func newLogger(out io.Writer, cfg config.Config) *log.Logger {
	if out == nil {
		out = os.Stderr
	}
	logger := log.NewWithOptions(out, log.Options{Prefix: cfg.ServerName})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
