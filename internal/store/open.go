package store

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/xiy/canvas-mcp/internal/config"
)

// Backend is a Store that also keeps the MCP request log.
type Backend interface {
	Store
	InsertMCPRequestLog(ctx context.Context, rec MCPRequestLog) error
	RecentMCPRequestLogs(ctx context.Context, limit int) ([]MCPRequestLog, error)
}

var (
	_ Backend = (*SQLiteStore)(nil)
	_ Backend = (*RedisStore)(nil)
)

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (Backend, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.DBPath, logger)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.Namespace, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
