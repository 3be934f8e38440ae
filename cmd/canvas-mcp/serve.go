package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xiy/canvas-mcp/internal/mcp"
	"github.com/xiy/canvas-mcp/internal/ttl"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server with the background cleanup sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if metricsAddr != "" {
				opts.v.Set("metrics_addr", metricsAddr)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9464)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := opts.open(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	server := mcp.NewServer(a.cfg.ServerName, version, a.data, a.engine, a.logger, a.backend)
	// Serve stays outside the group: a read blocked on stdin does not
	// observe cancellation, and shutdown must not wait for it.
	served := make(chan error, 1)
	go func() {
		a.logger.Info("starting MCP stdio server", "backend", a.cfg.Backend, "namespace", a.cfg.Namespace)
		served <- server.Serve(ctx, os.Stdin, os.Stdout)
	}()

	g.Go(func() error {
		ttl.Start(ctx, a.logger, a.cfg.CleanupInterval(), a.cfg.CleanupMaxAge(), a.data)
		return nil
	})

	if a.cfg.MetricsAddr != "" {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var serveErr error
	select {
	case serveErr = <-served:
	case <-ctx.Done():
	}
	cancel()
	groupErr := g.Wait()
	a.logger.Info("server stopped", "stats", server.Stats())
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return groupErr
}
