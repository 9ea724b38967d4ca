package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"askace/internal/api"
	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/mcpserver"
	"askace/internal/scheduler"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (answer, playbook, metrics)",
	Long: `Starts the HTTP API:
  GET  /health
  POST /answer          question in, cited answer out
  GET  /ace/playbook    learned heuristics, optional ?tag=
  GET  /metrics         Prometheus metrics

The sources table is reloaded when its file changes, and the digest question
runs on digest.schedule when one is configured.`,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the answer and list_heuristics tools over MCP stdio",
	RunE:  runMCP,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.SourcesPath != "" {
		watcher, err := config.NewSourcesWatcher(cfg.SourcesPath, a.sources)
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("Sources watcher unavailable: %v", err)
		} else if err := watcher.Start(ctx); err != nil {
			logging.Get(logging.CategoryBoot).Warn("Sources watcher failed to start: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	if cfg.Digest.Schedule != "" {
		sched, err := scheduler.New(cfg.Digest.Schedule, cfg.Digest.Question, a.svc, cfg.GetRequestTimeout())
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return api.NewServer(addr, a.svc, api.WithAnswerTimeout(cfg.GetRequestTimeout())).ListenAndServe(ctx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcpserver.New(a.svc, version).RunStdio(ctx)
}
