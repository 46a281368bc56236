package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/stablebooks/internal/adapters/mcp"
	"github.com/kirillkom/stablebooks/internal/bootstrap"
	"github.com/kirillkom/stablebooks/internal/config"
	"github.com/kirillkom/stablebooks/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the protocol; logs go to stderr.
	slog.SetDefault(logging.NewStderrLogger("mcp", cfg.LogLevel, cfg.LogFormat))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{WithoutQueue: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(mcpadapter.Services{
		Matcher:      app.Matcher,
		Reclassifier: app.Reclassifier,
		Roster:       app.Roster,
	}, version)
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
