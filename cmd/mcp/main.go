package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/TranscriptRAG/internal/app"
	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/mcpServer"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML tuning file (default $RAG_CONFIG or config.yaml)")
	httpAddr := flag.String("http", "", "serve the streamable HTTP transport on this address instead of stdio")
	flag.Parse()

	// stdout carries the protocol
	settings, err := config.Load(*configPath)
	if err != nil {
		logger_i.InitWriter(os.Stderr, config.IS_PROD, "")
		logger_i.NewLogger("mcp main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger_i.InitWriter(os.Stderr, settings.IsProd(), settings.LogLevel)
	logger := logger_i.NewLogger("mcp main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.Build(ctx, settings)
	if err != nil {
		logger.Error("Failed to initialise the rag core", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("Error closing stores", "error", err)
		}
	}()

	server, err := mcpServer.NewServer(core.RAG, core.Sessions)
	if err != nil {
		logger.Error("Failed to create MCP server", "error", err)
		return
	}

	if *httpAddr != "" {
		err = server.RunHTTP(ctx, *httpAddr)
	} else {
		err = server.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", "error", err)
	}
}
