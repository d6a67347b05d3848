// Package mcpServer exposes search, ask and session tools over the Model Context Protocol.
package mcpServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/akolanti/TranscriptRAG/internal/rag"
	"github.com/akolanti/TranscriptRAG/internal/session"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

const Version = "0.1.0"

var (
	ErrMissingRAGService = errors.New("mcp: rag service is required")
	ErrMissingSessions   = errors.New("mcp: session manager is required")
)

var logger = logger_i.NewLogger("MCP")

type Server struct {
	ragService rag.Service
	sessions   *session.Manager
	server     *mcp.Server
}

func NewServer(ragService rag.Service, sessions *session.Manager) (*Server, error) {
	if ragService == nil {
		return nil, ErrMissingRAGService
	}
	if sessions == nil {
		return nil, ErrMissingSessions
	}

	s := &Server{
		ragService: ragService,
		sessions:   sessions,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "transcript-rag",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logger.Error("MCP http shutdown", "error", err)
		}
	}()

	logger.Info("serving MCP over http", "address", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mcp http: %w", err)
	}
	return nil
}
