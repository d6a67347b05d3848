package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/akolanti/TranscriptRAG/internal/adapter/utils"
	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/middleware"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// NewRouter mounts every API route behind the middleware chain.
func NewRouter() *chi.Mux {
	r := utils.NewRouter().Router

	r.Get("/", middleware.GetHandler)

	r.Post("/chat", middleware.ChatHandler)
	r.Get("/status/{id}", middleware.GetStatusHandler)
	r.Post("/ask", middleware.AskHandler)
	r.Post("/search", middleware.SearchHandler)

	r.Post("/ingest", middleware.PostIngestHandler)
	r.Post("/ingest/document", middleware.IngestDocumentHandler)
	r.Post("/ingest/directory", middleware.IngestDirectoryHandler)
	r.Delete("/documents/{id}", middleware.DeleteDocumentHandler)

	r.Get("/index/stats", middleware.IndexStatsHandler)
	r.Delete("/index", middleware.ClearIndexHandler)
	r.Post("/index/compact", middleware.CompactIndexHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", middleware.CreateSessionHandler)
		r.Get("/", middleware.ListSessionsHandler)
		r.Get("/{id}", middleware.GetSessionHandler)
		r.Delete("/{id}", middleware.DeleteSessionHandler)
		r.Get("/{id}/export", middleware.ExportSessionHandler)
	})
	return r
}

func CreateServer(listenAddr string) {
	server = &http.Server{
		Addr:         listenAddr,
		Handler:      NewRouter(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

// ShutDownHandler waits for a signal, drains HTTP, then the workers, then closes the backends.
func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Error("Force Shut down")
		os.Exit(1)
	}
}
