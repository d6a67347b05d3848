// @title           Transcript RAG API
// @version         1.0
// @description     Ingests programme transcripts and answers questions about them with cited sources.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email   ank.github@gmail.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/TranscriptRAG/internal/app"
	"github.com/akolanti/TranscriptRAG/internal/config"
	jobmodel "github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/handlers"
	"github.com/akolanti/TranscriptRAG/internal/job"
	"github.com/akolanti/TranscriptRAG/internal/middleware"
	"github.com/akolanti/TranscriptRAG/internal/server"
	"github.com/akolanti/TranscriptRAG/internal/worker"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var (
	listenAddr        string
	configPath        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	flag.StringVar(&configPath, "config", "", "path to the YAML tuning file (default $RAG_CONFIG or config.yaml)")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address (overrides the config)")
	flag.Parse()

	settings, err := config.Load(configPath)
	if err != nil {
		logger_i.Init(config.IS_PROD, "")
		logger_i.NewLogger("main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger_i.Init(settings.IsProd(), settings.LogLevel)
	var logger = logger_i.NewLogger("main")
	if listenAddr == "" {
		listenAddr = settings.ListenAddr
	}
	if settings.IsProd() && settings.AuthToken == "" {
		logger.Error("RAG_API_TOKEN must be set in production")
		os.Exit(1)
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	core, err := app.Build(serviceContext, settings)
	if err != nil {
		logger.Error("Failed to initialise the rag core. Shutting down.", "error", err)
		return
	}

	jobStore, err := app.OpenJobStore(serviceContext, settings)
	if err != nil {
		logger.Error("Job store unavailable. Shutting down.", "error", err)
		_ = core.Close()
		return
	}

	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})
	logger.Info("Starting job service")

	handlers.InitJobHandler(service, core.RAG, core.Sessions)
	middleware.Configure(settings.AuthToken, settings.RateLimit, settings.RateBurst)

	//init worker pool
	worker.InitServices(service, core.RAG)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices: func() {
			if err := core.Close(); err != nil {
				logger.Error("Error closing stores", "error", err)
			}
			closeExternalServices()
		},
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
