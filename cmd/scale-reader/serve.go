// cmd/scale-reader/serve.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/routes"
	"github.com/pietrospam/serial-weight-reader/internal/session"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP reading service",
	Long: `Serve readings over HTTP and WebSocket.

Endpoints:
  GET  /health          Service health and available ports
  POST /api/v1/read     Run one reading session
  GET  /api/v1/ports    List serial ports
  GET  /ws/readings     WebSocket: send {"type":"read"} to get a reading

Concurrent requests queue for the port: only one session touches the
scale at a time.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// Application represents the running HTTP service
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	runner *session.Runner
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := NewApplication()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Start()
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "scale-reader")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
		runner: session.NewRunner(cfg, logger),
	}

	app.initializeServer()

	return app, nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(app.config, app.logger, app.runner)
	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// Start runs the server until a shutdown signal arrives.
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown. The write timeout already bounds
// in-flight reading sessions, so the shutdown window only needs to cover
// one of them.
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "scale-reader")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
