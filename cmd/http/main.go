package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hilthontt/lobby/dependency"
	"github.com/hilthontt/lobby/infrastructure/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.GetConfig()

	if cfg.Sentry.Dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.Dsn,
			Debug:            cfg.Sentry.Debug,
			SendDefaultPII:   cfg.Sentry.SendDefaultPII,
			Environment:      cfg.Server.RunMode,
			Release:          cfg.Tracing.ServiceVersion,
			AttachStacktrace: true,
		}); err != nil {
			log.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	container, err := dependency.NewContainer(cfg)
	if err != nil {
		log.Fatal(fmt.Errorf("error initializing dependencies: %w", err))
	}
	logger := container.Logger

	router := container.SetupRouter()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.ExternalPort),
		Handler:           otelhttp.NewHandler(router, cfg.Tracing.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Server.ExternalPort),
			zap.String("mode", cfg.Server.RunMode),
			zap.String("store", cfg.Store.Driver),
			zap.String("feed", cfg.Feed.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	srv.RegisterOnShutdown(container.WSHub.DisconnectAll)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	container.Shutdown()

	log.Println("Server exited successfully")
}
