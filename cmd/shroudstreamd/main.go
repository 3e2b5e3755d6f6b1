package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/shroudstream/internal/config"
	"github.com/e7canasta/shroudstream/internal/pipeline"
	"github.com/e7canasta/shroudstream/internal/registry"
	"github.com/e7canasta/shroudstream/internal/replicate"
)

const (
	defaultConfigPath  = "config/shroudstream.yaml"
	shutdownTimeout    = 10 * time.Second
	httpReadTimeout    = 5 * time.Second
	httpWriteTimeout   = 0 // streaming responses must not be capped
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("starting shroudstream service", "config", *configPath, "debug", *debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	streams := replicate.Expand(cfg.Streams)
	if len(streams) == 0 {
		slog.Error("no streams configured")
		os.Exit(1)
	}

	reg := registry.New()
	rt := pipeline.NewRuntime(cfg, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if ok := rt.Start(ctx, streams); !ok {
		slog.Error("failed to start pipeline runtime")
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      reg.Router(),
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
	}

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("mjpeg http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-srvErr:
		if err != nil {
			slog.Error("http server error", "error", err)
		}
	}

	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}

	cancel()
	rt.Stop()

	slog.Info("shroudstream service stopped")
}
