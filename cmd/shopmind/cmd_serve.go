// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/AleutianAI/shopmind/services/reason"
	"github.com/AleutianAI/shopmind/services/reason/appconfig"
	"github.com/AleutianAI/shopmind/services/reason/cache"
	"github.com/AleutianAI/shopmind/services/reason/providers"
)

// serveOptions holds flag values for the serve command.
type serveOptions struct {
	addr        string
	configsDir  string
	ollamaURL   string
	model       string
	visionModel string
	cacheDir    string
	poolSize    int64
	debug       bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inference gateway HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":8080", "Listen address")
	flags.StringVar(&opts.configsDir, "configs", "", "App config directory (optional; embedded default always available)")
	flags.StringVar(&opts.ollamaURL, "ollama-url", envOr("OLLAMA_BASE_URL", "http://localhost:11434"), "Ollama server URL")
	flags.StringVar(&opts.model, "model", envOr("SHOPMIND_MODEL", "qwen2.5:3b-instruct"), "Completion model")
	flags.StringVar(&opts.visionModel, "vision-model", envOr("SHOPMIND_VISION_MODEL", ""), "Vision model (empty disables /reason-image)")
	flags.StringVar(&opts.cacheDir, "cache-dir", envOr("SHOPMIND_CACHE_DIR", ""), "Completion cache directory (empty disables caching)")
	flags.Int64Var(&opts.poolSize, "pool-size", 2, "Max concurrent inference calls")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging and Gin debug mode")

	return cmd
}

func runServe(opts *serveOptions) error {
	logger := setupLogger(opts.debug)
	slog.SetDefault(logger)

	if opts.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// OTel metrics flow into the Prometheus registry scraped at /metrics,
	// alongside the promauto-registered service metrics.
	exporter, err := otelprom.New()
	if err != nil {
		return err
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)))

	// App configs: embedded default plus the optional directory, hot-reloaded.
	apps := appconfig.NewManager(logger)
	if opts.configsDir != "" {
		if err := apps.LoadDir(opts.configsDir); err != nil {
			return err
		}
	}

	// Completion oracle, bounded by the inference pool.
	var completion providers.CompletionClient
	if opts.model != "" {
		client, err := providers.NewOllamaCompletion(opts.ollamaURL, opts.model)
		if err != nil {
			return err
		}
		completion = providers.NewInferencePool(client, opts.poolSize, logger)
		logger.Info("completion model configured",
			slog.String("model", opts.model),
			slog.String("ollama_url", opts.ollamaURL),
			slog.Int64("pool_size", opts.poolSize),
		)
	}

	var vision providers.VisionClient
	if opts.visionModel != "" {
		client, err := providers.NewOllamaVision(opts.ollamaURL, opts.visionModel)
		if err != nil {
			return err
		}
		vision = client
		logger.Info("vision model configured", slog.String("model", opts.visionModel))
	}

	// Completion cache: disk-backed when a directory is configured.
	// Graceful degradation: an unopenable cache disables caching, it does
	// not stop the gateway.
	var store cache.Store
	var badgerStore *cache.BadgerStore
	if opts.cacheDir != "" {
		bs, err := cache.Open(opts.cacheDir, 0, logger)
		if err != nil {
			logger.Warn("completion cache unavailable, caching disabled",
				slog.String("dir", opts.cacheDir),
				slog.Any("error", err),
			)
		} else {
			badgerStore = bs
			store = bs
			logger.Info("completion cache opened", slog.String("dir", opts.cacheDir))
		}
	}

	svc := reason.NewService(reason.DefaultServiceConfig(), completion, vision, apps, store, logger)
	handlers := reason.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("shopmind"))
	if opts.debug {
		router.Use(gin.Logger())
	}

	router.GET("/", handlers.HandleRoot)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	reason.RegisterRoutes(router.Group("/v1"), handlers)

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Root context cancels on SIGINT/SIGTERM; the config watcher and the
	// server shutdown both hang off it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.configsDir != "" {
		go func() {
			if err := apps.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("config watcher stopped", slog.Any("error", err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("shopmind gateway listening", slog.String("addr", opts.addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", slog.Any("error", err))
	}
	if badgerStore != nil {
		if err := badgerStore.Close(); err != nil {
			logger.Warn("failed to close completion cache", slog.Any("error", err))
		}
	}
	return nil
}

// setupLogger picks a human-readable handler on a terminal and JSON
// otherwise, so container logs stay machine-parseable.
func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
