// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// matrixd serves the adaptive assignment matrix: config management,
// assignment resolution, event ingestion, heuristic optimization, and
// significance statistics.
//
// Configuration is environment-driven:
//
//	MATRIXD_PORT         listen port (default 8080)
//	MATRIXD_LOG_LEVEL    debug|info|warn|error (default info)
//	MATRIXD_ENV          deployment environment tag
//	MATRIX_API_ENDPOINT  optional external config source (2s timeout)
//	MATRIX_OVERRIDE_FILE optional on-disk config watched via fsnotify
//	OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER  telemetry selectors
package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/everylabs/matrixd/pkg/logging"
	"github.com/everylabs/matrixd/services/matrix/eventlog"
	"github.com/everylabs/matrixd/services/matrix/heuristics"
	"github.com/everylabs/matrixd/services/matrix/resolver"
	"github.com/everylabs/matrixd/services/matrix/routes"
	"github.com/everylabs/matrixd/services/matrix/store"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
)

func main() {
	port := os.Getenv("MATRIXD_PORT")
	if port == "" {
		port = "8080"
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("MATRIXD_LOG_LEVEL")),
		Service: "matrixd",
		JSON:    true,
	})
	defer logger.Close()

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}
	defer shutdown(context.Background())

	var metrics *telemetry.Metrics
	metrics, err = telemetry.NewMetrics(otel.Meter("matrixd"))
	if err != nil {
		logger.Warn("metrics registration failed, continuing without", "error", err.Error())
		metrics = nil
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if endpoint := os.Getenv("MATRIX_API_ENDPOINT"); endpoint != "" {
		storeOpts = append(storeOpts, store.WithFetcher(store.NewHTTPFetcher(endpoint)))
		logger.Info("external matrix config source configured", "endpoint", endpoint)
	}
	matrixStore := store.New(storeOpts...)

	if overrideFile := os.Getenv("MATRIX_OVERRIDE_FILE"); overrideFile != "" {
		watcher, err := store.NewConfigWatcher(overrideFile, matrixStore, logger)
		if err != nil {
			log.Fatalf("failed to create config watcher: %v", err)
		}
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("failed to watch %s: %v", overrideFile, err)
		}
		defer watcher.Stop()
		logger.Info("watching matrix override file", "path", overrideFile)
	}

	events := eventlog.New()
	deps := routes.Deps{
		Store:     matrixStore,
		Events:    events,
		Optimizer: heuristics.NewOptimizer(matrixStore, logger, nil),
		Resolver:  resolver.New(matrixStore),
		Metrics:   metrics,
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("matrixd"))
	routes.SetupRoutes(router, deps)

	logger.Info("starting matrixd", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
