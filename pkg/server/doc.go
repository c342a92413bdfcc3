// Package server provides the HTTP facade for the admission engine.
//
// This package ties together the engine, its admin facade, and the
// middleware chain, and provides server lifecycle management including
// start, shutdown, and signal handling.
//
// # Basic Usage
//
// Creating and starting a server:
//
//	import (
//	    "context"
//	    "silverline-hq/portcullis/pkg/config"
//	    "silverline-hq/portcullis/pkg/server"
//	)
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := server.NewServer(cfg.Server, cfg.Telemetry, eng, adm)
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server handles graceful shutdown automatically when receiving SIGTERM
// or SIGINT, or programmatically:
//
//	if err := srv.Shutdown(context.Background()); err != nil {
//	    slog.Error("shutdown error", "error", err)
//	}
//
// The shutdown process:
//  1. Stops accepting new connections
//  2. Waits for active connections to complete (up to shutdown timeout)
//  3. Forces connection closure if timeout exceeded
//
// # Routes
//
// The server exposes the following HTTP endpoints:
//
//   - POST /v1/evaluate - One admission decision per call
//   - GET /v1/status - Health and configuration snapshot
//   - GET /healthz - Liveness probe (always returns 200)
//   - GET /metrics - Prometheus metrics (path configurable, optional)
//
// A denied admission returns 429 with the verdict body; a store outage
// returns 503 with the fail-closed denial verdict.
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. Timeout: Enforces per-request timeout
//  2. RequestID: Generates unique request ID for tracing
//  3. Logging: Logs request/response details
//  4. Recovery: Recovers from panics and returns 500 error
//
// # Thread Safety
//
// All server operations are thread-safe and can be called concurrently from
// multiple goroutines.
package server
