// Package main is the courtwind API server.
//
// It loads configuration (env, .env, SSM), assembles the advisor and serves
// the chi router. Inside AWS Lambda it serves API Gateway HTTP API events;
// elsewhere it listens on PORT and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"courtwind/internal/api/handlers"
	"courtwind/internal/app"
	"courtwind/internal/config"
	"courtwind/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel).With("service", cfg.Service)
	logger.Info("courtwind API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"model_source", cfg.Model.Source,
	)

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("assembling advisor: %w", err)
	}

	srv, err := newServer(cfg, a, logger)
	if err != nil {
		a.Close()
		return err
	}

	if isLambdaEnvironment() {
		lambda.Start(newLambdaHandler(srv.Handler()))
		return nil
	}
	return runHTTPServer(srv, cfg, logger)
}

// newServer mounts the advice routes on the core chassis.
func newServer(cfg *config.Config, a *app.App, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	if a.Metrics != nil {
		srv.Metrics = a.Metrics
	}
	srv.HealthChecks = a.Checks
	srv.Closers = append(srv.Closers, a.Close)

	adviceHandler := handlers.NewAdviceHandler(a.Service, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, adviceHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// newLambdaHandler serves API Gateway HTTP API (payload v2) events through h.
// The gateway request ID becomes X-Request-Id unless the caller sent one.
func newLambdaHandler(h http.Handler) func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	adapter := httpadapter.NewV2(h)
	return func(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		if id := ev.RequestContext.RequestID; id != "" {
			headers := maps.Clone(ev.Headers)
			if headers == nil {
				headers = make(map[string]string, 1)
			}
			if !hasHeader(headers, "X-Request-Id") {
				headers["x-request-id"] = id
			}
			ev.Headers = headers
		}
		return adapter.ProxyWithContext(ctx, ev)
	}
}

// hasHeader looks name up case-insensitively; gateway header keys arrive
// lower-cased but direct invocations may not.
func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == name {
			return true
		}
	}
	return false
}

// isLambdaEnvironment reports whether the process runs inside the Lambda runtime.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return hasRuntimeAPI
}

func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped cleanly")
	return nil
}
