// Package main serves the invocation entrypoint either as an AWS Lambda
// function or as an HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/config"
	"github.com/nucleus/lakehouse/internal/handler"
	"github.com/nucleus/lakehouse/internal/logging"
)

func main() {
	mode := flag.String("mode", "", "lambda or http (defaults to lambda inside a Lambda runtime)")
	defaultAction := flag.String("default-action", envOr("LAKEHOUSE_DEFAULT_ACTION", handler.ActionRunLayer), "action used when an event names none")
	flag.Parse()

	cfg := config.Load()
	logger := logging.MustNew(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	app.SetupMetrics(cfg, "lakehouse-handler", logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to wire components", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	h := &handler.Handler{
		Transform:     a.Transform,
		Quality:       a.Quality,
		Reports:       a.Reports,
		Store:         a.Store,
		Bucket:        cfg.ObjectStoreBucket,
		DefaultAction: *defaultAction,
		Logger:        logger.Named("handler"),
	}

	if *mode == "" {
		*mode = "http"
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			*mode = "lambda"
		}
	}

	switch *mode {
	case "lambda":
		logger.Info("serving lambda invocations", zap.String("default_action", h.DefaultAction))
		lambda.Start(func(ctx context.Context, ev handler.Event) (handler.Response, error) {
			defer app.FlushMetrics(logger)
			return h.Invoke(ctx, ev)
		})
	case "http":
		if err := serveHTTP(cfg.HTTPAddr, h, logger); err != nil {
			logger.Error("http server failed", zap.Error(err))
			os.Exit(1)
		}
	default:
		logger.Error("unknown mode", zap.String("mode", *mode))
		os.Exit(2)
	}
}

func serveHTTP(addr string, h *handler.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving http", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger.Info("shutting down http server")
	defer app.FlushMetrics(logger)
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
