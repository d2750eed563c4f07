package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BearBump/LiveCalls/config"
	"github.com/BearBump/LiveCalls/internal/obs"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	slog.SetDefault(newLogger(cfg.LiveCalls.LogLevel))

	httpAddr := cfg.LiveCalls.WorkerHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "notify-worker"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := obs.InitTracer(ctx, obs.TracingOpts{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		panic(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	err = RunNotifyWorker(ctx, cfg, defaultWorkerFactories(), notifyWorkerOpts{
		httpAddr:    httpAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
