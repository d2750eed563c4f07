package main

import (
	"context"
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

type negotiationAPIApp struct {
	ctx             context.Context
	cancel          context.CancelFunc
	cfg             *config.Config
	opts            negotiationAPIOpts
	shutdownTracing func(context.Context) error
}

func mustBootstrapNegotiationAPI() *negotiationAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	slog.SetDefault(newLogger(cfg.LiveCalls.LogLevel))

	httpAddr := cfg.LiveCalls.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "negotiation-api"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	shutdownTracing, err := obs.InitTracer(ctx, obs.TracingOpts{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		cancel()
		panic(err)
	}

	return &negotiationAPIApp{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		opts: negotiationAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: os.Getenv("swaggerPath"),
		},
		shutdownTracing: shutdownTracing,
	}
}

// newLogger пишет JSON в stdout; неизвестный уровень считается info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func (a *negotiationAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			slog.Warn("tracer shutdown", "error", err.Error())
		}
	}
}

func (a *negotiationAPIApp) Run() error {
	return RunNegotiationAPI(a.ctx, a.cfg, defaultAPIFactories(), a.opts)
}
