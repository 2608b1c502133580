package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/totegamma/escrow-ledger/internal/config"
	"github.com/totegamma/escrow-ledger/internal/infra/providers"
	"github.com/totegamma/escrow-ledger/internal/present/rest"
	authmiddleware "github.com/totegamma/escrow-ledger/internal/present/rest/middleware"
	"github.com/totegamma/escrow-ledger/internal/service"
	"github.com/totegamma/escrow-ledger/internal/usecase"
)

const serviceName = "escrowd"

func main() {
	configPath := flag.String("config", "/etc/escrow/config.yaml", "path to config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, cfg.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to setup tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	repo, err := providers.NewLedgerRepository(cfg.Server)
	if err != nil {
		panic(err)
	}

	// keep nil pointers out of the interfaces
	var publisher usecase.EventPublisher
	var realtime rest.RealtimeSource
	if signalService := providers.NewSignalService(cfg.Server); signalService != nil {
		publisher = signalService
		realtime = signalService
	}

	var campaignCache usecase.CampaignCache
	if c := providers.NewCampaignCache(cfg.Server); c != nil {
		campaignCache = c
	}

	ledger := usecase.NewLedgerUsecase(repo, service.SystemClock{}, publisher, campaignCache)

	if genesis := cfg.GenesisBalances(); len(genesis) > 0 {
		if err := ledger.Seed(ctx, genesis); err != nil {
			slog.Error("failed to seed genesis balances", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	domainConfig := cfg.Domain()
	auth := authmiddleware.NewAuthMiddleware(service.NewAuthService(domainConfig))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(auth.IdentifyIdentity)

	handler := rest.NewHandler(domainConfig, ledger, realtime)
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(cfg.Server.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	slog.Info("escrowd started",
		slog.String("listen", cfg.Server.Listen),
		slog.String("store", cfg.Server.Store),
		slog.String("address", cfg.NodeInfo.Address),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
}

func setupTraceProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
