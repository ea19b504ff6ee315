// Entry point: loads config, wires the matching pipeline, starts the API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"xpress/internal/config"
	httptransport "xpress/internal/http"
	"xpress/internal/infra"
	"xpress/internal/maps"
	"xpress/internal/modules/discovery"
	"xpress/internal/modules/dispatch"
	"xpress/internal/modules/performance"
	"xpress/internal/modules/pricing"
	"xpress/internal/modules/ride"
	"xpress/internal/modules/scoring"
	"xpress/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("postgres connect", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	var (
		drivers   discovery.Store
		penalties dispatch.PenaltySink
		perf      performance.Provider
	)
	if cfg.Redis.Addr != "" {
		rdb := infra.NewRedis(cfg.Redis.Addr)
		drivers = discovery.NewRedisStore(rdb)
		provider := performance.NewRedisProvider(rdb)
		perf, penalties = provider, provider
		log.Info("using redis candidate store", "addr", cfg.Redis.Addr)
	} else {
		drivers = discovery.NewMemoryStore()
		provider := performance.NewFixedProvider()
		perf, penalties = provider, provider
		log.Warn("no redis configured, using in-memory candidate store")
	}

	var eta scoring.ETAProvider
	if cfg.Maps.APIKey != "" {
		eta, err = maps.NewETAService(cfg.Maps.APIKey)
		if err != nil {
			log.Error("maps init", "error", err)
			os.Exit(1)
		}
	}

	rideStore := ride.NewStore(dbPool)
	hub := ws.NewHub(log)

	queue := dispatch.NewQueue(cfg.Matching, dispatch.Deps{
		Discovery: discovery.NewService(drivers, cfg.Matching.CandidateCap),
		Scoring:   scoring.NewEngine(cfg.Matching, perf, eta),
		Drivers:   drivers,
		Penalties: penalties,
		Mat:       ride.NewMaterializer(rideStore),
		Sink:      rideStore,
		Notifier:  hub,
		Pricing:   pricing.NewTableEstimator(pricing.DefaultRates()),
		Log:       log,
	})

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Queue:   queue,
		Drivers: drivers,
		Hub:     hub,
		Log:     log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("dispatch api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
