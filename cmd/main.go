package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/finfolio/folio/config"
	"github.com/finfolio/folio/data"
	"github.com/finfolio/folio/data/cache"
	"github.com/finfolio/folio/data/repository/postgres"
	"github.com/finfolio/folio/internal/reportGenerator/xlsxGenerator"
	"github.com/finfolio/folio/internal/scheduler"
	"github.com/finfolio/folio/internal/service/portfolioService"
	httptransport "github.com/finfolio/folio/internal/transport/http"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	reportGenerator := xlsxGenerator.New()

	portfolioSrv := portfolioService.New(cfg, pgRepo, redisCache, reportGenerator)

	sched := scheduler.New()
	sched.NewIntervalJob("refresh stale aggregates", portfolioSrv.RefreshStaleAggregates, cfg.Jobs.AggregatesRefreshInterval, false)
	sched.Start()
	defer sched.Stop()

	ctrl := httptransport.NewController(portfolioSrv)
	router := httptransport.NewRouter(ctrl)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	slog.Info("http server started", slog.String("port", cfg.HTTP.Port))

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.Any("error", err))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
