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

	"github.com/RidhamAnand/EDAI-4/internal/config"
	"github.com/RidhamAnand/EDAI-4/internal/httpapi"
	"github.com/RidhamAnand/EDAI-4/internal/ingest"
	"github.com/RidhamAnand/EDAI-4/internal/mqtt"
	"github.com/RidhamAnand/EDAI-4/internal/realtime"
	"github.com/RidhamAnand/EDAI-4/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	normalizer, err := ingest.NewNormalizer(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "tz", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	db, err := store.OpenPostgres(
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.SSLMode,
	)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	pipeline := &ingest.Pipeline{
		Store:        repo,
		Notifier:     hub,
		Normalizer:   normalizer,
		DefaultBooth: cfg.DefaultBoothID,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MQTTBrokerURL != "" {
		mq, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			slog.Error("mqtt connect failed", "error", err)
			os.Exit(1)
		}
		defer mq.Close()

		src := &ingest.MQTTSource{Pipeline: pipeline}
		if err := mq.Subscribe(cfg.MQTTTopic, func(m mqtt.Message) {
			src.HandleMessage(ctx, m, time.Now())
		}); err != nil {
			slog.Error("mqtt subscribe failed", "topic", cfg.MQTTTopic, "error", err)
			os.Exit(1)
		}
		slog.Info("scan ingest subscribed", "topic", cfg.MQTTTopic)
	}

	srv := httpapi.New(repo, pipeline, hub, cfg.AllowedOrigins)
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("retention-service listening", "addr", httpSrv.Addr, "tz", cfg.Timezone)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
