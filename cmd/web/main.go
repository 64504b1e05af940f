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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"microblog/internal/app"
	"microblog/internal/config"
	"microblog/internal/server"
	"microblog/internal/util"
	"microblog/pkg/events"
	"microblog/pkg/storage"
	"microblog/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return err
	}

	dataStore, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	sessions, err := buildSessions(cfg, sessionTTL, logger)
	if err != nil {
		return err
	}
	flashes := buildFlashes(cfg, logger)
	media, err := buildMedia(cfg, logger)
	if err != nil {
		return err
	}
	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	application, err := app.New(app.Config{
		Store:    dataStore,
		Sessions: sessions,
		Media:    media,
		Events:   publisher,
	})
	if err != nil {
		return err
	}

	mediaDir := ""
	if cfg.MinioEndpoint == "" {
		mediaDir = cfg.MediaDir
	}
	srv, err := server.New(server.Config{
		App:               application,
		Flashes:           flashes,
		HTMLDir:           cfg.HTMLDir,
		SessionTTL:        sessionTTL,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
		MediaDir:          mediaDir,
	})
	if err != nil {
		return err
	}

	webServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:        ":" + cfg.MetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web server listening", "addr", webServer.Addr)
		if err := webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return webServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStore prefers Postgres; without a database URL the in-memory store
// keeps local development dependency-free.
func buildStore(cfg config.FileConfig, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

func buildSessions(cfg config.FileConfig, ttl time.Duration, logger *slog.Logger) (store.SessionStore, error) {
	switch cfg.SessionStrategy {
	case "redis":
		return store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, ttl), nil
	case "jwt":
		return store.NewJWTSessionStore(cfg.JWTSecret, ttl)
	default:
		logger.Warn("using in-memory sessions", "strategy", cfg.SessionStrategy)
		return store.NewMemorySessionStore(), nil
	}
}

func buildFlashes(cfg config.FileConfig, logger *slog.Logger) store.FlashStore {
	if cfg.RedisAddr != "" {
		return store.NewRedisFlashStore(cfg.RedisAddr, cfg.RedisPassword)
	}
	logger.Warn("no redis configured, flash messages kept in memory")
	return store.NewMemoryFlashStore()
}

func buildMedia(cfg config.FileConfig, logger *slog.Logger) (storage.ObjectStore, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	logger.Warn("no object storage configured, storing media on disk", "dir", cfg.MediaDir)
	return storage.NewFileStore(cfg.MediaDir, "/media/")
}

func buildPublisher(cfg config.FileConfig, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Warn("no message broker configured, tweet events disabled")
		return events.NopPublisher{}
	}
	pub, err := events.NewRabbitPublisher(cfg.AMQPURL)
	if err != nil {
		logger.Error("connect message broker", "err", err)
		return events.NopPublisher{}
	}
	return pub
}
