// FileToLink delivery gateway
//
// Features:
// - Link tokens decoded into object references ({hash}{id} or {id}?hash=)
// - Load-balanced backend sessions with per-session stream caps
// - HTTP Range support, proxied 206 streaming or presigned redirects
// - HTML preview pages, status endpoint, CORS
// - Prometheus metrics & structured logging (zap)
// - Postgres or Redis object catalog, S3/local/SMB byte storage
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/captain108/FileToLink-cap/internal/api"
	"github.com/captain108/FileToLink-cap/internal/backend"
	"github.com/captain108/FileToLink-cap/internal/balancer"
	pgcatalog "github.com/captain108/FileToLink-cap/internal/catalog/postgres"
	rediscatalog "github.com/captain108/FileToLink-cap/internal/catalog/redis"
	"github.com/captain108/FileToLink-cap/internal/config"
	"github.com/captain108/FileToLink-cap/internal/delivery"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/metrics"
	"github.com/captain108/FileToLink-cap/internal/preview"
	"github.com/captain108/FileToLink-cap/internal/quota"
	"github.com/captain108/FileToLink-cap/internal/retry"
	"github.com/captain108/FileToLink-cap/internal/streamer"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type catalog interface {
	backend.Catalog
	Close() error
}

func main() {
	startTime := time.Now()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("FileToLink gateway starting...",
		zap.String("version", version),
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("mode", cfg.DeliveryMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Object catalog
	cat, pg, err := openCatalog(ctx, cfg)
	if err != nil {
		logging.Fatal("catalog init failed", zap.String("driver", cfg.CatalogDriver), zap.Error(err))
	}
	defer cat.Close()

	// Backend sessions
	sessions, err := backend.NewSessions(ctx, cfg.Sessions, cat)
	if err != nil {
		logging.Fatal("backend sessions init failed", zap.Error(err))
	}
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()

	registry := balancer.NewRegistry(cfg.MaxConcurrentPerClient, func(c backend.Client) *streamer.Streamer {
		return streamer.New(c, streamer.Options{
			ChunkSize: cfg.ChunkSize,
			Timeout:   cfg.BackendTimeout,
			Reconnect: retry.Reconnect(),
		})
	})
	for _, s := range sessions {
		if err := registry.Add(s); err != nil {
			logging.Fatal("register session failed", zap.Error(err))
		}
		// A session that fails here is restarted on first use.
		startCtx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout)
		if err := s.Start(startCtx); err != nil {
			logging.Warn("backend session not ready", logging.Session(s.ID()), zap.Error(err))
		} else {
			logging.Info("backend session ready", logging.Session(s.ID()))
		}
		cancel()
	}
	logging.Info("backend sessions registered",
		zap.Int("count", registry.Count()),
		zap.Int("max_per_session", registry.Cap()))

	gateway := delivery.NewGateway(registry, delivery.Options{
		Mode:        cfg.DeliveryMode,
		RedirectTTL: cfg.RedirectURLTTL,
	})
	renderer := preview.NewRenderer(cfg.PublicBaseURL, gateway)
	rateLimiter := quota.NewRateLimiter(cfg.RateLimitRPM)

	srv := api.NewServer(gateway, registry, renderer, rateLimiter, api.Options{
		Version:     version,
		ProjectURL:  cfg.ProjectURL,
		BotUsername: cfg.BotUsername,
		StartTime:   startTime,
	})

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux(),
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		var err error
		if useTLS {
			logging.Info("server listening (TLS 1.3)",
				zap.String("addr", cfg.ListenAddr),
				zap.String("cert", cfg.TLSCertFile))
			err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	})

	// Periodic connection pool metrics
	if pg != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					pg.UpdateConnectionMetrics()
				}
			}
		})
	}

	// Rate limiter bucket cleanup
	if rateLimiter.Enabled() {
		g.Go(func() error {
			rateLimiter.RunCleanup(gctx, time.Hour, 24*time.Hour)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Fatal("server error", zap.Error(err))
	}
	logging.Info("shutdown complete")
}

// openCatalog connects the configured catalog. pg is non-nil for postgres.
func openCatalog(ctx context.Context, cfg *config.Config) (catalog, *pgcatalog.Catalog, error) {
	switch cfg.CatalogDriver {
	case "redis":
		logging.Info("connecting to Redis...", zap.String("addr", cfg.RedisAddr))
		return rediscatalog.New(rediscatalog.Config{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		}), nil, nil
	default:
		logging.Info("connecting to PostgreSQL...")
		pg, err := pgcatalog.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("running migrations...")
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg, nil
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
