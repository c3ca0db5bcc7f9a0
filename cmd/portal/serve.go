package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/config"
	"github.com/Skotchmaster/pharmacy_portal/internal/db"
	"github.com/Skotchmaster/pharmacy_portal/internal/es"
	"github.com/Skotchmaster/pharmacy_portal/internal/handlers"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/middleware/csrf"
	"github.com/Skotchmaster/pharmacy_portal/internal/mykafka"
	"github.com/Skotchmaster/pharmacy_portal/internal/service/search"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
	httpserver "github.com/Skotchmaster/pharmacy_portal/internal/transport/http"
	"github.com/Skotchmaster/pharmacy_portal/internal/view"
)

const (
	sweepInterval = 10 * time.Minute
	pruneInterval = time.Minute
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the portal http server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// store is the session store chosen by STORE_DRIVER together with its
// readiness probe and cleanup.
type store struct {
	kv    tokenstore.KV
	ready func(ctx context.Context) error
	close func() error
}

func openStore(ctx context.Context, cfg *config.Config, l *slog.Logger) (*store, error) {
	s := &store{close: func() error { return nil }}
	switch cfg.StoreDriver {
	case config.StoreMemory:
		s.kv = tokenstore.NewMemoryKV()
	case config.StoreRedis:
		client, err := tokenstore.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		s.kv = tokenstore.NewRedisKV(client)
		s.ready = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		s.close = client.Close
	default:
		gdb, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(gdb); err != nil {
			return nil, err
		}
		kv := tokenstore.NewGormKV(gdb)
		go sweep(ctx, kv, l)
		s.kv = kv
		s.ready = func(ctx context.Context) error { return pingDB(ctx, gdb) }
		s.close = func() error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
	}
	if cfg.StorageSecret != "" {
		s.kv = tokenstore.NewSealedKV(s.kv, []byte(cfg.StorageSecret))
	}
	l.Info("session_store_ready", "driver", cfg.StoreDriver, "sealed", cfg.StorageSecret != "")
	return s, nil
}

func pingDB(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// sweep drops expired session rows until ctx ends.
func sweep(ctx context.Context, kv *tokenstore.GormKV, l *slog.Logger) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := kv.Sweep(ctx)
			if err != nil {
				l.Error("session_sweep_failed", "error", err)
				continue
			}
			if n > 0 {
				l.Info("session_sweep", "deleted", n)
			}
		}
	}
}

// pruneCache drops stale validation marks until ctx ends.
func pruneCache(ctx context.Context, c *auth.ValidationCache, every time.Duration, l *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Debug("validation_cache_pruned", "remaining", c.Prune())
		}
	}
}

func openPublisher(cfg *config.Config, l *slog.Logger) (mykafka.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		l.Info("kafka_disabled")
		return mykafka.Nop{}, nil
	}
	p, err := mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}
	l.Info("kafka_producer_ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return p, nil
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := context.WithCancel(parent)
	defer stop()

	l := logging.Build(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(l)
	ctx = logging.IntoContext(ctx, l)

	st, err := openStore(ctx, cfg, l)
	if err != nil {
		return err
	}

	prod, err := openPublisher(cfg, l)
	if err != nil {
		return err
	}

	h := &handlers.Handler{Events: prod}
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(ctx, cfg, l)
		if err != nil {
			return err
		}
		idx := search.New(esClient, cfg.ESIndex)
		h.Catalog = idx
		h.Index = idx
	}

	r, err := view.New()
	if err != nil {
		return err
	}

	var proxy echo.HandlerFunc
	if cfg.ProxyAPI {
		if proxy, err = httpserver.NewAPIProxy(cfg.APIURL); err != nil {
			return err
		}
	}

	cache := auth.NewValidationCache(cfg.SessionRevalidate)
	go pruneCache(ctx, cache, pruneInterval, l)

	client := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIURL,
		Prefix:  cfg.APIPrefix,
		Timeout: cfg.APITimeout,
	})
	e := httpserver.New(&httpserver.Deps{
		Logger:   l,
		Renderer: r,
		Handler:  h,
		Auth: auth.Config{
			Client:  client,
			KV:      st.kv,
			Cookies: tokenstore.Options{Secure: cfg.CookieSecure},
			Cache:   cache,
			Events:  prod,
		},
		CSRF:      csrf.Config{Secure: cfg.CookieSecure, EnforceSameOrigin: true},
		Ready:     st.ready,
		APIProxy:  proxy,
		APIPrefix: cfg.APIPrefix,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		l.Info("http_listen", "addr", cfg.ListenAddr, "api", cfg.APIURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http_server_error", "error", err)
			serveErr <- err
			stop()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	go func() {
		<-quit
		l.Warn("force_exit")
		os.Exit(1)
	}()

	l.Info("shutting_down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server_shutdown_error", "error", err)
	}
	if err := st.close(); err != nil {
		l.Error("store_close_error", "error", err)
	}
	if err := prod.Close(); err != nil {
		l.Error("kafka_close_error", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	l.Info("shutdown_complete")
	return nil
}
