package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spencer-p/tidelink/pkg/data"
	"github.com/spencer-p/tidelink/pkg/handlers"
	"github.com/spencer-p/tidelink/pkg/logger"
	"github.com/spencer-p/tidelink/pkg/metrics"
	"github.com/spencer-p/tidelink/pkg/middleware"
	"github.com/spencer-p/tidelink/pkg/page"
)

type Config struct {
	Port        string `default:"8080"`
	Prefix      string `default:"/"`
	Environment string `default:"development"`

	SiblingPort   int    `default:"5000" split_words:"true"`
	SiblingScheme string `default:"https" split_words:"true"`
	DefaultHost   string `split_words:"true"`

	CacheTTL        time.Duration `default:"1h" split_words:"true"`
	CacheSize       int           `default:"4096" split_words:"true"`
	ShutdownTimeout time.Duration `default:"10s" split_words:"true"`

	SecureCookies bool   `default:"true" split_words:"true"`
	SessionKey    string `split_words:"true"`
	EncryptionKey string `split_words:"true"`

	DataDir string `envconfig:"KO_DATA_PATH"`

	// Postgres is only used when PGHOST is set.
	PGHost     string `envconfig:"PGHOST"`
	PGPort     int    `envconfig:"PGPORT" default:"5432"`
	PGUser     string `envconfig:"PGUSER" default:"postgres"`
	PGPassword string `envconfig:"PGPASSWORD"`
	PGDatabase string `envconfig:"PGDATABASE" default:"tidelink"`
}

func newHandler(env Config, visitors data.Store) (http.Handler, error) {
	p, err := page.New(page.Options{
		Scheme: env.SiblingScheme,
		Port:   env.SiblingPort,
	})
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter().StrictSlash(true)
	r.Use(metrics.LatencyHandler)
	r.NotFoundHandler = metrics.LatencyHandler(http.NotFoundHandler())
	r.Handle("/metrics", promhttp.Handler())
	s := r.PathPrefix(env.Prefix).Subrouter()
	handlers.Register(s, handlers.Options{
		Prefix:      env.Prefix,
		DataDir:     env.DataDir,
		DefaultHost: env.DefaultHost,
		CacheTTL:    env.CacheTTL,
		CacheSize:   env.CacheSize,
		Page:        p,
		Sessions:    handlers.NewCookieStore(env.SessionKey, env.EncryptionKey, env.SecureCookies),
		Visitors:    visitors,
	})

	return middleware.AccessLog(middleware.Headers(r)), nil
}

func openVisitors(ctx context.Context, env Config) (data.Store, func()) {
	if env.PGHost == "" {
		logger.Info(ctx, "PGHOST not set, keeping visitors in memory")
		return data.NewMemory(), func() {}
	}
	store, err := data.Postgres(data.Options{
		Host:     env.PGHost,
		Port:     env.PGPort,
		User:     env.PGUser,
		Password: env.PGPassword,
		Database: env.PGDatabase,
	})
	if err != nil {
		logger.Fatal(ctx, "could not open visitor store", zap.Error(err))
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn(ctx, "could not close visitor store", zap.Error(err))
		}
	}
}

func main() {
	var env Config
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal(err.Error())
	}
	logger.Setup(env.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if env.SessionKey == "" || env.EncryptionKey == "" {
		logger.Warn(ctx, "SESSION_KEY or ENCRYPTION_KEY not set, sessions will not survive a restart")
	}

	visitors, closeVisitors := openVisitors(ctx, env)
	defer closeVisitors()

	handler, err := newHandler(env, visitors)
	if err != nil {
		logger.Fatal(ctx, "could not build handlers", zap.Error(err))
	}

	srv := &http.Server{
		Handler:      handler,
		Addr:         "0.0.0.0:" + env.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go func() {
		logger.Info(ctx, "listening and serving",
			zap.String("addr", srv.Addr),
			zap.String("prefix", env.Prefix),
			zap.Int("sibling_port", env.SiblingPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "could not stop server", zap.Error(err))
	}
}
