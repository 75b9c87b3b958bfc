package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/hansimuller/taekwon/internal/auth"
	"github.com/hansimuller/taekwon/internal/config"
	"github.com/hansimuller/taekwon/internal/httpapi"
	"github.com/hansimuller/taekwon/internal/metrics"
	"github.com/hansimuller/taekwon/internal/store"
	"github.com/hansimuller/taekwon/internal/tournament"
	"github.com/hansimuller/taekwon/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// openStore returns the document store and the session store sharing its
// database when there is one.
func openStore(cfg config.StoreConfig) (store.Store, scs.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := store.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, sqlite3store.New(st.DB().DB), nil
	case "postgres":
		st, err := store.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, memstore.New(), nil
	case "memory":
		return store.NewMemory(), memstore.New(), nil
	}
	return nil, nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalid, cfg.Driver)
}

func run(cfg *config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, sessions, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	secret, err := auth.NewMasterSecret(cfg.Tournament.MasterSecret, 0)
	if err != nil {
		return err
	}

	tour, err := tournament.New(ctx, tournament.Options{
		Rings:        cfg.Tournament.Rings,
		SlotsPerRing: cfg.Tournament.SlotsPerRing,
		Match:        cfg.Match.Engine(),
		TickInterval: cfg.Server.TickInterval,
		StoreTimeout: cfg.Server.StoreTimeout,
		Fresh:        cfg.Tournament.Fresh,
	}, st, secret, log, m)
	if err != nil {
		return err
	}

	sm := scs.New()
	sm.Store = sessions
	sm.Lifetime = cfg.Session.Lifetime
	sm.Cookie.Name = cfg.Session.Cookie
	sm.Cookie.Secure = cfg.Session.Secure
	sm.Cookie.SameSite = http.SameSiteLaxMode

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Tournament: tour,
			Sessions:   sm,
			Log:        log,
			Gatherer:   reg,
			WS: ws.Options{
				OutboxSize:   cfg.Server.OutboxSize,
				WriteTimeout: cfg.Server.WriteTimeout,
				PingInterval: cfg.Server.ReadTimeout / 2,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tour.Run(gctx) })
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Driver), zap.String("tournament", tour.ID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
