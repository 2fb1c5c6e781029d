package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"matchmaker-backend/internal/alloc"
	"matchmaker-backend/internal/archive"
	"matchmaker-backend/internal/config"
	"matchmaker-backend/internal/events"
	"matchmaker-backend/internal/httpapi"
	"matchmaker-backend/internal/hub"
	"matchmaker-backend/internal/registry"
	"matchmaker-backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder archive.Recorder
	if cfg.DatabaseURL != "" {
		db, err := archive.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open archive database", zap.Error(err))
		}
		recorder = db
		log.Info("match archive: postgres")
	} else {
		recorder = archive.NewMemory()
		log.Info("match archive: in-memory (no DATABASE_URL)")
	}

	reg := registry.New()
	bus := events.NewBus()
	defer bus.Close()

	h := hub.NewHub(ctx, hub.Config{
		TickInterval: cfg.TickInterval,
		MapPool:      cfg.MapPool,
		Session: session.Config{
			ReadyTimeout:   cfg.ReadyTimeout,
			VetoTimeout:    cfg.VetoTimeout,
			ConnectTimeout: cfg.ConnectTimeout,
			AllocAttempts:  cfg.AllocAttempts,
			AllocBackoff:   cfg.AllocBackoff,
		},
	}, reg, reg, session.Deps{
		Bus:      bus,
		Registry: reg,
		Alloc:    alloc.NewStatic(nil),
		Recorder: recorder,
		Log:      log,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, bus),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
