package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/config"
	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/bootstrap"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

const serviceName = "reqflowly-gateway"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := bootstrap.NewLogger(cfg.App)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	authClient, err := auth.InitializeFirebase(&cfg.Firebase)
	if err != nil {
		log.Fatal("firebase init failed", zap.Error(err))
	}

	db, err := bootstrap.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()

	client := upstream.NewClient(
		cfg.Upstream.BaseURL,
		cfg.Upstream.Timeout,
		cfg.Upstream.GenerationTimeout,
		auth.RawTokenFromContext,
		log,
	)

	bus := notify.NewBus(log)
	hub := notify.NewHub(log)
	go hub.Run()
	bus.Attach(hub)

	relay := notify.NewRedisRelay(rdb, log)
	bus.Attach(relay)
	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()
	go relay.Run(relayCtx, hub)

	sessions, err := session.NewRegistry(cfg.Session.Capacity, cfg.Session.IdleTTL, bus.DropUser, log)
	if err != nil {
		log.Fatal("session registry init failed", zap.Error(err))
	}

	scheduler := cron.New(cron.WithSeconds())
	if _, err := sessions.ScheduleSweep(scheduler, "0 */5 * * * *"); err != nil {
		log.Fatal("sweep schedule failed", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		DB:          db,
		Redis:       rdb,
		AuthClient:  authClient,
		Upstream:    client,
		Sessions:    sessions,
		Bus:         bus,
		Hub:         hub,
		Log:         log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("upstream", cfg.Upstream.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
