package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AkZcH/metro-flow-control-system/cmd/redis"
	"github.com/AkZcH/metro-flow-control-system/common/kafka"
	"github.com/AkZcH/metro-flow-control-system/common/logger"
	"github.com/AkZcH/metro-flow-control-system/common/ratelimiter"
	"github.com/AkZcH/metro-flow-control-system/config"
	"github.com/AkZcH/metro-flow-control-system/internal/api/booking"
	"github.com/AkZcH/metro-flow-control-system/internal/ledger"
	"github.com/AkZcH/metro-flow-control-system/internal/notify"
	"github.com/AkZcH/metro-flow-control-system/internal/reservation"
	"github.com/AkZcH/metro-flow-control-system/internal/store"
	"github.com/AkZcH/metro-flow-control-system/internal/topology"
)

func main() {
	cfg := config.LoadConfig()
	ctx := context.Background()

	topo, err := topology.Load(cfg.TOPOLOGY_FILE)
	if err != nil {
		logger.Error("load topology: %v", err)
		os.Exit(1)
	}
	logger.Info("topology loaded: %d lines", len(topo.Lines()))

	// Persistence: Postgres when configured, in-process otherwise.
	var (
		tickets        store.TicketStore
		capacityLedger ledger.Ledger
	)
	if cfg.POSTGRES_CONNECTION != "" {
		pool, err := store.NewPostgresPool(ctx, cfg.POSTGRES_CONNECTION)
		if err != nil {
			logger.Error("connect postgres: %v", err)
			os.Exit(1)
		}
		defer pool.Close()
		tickets = store.NewPostgresTicketStore(pool)
		capacityLedger = store.NewPostgresLedger(pool)
		logger.Info("using postgres ticket store and capacity ledger")
	} else {
		tickets = store.NewMemoryTicketStore()
		capacityLedger = ledger.NewMemory()
		logger.Info("POSTGRES_CONNECTION not set, using in-memory stores")
	}

	var rateLimiter *ratelimiter.RedisRateLimiter
	if cfg.REDIS_DB_URL != "" {
		if rdb := redis.RedisConnect(cfg.REDIS_DB_URL, cfg.REDIS_PASSWORD); rdb != nil {
			rateLimiter = ratelimiter.NewRedisRateLimiter(rdb)
			defer rdb.Close()
		}
	}

	var producer kafka.Producer
	if len(cfg.KAFKA_BROKERS) > 0 {
		p, err := kafka.NewSaramaProducer(cfg.KAFKA_BROKERS)
		if err != nil {
			logger.Error("connect kafka: %v", err)
			os.Exit(1)
		}
		producer = p
		defer p.Close()
	}

	hub := notify.NewHub()
	defer hub.Close()
	notifier := notify.NewNotifier(hub, producer)

	locks := ledger.NewAdvisoryLocks(ledger.DefaultLockTimeout, ledger.DefaultSweepInterval)
	locks.Start()
	defer locks.Stop()

	coordinator := reservation.NewCoordinator(topo, capacityLedger, tickets, notifier, locks, cfg.DEFAULT_SLOT_CAPACITY)

	handler := booking.NewHandler(cfg, coordinator, capacityLedger, tickets, hub, rateLimiter)

	// handler.Routes() already carries the middleware stack; the outer mux
	// stays bare so nothing runs twice per request.
	router := chi.NewRouter()
	router.Mount("/api/tickets", handler.Routes())

	srv := &http.Server{
		Addr:    ":" + cfg.PORT,
		Handler: router,
	}

	go func() {
		logger.Info("server listening on :%s", cfg.PORT)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
}
