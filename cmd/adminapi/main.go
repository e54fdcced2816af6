package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/VenkatGGG/admin-console/internal/api"
	"github.com/VenkatGGG/admin-console/internal/config"
	"github.com/VenkatGGG/admin-console/internal/idempotency"
	"github.com/VenkatGGG/admin-console/internal/inventory"
	"github.com/VenkatGGG/admin-console/internal/lease"
)

func main() {
	cfg := config.Load()
	log.Printf("config loaded: store=%s locks=%s redis=%s", cfg.StoreBackend, cfg.LockBackend, cfg.RedisAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, err := api.ParseUsers(cfg.Users)
	if err != nil {
		log.Fatalf("adminapi users invalid: %v", err)
	}

	var store inventory.Store
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := inventory.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("adminapi postgres init failed: %v", err)
		}
		defer pg.Close()
		store = pg
	default:
		store = inventory.NewInMemoryStore()
	}

	var (
		locks       lease.Manager
		idempotent  idempotency.Store
		redisClient *redis.Client
	)
	switch cfg.LockBackend {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("adminapi redis ping failed: %v", err)
		}
		locks = lease.NewRedisManager(redisClient, "")
		idempotent = idempotency.NewRedisStore(redisClient, "")
	default:
		locks = lease.NewInMemoryManager(clock.WallClock)
		idempotent = idempotency.NewInMemoryStore(clock.WallClock)
	}

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, store); err != nil {
			log.Printf("adminapi demo seed failed: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := api.NewServer(api.Options{
		Store:              store,
		Locks:              locks,
		Idempotency:        idempotent,
		Users:              users,
		Registry:           registry,
		LockTTL:            cfg.EditLockTimeout,
		CreateRateLimit:    cfg.CreateRateLimit,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		IdempotencyLockTTL: cfg.IdempotencyLockTTL,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("adminapi shutdown error: %v", err)
		}
	}()

	log.Printf("adminapi listening on %s users=%d", cfg.HTTPAddr, len(users))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("adminapi failed: %v", err)
	}
}
