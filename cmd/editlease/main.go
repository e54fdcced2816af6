// Command editlease signs in to the admin API, takes the edit lock on one
// event and keeps it renewed until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/config"
	"github.com/VenkatGGG/admin-console/internal/console"
	"github.com/VenkatGGG/admin-console/internal/editlock"
	"github.com/VenkatGGG/admin-console/internal/gateway"
	"github.com/VenkatGGG/admin-console/internal/identity"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <event-id>", os.Args[0])
	}
	if err := run(os.Args[1]); err != nil {
		log.Fatalf("editlease %v", err)
	}
}

// run returns errors instead of exiting so its deferred cleanup runs.
func run(eventID string) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := gateway.NewHTTPGateway(cfg.APIBaseURL, cfg.APITimeout)
	session := identity.NewSession(gw, nil)
	gw.SetTokenSource(session.Token)
	user, err := session.Login(ctx, cfg.LoginEmail, cfg.LoginPassword)
	if err != nil {
		return fmt.Errorf("login failed: %s", gateway.Message(err))
	}
	defer func() {
		if err := session.Logout(context.Background()); err != nil {
			log.Printf("editlease logout failed: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, registry)
	}

	locks, err := editlock.New(editlock.Config{
		Gateway:       gateway.NewLocks(gw, catalog.KindEvent),
		Identity:      session,
		Metrics:       editlock.NewMetrics(registry),
		RenewInterval: cfg.EditLockRenew,
		LockTimeout:   cfg.EditLockTimeout,
	})
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	defer locks.Close()

	events := console.NewEventStore(gw, gw, locks, cfg.PageLimit)
	event, err := events.FetchOne(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetch event failed: %s", events.Cache().LastError())
	}
	if events.IsLockedByOthers(event) {
		log.Printf("editlease event already locked: id=%s holder=%s", event.ID, event.EditingBy)
	}

	grant, err := events.RequestEditAccess(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("acquire failed: %s", gateway.Message(err))
	}
	if !grant.Granted {
		log.Printf("editlease denied: id=%s reason=%s", event.ID, grant.Reason)
		return nil
	}
	log.Printf("editlease holding: id=%s name=%q user=%s renew_every=%s", event.ID, event.Name, user.Email, cfg.EditLockRenew)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			events.ReleaseEditAccess(releaseCtx, event.ID)
			cancel()
			log.Printf("editlease released: id=%s", event.ID)
			return nil
		case <-ticker.C:
			if !events.IsBeingEdited(event.ID) {
				log.Printf("editlease lost: id=%s", event.ID)
				return nil
			}
		}
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second}
	log.Printf("editlease metrics listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("editlease metrics server failed: %v", err)
	}
}
