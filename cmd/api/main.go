package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/config"
	"vibebiz.dev/internal/docs"
	"vibebiz.dev/internal/httpapi"
	"vibebiz.dev/internal/obs"
	"vibebiz.dev/internal/store/memory"
	"vibebiz.dev/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Postgres when a DSN is set, in-memory otherwise (local development)
	var (
		store interface {
			auth.Store
			audit.Store
		}
		pgStore *pg.Store
	)
	if cfg.DatabaseDSN != "" {
		pgStore, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
	} else {
		log.Printf("no DSN configured, using in-memory store")
		store = memory.New()
	}

	var verifier *auth.Verifier
	if cfg.VerifySecret != "" {
		verifier, err = auth.NewVerifier(cfg.VerifySecret)
		if err != nil {
			log.Fatalf("verifier: %v", err)
		}
	}

	authz := auth.NewAuthorizer(store)
	sessions := auth.NewSessionManager(store,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	accounts := auth.NewAccountService(store, authz, verifier)
	invites := auth.NewInvitationService(store, authz, auth.WithInviteTTL(cfg.InviteTTL))
	auditor := audit.NewLogger(store)
	resources := docs.NewService()

	rp := httpapi.ReadyProbe{}
	if pgStore != nil {
		rp.DB = pgStore.DB()
	}
	api := httpapi.New(rp, version, httpapi.Deps{
		Sessions:     sessions,
		Accounts:     accounts,
		Invites:      invites,
		Authz:        authz,
		Auditor:      auditor,
		Docs:         resources,
		StoreTimeout: cfg.StoreTimeout,
	})

	handler := api.Handler()
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	handler = httpapi.RateLimit(handler, cfg.RateBurst, cfg.RatePerSecond)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting vibebiz-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
