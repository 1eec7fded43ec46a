package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"routedesk/internal/config"
	"routedesk/internal/controllers"
	"routedesk/internal/directions"
	"routedesk/internal/fleetapi"
	"routedesk/internal/logger"
	"routedesk/internal/metrics"
	"routedesk/internal/middleware"
	"routedesk/internal/routeform"
	"routedesk/internal/routes"
	"routedesk/internal/store"
)

const sessionPurgeInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	if err := logger.Setup(cfg.LogFile, cfg.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	db, err := config.OpenDB(cfg.DB)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	m := metrics.New()
	st := store.New(db)
	fleet := fleetapi.NewClient(cfg.FleetAPIURL, cfg.FleetAPITimeout, m)

	var (
		provider directions.Provider
		places   directions.Places
	)
	if cfg.MapsAPIKey != "" {
		google := directions.NewGoogleClient(directions.GoogleConfig{
			APIKey:        cfg.MapsAPIKey,
			BaseURL:       cfg.MapsBaseURL,
			Timeout:       cfg.DirectionsTimeout,
			RatePerSecond: cfg.MapsRatePerSec,
			CacheTTL:      cfg.PlacesCacheTTL,
			Metrics:       m,
		})
		provider, places = google, google
	} else {
		logrus.Warn("MAPS_API_KEY not set: route computation and place search are unavailable")
	}

	var computer routeform.RouteComputer
	if provider != nil {
		computer = directions.NewComputer(provider, m)
	}

	hub := controllers.NewDraftHub(cfg.AllowedOrigins)
	defer hub.Close()

	registry := routeform.NewRegistry(routeform.Deps{
		Computer: computer,
		Trips:    fleet,
		Metrics:  m,
	}, st, hub)

	api := &controllers.API{
		Fleet:      fleet,
		Sessions:   st,
		Auth:       middleware.NewAuth(cfg.JWTSecret, st),
		Drafts:     registry,
		DraftStore: st,
		Finder:     directions.NewStopFinder(places),
		Hub:        hub,
		SessionTTL: cfg.SessionTTL,
		Ping:       sqlDB.PingContext,
	}

	r := routes.SetupRouter(api, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.EnableCORS(cfg.AllowedOrigins, r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeSessions(ctx, st)

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}

func purgeSessions(ctx context.Context, st *store.Store) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.PurgeExpiredSessions(ctx, now)
			if err != nil {
				logrus.WithError(err).Warn("Failed to purge expired sessions")
				continue
			}
			if n > 0 {
				logrus.WithField("count", n).Info("Purged expired sessions")
			}
		}
	}
}
