// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/stellr/internal/api"
	"github.com/tomtom215/stellr/internal/auth"
	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/conversation"
	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/eventprocessor"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/monitoring"
	"github.com/tomtom215/stellr/internal/preferences"
	"github.com/tomtom215/stellr/internal/realtime"
	"github.com/tomtom215/stellr/internal/supervisor"
	"github.com/tomtom215/stellr/internal/supervisor/services"
	ws "github.com/tomtom215/stellr/internal/websocket"
)

func main() {
	started := time.Now()

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := run(cfg, started); err != nil {
		logging.Fatal().Err(err).Msg("Stellr stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // Sequential wiring of every component
func run(cfg *config.Config, started time.Time) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier := auth.NewTokenVerifier(cfg.Security.JWTSecret)
	session, err := auth.ResolveSession(&cfg.Session, verifier)
	if err != nil {
		return err
	}
	logging.Info().
		Str("user_id", logging.SanitizeUserID(session.UserID)).
		Str("session_id", session.ID).
		Str("transport", cfg.Changefeed.Transport).
		Bool("api_auth", verifier.Verifies()).
		Msg("Starting Stellr")

	prefs, err := preferences.Open(cfg.Preferences)
	if err != nil {
		return err
	}
	defer func() {
		if err := prefs.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing preference store")
		}
	}()

	aggregator := monitoring.NewAggregator(cfg.Monitoring, session.ID)

	transport, err := eventprocessor.Open(ctx, &cfg.Changefeed, &cfg.NATS, logging.NewWatermillLogger())
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing change-feed transport")
		}
	}()
	feed := changefeed.NewClient(transport.Subscriber, transport.Publisher, cfg.Changefeed.SubjectPrefix)

	backendClient := backend.NewCircuitBreakerClient(
		backend.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey, session.AccessToken, cfg.Backend.Timeout),
		&cfg.Backend,
	)
	profiles := backend.NewCachedProfiles(backendClient, cfg.Backend.ProfileCacheTTL)
	actions := logging.NewUserActionLogger()

	store := conversation.NewStore(session.UserID, conversation.Deps{
		Source:   backendClient,
		Profiles: profiles,
		RPC:      backendClient,
		Tracker:  aggregator,
		Actions:  actions,
	})
	defer store.Close()

	facade := realtime.New(session.UserID, cfg.Realtime, realtime.Deps{
		Broadcaster:  feed,
		RPC:          backendClient,
		Tracker:      aggregator,
		Participants: store,
		Actions:      actions,
	})
	defer facade.Close()

	var subs []*emitter.Subscription
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()
	storeSub, err := store.Attach(feed)
	if err != nil {
		return err
	}
	facadeSub, err := facade.Attach(feed)
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	subs = append(subs, storeSub, facadeSub, ws.Bridge(hub, store, facade, aggregator))

	handler := api.NewHandler(api.Deps{
		UserID:        session.UserID,
		Conversations: store,
		Realtime:      facade,
		Monitoring:    aggregator,
		Preferences:   prefs,
		Hub:           hub,
		CORSOrigins:   cfg.Security.CORSOrigins,
	})
	chiMw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	authMW := auth.NewMiddleware(verifier, session.UserID, aggregator)
	if !authMW.Enabled() {
		logging.Warn().Str("addr", cfg.Server.Addr()).Msg("JWT_SECRET not set, local API is unauthenticated")
	}
	router := api.NewRouter(handler, authMW, chiMw, aggregator)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddFeedService(feed)
	tree.AddFeedService(profiles)
	tree.AddCoreService(hub)
	tree.AddCoreService(aggregator)
	if cfg.Monitoring.ValidationEnabled() {
		pusher, err := monitoring.NewPusher(cfg.Monitoring, session.ID, aggregator)
		if err != nil {
			return err
		}
		tree.AddCoreService(pusher)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

	store.Refresh(ctx)
	aggregator.TrackPerformance(heapMB(), time.Since(started))

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

func heapMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / (1 << 20)
}
