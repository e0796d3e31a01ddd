// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stellr/internal/auth"
	"github.com/tomtom215/stellr/internal/middleware"
)

// Router wires the handler, authentication and chi middleware together.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
	tracker       middleware.OperationTracker
}

// NewRouter returns a router. authMW may be nil, which leaves the API open.
// tracker receives request durations for slow-operation detection and may
// be nil.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiMw *ChiMiddleware, tracker middleware.OperationTracker) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		auth:          authMW,
		chiMiddleware: chiMw,
		tracker:       tracker,
	}
}

func (router *Router) requireSession(next http.Handler) http.Handler {
	if router.auth == nil {
		return next
	}
	return router.auth.RequireSession(next)
}

// SetupChi configures every route.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is handled

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		if router.tracker != nil {
			r.Use(middleware.SlowOperations(router.tracker))
		}
		r.Use(router.requireSession)

		r.Get("/ws", router.handler.WebSocket)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", router.handler.ListConversations)
			r.Post("/refresh", router.handler.RefreshConversations)
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", router.handler.GetConversation)
				r.Delete("/", router.handler.DeleteConversation)
				r.Post("/read", router.handler.MarkConversationRead)
				r.Post("/archive", router.handler.ArchiveConversation)
				r.Post("/messages", router.handler.SendMessage)
				r.Post("/photos", router.handler.SendPhotoMessage)
				r.Get("/typing", router.handler.TypingUsers)
				r.Post("/typing", router.handler.Typing)
			})
		})
		r.Post("/unmatch", router.handler.Unmatch)

		r.Route("/messages/{messageID}/reactions", func(r chi.Router) {
			r.Get("/", router.handler.ListReactions)
			r.Post("/", router.handler.AddReaction)
			r.Delete("/", router.handler.RemoveReaction)
		})

		r.Put("/presence", router.handler.UpdatePresence)
		r.Post("/presence/app-state", router.handler.AppState)
		r.Get("/presence/{userID}", router.handler.GetPresence)

		r.Route("/monitoring", func(r chi.Router) {
			r.Get("/dashboard", router.handler.MonitoringDashboard)
			r.Post("/events", router.handler.MonitoringEvent)
			r.Get("/alerts", router.handler.ListAlerts)
			r.Post("/alerts", router.handler.RaiseAlert)
			r.Post("/alerts/{alertID}/acknowledge", router.handler.AcknowledgeAlert)
			r.Post("/alerts/{alertID}/resolve", router.handler.ResolveAlert)
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/banner", router.handler.GetBanner)
			r.Post("/banner/dismiss", router.handler.DismissBanner)
			r.Delete("/banner", router.handler.ResetBanner)
			r.Get("/accessibility", router.handler.GetAccessibility)
			r.Put("/accessibility", router.handler.SetAccessibility)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
