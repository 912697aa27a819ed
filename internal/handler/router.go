// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP surface of the translation pipeline:
// inbound events, manual triggers, the chunk worker endpoint and
// progress views.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/ocms-translator/internal/middleware"
)

// Trigger rate limits per client IP.
const (
	triggerRPS   = 1.0
	triggerBurst = 5
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Events   *EventsHandler
	Triggers *TriggersHandler
	Jobs     *JobsHandler
	Health   *HealthHandler
}

// NewRouter builds the HTTP router. Event, trigger and worker endpoints
// require a valid signature when secret is set.
func NewRouter(h Handlers, secret string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)

	r.Get("/health", h.Health.Health)
	r.Get("/jobs", h.Jobs.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifySignature(secret))

		r.Post("/events/document-changed", h.Events.DocumentChanged)
		r.Post("/events/chunk-completed", h.Events.ChunkCompleted)
		r.Post("/workers/translate-chunk", h.Events.TranslateChunk)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRateLimiter(triggerRPS, triggerBurst).Middleware())
			r.Post("/triggers/dispatch", h.Triggers.Dispatch)
			r.Post("/triggers/reconcile", h.Triggers.Reconcile)
		})
	})

	logger.Debug("routes registered", "signed", secret != "")
	return r
}
