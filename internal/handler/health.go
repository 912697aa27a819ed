// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/olegiv/ocms-translator/internal/scheduler"
	"github.com/olegiv/ocms-translator/internal/store"
	"github.com/olegiv/ocms-translator/internal/version"
)

// Health status values
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *store.DB
	scheduler *scheduler.Scheduler
	providers []string
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler. sched may be nil.
func NewHealthHandler(db *store.DB, sched *scheduler.Scheduler, providers []string, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:        db,
		scheduler: sched,
		providers: providers,
		version:   info,
		startTime: time.Now(),
	}
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Uptime    string              `json:"uptime"`
	Version   string              `json:"version"`
	Checks    map[string]Check    `json:"checks"`
	Providers []string            `json:"providers"`
	Jobs      []scheduler.JobInfo `json:"jobs,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbCheck := h.checkDatabase(r.Context())
	providerCheck := h.checkProviders()

	status := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.String(),
		Checks: map[string]Check{
			"database":  dbCheck,
			"providers": providerCheck,
		},
		Providers: h.providers,
	}
	if status.Providers == nil {
		status.Providers = []string{}
	}
	if h.scheduler != nil {
		status.Jobs = h.scheduler.List()
	}

	code := http.StatusOK
	switch {
	case dbCheck.Status != statusHealthy:
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case providerCheck.Status != statusHealthy:
		status.Status = statusDegraded
	}
	writeJSON(w, code, status)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error()}
	}
	return Check{Status: statusHealthy, Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkProviders() Check {
	if len(h.providers) == 0 {
		return Check{Status: statusDegraded, Message: "no translation provider API keys configured"}
	}
	return Check{Status: statusHealthy}
}
