// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// Scheduled job names exposed as manual triggers.
const (
	JobDispatch  = "dispatch"
	JobReconcile = "reconcile"
)

// Trigger runs a scheduled job on demand.
type Trigger interface {
	TriggerNow(ctx context.Context, name string) (any, error)
}

// TriggersHandler runs sweeps outside their schedule.
type TriggersHandler struct {
	trigger Trigger
	logger  *slog.Logger
}

// NewTriggersHandler creates a new triggers handler.
func NewTriggersHandler(trigger Trigger, logger *slog.Logger) *TriggersHandler {
	return &TriggersHandler{trigger: trigger, logger: logger}
}

// Dispatch handles POST /triggers/dispatch.
func (h *TriggersHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, JobDispatch)
}

// Reconcile handles POST /triggers/reconcile.
func (h *TriggersHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, JobReconcile)
}

func (h *TriggersHandler) run(w http.ResponseWriter, r *http.Request, name string) {
	result, err := h.trigger.TriggerNow(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}
