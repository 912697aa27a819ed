// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/pipeline"
)

// EventsHandler receives document and chunk events.
type EventsHandler struct {
	creator     *pipeline.JobCreator
	reassembler *pipeline.Reassembler
	worker      *pipeline.Worker
	logger      *slog.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(creator *pipeline.JobCreator, reassembler *pipeline.Reassembler, worker *pipeline.Worker, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		creator:     creator,
		reassembler: reassembler,
		worker:      worker,
		logger:      logger,
	}
}

// DocumentChanged handles POST /events/document-changed.
func (h *EventsHandler) DocumentChanged(w http.ResponseWriter, r *http.Request) {
	var ev pipeline.DocumentChangedEvent
	if !decodeJSON(w, r, &ev) {
		return
	}

	result, err := h.creator.HandleDocumentChanged(r.Context(), ev)
	if err != nil && result.Jobs == 0 {
		writeError(w, h.logger, err)
		return
	}

	// jobs exist even if some languages failed to seed
	resp := map[string]any{"success": err == nil, "result": result}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChunkCompleted handles POST /events/chunk-completed.
func (h *EventsHandler) ChunkCompleted(w http.ResponseWriter, r *http.Request) {
	var ev pipeline.ChunkCompletedEvent
	if !decodeJSON(w, r, &ev) {
		return
	}

	result, err := h.reassembler.Reassemble(r.Context(), ev)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

// TranslateChunk handles POST /workers/translate-chunk.
func (h *EventsHandler) TranslateChunk(w http.ResponseWriter, r *http.Request) {
	var chunk model.TranslationChunk
	if !decodeJSON(w, r, &chunk) {
		return
	}
	if err := pipeline.ValidateChunk(chunk); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.worker.Run(r.Context(), chunk)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}
