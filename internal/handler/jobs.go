// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/ocms-translator/internal/middleware"
	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/store"
)

// JobsHandler reports translation progress.
type JobsHandler struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(queries *store.Queries, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{queries: queries, logger: logger}
}

// JobsResponse is the progress view of one document.
type JobsResponse struct {
	DocumentID string                 `json:"document_id"`
	Total      int                    `json:"total"`
	Completed  int                    `json:"completed"`
	Jobs       []model.TranslationJob `json:"jobs"`
}

// List handles GET /jobs?document_id=.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimSpace(r.URL.Query().Get("document_id"))
	if docID == "" {
		middleware.WriteAPIError(w, http.StatusBadRequest, "validation_failed", "document_id is required",
			map[string]string{"document_id": "is required"})
		return
	}

	jobs, err := h.queries.ListJobsByDocument(r.Context(), docID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if jobs == nil {
		jobs = []model.TranslationJob{}
	}

	resp := JobsResponse{DocumentID: docID, Total: len(jobs), Jobs: jobs}
	for i := range jobs {
		if jobs[i].IsCompleted() {
			resp.Completed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
