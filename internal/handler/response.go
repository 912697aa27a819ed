// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-translator/internal/middleware"
	"github.com/olegiv/ocms-translator/internal/pipeline"
	"github.com/olegiv/ocms-translator/internal/provider"
	"github.com/olegiv/ocms-translator/internal/scheduler"
)

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxEventBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteAPIError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", nil)
		return false
	}
	return true
}

// writeError maps pipeline errors to HTTP responses.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *pipeline.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.WriteAPIError(w, http.StatusBadRequest, "validation_failed", ve.Error(),
			map[string]string{ve.Field: ve.Message})
	case errors.Is(err, scheduler.ErrTriggerLimited):
		middleware.WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", err.Error(), nil)
	case errors.Is(err, scheduler.ErrJobNotFound):
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, provider.ErrNoProviders):
		logger.Error("no translation providers configured", "category", "config")
		middleware.WriteAPIError(w, http.StatusInternalServerError, "no_providers", err.Error(), nil)
	default:
		logger.Error("request failed", "error", err)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}
