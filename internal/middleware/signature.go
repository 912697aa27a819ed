// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-translator/internal/invoker"
)

// MaxEventBodySize caps inbound event payloads.
const MaxEventBodySize = 4 << 20

// VerifySignature rejects requests whose body does not match the HMAC in
// the signature header. An empty secret disables the check.
func VerifySignature(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxEventBodySize))
			if err != nil {
				WriteAPIError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", nil)
				return
			}
			_ = r.Body.Close()

			sig := r.Header.Get(invoker.SignatureHeader)
			if sig == "" || !invoker.VerifySignature(body, sig, secret) {
				slog.Warn("rejected request with invalid signature", "path", r.URL.Path)
				WriteAPIError(w, http.StatusUnauthorized, "invalid_signature", "Missing or invalid request signature", nil)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
