// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olegiv/ocms-translator/internal/invoker"
)

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})
}

func TestVerifySignature(t *testing.T) {
	const secret = "a-very-secret-value"
	body := `{"record":{"id":"1"}}`

	tests := []struct {
		name      string
		signature string
		wantCode  int
	}{
		{"valid", invoker.GenerateSignature([]byte(body), secret), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", invoker.GenerateSignature([]byte(body), "other-secret-value"), http.StatusUnauthorized},
		{"garbage", "abc", http.StatusUnauthorized},
	}

	h := VerifySignature(secret)(echoHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events/document-changed", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(invoker.SignatureHeader, tt.signature)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("Status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && rr.Body.String() != body {
				t.Errorf("Body = %q, want the original body passed through", rr.Body.String())
			}
			if tt.wantCode == http.StatusUnauthorized {
				var apiErr APIError
				if err := json.Unmarshal(rr.Body.Bytes(), &apiErr); err != nil {
					t.Fatalf("decode error: %v", err)
				}
				if apiErr.Error.Code != "invalid_signature" {
					t.Errorf("code = %q, want invalid_signature", apiErr.Error.Code)
				}
			}
		})
	}
}

func TestVerifySignatureDisabled(t *testing.T) {
	h := VerifySignature("")(echoHandler())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware()(echoHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/triggers/dispatch", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}

	// another client has its own budget
	req := httptest.NewRequest(http.MethodPost, "/triggers/dispatch", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("second client status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"bare-host", "bare-host"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
