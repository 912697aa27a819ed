// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/olegiv/ocms-translator/internal/model"
)

// Remote invocation constants
const (
	RemoteTimeout = 2 * time.Minute
	UserAgent     = "ocms-translator/1.0"
)

// RemoteWorker posts chunks to a translate-chunk endpoint on another instance.
type RemoteWorker struct {
	url    string
	secret string
	client *resty.Client
}

// NewRemoteWorker creates a RemoteWorker. Requests are signed when secret is set.
func NewRemoteWorker(url, secret string) *RemoteWorker {
	return &RemoteWorker{
		url:    url,
		secret: secret,
		client: resty.New().
			SetTimeout(RemoteTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", UserAgent),
	}
}

// ProcessChunk implements ChunkProcessor.
func (w *RemoteWorker) ProcessChunk(ctx context.Context, chunk model.TranslationChunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	req := w.client.R().SetContext(ctx).SetBody(payload)
	if w.secret != "" {
		req.SetHeader(SignatureHeader, GenerateSignature(payload, w.secret))
	}

	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		body := model.TruncateBytes(resp.String(), model.MaxErrorBodyLen)
		return fmt.Errorf("HTTP %d: %s: %s", resp.StatusCode(), http.StatusText(resp.StatusCode()), body)
	}
	return nil
}
