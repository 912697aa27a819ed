// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	claudeBaseURL    = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// claudeClient implements Provider for Anthropic Claude.
type claudeClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *resty.Client
}

func newClaudeClient(apiKey, model, baseURL string) *claudeClient {
	return &claudeClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resty.New().SetTimeout(httpTimeout),
	}
}

func (c *claudeClient) Name() string { return ProviderClaude }

func (c *claudeClient) Translate(ctx context.Context, req Request) (string, error) {
	body := map[string]any{
		"model":      c.model,
		"max_tokens": maxTokens,
		"system":     systemPrompt(req),
		"messages": []map[string]string{
			{"role": "user", "content": req.Text},
		},
		"temperature": temperature,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(body).
		Post(c.baseURL + "/messages")
	if err != nil {
		return "", &Error{Provider: ProviderClaude, Message: "request failed", Err: err}
	}
	if resp.IsError() {
		return "", statusError(ProviderClaude, resp.StatusCode(), resp.String())
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", &Error{Provider: ProviderClaude, StatusCode: resp.StatusCode(), Message: "malformed response", Err: err}
	}

	var sb strings.Builder
	for _, part := range result.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", emptyError(ProviderClaude)
	}
	return text, nil
}
