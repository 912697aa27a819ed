// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiClient implements Provider for Google Gemini.
type geminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *resty.Client
}

func newGeminiClient(apiKey, model, baseURL string) *geminiClient {
	return &geminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resty.New().SetTimeout(httpTimeout),
	}
}

func (c *geminiClient) Name() string { return ProviderGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

func (c *geminiClient) Translate(ctx context.Context, req Request) (string, error) {
	body := map[string]any{
		"system_instruction": geminiContent{Parts: []geminiPart{{Text: systemPrompt(req)}}},
		"contents": []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Text}}},
		},
		"generationConfig": map[string]any{
			"temperature":     temperature,
			"maxOutputTokens": maxTokens,
		},
	}

	endpoint := c.baseURL + "/models/" + url.PathEscape(c.model) + ":generateContent"
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", c.apiKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return "", &Error{Provider: ProviderGemini, Message: "request failed", Err: err}
	}
	if resp.IsError() {
		return "", statusError(ProviderGemini, resp.StatusCode(), resp.String())
	}

	var result struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", &Error{Provider: ProviderGemini, StatusCode: resp.StatusCode(), Message: "malformed response", Err: err}
	}
	if len(result.Candidates) == 0 {
		return "", emptyError(ProviderGemini)
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", emptyError(ProviderGemini)
	}
	return text, nil
}
