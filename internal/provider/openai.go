// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"
)

// chatClient implements Provider for OpenAI-compatible chat completion APIs
// (OpenAI and Groq).
type chatClient struct {
	name   string
	model  string
	client openai.Client
}

func newChatClient(name, apiKey, model, baseURL string, httpClient *http.Client) *chatClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0), // the waterfall owns retries
		option.WithRequestTimeout(httpTimeout),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &chatClient{
		name:   name,
		model:  model,
		client: openai.NewClient(opts...),
	}
}

func (c *chatClient) Name() string { return c.name }

func (c *chatClient) Translate(ctx context.Context, req Request) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req)),
			openai.UserMessage(req.Text),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &Error{
				Provider:   c.name,
				StatusCode: apiErr.StatusCode,
				Message:    http.StatusText(apiErr.StatusCode),
				Err:        err,
			}
		}
		return "", &Error{Provider: c.name, Message: "request failed", Err: err}
	}

	if len(completion.Choices) == 0 {
		return "", emptyError(c.name)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", emptyError(c.name)
	}
	return text, nil
}
