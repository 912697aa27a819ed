// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package provider wraps LLM translation backends behind a single interface
// and tries them in priority order.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/ocms-translator/internal/model"
)

// Provider IDs
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// DefaultOrder is the default waterfall priority.
var DefaultOrder = []string{ProviderGroq, ProviderGemini, ProviderOpenAI, ProviderClaude}

const (
	httpTimeout = 120 * time.Second
	temperature = 0.3
	maxTokens   = 4096
)

// Request is a single translation request.
type Request struct {
	Text         string
	LanguageName string // English display name of the target language
	HTML         bool
}

// Provider translates text with one external LLM API.
type Provider interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}

// Error is a normalized provider failure.
type Error struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the provider rejected the call for quota reasons.
func (e *Error) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is a rate-limit-class provider error.
func IsRateLimited(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.RateLimited()
}

// statusError builds an Error from a non-2xx HTTP response.
func statusError(provider string, status int, body string) *Error {
	body = model.TruncateBytes(body, model.MaxErrorBodyLen)
	msg := http.StatusText(status)
	if body != "" {
		msg += ": " + body
	}
	return &Error{Provider: provider, StatusCode: status, Message: msg}
}

// ErrEmptyTranslation is returned when a provider responds without text.
var ErrEmptyTranslation = errors.New("empty translation")

func emptyError(provider string) *Error {
	return &Error{Provider: provider, Message: "no text in response", Err: ErrEmptyTranslation}
}

// systemPrompt builds the translator instructions for the target language.
func systemPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional translator for a sports news blog. "+
		"Translate the text provided by the user from English into %s.\n", req.LanguageName)
	sb.WriteString("Keep names of players, teams, competitions and venues as they are commonly written in the target language.\n")
	if req.HTML {
		sb.WriteString("The text contains HTML markup. Preserve every tag and attribute exactly as given " +
			"and translate only the human-readable text between tags.\n")
	}
	sb.WriteString("Respond with the translation only, without quotes, notes or explanations.")
	return sb.String()
}
