// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Waterfall defaults
const (
	DefaultAttemptsPerProvider = 2
	DefaultRateLimitBackoff    = 5 * time.Second
	DefaultErrorBackoff        = 2 * time.Second
)

// ErrNoProviders is returned when the waterfall has nothing to try.
var ErrNoProviders = errors.New("no translation providers configured")

// AllProvidersFailedError is returned when every provider and attempt failed.
type AllProvidersFailedError struct {
	Last error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all translation providers failed: %v", e.Last)
}

func (e *AllProvidersFailedError) Unwrap() error {
	return e.Last
}

// Result is a successful waterfall translation.
type Result struct {
	Text     string
	Provider string
}

// WaterfallConfig holds waterfall retry configuration.
type WaterfallConfig struct {
	AttemptsPerProvider int
	RateLimitBackoff    time.Duration // multiplied by the attempt number
	ErrorBackoff        time.Duration // multiplied by the attempt number
}

// DefaultWaterfallConfig returns the default retry policy.
func DefaultWaterfallConfig() WaterfallConfig {
	return WaterfallConfig{
		AttemptsPerProvider: DefaultAttemptsPerProvider,
		RateLimitBackoff:    DefaultRateLimitBackoff,
		ErrorBackoff:        DefaultErrorBackoff,
	}
}

// Waterfall tries providers in priority order until one returns a translation.
type Waterfall struct {
	providers []Provider
	cfg       WaterfallConfig
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewWaterfall creates a waterfall over providers, tried in slice order.
func NewWaterfall(providers []Provider, cfg WaterfallConfig, logger *slog.Logger) *Waterfall {
	if cfg.AttemptsPerProvider <= 0 {
		cfg.AttemptsPerProvider = DefaultAttemptsPerProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Waterfall{
		providers: providers,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Len returns the number of configured providers.
func (w *Waterfall) Len() int {
	return len(w.providers)
}

// Names returns the provider names in priority order.
func (w *Waterfall) Names() []string {
	names := make([]string, 0, len(w.providers))
	for _, p := range w.providers {
		names = append(names, p.Name())
	}
	return names
}

// Translate runs req through the providers. A rate-limited provider is
// abandoned after its backoff; other failures are retried on the same
// provider until its attempts are used up.
func (w *Waterfall) Translate(ctx context.Context, req Request) (Result, error) {
	if len(w.providers) == 0 {
		return Result{}, ErrNoProviders
	}

	var lastErr error
	for _, p := range w.providers {
		for attempt := 1; attempt <= w.cfg.AttemptsPerProvider; attempt++ {
			text, err := p.Translate(ctx, req)
			if err == nil && text != "" {
				w.logger.Debug("translation succeeded", "provider", p.Name(), "attempt", attempt)
				return Result{Text: text, Provider: p.Name()}, nil
			}
			if err == nil {
				err = emptyError(p.Name())
			}
			lastErr = err

			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}

			if IsRateLimited(err) {
				w.logger.Warn("provider rate limited, falling through",
					"category", "provider", "provider", p.Name(), "attempt", attempt)
				if err := w.sleep(ctx, w.cfg.RateLimitBackoff*time.Duration(attempt)); err != nil {
					return Result{}, err
				}
				break
			}

			w.logger.Warn("provider translation failed",
				"category", "provider", "provider", p.Name(), "attempt", attempt, "error", err)
			if attempt < w.cfg.AttemptsPerProvider {
				if err := w.sleep(ctx, w.cfg.ErrorBackoff*time.Duration(attempt)); err != nil {
					return Result{}, err
				}
			}
		}
	}

	return Result{}, &AllProvidersFailedError{Last: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
