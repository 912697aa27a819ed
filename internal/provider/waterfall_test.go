// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays a scripted sequence of responses.
type fakeProvider struct {
	name    string
	replies []fakeReply
	calls   int
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Translate(_ context.Context, _ Request) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i].text, f.replies[i].err
}

func newTestWaterfall(providers ...Provider) (*Waterfall, *[]time.Duration) {
	w := NewWaterfall(providers, DefaultWaterfallConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	var sleeps []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return w, &sleeps
}

func TestWaterfallFirstProviderSucceeds(t *testing.T) {
	a := &fakeProvider{name: "a", replies: []fakeReply{{text: "hola"}}}
	b := &fakeProvider{name: "b", replies: []fakeReply{{text: "never"}}}
	w, sleeps := newTestWaterfall(a, b)

	res, err := w.Translate(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "hola", Provider: "a"}, res)
	assert.Equal(t, 0, b.calls)
	assert.Empty(t, *sleeps)
}

func TestWaterfallRateLimitFallsThrough(t *testing.T) {
	a := &fakeProvider{name: "a", replies: []fakeReply{{err: statusError("a", 429, "")}}}
	b := &fakeProvider{name: "b", replies: []fakeReply{{text: "bonjour"}}}
	w, sleeps := newTestWaterfall(a, b)

	res, err := w.Translate(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	assert.Equal(t, "bonjour", res.Text)
	assert.Equal(t, 1, a.calls, "rate-limited provider must not be retried")
	assert.Equal(t, []time.Duration{5 * time.Second}, *sleeps)
}

func TestWaterfallRetriesSameProvider(t *testing.T) {
	a := &fakeProvider{name: "a", replies: []fakeReply{
		{err: statusError("a", 500, "")},
		{text: "hallo"},
	}}
	w, sleeps := newTestWaterfall(a)

	res, err := w.Translate(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Provider)
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *sleeps)
}

func TestWaterfallEmptyTextIsFailure(t *testing.T) {
	a := &fakeProvider{name: "a", replies: []fakeReply{{text: ""}}}
	b := &fakeProvider{name: "b", replies: []fakeReply{{text: "ciao"}}}
	w, _ := newTestWaterfall(a, b)

	res, err := w.Translate(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	assert.Equal(t, 2, a.calls)
}

func TestWaterfallAllFail(t *testing.T) {
	last := statusError("b", 503, "down")
	a := &fakeProvider{name: "a", replies: []fakeReply{{err: statusError("a", 429, "")}}}
	b := &fakeProvider{name: "b", replies: []fakeReply{{err: last}}}
	w, sleeps := newTestWaterfall(a, b)

	_, err := w.Translate(context.Background(), Request{Text: "hi"})
	var allErr *AllProvidersFailedError
	require.ErrorAs(t, err, &allErr)
	assert.ErrorIs(t, err, error(last))
	assert.Equal(t, 2, b.calls)
	// 5s for a's rate limit, 2s between b's attempts, none after b's last attempt
	assert.Equal(t, []time.Duration{5 * time.Second, 2 * time.Second}, *sleeps)
}

func TestWaterfallNoProviders(t *testing.T) {
	w, _ := newTestWaterfall()
	_, err := w.Translate(context.Background(), Request{Text: "hi"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestWaterfallContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeProvider{name: "a", replies: []fakeReply{{err: errors.New("boom")}}}
	w, _ := newTestWaterfall(a)
	w.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := w.Translate(ctx, Request{Text: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, a.calls)
}

func TestWaterfallNames(t *testing.T) {
	w, _ := newTestWaterfall(&fakeProvider{name: "x"}, &fakeProvider{name: "y"})
	assert.Equal(t, []string{"x", "y"}, w.Names())
	assert.Equal(t, 2, w.Len())
}
