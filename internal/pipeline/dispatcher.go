// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-translator/internal/cache"
	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/store"
)

// Dispatcher defaults
const (
	DefaultBatchSize      = 20
	DefaultStallThreshold = 2 * time.Minute
	dispatchLeaseKey      = "dispatch"
)

// Invoker starts work on a claimed chunk without waiting for it.
type Invoker interface {
	Invoke(ctx context.Context, chunk model.TranslationChunk) error
}

// DispatcherConfig holds sweep settings.
type DispatcherConfig struct {
	BatchSize      int
	StallThreshold time.Duration
}

// Dispatcher claims a bounded batch of chunks per sweep and hands each to
// the invoker.
type Dispatcher struct {
	queries *store.Queries
	invoker Invoker
	locker  cache.Locker
	cfg     DispatcherConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. locker may be nil.
func NewDispatcher(queries *store.Queries, invoker Invoker, locker cache.Locker, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.StallThreshold <= 0 {
		cfg.StallThreshold = DefaultStallThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queries: queries,
		invoker: invoker,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep selects pending chunks first, then retry or stalled ones, claims
// each and invokes the worker. It returns the number of chunks triggered.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	var triggered int
	err := withLease(ctx, d.locker, dispatchLeaseKey, d.cfg.StallThreshold, func() error {
		var err error
		triggered, err = d.sweep(ctx)
		return err
	})
	if errors.Is(err, ErrSweepInProgress) {
		d.logger.Debug("dispatch sweep skipped, another sweep holds the lease")
		return 0, nil
	}
	return triggered, err
}

func (d *Dispatcher) sweep(ctx context.Context) (int, error) {
	staleBefore := d.now().Add(-d.cfg.StallThreshold)

	chunks, err := d.queries.ListPendingChunks(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing pending chunks: %w", err)
	}
	if remaining := d.cfg.BatchSize - len(chunks); remaining > 0 {
		retry, err := d.queries.ListRetryableChunks(ctx, staleBefore, remaining)
		if err != nil {
			return 0, fmt.Errorf("listing retryable chunks: %w", err)
		}
		chunks = append(chunks, retry...)
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	triggered := 0
	for _, chunk := range chunks {
		claimed, err := d.queries.ClaimChunk(ctx, chunk.ID, staleBefore)
		if err != nil {
			d.logger.Error("chunk claim failed", "chunk_id", chunk.ID, "error", err)
			continue
		}
		if !claimed {
			d.logger.Debug("chunk claimed elsewhere, skipping", "chunk_id", chunk.ID)
			continue
		}
		chunk.Status = model.ChunkStatusProcessing
		chunk.Attempts++

		if err := d.invoker.Invoke(ctx, chunk); err != nil {
			d.logger.Warn("worker invoke failed",
				"category", model.EventCategoryDispatch,
				"chunk_id", chunk.ID,
				"error", err)
			// hand the chunk straight back to the retry queue instead of waiting for the stall timeout
			if ferr := d.queries.FailChunk(ctx, chunk.ID, "invoke failed: "+err.Error()); ferr != nil {
				d.logger.Error("chunk release failed", "chunk_id", chunk.ID, "error", ferr)
			}
			continue
		}
		triggered++
	}

	d.logger.Info("dispatch sweep finished", "selected", len(chunks), "triggered", triggered)
	return triggered, nil
}
