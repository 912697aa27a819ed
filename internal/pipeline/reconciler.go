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
	"github.com/olegiv/ocms-translator/internal/store"
)

const (
	reconcileLeaseKey     = "reconcile"
	reconcileLeaseTTL     = 5 * time.Minute
	defaultReconcileLimit = 50
)

// ReconcileResult summarizes a reconciliation sweep.
type ReconcileResult struct {
	Checked      int   `json:"checked"`
	Completed    int   `json:"completed"`
	Failed       int   `json:"failed"`
	EventsPruned int64 `json:"events_pruned"`
}

// Reconciler re-runs reassembly for jobs whose chunks are all translated but
// which never completed, such as after a failed document merge.
type Reconciler struct {
	queries        *store.Queries
	reassembler    *Reassembler
	locker         cache.Locker
	limit          int
	eventRetention time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewReconciler creates a Reconciler. A zero eventRetention keeps events forever.
func NewReconciler(queries *store.Queries, reassembler *Reassembler, locker cache.Locker, limit int, eventRetention time.Duration, logger *slog.Logger) *Reconciler {
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		queries:        queries,
		reassembler:    reassembler,
		locker:         locker,
		limit:          limit,
		eventRetention: eventRetention,
		logger:         logger,
		now:            time.Now,
	}
}

// Sweep reassembles stuck jobs and prunes old pipeline events.
func (r *Reconciler) Sweep(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	err := withLease(ctx, r.locker, reconcileLeaseKey, reconcileLeaseTTL, func() error {
		var err error
		result, err = r.sweep(ctx)
		return err
	})
	if errors.Is(err, ErrSweepInProgress) {
		r.logger.Debug("reconcile sweep skipped, another sweep holds the lease")
		return ReconcileResult{}, nil
	}
	return result, err
}

func (r *Reconciler) sweep(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	jobs, err := r.queries.ListReassemblableJobs(ctx, r.limit)
	if err != nil {
		return result, fmt.Errorf("listing reassemblable jobs: %w", err)
	}

	for _, job := range jobs {
		result.Checked++
		res, err := r.reassembler.Reassemble(ctx, ChunkCompletedEvent{
			TranslationJobID: job.ID,
			LanguageCode:     job.LanguageCode,
			DocumentID:       job.DocumentID,
		})
		if err != nil {
			result.Failed++
			continue
		}
		if res.Completed {
			result.Completed++
		}
	}

	if r.eventRetention > 0 {
		n, err := r.queries.DeleteEventsBefore(ctx, r.now().Add(-r.eventRetention))
		if err != nil {
			r.logger.Error("pruning pipeline events failed", "error", err)
		}
		result.EventsPruned = n
	}

	if result.Checked > 0 || result.EventsPruned > 0 {
		r.logger.Info("reconcile sweep finished",
			"checked", result.Checked,
			"completed", result.Completed,
			"failed", result.Failed,
			"events_pruned", result.EventsPruned)
	}
	return result, nil
}
