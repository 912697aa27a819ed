// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/olegiv/ocms-translator/internal/cache"
)

// ErrSweepInProgress is returned when another sweep holds the lease.
var ErrSweepInProgress = errors.New("sweep already in progress")

// withLease runs fn while holding key. A nil locker runs fn unguarded.
func withLease(ctx context.Context, locker cache.Locker, key string, ttl time.Duration, fn func() error) error {
	if locker == nil {
		return fn()
	}

	token, ok, err := locker.TryLock(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSweepInProgress
	}
	defer func() { _ = locker.Unlock(context.WithoutCancel(ctx), key, token) }()

	return fn()
}
