// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides short-lived leases that keep overlapping sweeps
// from running at the same time, in memory or in Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned when releasing a lease the caller does not hold.
var ErrNotHeld = errors.New("lease not held")

// Locker grants exclusive, expiring leases on string keys.
type Locker interface {
	// TryLock acquires key for ttl. It returns a token for Unlock and
	// false when someone else holds the lease.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Unlock releases key if token still owns it.
	Unlock(ctx context.Context, key, token string) error

	// Close releases backend resources.
	Close() error
}
