// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

// NewLocker returns a Redis locker when redisURL is set, otherwise an
// in-memory one.
func NewLocker(redisURL, prefix string) (Locker, error) {
	if redisURL == "" {
		return NewMemoryLocker(), nil
	}

	opts := DefaultRedisLockerOptions()
	opts.URL = redisURL
	if prefix != "" {
		opts.Prefix = prefix
	}
	return NewRedisLocker(opts)
}
