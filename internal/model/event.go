// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
	"unicode/utf8"
)

// MaxErrorBodyLen caps response bodies quoted in error messages.
const MaxErrorBodyLen = 500

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryProvider = "provider"
	EventCategoryChunk    = "chunk"
	EventCategoryJob      = "job"
	EventCategoryDispatch = "dispatch"
	EventCategoryConfig   = "config"
	EventCategorySystem   = "system"
)

// Event represents a pipeline event log entry.
type Event struct {
	ID        string
	Level     string
	Category  string
	Message   string
	Metadata  string // JSON string
	CreatedAt time.Time
}

// TruncateBytes shortens s to at most n bytes without splitting a UTF-8
// sequence.
func TruncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
