// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application.
package model

import "time"

// Document is a blog post as seen by the translation pipeline.
// Only Translations is ever written by the pipeline.
type Document struct {
	ID           string                         `json:"id"`
	Title        string                         `json:"title"`
	Excerpt      string                         `json:"excerpt"`
	Content      string                         `json:"content"`
	Category     string                         `json:"category"`
	Translations map[string]DocumentTranslation `json:"translations,omitempty"`
	CreatedAt    time.Time                      `json:"created_at"`
	UpdatedAt    time.Time                      `json:"updated_at"`
}

// DocumentTranslation is one entry of a document's translation map.
type DocumentTranslation struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// SameTranslatableFields reports whether d and other carry identical
// title, excerpt, content and category.
func (d *Document) SameTranslatableFields(other *Document) bool {
	if d == nil || other == nil {
		return false
	}
	return d.Title == other.Title &&
		d.Excerpt == other.Excerpt &&
		d.Content == other.Content &&
		d.Category == other.Category
}
