// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipeline implements the chunked translation pipeline: seeding jobs
// from document changes, dispatching chunks, translating them and
// reassembling finished languages into the document.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/ocms-translator/internal/model"
)

// Document change types
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ValidationError reports a malformed inbound event.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DocumentChangedEvent is delivered when a blog post is inserted or updated.
type DocumentChangedEvent struct {
	Type      string          `json:"type,omitempty"`
	Record    *model.Document `json:"record"`
	OldRecord *model.Document `json:"old_record,omitempty"`
}

// Validate checks the event before any state is touched.
func (e *DocumentChangedEvent) Validate() error {
	e.Type = strings.ToUpper(strings.TrimSpace(e.Type))
	switch e.Type {
	case "", ChangeInsert, ChangeUpdate:
	case ChangeDelete:
		return nil
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown change type %q", e.Type)}
	}
	if e.Record == nil {
		return &ValidationError{Field: "record", Message: "is required"}
	}
	if strings.TrimSpace(e.Record.ID) == "" {
		return &ValidationError{Field: "record.id", Message: "is required"}
	}
	return nil
}

// Unchanged reports whether an update left every translatable field as it was.
func (e *DocumentChangedEvent) Unchanged() bool {
	return e.OldRecord != nil && e.Record.SameTranslatableFields(e.OldRecord)
}

// ChunkCompletedEvent asks for a reassembly check of one job and language.
type ChunkCompletedEvent struct {
	TranslationJobID string `json:"translation_job_id"`
	LanguageCode     string `json:"language_code"`
	DocumentID       string `json:"document_id"`
}

// Validate checks that every field is present.
func (e ChunkCompletedEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.TranslationJobID) == "":
		return &ValidationError{Field: "translation_job_id", Message: "is required"}
	case strings.TrimSpace(e.LanguageCode) == "":
		return &ValidationError{Field: "language_code", Message: "is required"}
	case strings.TrimSpace(e.DocumentID) == "":
		return &ValidationError{Field: "document_id", Message: "is required"}
	}
	return nil
}

// ValidateChunk checks a chunk payload received by the translate-chunk endpoint.
func ValidateChunk(c model.TranslationChunk) error {
	switch {
	case c.ID == "":
		return &ValidationError{Field: "id", Message: "is required"}
	case c.TranslationJobID == "":
		return &ValidationError{Field: "translation_job_id", Message: "is required"}
	case c.DocumentID == "":
		return &ValidationError{Field: "document_id", Message: "is required"}
	case c.LanguageCode == "":
		return &ValidationError{Field: "language_code", Message: "is required"}
	case !model.IsValidChunkType(c.ChunkType):
		return &ValidationError{Field: "chunk_type", Message: fmt.Sprintf("unknown chunk type %q", c.ChunkType)}
	}
	return nil
}
