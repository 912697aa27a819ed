// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Translation job statuses
const (
	JobStatusPending    = "pending"     // needs chunking
	JobStatusInProgress = "in_progress" // chunks seeded, translation running
	JobStatusCompleted  = "completed"
	JobStatusRetry      = "retry"
)

// Translation chunk statuses
const (
	ChunkStatusPending    = "pending"
	ChunkStatusProcessing = "processing"
	ChunkStatusCompleted  = "completed"
	ChunkStatusRetry      = "retry"
)

// Chunk types, in the order their chunks are indexed within a job.
const (
	ChunkTypeTitle   = "title"
	ChunkTypeExcerpt = "excerpt"
	ChunkTypeContent = "content"
)

// TranslationJob tracks translating one document into one language.
// At most one job exists per (DocumentID, LanguageCode).
type TranslationJob struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	LanguageCode    string    `json:"language_code"`
	Status          string    `json:"status"`
	TotalChunks     int       `json:"total_chunks"`
	ChunksCompleted int       `json:"chunks_completed"`
	Attempts        int       `json:"attempts"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsCompleted returns true if the job has been reassembled.
func (j *TranslationJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// TranslationChunk is one bounded segment of a document field in one language.
// Unique on (TranslationJobID, LanguageCode, ChunkIndex).
type TranslationChunk struct {
	ID               string    `json:"id"`
	TranslationJobID string    `json:"translation_job_id"`
	DocumentID       string    `json:"document_id"`
	LanguageCode     string    `json:"language_code"`
	ChunkIndex       int       `json:"chunk_index"`
	ChunkType        string    `json:"chunk_type"`
	OriginalText     string    `json:"original_text"`
	TranslatedText   string    `json:"translated_text,omitempty"`
	Status           string    `json:"status"`
	Attempts         int       `json:"attempts"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsHTML reports whether the chunk text may contain markup.
func (c *TranslationChunk) IsHTML() bool {
	return c.ChunkType == ChunkTypeContent
}

// IsValidChunkType checks if the given chunk type is known.
func IsValidChunkType(t string) bool {
	switch t {
	case ChunkTypeTitle, ChunkTypeExcerpt, ChunkTypeContent:
		return true
	}
	return false
}
