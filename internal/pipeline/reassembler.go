// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/store"
)

// Separators used when joining translated chunks of one field.
const (
	contentSeparator = "\n\n"
	textSeparator    = " "
)

// ReassemblyResult reports the state of a job after a reassembly check.
type ReassemblyResult struct {
	JobID           string `json:"job_id"`
	LanguageCode    string `json:"language_code"`
	TotalChunks     int    `json:"total_chunks"`
	ChunksCompleted int    `json:"chunks_completed"`
	Completed       bool   `json:"completed"`
}

// Reassembler merges a language into the document once all of its chunks
// are translated.
type Reassembler struct {
	queries *store.Queries
	logger  *slog.Logger
}

// errJobReseeded reports that a job changed under a reassembly, either
// reseeded by a newer document version or completed by another run.
var errJobReseeded = errors.New("job reseeded during reassembly")

// NewReassembler creates a Reassembler. Translated content is stripped of
// any markup the source content did not carry before it is stored.
func NewReassembler(queries *store.Queries, logger *slog.Logger) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reassembler{
		queries: queries,
		logger:  logger,
	}
}

// Reassemble checks job completion and, when every chunk is done, writes
// the translation into the document and completes the job.
func (r *Reassembler) Reassemble(ctx context.Context, ev ChunkCompletedEvent) (ReassemblyResult, error) {
	if err := ev.Validate(); err != nil {
		return ReassemblyResult{}, err
	}

	job, err := r.queries.GetJob(ctx, ev.TranslationJobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ReassemblyResult{}, &ValidationError{Field: "translation_job_id", Message: "unknown job"}
		}
		return ReassemblyResult{}, fmt.Errorf("loading job %s: %w", ev.TranslationJobID, err)
	}
	if job.LanguageCode != ev.LanguageCode || job.DocumentID != ev.DocumentID {
		return ReassemblyResult{}, &ValidationError{Field: "language_code", Message: "does not match job"}
	}

	result := ReassemblyResult{
		JobID:           job.ID,
		LanguageCode:    job.LanguageCode,
		TotalChunks:     job.TotalChunks,
		ChunksCompleted: job.ChunksCompleted,
	}
	switch job.Status {
	case model.JobStatusCompleted:
		result.Completed = true
		return result, nil
	case model.JobStatusPending:
		// chunks not seeded yet
		return result, nil
	}

	completed, err := r.queries.CountChunks(ctx, job.ID, job.LanguageCode, model.ChunkStatusCompleted)
	if err != nil {
		return result, fmt.Errorf("counting completed chunks of job %s: %w", job.ID, err)
	}
	result.ChunksCompleted = completed

	if completed < job.TotalChunks {
		if err := r.queries.UpdateJobProgress(ctx, job.ID, completed); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := r.finalize(ctx, job); err != nil {
		if errors.Is(err, errJobReseeded) {
			r.logger.Debug("job changed during reassembly, leaving it to its new chunks",
				"job_id", job.ID,
				"language", job.LanguageCode)
			return result, nil
		}
		r.logger.Error("reassembly failed",
			"category", model.EventCategoryJob,
			"job_id", job.ID,
			"document_id", job.DocumentID,
			"language", job.LanguageCode,
			"error", err)
		if rerr := r.queries.MarkJobRetry(ctx, job.ID, err.Error()); rerr != nil {
			return result, fmt.Errorf("%w (marking job for retry: %v)", err, rerr)
		}
		return result, err
	}

	result.ChunksCompleted = job.TotalChunks
	result.Completed = true
	r.logger.Info("translation job completed",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"language", job.LanguageCode,
		"chunks", job.TotalChunks)
	return result, nil
}

func (r *Reassembler) finalize(ctx context.Context, job model.TranslationJob) error {
	return r.queries.InTx(ctx, func(q *store.Queries) error {
		chunks, err := q.ListCompletedChunks(ctx, job.ID, job.LanguageCode)
		if err != nil {
			return fmt.Errorf("loading completed chunks: %w", err)
		}

		doc, err := q.GetDocument(ctx, job.DocumentID)
		if err != nil {
			return fmt.Errorf("loading document: %w", err)
		}

		ok, err := q.CompleteJob(ctx, job.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errJobReseeded
		}

		tr := Assemble(chunks)
		tr.Content = sanitizeContent(sourceContent(chunks), tr.Content)
		tr.Category = doc.Category
		return q.MergeTranslation(ctx, job.DocumentID, job.LanguageCode, tr)
	})
}

// Assemble concatenates translated chunks per field in index order.
// chunks must already be sorted by index.
func Assemble(chunks []model.TranslationChunk) model.DocumentTranslation {
	var title, excerpt, content []string
	for _, c := range chunks {
		switch c.ChunkType {
		case model.ChunkTypeTitle:
			title = append(title, c.TranslatedText)
		case model.ChunkTypeExcerpt:
			excerpt = append(excerpt, c.TranslatedText)
		case model.ChunkTypeContent:
			content = append(content, c.TranslatedText)
		}
	}
	return model.DocumentTranslation{
		Title:   strings.Join(title, textSeparator),
		Excerpt: strings.Join(excerpt, textSeparator),
		Content: strings.Join(content, contentSeparator),
	}
}
