// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-translator/internal/chunker"
	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/store"
)

// CreateResult summarizes one Job Creator run.
type CreateResult struct {
	Skipped bool `json:"skipped"`
	Jobs    int  `json:"jobs"`
	Chunks  int  `json:"chunks"` // per language
}

// JobCreator seeds translation jobs and chunks for changed documents.
type JobCreator struct {
	queries   *store.Queries
	languages []model.Language
	maxLen    int
	logger    *slog.Logger
}

// NewJobCreator creates a JobCreator for the given target languages.
func NewJobCreator(queries *store.Queries, languages []model.Language, maxLen int, logger *slog.Logger) *JobCreator {
	if maxLen <= 0 {
		maxLen = chunker.DefaultMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobCreator{
		queries:   queries,
		languages: languages,
		maxLen:    maxLen,
		logger:    logger,
	}
}

// HandleDocumentChanged validates the event and reseeds jobs unless the
// update did not touch any translatable field.
func (c *JobCreator) HandleDocumentChanged(ctx context.Context, ev DocumentChangedEvent) (CreateResult, error) {
	if err := ev.Validate(); err != nil {
		return CreateResult{}, err
	}
	if ev.Type == ChangeDelete {
		// jobs and chunks cascade with the document row
		return CreateResult{Skipped: true}, nil
	}
	if ev.Unchanged() {
		c.logger.Debug("translatable fields unchanged, skipping", "document_id", ev.Record.ID)
		return CreateResult{Skipped: true}, nil
	}
	return c.CreateJobs(ctx, *ev.Record)
}

// CreateJobs stores doc's canonical fields, resets every language job of it
// and seeds its chunks. Re-running it for the same document content is
// idempotent.
func (c *JobCreator) CreateJobs(ctx context.Context, doc model.Document) (CreateResult, error) {
	segments := chunker.Segments(doc.Title, doc.Excerpt, doc.Content, c.maxLen)

	jobIDs := make(map[string]string, len(c.languages))
	err := c.queries.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.UpsertDocument(ctx, doc); err != nil {
			return err
		}
		for _, lang := range c.languages {
			id, err := q.UpsertJob(ctx, doc.ID, lang.Code)
			if err != nil {
				return err
			}
			jobIDs[lang.Code] = id
		}
		if len(segments) == 0 {
			// stale translations of the previous content go with it
			if err := q.ClearTranslations(ctx, doc.ID); err != nil {
				return err
			}
			return q.CompleteAllJobsForDocument(ctx, doc.ID)
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("creating jobs for document %s: %w", doc.ID, err)
	}

	result := CreateResult{Jobs: len(jobIDs), Chunks: len(segments)}
	if len(segments) == 0 {
		c.logger.Info("document has nothing to translate, jobs completed", "document_id", doc.ID)
		return result, nil
	}

	// a language that fails to seed stays pending until the next change
	var errs []error
	for _, lang := range c.languages {
		jobID := jobIDs[lang.Code]
		if err := c.seedChunks(ctx, doc.ID, jobID, lang.Code, segments); err != nil {
			c.logger.Error("chunk seeding failed",
				"category", model.EventCategoryJob,
				"document_id", doc.ID,
				"job_id", jobID,
				"language", lang.Code,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", lang.Code, err))
		}
	}

	c.logger.Info("translation jobs seeded",
		"document_id", doc.ID,
		"languages", len(c.languages),
		"chunks_per_language", len(segments),
		"failed", len(errs))

	if len(errs) > 0 {
		return result, fmt.Errorf("seeding chunks for document %s: %w", doc.ID, errors.Join(errs...))
	}
	return result, nil
}

func (c *JobCreator) seedChunks(ctx context.Context, docID, jobID, lang string, segments []chunker.Segment) error {
	return c.queries.InTx(ctx, func(q *store.Queries) error {
		for _, seg := range segments {
			err := q.UpsertChunk(ctx, store.UpsertChunkParams{
				TranslationJobID: jobID,
				DocumentID:       docID,
				LanguageCode:     lang,
				ChunkIndex:       seg.Index,
				ChunkType:        seg.Type,
				OriginalText:     seg.Text,
			})
			if err != nil {
				return err
			}
		}
		if _, err := q.DeleteChunksFrom(ctx, jobID, lang, len(segments)); err != nil {
			return err
		}
		return q.SetJobSeeded(ctx, jobID, len(segments), model.JobStatusInProgress)
	})
}
