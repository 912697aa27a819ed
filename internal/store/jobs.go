// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/olegiv/ocms-translator/internal/model"
)

const jobColumns = `id, document_id, language_code, status, total_chunks, chunks_completed, attempts, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.TranslationJob, error) {
	var j model.TranslationJob
	err := row.Scan(
		&j.ID, &j.DocumentID, &j.LanguageCode, &j.Status,
		&j.TotalChunks, &j.ChunksCompleted, &j.Attempts, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

// UpsertJob creates the job for (documentID, lang) or resets an existing one
// to pending with zeroed counters. It returns the job id.
func (q *Queries) UpsertJob(ctx context.Context, documentID, lang string) (string, error) {
	now := q.now()
	var id string
	err := q.queryRow(ctx, `
		INSERT INTO translation_jobs (id, document_id, language_code, status, total_chunks, chunks_completed, attempts, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, '', ?, ?)
		ON CONFLICT (document_id, language_code) DO UPDATE SET
			status = excluded.status,
			total_chunks = 0,
			chunks_completed = 0,
			attempts = 0,
			error_message = '',
			updated_at = excluded.updated_at
		RETURNING id`,
		newID(), documentID, lang, model.JobStatusPending, now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting job %s/%s: %w", documentID, lang, err)
	}
	return id, nil
}

// GetJob loads a job by id.
func (q *Queries) GetJob(ctx context.Context, id string) (model.TranslationJob, error) {
	j, err := scanJob(q.queryRow(ctx, `SELECT `+jobColumns+` FROM translation_jobs WHERE id = ?`, id))
	if err != nil {
		return model.TranslationJob{}, notFound(err)
	}
	return j, nil
}

// ListJobsByDocument returns a document's jobs ordered by language code.
func (q *Queries) ListJobsByDocument(ctx context.Context, documentID string) ([]model.TranslationJob, error) {
	return q.listJobs(ctx, `SELECT `+jobColumns+` FROM translation_jobs
		WHERE document_id = ? ORDER BY language_code`, documentID)
}

// ListReassemblableJobs returns unfinished jobs whose chunks are all completed.
func (q *Queries) ListReassemblableJobs(ctx context.Context, limit int) ([]model.TranslationJob, error) {
	return q.listJobs(ctx, `SELECT `+jobColumns+` FROM translation_jobs j
		WHERE j.status IN (?, ?)
		  AND j.total_chunks > 0
		  AND j.total_chunks = (
			SELECT COUNT(*) FROM translation_chunks c
			WHERE c.translation_job_id = j.id
			  AND c.language_code = j.language_code
			  AND c.status = ?)
		ORDER BY j.updated_at, j.id
		LIMIT ?`,
		model.JobStatusRetry, model.JobStatusInProgress, model.ChunkStatusCompleted, limit)
}

func (q *Queries) listJobs(ctx context.Context, query string, args ...any) ([]model.TranslationJob, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []model.TranslationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// SetJobSeeded records the number of chunks seeded for a job and its new status.
func (q *Queries) SetJobSeeded(ctx context.Context, id string, totalChunks int, status string) error {
	ok, err := q.execOne(ctx, `UPDATE translation_jobs
		SET total_chunks = ?, status = ?, updated_at = ?
		WHERE id = ?`, totalChunks, status, q.now(), id)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// CompleteAllJobsForDocument marks every job of a document completed with
// zero chunks. Used for documents with nothing to translate.
func (q *Queries) CompleteAllJobsForDocument(ctx context.Context, documentID string) error {
	_, err := q.exec(ctx, `UPDATE translation_jobs
		SET status = ?, total_chunks = 0, chunks_completed = 0, error_message = '', updated_at = ?
		WHERE document_id = ?`, model.JobStatusCompleted, q.now(), documentID)
	if err != nil {
		return fmt.Errorf("completing jobs for %s: %w", documentID, err)
	}
	return nil
}

// UpdateJobProgress records how many chunks of an unfinished job are completed.
func (q *Queries) UpdateJobProgress(ctx context.Context, id string, completed int) error {
	_, err := q.exec(ctx, `UPDATE translation_jobs
		SET chunks_completed = ?, updated_at = ?
		WHERE id = ? AND status <> ?`, completed, q.now(), id, model.JobStatusCompleted)
	if err != nil {
		return fmt.Errorf("updating job %s progress: %w", id, err)
	}
	return nil
}

// CompleteJob marks an unfinished job completed when every one of its seeded
// chunks is completed. It reports false when the job was reseeded or
// finished in the meantime.
func (q *Queries) CompleteJob(ctx context.Context, id string) (bool, error) {
	ok, err := q.execOne(ctx, `UPDATE translation_jobs
		SET status = ?, chunks_completed = total_chunks, error_message = '', updated_at = ?
		WHERE id = ?
		  AND status IN (?, ?)
		  AND total_chunks > 0
		  AND total_chunks = (
			SELECT COUNT(*) FROM translation_chunks c
			WHERE c.translation_job_id = translation_jobs.id
			  AND c.language_code = translation_jobs.language_code
			  AND c.status = ?)`,
		model.JobStatusCompleted, q.now(), id,
		model.JobStatusInProgress, model.JobStatusRetry, model.ChunkStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("completing job %s: %w", id, err)
	}
	return ok, nil
}

// MarkJobRetry flags a job for another reassembly attempt.
func (q *Queries) MarkJobRetry(ctx context.Context, id, reason string) error {
	_, err := q.exec(ctx, `UPDATE translation_jobs
		SET status = ?, attempts = attempts + 1, error_message = ?, updated_at = ?
		WHERE id = ?`, model.JobStatusRetry, reason, q.now(), id)
	if err != nil {
		return fmt.Errorf("marking job %s for retry: %w", id, err)
	}
	return nil
}
