// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-translator/internal/model"
)

const chunkColumns = `id, translation_job_id, document_id, language_code, chunk_index, chunk_type,
	original_text, translated_text, status, attempts, error_message, created_at, updated_at`

func scanChunk(row rowScanner) (model.TranslationChunk, error) {
	var c model.TranslationChunk
	err := row.Scan(
		&c.ID, &c.TranslationJobID, &c.DocumentID, &c.LanguageCode, &c.ChunkIndex, &c.ChunkType,
		&c.OriginalText, &c.TranslatedText, &c.Status, &c.Attempts, &c.ErrorMessage,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// UpsertChunkParams holds the fields of a seeded chunk.
type UpsertChunkParams struct {
	TranslationJobID string
	DocumentID       string
	LanguageCode     string
	ChunkIndex       int
	ChunkType        string
	OriginalText     string
}

// UpsertChunk seeds a chunk keyed on (job, language, index), resetting any
// previous translation state for that position.
func (q *Queries) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	now := q.now()
	_, err := q.exec(ctx, `
		INSERT INTO translation_chunks (id, translation_job_id, document_id, language_code, chunk_index, chunk_type,
			original_text, translated_text, status, attempts, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, 0, '', ?, ?)
		ON CONFLICT (translation_job_id, language_code, chunk_index) DO UPDATE SET
			chunk_type = excluded.chunk_type,
			original_text = excluded.original_text,
			translated_text = '',
			status = excluded.status,
			attempts = 0,
			error_message = '',
			updated_at = excluded.updated_at`,
		newID(), arg.TranslationJobID, arg.DocumentID, arg.LanguageCode, arg.ChunkIndex, arg.ChunkType,
		arg.OriginalText, model.ChunkStatusPending, now, now)
	if err != nil {
		return fmt.Errorf("upserting chunk %d of job %s: %w", arg.ChunkIndex, arg.TranslationJobID, err)
	}
	return nil
}

// DeleteChunksFrom removes chunks at or beyond fromIndex, left over from a
// longer previous version of the document.
func (q *Queries) DeleteChunksFrom(ctx context.Context, jobID, lang string, fromIndex int) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM translation_chunks
		WHERE translation_job_id = ? AND language_code = ? AND chunk_index >= ?`, jobID, lang, fromIndex)
	if err != nil {
		return 0, fmt.Errorf("deleting stale chunks of job %s: %w", jobID, err)
	}
	return res.RowsAffected()
}

// GetChunk loads a chunk by id.
func (q *Queries) GetChunk(ctx context.Context, id string) (model.TranslationChunk, error) {
	c, err := scanChunk(q.queryRow(ctx, `SELECT `+chunkColumns+` FROM translation_chunks WHERE id = ?`, id))
	if err != nil {
		return model.TranslationChunk{}, notFound(err)
	}
	return c, nil
}

// ListPendingChunks returns up to limit pending chunks, lowest index then oldest first.
func (q *Queries) ListPendingChunks(ctx context.Context, limit int) ([]model.TranslationChunk, error) {
	return q.listChunks(ctx, `SELECT `+chunkColumns+` FROM translation_chunks
		WHERE status = ?
		ORDER BY chunk_index, created_at, id
		LIMIT ?`, model.ChunkStatusPending, limit)
}

// ListRetryableChunks returns up to limit chunks in retry, or stuck in
// processing since before staleBefore.
func (q *Queries) ListRetryableChunks(ctx context.Context, staleBefore time.Time, limit int) ([]model.TranslationChunk, error) {
	return q.listChunks(ctx, `SELECT `+chunkColumns+` FROM translation_chunks
		WHERE status = ? OR (status = ? AND updated_at < ?)
		ORDER BY chunk_index, created_at, id
		LIMIT ?`, model.ChunkStatusRetry, model.ChunkStatusProcessing, staleBefore.UTC(), limit)
}

// ListCompletedChunks returns the completed chunks of a job in index order.
func (q *Queries) ListCompletedChunks(ctx context.Context, jobID, lang string) ([]model.TranslationChunk, error) {
	return q.listChunks(ctx, `SELECT `+chunkColumns+` FROM translation_chunks
		WHERE translation_job_id = ? AND language_code = ? AND status = ?
		ORDER BY chunk_index`, jobID, lang, model.ChunkStatusCompleted)
}

// ListChunksByJob returns every chunk of a job in index order.
func (q *Queries) ListChunksByJob(ctx context.Context, jobID string) ([]model.TranslationChunk, error) {
	return q.listChunks(ctx, `SELECT `+chunkColumns+` FROM translation_chunks
		WHERE translation_job_id = ?
		ORDER BY language_code, chunk_index`, jobID)
}

func (q *Queries) listChunks(ctx context.Context, query string, args ...any) ([]model.TranslationChunk, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []model.TranslationChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of chunks for a job and language with the given status.
func (q *Queries) CountChunks(ctx context.Context, jobID, lang, status string) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM translation_chunks
		WHERE translation_job_id = ? AND language_code = ? AND status = ?`, jobID, lang, status).Scan(&n)
	return n, err
}

// CountAllChunks returns the total number of chunk rows.
func (q *Queries) CountAllChunks(ctx context.Context) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM translation_chunks`).Scan(&n)
	return n, err
}

// ClaimChunk atomically moves a chunk to processing and bumps its attempts,
// but only while it is still claimable. It reports whether the claim won.
func (q *Queries) ClaimChunk(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	ok, err := q.execOne(ctx, `UPDATE translation_chunks
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?
		  AND (status IN (?, ?) OR (status = ? AND updated_at < ?))`,
		model.ChunkStatusProcessing, q.now(), id,
		model.ChunkStatusPending, model.ChunkStatusRetry, model.ChunkStatusProcessing, staleBefore.UTC())
	if err != nil {
		return false, fmt.Errorf("claiming chunk %s: %w", id, err)
	}
	return ok, nil
}

// StartChunk marks a chunk processing at the start of a worker run. Attempts
// are bumped only if the chunk was not already claimed. Completed chunks are
// left alone and reported as not started.
func (q *Queries) StartChunk(ctx context.Context, id string) (bool, error) {
	ok, err := q.execOne(ctx, `UPDATE translation_chunks
		SET attempts = CASE WHEN status = ? THEN attempts ELSE attempts + 1 END,
			status = ?,
			updated_at = ?
		WHERE id = ? AND status <> ?`,
		model.ChunkStatusProcessing, model.ChunkStatusProcessing, q.now(), id, model.ChunkStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("starting chunk %s: %w", id, err)
	}
	return ok, nil
}

// CompleteChunk stores a translation. It only applies while the chunk still
// holds originalText, so a re-seeded chunk is not completed with a stale result.
func (q *Queries) CompleteChunk(ctx context.Context, id, originalText, translated string) (bool, error) {
	ok, err := q.execOne(ctx, `UPDATE translation_chunks
		SET translated_text = ?, status = ?, error_message = '', updated_at = ?
		WHERE id = ? AND original_text = ?`,
		translated, model.ChunkStatusCompleted, q.now(), id, originalText)
	if err != nil {
		return false, fmt.Errorf("completing chunk %s: %w", id, err)
	}
	return ok, nil
}

// FailChunk puts a chunk back in the retry queue with the failure reason.
func (q *Queries) FailChunk(ctx context.Context, id, reason string) error {
	_, err := q.exec(ctx, `UPDATE translation_chunks
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status <> ?`,
		model.ChunkStatusRetry, reason, q.now(), id, model.ChunkStatusCompleted)
	if err != nil {
		return fmt.Errorf("failing chunk %s: %w", id, err)
	}
	return nil
}
