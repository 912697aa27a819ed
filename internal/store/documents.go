// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olegiv/ocms-translator/internal/model"
)

const documentColumns = `id, title, excerpt, content, category, translations, created_at, updated_at`

// UpsertDocument inserts or replaces a document's canonical fields.
// Existing translations are left untouched.
func (q *Queries) UpsertDocument(ctx context.Context, doc model.Document) (model.Document, error) {
	if doc.ID == "" {
		doc.ID = newID()
	}
	now := q.now()

	_, err := q.exec(ctx, `
		INSERT INTO blog_posts (id, title, excerpt, content, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			excerpt = excluded.excerpt,
			content = excluded.content,
			category = excluded.category,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Excerpt, doc.Content, doc.Category, now, now)
	if err != nil {
		return model.Document{}, fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return q.GetDocument(ctx, doc.ID)
}

// GetDocument loads a document with its translation map.
func (q *Queries) GetDocument(ctx context.Context, id string) (model.Document, error) {
	var (
		doc          model.Document
		translations string
	)
	err := q.queryRow(ctx, `SELECT `+documentColumns+` FROM blog_posts WHERE id = ?`, id).Scan(
		&doc.ID, &doc.Title, &doc.Excerpt, &doc.Content, &doc.Category,
		&translations, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return model.Document{}, notFound(err)
	}

	doc.Translations = make(map[string]model.DocumentTranslation)
	if translations != "" {
		if err := json.Unmarshal([]byte(translations), &doc.Translations); err != nil {
			return model.Document{}, fmt.Errorf("decoding translations of %s: %w", id, err)
		}
	}
	return doc, nil
}

// DeleteDocument removes a document; its jobs and chunks cascade.
func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	ok, err := q.execOne(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ClearTranslations drops every translation of a document.
func (q *Queries) ClearTranslations(ctx context.Context, documentID string) error {
	_, err := q.exec(ctx, `UPDATE blog_posts SET translations = '{}' WHERE id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("clearing translations of %s: %w", documentID, err)
	}
	return nil
}

// MergeTranslation sets translations[lang] in a single statement, keeping
// every other language entry intact. Canonical fields and updated_at are
// not touched.
func (q *Queries) MergeTranslation(ctx context.Context, documentID, lang string, tr model.DocumentTranslation) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("encoding translation: %w", err)
	}

	var query string
	switch q.dialect {
	case DialectPostgres:
		query = `UPDATE blog_posts
			SET translations = COALESCE(translations, '{}'::jsonb) || jsonb_build_object(?::text, ?::jsonb)
			WHERE id = ?`
	default:
		query = `UPDATE blog_posts
			SET translations = json_set(COALESCE(NULLIF(translations, ''), '{}'), '$."' || ? || '"', json(?))
			WHERE id = ?`
	}

	ok, err := q.execOne(ctx, query, lang, string(data), documentID)
	if err != nil {
		return fmt.Errorf("merging %s translation into %s: %w", lang, documentID, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
