// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-translator/internal/model"
)

// SampleDocumentID is the id of the development sample post.
const SampleDocumentID = "00000000-0000-4000-8000-000000000001"

// SeedSampleDocument creates a sample blog post for local development.
// It reports whether the document was created.
func SeedSampleDocument(ctx context.Context, q *Queries) (model.Document, bool, error) {
	doc, err := q.GetDocument(ctx, SampleDocumentID)
	if err == nil {
		slog.Info("sample document already exists, skipping seed", "id", SampleDocumentID)
		return doc, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Document{}, false, fmt.Errorf("checking for sample document: %w", err)
	}

	doc, err = q.UpsertDocument(ctx, model.Document{
		ID:       SampleDocumentID,
		Title:    "Late winner keeps title race alive",
		Excerpt:  "A stoppage-time header settles a tense derby.",
		Content:  "<p>The home side dominated possession but struggled to break down a compact defence.</p>\n\n<p>With the clock running down, a corner was met at the near post and the stadium erupted.</p>",
		Category: "football",
	})
	if err != nil {
		return model.Document{}, false, fmt.Errorf("creating sample document: %w", err)
	}

	slog.Info("created sample document", "id", doc.ID, "title", doc.Title)
	return doc, true, nil
}
