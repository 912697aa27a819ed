// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/provider"
	"github.com/olegiv/ocms-translator/internal/store"
)

// Translator translates one request through the provider chain.
type Translator interface {
	Translate(ctx context.Context, req provider.Request) (provider.Result, error)
}

// WorkResult describes what one worker run did to a chunk.
type WorkResult struct {
	ChunkID    string            `json:"chunk_id"`
	Status     string            `json:"status"`
	Provider   string            `json:"provider,omitempty"`
	Error      string            `json:"error,omitempty"`
	Reassembly *ReassemblyResult `json:"reassembly,omitempty"`
}

// Worker translates a single chunk and triggers the reassembly check.
type Worker struct {
	queries     *store.Queries
	translator  Translator
	reassembler *Reassembler
	logger      *slog.Logger
}

// NewWorker creates a Worker.
func NewWorker(queries *store.Queries, translator Translator, reassembler *Reassembler, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queries:     queries,
		translator:  translator,
		reassembler: reassembler,
		logger:      logger,
	}
}

// ProcessChunk runs the worker for an invoker. A translation failure is
// recorded on the chunk and is not an invocation error.
func (w *Worker) ProcessChunk(ctx context.Context, chunk model.TranslationChunk) error {
	_, err := w.Run(ctx, chunk)
	return err
}

// Run performs one translation attempt for chunk.
func (w *Worker) Run(ctx context.Context, chunk model.TranslationChunk) (WorkResult, error) {
	result := WorkResult{ChunkID: chunk.ID}

	started, err := w.queries.StartChunk(ctx, chunk.ID)
	if err != nil {
		return result, err
	}
	if !started {
		w.logger.Debug("chunk already completed or removed", "chunk_id", chunk.ID)
		result.Status = model.ChunkStatusCompleted
		return result, nil
	}

	// status writes must land even if the invocation deadline has passed
	writeCtx := context.WithoutCancel(ctx)

	tr, err := w.translator.Translate(ctx, provider.Request{
		Text:         chunk.OriginalText,
		LanguageName: model.LanguageName(chunk.LanguageCode),
		HTML:         chunk.IsHTML(),
	})
	if err != nil {
		if ferr := w.queries.FailChunk(writeCtx, chunk.ID, err.Error()); ferr != nil {
			return result, fmt.Errorf("recording chunk failure: %w", ferr)
		}
		w.logger.Warn("chunk translation failed",
			"category", model.EventCategoryChunk,
			"chunk_id", chunk.ID,
			"job_id", chunk.TranslationJobID,
			"language", chunk.LanguageCode,
			"attempts", chunk.Attempts,
			"error", err)

		result.Status = model.ChunkStatusRetry
		result.Error = err.Error()
		if errors.Is(err, provider.ErrNoProviders) {
			return result, err
		}
		return result, nil
	}
	result.Provider = tr.Provider

	completed, err := w.queries.CompleteChunk(writeCtx, chunk.ID, chunk.OriginalText, tr.Text)
	if err != nil {
		return result, err
	}
	if !completed {
		w.logger.Info("chunk changed during translation, discarding result",
			"chunk_id", chunk.ID, "provider", tr.Provider)
		result.Status = model.ChunkStatusPending
		return result, nil
	}
	result.Status = model.ChunkStatusCompleted

	w.logger.Debug("chunk translated",
		"chunk_id", chunk.ID,
		"language", chunk.LanguageCode,
		"provider", tr.Provider)

	reassembly, err := w.reassembler.Reassemble(writeCtx, ChunkCompletedEvent{
		TranslationJobID: chunk.TranslationJobID,
		LanguageCode:     chunk.LanguageCode,
		DocumentID:       chunk.DocumentID,
	})
	if err != nil {
		return result, fmt.Errorf("reassembly check: %w", err)
	}
	result.Reassembly = &reassembly
	return result, nil
}
