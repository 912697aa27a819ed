// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-translator/internal/cache"
	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/store"
	"github.com/olegiv/ocms-translator/internal/testutil"
)

func seededEnv(t *testing.T) (*env, model.TranslationJob) {
	t.Helper()
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	return e, e.job(t, doc.ID, "es")
}

func TestDispatcher_BatchAndClaim(t *testing.T) {
	e, job := seededEnv(t)
	inv := &recordingInvoker{}
	d := NewDispatcher(e.q, inv, nil, DispatcherConfig{BatchSize: 2}, testutil.TestLoggerSilent())

	n, err := d.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, inv.chunks, 2)
	for _, c := range inv.chunks {
		assert.Equal(t, model.ChunkStatusProcessing, c.Status)
		assert.Equal(t, 1, c.Attempts)
	}

	processing, err := e.q.CountChunks(e.ctx, job.ID, "es", model.ChunkStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, 2, processing)

	// claimed chunks are not selected again while fresh
	n, err = d.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = d.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, inv.chunks, 3)
}

func TestDispatcher_ReclaimsStalledChunks(t *testing.T) {
	e, _ := seededEnv(t)
	inv := &recordingInvoker{}
	d := NewDispatcher(e.q, inv, nil, DispatcherConfig{BatchSize: 10, StallThreshold: time.Minute}, testutil.TestLoggerSilent())

	n, err := d.Sweep(e.ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	d.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	n, err = d.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, inv.chunks[len(inv.chunks)-1].Attempts)
}

func TestDispatcher_PendingBeforeRetry(t *testing.T) {
	e, job := seededEnv(t)
	chunks := e.chunks(t, job.ID)
	require.NoError(t, e.q.FailChunk(e.ctx, chunks[0].ID, "boom"))

	inv := &recordingInvoker{}
	d := NewDispatcher(e.q, inv, nil, DispatcherConfig{BatchSize: 1}, testutil.TestLoggerSilent())
	_, err := d.Sweep(e.ctx)
	require.NoError(t, err)
	require.Len(t, inv.chunks, 1)
	assert.Equal(t, chunks[1].ID, inv.chunks[0].ID)
}

func TestDispatcher_InvokeFailureReturnsChunkToRetry(t *testing.T) {
	e, job := seededEnv(t)
	inv := &recordingInvoker{err: errors.New("queue full")}
	d := NewDispatcher(e.q, inv, nil, DispatcherConfig{}, testutil.TestLoggerSilent())

	n, err := d.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, c := range e.chunks(t, job.ID) {
		assert.Equal(t, model.ChunkStatusRetry, c.Status)
		assert.Equal(t, "invoke failed: queue full", c.ErrorMessage)
		assert.Equal(t, 1, c.Attempts)
	}
}

func TestDispatcher_SkipsWhileLeaseHeld(t *testing.T) {
	e, _ := seededEnv(t)
	locker := cache.NewMemoryLocker()
	_, ok, err := locker.TryLock(e.ctx, dispatchLeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	inv := &recordingInvoker{}
	d := NewDispatcher(e.q, inv, locker, DispatcherConfig{}, testutil.TestLoggerSilent())
	n, err := d.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, inv.chunks)
}

func TestDispatcher_ReleasesLease(t *testing.T) {
	e, _ := seededEnv(t)
	locker := cache.NewMemoryLocker()
	d := NewDispatcher(e.q, &recordingInvoker{}, locker, DispatcherConfig{}, testutil.TestLoggerSilent())

	_, err := d.Sweep(e.ctx)
	require.NoError(t, err)

	_, ok, err := locker.TryLock(e.ctx, dispatchLeaseKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReconciler_CompletesStuckJob(t *testing.T) {
	e, job := seededEnv(t)
	for _, c := range e.chunks(t, job.ID) {
		ok, err := e.q.CompleteChunk(e.ctx, c.ID, c.OriginalText, "done: "+c.OriginalText)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, e.q.MarkJobRetry(e.ctx, job.ID, "merge failed"))

	r := NewReconciler(e.q, e.reassembler, nil, 10, 0, testutil.TestLoggerSilent())
	res, err := r.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Completed)
	assert.Zero(t, res.Failed)

	got, err := e.q.GetJob(e.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)

	doc, err := e.q.GetDocument(e.ctx, job.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "done: Hello world. This is a test.", doc.Translations["es"].Title)

	// nothing left to do
	res, err = r.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
}

func TestReconciler_IgnoresIncompleteJobs(t *testing.T) {
	e, _ := seededEnv(t)
	r := NewReconciler(e.q, e.reassembler, nil, 10, 0, testutil.TestLoggerSilent())

	res, err := r.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
}

func TestReconciler_PrunesEvents(t *testing.T) {
	e, _ := seededEnv(t)
	require.NoError(t, e.q.CreateEvent(e.ctx, store.CreateEventParams{
		Level: model.EventLevelInfo, Category: model.EventCategorySystem, Message: "old", Metadata: "{}",
	}))

	r := NewReconciler(e.q, e.reassembler, nil, 10, time.Hour, testutil.TestLoggerSilent())
	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	res, err := r.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.EventsPruned)

	events, err := e.q.ListRecentEvents(e.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
