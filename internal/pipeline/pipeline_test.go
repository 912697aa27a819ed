// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/provider"
	"github.com/olegiv/ocms-translator/internal/store"
	"github.com/olegiv/ocms-translator/internal/testutil"
)

// fakeTranslator prefixes text with the target language name.
type fakeTranslator struct {
	mu    sync.Mutex
	err   error
	calls []provider.Request
}

func (f *fakeTranslator) Translate(_ context.Context, req provider.Request) (provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return provider.Result{}, f.err
	}
	return provider.Result{Text: "[" + req.LanguageName + "] " + req.Text, Provider: "fake"}, nil
}

// recordingInvoker collects invoked chunks.
type recordingInvoker struct {
	mu     sync.Mutex
	err    error
	chunks []model.TranslationChunk
}

func (r *recordingInvoker) Invoke(_ context.Context, c model.TranslationChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.chunks = append(r.chunks, c)
	return nil
}

type env struct {
	ctx         context.Context
	q           *store.Queries
	creator     *JobCreator
	reassembler *Reassembler
	worker      *Worker
	translator  *fakeTranslator
}

func newEnv(t *testing.T, langs []model.Language, maxLen int) *env {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.TestLoggerSilent()
	q := store.New(db)
	tr := &fakeTranslator{}
	re := NewReassembler(q, logger)
	return &env{
		ctx:         context.Background(),
		q:           q,
		creator:     NewJobCreator(q, langs, maxLen, logger),
		reassembler: re,
		worker:      NewWorker(q, tr, re, logger),
		translator:  tr,
	}
}

func langs(t *testing.T, codes ...string) []model.Language {
	t.Helper()
	l, err := model.ParseLanguages(codes)
	require.NoError(t, err)
	return l
}

func (e *env) saveDoc(t *testing.T, doc model.Document) model.Document {
	t.Helper()
	saved, err := e.q.UpsertDocument(e.ctx, doc)
	require.NoError(t, err)
	return saved
}

func (e *env) job(t *testing.T, docID, lang string) model.TranslationJob {
	t.Helper()
	jobs, err := e.q.ListJobsByDocument(e.ctx, docID)
	require.NoError(t, err)
	for _, j := range jobs {
		if j.LanguageCode == lang {
			return j
		}
	}
	t.Fatalf("no %s job for document %s", lang, docID)
	return model.TranslationJob{}
}

func (e *env) chunks(t *testing.T, jobID string) []model.TranslationChunk {
	t.Helper()
	chunks, err := e.q.ListChunksByJob(e.ctx, jobID)
	require.NoError(t, err)
	return chunks
}

var sampleDoc = model.Document{
	ID:       "post-1",
	Title:    "Hello world. This is a test.",
	Excerpt:  "E",
	Content:  "<p>Para one.</p>",
	Category: "football",
}

func TestEndToEnd(t *testing.T) {
	e := newEnv(t, model.DefaultLanguages(), 1000)
	doc := e.saveDoc(t, sampleDoc)

	res, err := e.creator.HandleDocumentChanged(e.ctx, DocumentChangedEvent{Type: ChangeInsert, Record: &doc})
	require.NoError(t, err)
	assert.Equal(t, CreateResult{Jobs: 26, Chunks: 3}, res)

	jobs, err := e.q.ListJobsByDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 26)
	for _, j := range jobs {
		assert.Equal(t, 3, j.TotalChunks, j.LanguageCode)
		assert.Equal(t, model.JobStatusInProgress, j.Status, j.LanguageCode)
	}
	n, err := e.q.CountAllChunks(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 78, n)

	es := e.job(t, doc.ID, "es")
	chunks := e.chunks(t, es.ID)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
	assert.Equal(t, model.ChunkTypeTitle, chunks[0].ChunkType)
	assert.Equal(t, model.ChunkTypeExcerpt, chunks[1].ChunkType)
	assert.Equal(t, model.ChunkTypeContent, chunks[2].ChunkType)

	for _, c := range chunks {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}

	es = e.job(t, doc.ID, "es")
	assert.Equal(t, model.JobStatusCompleted, es.Status)
	assert.Equal(t, 3, es.ChunksCompleted)

	got, err := e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	require.Contains(t, got.Translations, "es")
	assert.Equal(t, model.DocumentTranslation{
		Title:    "[Spanish] Hello world. This is a test.",
		Excerpt:  "[Spanish] E",
		Content:  "[Spanish] <p>Para one.</p>",
		Category: "football",
	}, got.Translations["es"])
	assert.Len(t, got.Translations, 1)
	assert.Equal(t, sampleDoc.Title, got.Title, "canonical fields must not change")

	// only content chunks ask for markup preservation
	for _, req := range e.translator.calls {
		assert.Equal(t, req.Text == "<p>Para one.</p>", req.HTML)
	}
}

func TestJobCreator_Idempotent(t *testing.T) {
	e := newEnv(t, langs(t, "es", "fr"), 1000)
	doc := e.saveDoc(t, sampleDoc)

	first, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	firstJob := e.job(t, doc.ID, "es")

	second, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	again := e.job(t, doc.ID, "es")
	assert.Equal(t, firstJob.ID, again.ID)
	assert.Equal(t, 3, again.TotalChunks)

	n, err := e.q.CountAllChunks(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestJobCreator_ResetsCompletedJob(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)

	job := e.job(t, doc.ID, "es")
	for _, c := range e.chunks(t, job.ID) {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}
	require.Equal(t, model.JobStatusCompleted, e.job(t, doc.ID, "es").Status)

	doc.Title = "A new headline"
	_, err = e.creator.HandleDocumentChanged(e.ctx, DocumentChangedEvent{Type: ChangeUpdate, Record: &doc, OldRecord: &sampleDoc})
	require.NoError(t, err)

	job = e.job(t, doc.ID, "es")
	assert.Equal(t, model.JobStatusInProgress, job.Status)
	assert.Equal(t, 0, job.ChunksCompleted)
	assert.Equal(t, 0, job.Attempts)
	for _, c := range e.chunks(t, job.ID) {
		assert.Equal(t, model.ChunkStatusPending, c.Status)
		assert.Empty(t, c.TranslatedText)
		assert.Zero(t, c.Attempts)
	}
	assert.Equal(t, "A new headline", e.chunks(t, job.ID)[0].OriginalText)
}

func TestJobCreator_NoOpOnUnchangedFields(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	old := doc

	res, err := e.creator.HandleDocumentChanged(e.ctx, DocumentChangedEvent{Type: ChangeUpdate, Record: &doc, OldRecord: &old})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	jobs, err := e.q.ListJobsByDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	n, err := e.q.CountAllChunks(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJobCreator_EmptyDocumentCompletesJobs(t *testing.T) {
	e := newEnv(t, langs(t, "es", "fr"), 1000)
	doc := e.saveDoc(t, model.Document{ID: "blank", Title: "  ", Category: "news"})
	stale := model.DocumentTranslation{Title: "Viejo", Category: "news"}
	require.NoError(t, e.q.MergeTranslation(e.ctx, doc.ID, "es", stale))

	res, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)

	got, err := e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Translations)

	for _, code := range []string{"es", "fr"} {
		job := e.job(t, doc.ID, code)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, 0, job.TotalChunks)
	}
}

func TestJobCreator_ShrinkingDocumentDropsTailChunks(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 50)
	long := sampleDoc
	long.Content = "First paragraph sentence is here. " +
		"Second paragraph sentence is here. " +
		"Third paragraph sentence is here."
	doc := e.saveDoc(t, long)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	before := len(e.chunks(t, e.job(t, doc.ID, "es").ID))
	require.Greater(t, before, 3)

	doc.Content = "Short."
	_, err = e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)

	job := e.job(t, doc.ID, "es")
	assert.Equal(t, 3, job.TotalChunks)
	assert.Len(t, e.chunks(t, job.ID), 3)
}

func TestJobCreator_StoresEventRecord(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	e.saveDoc(t, sampleDoc)

	edited := sampleDoc
	edited.Title = "New headline."
	edited.Category = "tennis"
	_, err := e.creator.HandleDocumentChanged(e.ctx, DocumentChangedEvent{Type: ChangeUpdate, Record: &edited, OldRecord: &sampleDoc})
	require.NoError(t, err)

	stored, err := e.q.GetDocument(e.ctx, sampleDoc.ID)
	require.NoError(t, err)
	assert.Equal(t, "New headline.", stored.Title)

	for _, c := range e.chunks(t, e.job(t, sampleDoc.ID, "es").ID) {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}
	got, err := e.q.GetDocument(e.ctx, sampleDoc.ID)
	require.NoError(t, err)
	assert.Equal(t, "[Spanish] New headline.", got.Translations["es"].Title)
	assert.Equal(t, "tennis", got.Translations["es"].Category)
}

func TestJobCreator_UnknownDocument(t *testing.T) {
	e := newEnv(t, langs(t, "es", "fr"), 1000)
	doc := model.Document{ID: "post-x", Title: "Fresh.", Content: "<p>Body.</p>", Category: "news"}

	res, err := e.creator.HandleDocumentChanged(e.ctx, DocumentChangedEvent{Type: ChangeInsert, Record: &doc})
	require.NoError(t, err)
	assert.Equal(t, CreateResult{Jobs: 2, Chunks: 2}, res)

	stored, err := e.q.GetDocument(e.ctx, "post-x")
	require.NoError(t, err)
	assert.Equal(t, "news", stored.Category)
}

func TestJobCreator_Validation(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)

	tests := []struct {
		name string
		ev   DocumentChangedEvent
	}{
		{"missing record", DocumentChangedEvent{Type: ChangeInsert}},
		{"missing id", DocumentChangedEvent{Record: &model.Document{Title: "x"}}},
		{"bad type", DocumentChangedEvent{Type: "TRUNCATE", Record: &model.Document{ID: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.creator.HandleDocumentChanged(e.ctx, tt.ev)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}

	res, err := e.creator.HandleDocumentChanged(e.ctx, DocumentChangedEvent{Type: "delete", OldRecord: &sampleDoc})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestReassembler_Gating(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)

	job := e.job(t, doc.ID, "es")
	chunks := e.chunks(t, job.ID)
	for _, c := range chunks[:2] {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}

	res, err := e.reassembler.Reassemble(e.ctx, ChunkCompletedEvent{
		TranslationJobID: job.ID, LanguageCode: "es", DocumentID: doc.ID,
	})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, 2, res.ChunksCompleted)

	job = e.job(t, doc.ID, "es")
	assert.Equal(t, model.JobStatusInProgress, job.Status)
	assert.Equal(t, 2, job.ChunksCompleted)

	got, err := e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Translations, "es")
}

func TestReassembler_MergeKeepsOtherLanguages(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	fr := model.DocumentTranslation{Title: "Bonjour", Excerpt: "E", Content: "<p>Un.</p>", Category: "football"}
	require.NoError(t, e.q.MergeTranslation(e.ctx, doc.ID, "fr", fr))

	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	for _, c := range e.chunks(t, e.job(t, doc.ID, "es").ID) {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}

	got, err := e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, fr, got.Translations["fr"])
	assert.Contains(t, got.Translations, "es")
}

func TestReassembler_ReseededJobIsNotCompleted(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)

	stale := e.job(t, doc.ID, "es")
	for _, c := range e.chunks(t, stale.ID) {
		ok, err := e.q.CompleteChunk(e.ctx, c.ID, c.OriginalText, "old")
		require.NoError(t, err)
		require.True(t, ok)
	}

	edited := doc
	edited.Title = "Edited title."
	_, err = e.creator.CreateJobs(e.ctx, edited)
	require.NoError(t, err)

	// a reassembly that loaded the job before the edit
	err = e.reassembler.finalize(e.ctx, stale)
	require.ErrorIs(t, err, errJobReseeded)

	job := e.job(t, doc.ID, "es")
	assert.Equal(t, model.JobStatusInProgress, job.Status)
	got, err := e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Translations, "es")

	for _, c := range e.chunks(t, job.ID) {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}

	job = e.job(t, doc.ID, "es")
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	got, err = e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "[Spanish] Edited title.", got.Translations["es"].Title)
}

func TestReassembler_KeepsSourceMarkup(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	content := `<p class="lead" style="color:red">Goal</p>` +
		`<iframe src="https://www.youtube.com/embed/abc" width="560"></iframe>` +
		`<img src="a.jpg" width="300">`
	doc := e.saveDoc(t, model.Document{ID: "post-2", Title: "Match report.", Content: content})
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)

	for _, c := range e.chunks(t, e.job(t, doc.ID, "es").ID) {
		_, err := e.worker.Run(e.ctx, c)
		require.NoError(t, err)
	}

	got, err := e.q.GetDocument(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "[Spanish] "+content, got.Translations["es"].Content)
}

func TestReassembler_Validation(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)

	_, err := e.reassembler.Reassemble(e.ctx, ChunkCompletedEvent{LanguageCode: "es", DocumentID: "d"})
	assert.True(t, IsValidationError(err))

	_, err = e.reassembler.Reassemble(e.ctx, ChunkCompletedEvent{TranslationJobID: "nope", LanguageCode: "es", DocumentID: "d"})
	assert.True(t, IsValidationError(err))
}

func TestAssemble(t *testing.T) {
	chunks := []model.TranslationChunk{
		{ChunkIndex: 0, ChunkType: model.ChunkTypeTitle, TranslatedText: "Título"},
		{ChunkIndex: 1, ChunkType: model.ChunkTypeExcerpt, TranslatedText: "Parte uno."},
		{ChunkIndex: 2, ChunkType: model.ChunkTypeExcerpt, TranslatedText: "Parte dos."},
		{ChunkIndex: 3, ChunkType: model.ChunkTypeContent, TranslatedText: "<p>Uno.</p>"},
		{ChunkIndex: 4, ChunkType: model.ChunkTypeContent, TranslatedText: "<p>Dos.</p>"},
	}
	got := Assemble(chunks)
	assert.Equal(t, "Título", got.Title)
	assert.Equal(t, "Parte uno. Parte dos.", got.Excerpt)
	assert.Equal(t, "<p>Uno.</p>\n\n<p>Dos.</p>", got.Content)
}

func TestWorker_FailureMarksRetry(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	e.translator.err = &provider.AllProvidersFailedError{Last: errors.New("groq (status 503): Service Unavailable")}

	c := e.chunks(t, e.job(t, doc.ID, "es").ID)[0]
	res, err := e.worker.Run(e.ctx, c)
	require.NoError(t, err)
	assert.Equal(t, model.ChunkStatusRetry, res.Status)

	got, err := e.q.GetChunk(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChunkStatusRetry, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.ErrorMessage, "all translation providers failed")

	// a second run bumps attempts again and succeeds
	e.translator.err = nil
	res, err = e.worker.Run(e.ctx, got)
	require.NoError(t, err)
	assert.Equal(t, model.ChunkStatusCompleted, res.Status)
	got, _ = e.q.GetChunk(e.ctx, c.ID)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.ErrorMessage)
}

func TestWorker_NoProvidersIsReported(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	e.translator.err = provider.ErrNoProviders

	c := e.chunks(t, e.job(t, doc.ID, "es").ID)[0]
	_, err = e.worker.Run(e.ctx, c)
	assert.ErrorIs(t, err, provider.ErrNoProviders)
}

func TestWorker_DiscardsResultForReseededChunk(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	stale := e.chunks(t, e.job(t, doc.ID, "es").ID)[0]

	doc.Title = "Changed title"
	_, err = e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)

	res, err := e.worker.Run(e.ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, model.ChunkStatusPending, res.Status)

	got, err := e.q.GetChunk(e.ctx, stale.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.ChunkStatusCompleted, got.Status)
	assert.Empty(t, got.TranslatedText)
}

func TestWorker_SkipsCompletedChunk(t *testing.T) {
	e := newEnv(t, langs(t, "es"), 1000)
	doc := e.saveDoc(t, sampleDoc)
	_, err := e.creator.CreateJobs(e.ctx, doc)
	require.NoError(t, err)
	c := e.chunks(t, e.job(t, doc.ID, "es").ID)[0]

	_, err = e.worker.Run(e.ctx, c)
	require.NoError(t, err)
	calls := len(e.translator.calls)

	_, err = e.worker.Run(e.ctx, c)
	require.NoError(t, err)
	assert.Equal(t, calls, len(e.translator.calls), "completed chunk must not be translated again")
}
