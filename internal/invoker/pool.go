// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package invoker runs per-chunk translation work off the dispatcher's path:
// a bounded, rate-limited worker pool feeding either the in-process worker
// or a remote worker endpoint.
package invoker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-translator/internal/model"
)

// Errors returned by Invoke.
var (
	ErrQueueFull  = errors.New("invocation queue full")
	ErrNotRunning = errors.New("invoker not running")
)

// ChunkProcessor handles one claimed chunk.
type ChunkProcessor interface {
	ProcessChunk(ctx context.Context, chunk model.TranslationChunk) error
}

// ChunkProcessorFunc adapts a function to ChunkProcessor.
type ChunkProcessorFunc func(ctx context.Context, chunk model.TranslationChunk) error

// ProcessChunk implements ChunkProcessor.
func (f ChunkProcessorFunc) ProcessChunk(ctx context.Context, chunk model.TranslationChunk) error {
	return f(ctx, chunk)
}

// Config holds pool configuration.
type Config struct {
	Workers      int           // Number of concurrent invocations
	QueueSize    int           // Buffered invocations awaiting a worker
	Rate         float64       // Invocations started per second; <= 0 disables throttling
	ChunkTimeout time.Duration // Upper bound for one invocation, at most the stall threshold
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		QueueSize:    100,
		Rate:         2,
		ChunkTimeout: 2 * time.Minute,
	}
}

// Pool fans claimed chunks out to a fixed set of worker goroutines.
type Pool struct {
	processor ChunkProcessor
	logger    *slog.Logger
	limiter   *rate.Limiter
	timeout   time.Duration
	queue     chan model.TranslationChunk
	workers   int
	wg        sync.WaitGroup
	done      chan struct{}
	mu        sync.RWMutex
	running   bool
}

// NewPool creates a pool that hands chunks to processor.
func NewPool(processor ChunkProcessor, logger *slog.Logger, cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = def.ChunkTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	return &Pool{
		processor: processor,
		logger:    logger,
		limiter:   limiter,
		timeout:   cfg.ChunkTimeout,
		queue:     make(chan model.TranslationChunk, cfg.QueueSize),
		workers:   cfg.Workers,
		done:      make(chan struct{}),
	}
}

// Start starts the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("starting chunk invoker", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop stops accepting work and waits for in-flight chunks to finish.
// Chunks still queued stay in processing and are reclaimed as stalled.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("stopping chunk invoker")
	close(p.done)
	p.wg.Wait()
	p.logger.Info("chunk invoker stopped")
}

// Invoke queues a chunk without waiting for it to be processed.
func (p *Pool) Invoke(_ context.Context, chunk model.TranslationChunk) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrNotRunning
	}

	select {
	case p.queue <- chunk:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued chunks.
func (p *Pool) Pending() int {
	return len(p.queue)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("invoker worker started", "worker_id", id)

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case chunk := <-p.queue:
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			p.process(ctx, id, chunk)
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID int, chunk model.TranslationChunk) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("chunk invocation panicked",
				"worker_id", workerID, "chunk_id", chunk.ID, "panic", r)
		}
	}()

	if err := p.processor.ProcessChunk(ctx, chunk); err != nil {
		p.logger.Warn("chunk invocation failed",
			"category", model.EventCategoryDispatch,
			"worker_id", workerID,
			"chunk_id", chunk.ID,
			"language", chunk.LanguageCode,
			"error", err)
	}
}
