// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// defaultPoolSize bounds concurrent inference calls. Local CPU-bound
// runtimes typically sustain 1-2 concurrent calls before throughput
// collapses; the pool size must not exceed what the runtime supports.
const defaultPoolSize = 2

// InferencePool is a CompletionClient that bounds concurrent calls to the
// underlying runtime.
//
// # Description
//
// Requests queue on a weighted semaphore sized to the runtime's real
// concurrency. When the caller's context expires — either while queued or
// mid-inference — the call is abandoned: Complete returns the context
// error, and the in-flight inference is left to finish on its own goroutine
// with its eventual result discarded. The runtime call is intentionally
// detached from the caller's cancellation so an abandoned slot drains
// naturally instead of poisoning the model runtime mid-generation; under
// sustained timeout pressure this holds pool slots open, an accepted
// resource-leak risk.
//
// # Thread Safety
//
// Safe for concurrent use.
type InferencePool struct {
	client CompletionClient
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewInferencePool wraps client with a concurrency bound of size.
//
// # Inputs
//
//   - client: The underlying completion client. Must not be nil.
//   - size: Maximum concurrent calls. Values < 1 use the default (2).
//   - logger: Logger for abandoned-call diagnostics. May be nil.
func NewInferencePool(client CompletionClient, size int64, logger *slog.Logger) *InferencePool {
	if client == nil {
		panic("NewInferencePool: client must not be nil")
	}
	if size < 1 {
		size = defaultPoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InferencePool{
		client: client,
		sem:    semaphore.NewWeighted(size),
		logger: logger,
	}
}

// Complete implements CompletionClient with the pool's concurrency bound
// and abandonment semantics.
func (p *InferencePool) Complete(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		// Context expired while queued; nothing was started.
		return "", err
	}

	type completion struct {
		text string
		err  error
	}
	resultCh := make(chan completion, 1)

	// The runtime call runs detached from the caller's cancellation: an
	// abandoned generation finishes (and releases its slot) on its own.
	runCtx := context.WithoutCancel(ctx)
	started := time.Now()

	go func() {
		defer p.sem.Release(1)
		text, err := p.client.Complete(runCtx, prompt, params)
		resultCh <- completion{text: text, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.text, r.err
	case <-ctx.Done():
		p.logger.Warn("inference call abandoned, result will be discarded",
			slog.String("model", p.client.Model()),
			slog.Duration("waited", time.Since(started)),
		)
		return "", ctx.Err()
	}
}

// Model implements CompletionClient by delegating to the wrapped client.
func (p *InferencePool) Model() string { return p.client.Model() }
