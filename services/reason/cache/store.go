// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists model completions between identical requests.
package cache

// =============================================================================
// Completion Cache — Prompt-Keyed Persistence
// =============================================================================
//
// Local inference is slow (seconds per call on CPU) but deterministic at the
// temperatures this gateway uses, so repeated identical prompts are worth a
// disk-backed cache. This store persists raw completions in BadgerDB.
//
// Design choices:
//
//	1. BadgerDB: completions are service infrastructure, not user data. An
//	   embedded store means no network call and no availability dependency.
//
//	2. Prompt hash as cache key: SHA256(model + prompt + generation params).
//	   Any change to the prompt template, model, or parameters produces a
//	   different hash, so stale entries become unreachable and expire via TTL
//	   with no explicit invalidation API.
//
//	3. BadgerDB native TTL: expiry is enforced by Badger's GC, not by
//	   application code. Expired keys return ErrKeyNotFound, which the store
//	   treats as a cache miss.
//
// Storage layout:
//
//	reason/completion/v1/{promptHash}  →  raw completion text (UTF-8)
//	                                       TTL: 24 hours

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// defaultTTL is the default lifetime of a cached completion. A day is long
// enough to absorb repeated queries within a session and short enough that
// prompt template changes do not serve stale analyses for long.
const defaultTTL = 24 * time.Hour

// keyPrefix is prepended to the prompt hash to form the BadgerDB key.
// Versioned (v1) to allow future format changes without collision.
const keyPrefix = "reason/completion/v1/"

// errCacheMiss distinguishes "key not found" (a normal miss) from a genuine
// storage error inside Load.
var errCacheMiss = errors.New("cache miss")

// =============================================================================
// Store Interface
// =============================================================================

// Store persists raw model completions keyed by prompt hash.
//
// # Description
//
// Callers check for a nil Store and skip caching entirely — that is the
// correct behavior for tests and deployments without a cache directory.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves the cached completion for key.
	//
	// Returns ("", nil) on cache miss (key absent or TTL expired).
	// Returns ("", error) on storage failure.
	Load(ctx context.Context, key string) (string, error)

	// Save persists a completion under key with the store's TTL.
	//
	// Returns non-nil error only on storage failure. Callers log the error
	// as a warning and continue — a failed save just means the next
	// identical request goes back to the model.
	Save(ctx context.Context, key, completion string) error
}

// =============================================================================
// BadgerStore
// =============================================================================

// BadgerStore implements Store backed by a BadgerDB instance.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerStore struct {
	db     *dgbadger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open creates a BadgerStore with an on-disk database at dir.
//
// # Inputs
//
//   - dir: Database directory, created if absent.
//   - ttl: Lifetime for each entry. Pass 0 to use the default (24 hours).
//   - logger: Logger for hit/miss diagnostics. May be nil.
func Open(dir string, ttl time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	opts := dgbadger.DefaultOptions(dir).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open completion cache at %q: %w", dir, err)
	}
	return newStore(db, ttl, logger), nil
}

// OpenInMemory creates a BadgerStore with no disk backing. Used in tests and
// in deployments that want request-level caching without persistence.
func OpenInMemory(ttl time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	opts := dgbadger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory completion cache: %w", err)
	}
	return newStore(db, ttl, logger), nil
}

func newStore(db *dgbadger.DB, ttl time.Duration, logger *slog.Logger) *BadgerStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, ttl: ttl, logger: logger}
}

// Close releases the underlying database. The store must not be used after
// Close returns.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Load implements Store.
func (s *BadgerStore) Load(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var raw []byte
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(storageKey(key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCacheMiss) {
		s.logger.Debug("completion cache: miss", slog.String("key", shortKey(key)))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("completion cache load: %w", err)
	}

	s.logger.Debug("completion cache: hit",
		slog.String("key", shortKey(key)),
		slog.Int("bytes", len(raw)),
	)
	return string(raw), nil
}

// Save implements Store.
func (s *BadgerStore) Save(ctx context.Context, key, completion string) error {
	if completion == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(storageKey(key), []byte(completion)).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("completion cache save: %w", err)
	}

	s.logger.Debug("completion cache: saved",
		slog.String("key", shortKey(key)),
		slog.Int("bytes", len(completion)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// =============================================================================
// Keys
// =============================================================================

// Key computes a deterministic cache key for one completion call.
//
// # Description
//
// The key captures every signal that determines the completion: the model
// name, the fully rendered prompt, and the generation parameters. A prompt
// template change flows through the rendered prompt, so old entries simply
// stop being looked up.
//
// # Outputs
//
//   - string: Lowercase hex-encoded SHA256 digest (64 characters).
func Key(model, prompt string, maxTokens int, temperature float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\n", model)
	fmt.Fprintf(h, "max_tokens=%d\ttemperature=%g\n", maxTokens, temperature)
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// storageKey builds the BadgerDB key for a prompt hash.
func storageKey(promptHash string) []byte {
	return []byte(keyPrefix + promptHash)
}

// shortKey returns the first 8 characters of a key for log display.
func shortKey(k string) string {
	if len(k) > 8 {
		return k[:8] + "..."
	}
	return k
}
