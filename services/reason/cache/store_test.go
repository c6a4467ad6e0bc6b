// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore opens an in-memory BadgerStore for testing.
func openTestStore(t *testing.T, ttl time.Duration) *BadgerStore {
	t.Helper()
	store, err := OpenInMemory(ttl, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_MissOnEmptyDB(t *testing.T) {
	store := openTestStore(t, 0)

	got, err := store.Load(context.Background(), "nonexistenthash")
	require.NoError(t, err, "a miss is not an error")
	assert.Empty(t, got)
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := openTestStore(t, 0)
	key := Key("qwen2.5:3b-instruct", "analyze: show me electronics", 300, 0.1)

	completion := `{"intent": "product_search", "confidence": 0.92}`
	require.NoError(t, store.Save(context.Background(), key, completion))

	got, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, completion, got)
}

func TestBadgerStore_SaveEmptyIsNoop(t *testing.T) {
	store := openTestStore(t, 0)

	require.NoError(t, store.Save(context.Background(), "somekey", ""))
	got, err := store.Load(context.Background(), "somekey")
	require.NoError(t, err)
	assert.Empty(t, got, "empty completions are never cached")
}

func TestBadgerStore_TTLExpiry(t *testing.T) {
	store := openTestStore(t, 50*time.Millisecond)
	key := Key("m", "p", 100, 0.5)

	require.NoError(t, store.Save(context.Background(), key, "cached"))
	time.Sleep(100 * time.Millisecond)

	got, err := store.Load(context.Background(), key)
	require.NoError(t, err, "an expired key is a miss, not an error")
	assert.Empty(t, got)
}

func TestBadgerStore_ContextCancelled(t *testing.T) {
	store := openTestStore(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Load(ctx, "somekey")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, "somekey", "v"), context.Canceled)
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("model-a", "prompt", 300, 0.1)
	b := Key("model-a", "prompt", 300, 0.1)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex sha256")
}

func TestKey_SensitiveToEveryInput(t *testing.T) {
	base := Key("model-a", "prompt", 300, 0.1)
	assert.NotEqual(t, base, Key("model-b", "prompt", 300, 0.1))
	assert.NotEqual(t, base, Key("model-a", "prompt!", 300, 0.1))
	assert.NotEqual(t, base, Key("model-a", "prompt", 301, 0.1))
	assert.NotEqual(t, base, Key("model-a", "prompt", 300, 0.2))
}
