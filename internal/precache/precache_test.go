// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package precache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBackendExpiry(t *testing.T) {
	b := NewMemoryBackend()
	b.Set("k", []byte("v"), 10*time.Millisecond)
	_, ok := b.Get("k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = b.Get("k")
	require.False(t, ok, "entry should have expired")
}

func TestMemoryBackendNoTTLNeverExpires(t *testing.T) {
	b := NewMemoryBackend()
	b.Set("k", []byte("v"), 0)
	time.Sleep(5 * time.Millisecond)
	v, ok := b.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestFastcacheBackendRoundTripAndExpiry(t *testing.T) {
	b := NewFastcacheBackend(1 << 20)
	b.Set("k", []byte("hello"), 10*time.Millisecond)
	v, ok := b.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)

	time.Sleep(20 * time.Millisecond)
	_, ok = b.Get("k")
	require.False(t, ok)
}

func TestLRUBackendRoundTripAndExpiry(t *testing.T) {
	b, err := NewLRUBackend(16)
	require.NoError(t, err)

	b.Set("k", []byte("hello"), 10*time.Millisecond)
	v, ok := b.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)

	time.Sleep(20 * time.Millisecond)
	_, ok = b.Get("k")
	require.False(t, ok)
}

func TestReadFallsBackToLiveOnMiss(t *testing.T) {
	o := New(nil, NewMemoryBackend())
	calls := 0
	v, err := read(context.Background(), o, 5, TaskBlockHash, func() (string, error) {
		calls++
		return "0xdead", nil
	})
	require.NoError(t, err)
	require.Equal(t, "0xdead", v)
	require.Equal(t, 1, calls)

	// second read should come from cache without calling live again
	v, err = read(context.Background(), o, 5, TaskBlockHash, func() (string, error) {
		calls++
		return "should-not-be-called", nil
	})
	require.NoError(t, err)
	require.Equal(t, "0xdead", v)
	require.Equal(t, 1, calls)
}

func TestReadThrowsCacheMissWhenConfigured(t *testing.T) {
	o := New(nil, NewMemoryBackend(), WithThrowOnCacheMiss(true))
	_, err := read(context.Background(), o, 5, TaskBlockHash, func() (string, error) {
		t.Fatal("live fetch should not be called")
		return "", nil
	})
	require.Error(t, err)
	var miss *CacheMiss
	require.ErrorAs(t, err, &miss)
}
