// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package precache runs a background worker pool that keeps a rolling
// window of upcoming-block metagraph data warm so consumers (the
// router, the allowance ledger) never block on chain RPC in their hot
// path.
package precache

import (
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
)

// Backend is the storage behind the cache; separated from Cache so the
// worker-pool logic is testable against an in-memory map without
// pulling in fastcache's C allocator.
type Backend interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// MemoryBackend is a plain map-backed Backend, the default for tests
// and for deployments that don't need fastcache's off-heap storage.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memEntry)}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(b.entries, key)
		return nil, false
	}
	return e.value, true
}

func (b *MemoryBackend) Set(key string, value []byte, ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	b.entries[key] = memEntry{value: value, expires: expires}
}

func (b *MemoryBackend) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
}

// FastcacheBackend wraps VictoriaMetrics/fastcache. fastcache has no
// native per-entry TTL, so every value is stored with an 8-byte
// big-endian unix-nano expiry envelope and checked on Get.
type FastcacheBackend struct {
	c *fastcache.Cache
}

// NewFastcacheBackend allocates a fastcache of maxBytes capacity.
func NewFastcacheBackend(maxBytes int) *FastcacheBackend {
	return &FastcacheBackend{c: fastcache.New(maxBytes)}
}

func (b *FastcacheBackend) Get(key string) ([]byte, bool) {
	raw, ok := b.c.HasGet(nil, []byte(key))
	if !ok || len(raw) < 8 {
		return nil, false
	}
	expiresNano := int64(0)
	for i := 0; i < 8; i++ {
		expiresNano = expiresNano<<8 | int64(raw[i])
	}
	if expiresNano != 0 && time.Now().UnixNano() > expiresNano {
		b.c.Del([]byte(key))
		return nil, false
	}
	return raw[8:], true
}

func (b *FastcacheBackend) Set(key string, value []byte, ttl time.Duration) {
	var expiresNano int64
	if ttl > 0 {
		expiresNano = time.Now().Add(ttl).UnixNano()
	}
	envelope := make([]byte, 8+len(value))
	for i := 7; i >= 0; i-- {
		envelope[i] = byte(expiresNano)
		expiresNano >>= 8
	}
	copy(envelope[8:], value)
	b.c.Set([]byte(key), envelope)
}

func (b *FastcacheBackend) Delete(key string) {
	b.c.Del([]byte(key))
}

// DefaultTTL matches the original PrecachingSuperTensor's cache
// envelope lifetime.
const DefaultTTL = 10 * time.Minute

// LRUBackend bounds memory by entry count instead of fastcache's
// off-heap byte budget, for single-node deployments that would rather
// evict the oldest blocks than size a C allocator up front.
type LRUBackend struct {
	c *lru.Cache
}

type lruEntry struct {
	value   []byte
	expires time.Time
}

// NewLRUBackend allocates an LRUBackend holding at most size entries.
func NewLRUBackend(size int) (*LRUBackend, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRUBackend{c: c}, nil
}

func (b *LRUBackend) Get(key string) ([]byte, bool) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(lruEntry)
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		b.c.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (b *LRUBackend) Set(key string, value []byte, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	b.c.Add(key, lruEntry{value: value, expires: expires})
}

func (b *LRUBackend) Delete(key string) {
	b.c.Remove(key)
}
