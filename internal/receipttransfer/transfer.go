// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package receipttransfer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nova-compute/validator/internal/protocol"
	"github.com/nova-compute/validator/internal/store"
	"github.com/nova-compute/validator/internal/vlog"
)

// Concurrency caps mirror the original's asyncio.Semaphore(50) for the
// active (recent) catch-up pass and Semaphore(10) for the long tail.
const (
	ActiveConcurrency   = 50
	CatchUpConcurrency  = 10
	ActiveFetchTimeout  = time.Second
	CatchUpFetchTimeout = 3 * time.Second
)

// Result summarizes one sweep across every miner.
type Result struct {
	mu            sync.Mutex
	MinersSwept   int
	PagesFetched  int
	ReceiptsSeen  int
	ReceiptsNew   int
	ErrorsByType  map[string]int
}

func newResult() *Result { return &Result{ErrorsByType: make(map[string]int)} }

func (r *Result) recordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ErrorsByType[fmt.Sprintf("%T", err)]++
}

func (r *Result) add(pages, seen, created int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PagesFetched += pages
	r.ReceiptsSeen += seen
	r.ReceiptsNew += created
}

// Sweep fetches page from every miner in endpoints, bounded by
// maxConcurrency simultaneous fetches, and persists every parsed
// receipt. A single miner's failure is recorded in the result and
// never aborts the sweep.
func Sweep(ctx context.Context, endpoints []MinerEndpoint, page int64, fetcher PageFetcher, st *store.Store, maxConcurrency int, log vlog.Logger) *Result {
	result := newResult()
	result.MinersSwept = len(endpoints)

	sem := semaphore.NewWeighted(int64(maxConcurrency))
	var wg sync.WaitGroup

	for _, ep := range endpoints {
		ep := ep
		if err := sem.Acquire(ctx, 1); err != nil {
			return result // ctx cancelled
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()
			sweepOne(ctx, ep, page, fetcher, st, result, log)
		}()
	}
	wg.Wait()
	return result
}

func sweepOne(ctx context.Context, ep MinerEndpoint, page int64, fetcher PageFetcher, st *store.Store, result *Result, log vlog.Logger) {
	body, err := fetcher.FetchPage(ctx, ep, page)
	if err != nil {
		log.Warn("receipt page fetch failed", "miner", ep.Hotkey, "page", page, "err", err)
		result.recordError(err)
		return
	}
	if body == nil {
		return
	}

	seen, created := 0, 0
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r, err := protocol.ParseLine(line)
		if err != nil {
			log.Warn("malformed receipt line", "miner", ep.Hotkey, "err", err)
			result.recordError(err)
			continue
		}
		seen++
		inserted, err := st.PutReceipt(r)
		if err != nil {
			log.Warn("failed to persist receipt", "miner", ep.Hotkey, "err", err)
			result.recordError(err)
			continue
		}
		if inserted {
			created++
		}
	}
	if err := scanner.Err(); err != nil {
		result.recordError(err)
	}
	result.add(1, seen, created)
}

// CatchUp sweeps every page from fromPage up to (and including)
// toPage, newest-first, using CatchUpConcurrency.
// Real deployments call this once at startup before switching to
// KeepUp.
func CatchUp(ctx context.Context, source MinerSource, fetcher PageFetcher, st *store.Store, fromPage, toPage int64, log vlog.Logger) (*Result, error) {
	endpoints, err := source.ActiveMiners(ctx)
	if err != nil {
		return nil, err
	}
	total := newResult()
	total.MinersSwept = len(endpoints)
	total.ErrorsByType = make(map[string]int)

	for p := toPage; p >= fromPage; p-- {
		r := Sweep(ctx, endpoints, p, fetcher, st, CatchUpConcurrency, log)
		total.add(r.PagesFetched, r.ReceiptsSeen, r.ReceiptsNew)
		for k, v := range r.ErrorsByType {
			total.ErrorsByType[k] += v
		}
	}
	return total, nil
}
