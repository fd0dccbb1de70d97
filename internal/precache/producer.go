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
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nova-compute/validator/internal/chainoracle"
	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/vlog"
)

// NThreads is the worker-pool size fetching cache entries concurrently.
const NThreads = 10

// CacheAhead is how many blocks past the current chain head the
// producer keeps warm in the cache.
const CacheAhead = 10

// TaskType names one of the per-block fetches a worker can perform.
type TaskType string

const (
	TaskNeurons         TaskType = "neurons"
	TaskValidators      TaskType = "validators"
	TaskSubnetState     TaskType = "subnet_state"
	TaskBlockHash       TaskType = "block_hash"
	TaskBlockTimestamp  TaskType = "block_timestamp"
	TaskShieldedNeurons TaskType = "shielded_neurons"
)

var allTaskTypes = []TaskType{
	TaskNeurons, TaskValidators, TaskSubnetState,
	TaskBlockHash, TaskBlockTimestamp, TaskShieldedNeurons,
}

func cacheKey(block int64, t TaskType) string {
	return fmt.Sprintf("%d:%s", block, t)
}

// CacheMiss is returned by consumer methods when ThrowOnCacheMiss is
// enabled and the requested entry has not been produced yet.
type CacheMiss struct {
	Block int64
	Task  TaskType
}

func (e *CacheMiss) Error() string {
	return fmt.Sprintf("precache: miss for block %d task %s", e.Block, e.Task)
}

type task struct {
	block int64
	typ   TaskType
}

// Oracle is the precaching front for chainoracle.Oracle: a background
// producer keeps CacheAhead blocks of lookahead warm via NThreads
// workers, while consumers read through Backend, optionally falling
// back to a live chain fetch on miss.
type Oracle struct {
	source            *chainoracle.Oracle
	backend           Backend
	throwOnCacheMiss  bool
	log               vlog.Logger

	mu                    sync.Mutex
	highestBlockSubmitted int64

	tasks chan task
	stop  chan struct{}
	wg    sync.WaitGroup
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithThrowOnCacheMiss makes consumer reads fail with CacheMiss
// instead of transparently falling back to a live RPC call, matching
// the original's enable_workers=False "consumer-only" singleton mode
// when paired with not starting the producer.
func WithThrowOnCacheMiss(throw bool) Option {
	return func(o *Oracle) { o.throwOnCacheMiss = throw }
}

func WithLogger(l vlog.Logger) Option {
	return func(o *Oracle) { o.log = l }
}

// New builds an Oracle. Call Start to begin producing; an Oracle that
// is never started works purely as a pass-through reader.
func New(source *chainoracle.Oracle, backend Backend, opts ...Option) *Oracle {
	o := &Oracle{
		source:  source,
		backend: backend,
		log:     vlog.Root().With("component", "precache"),
		tasks:   make(chan task, NThreads*4),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetStartingBlock seeds the producer's watermark, e.g. to resume from
// a persisted snapshot instead of the chain's current head.
func (o *Oracle) SetStartingBlock(block int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.highestBlockSubmitted = block - 1
}

// Start launches NThreads workers and the producer loop and returns at
// once; the goroutines run until the context is done or Stop is called.
func (o *Oracle) Start(ctx context.Context) {
	for i := 0; i < NThreads; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	o.wg.Add(1)
	go o.produce(ctx)
}

// Stop signals all goroutines to exit and waits for them.
func (o *Oracle) Stop() {
	close(o.stop)
	o.wg.Wait()
}

func (o *Oracle) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stop:
			return
		case t, ok := <-o.tasks:
			if !ok {
				return
			}
			o.fetchAndStore(ctx, t)
		}
	}
}

func (o *Oracle) fetchAndStore(ctx context.Context, t task) {
	var value []byte
	var err error
	switch t.typ {
	case TaskNeurons:
		var v []metagraph.Neuron
		v, err = o.source.Neurons(ctx, t.block)
		value = mustJSON(v)
	case TaskValidators:
		var v []metagraph.Validator
		v, err = o.source.Validators(ctx, t.block)
		value = mustJSON(v)
	case TaskSubnetState:
		var v metagraph.SubnetState
		v, err = o.source.SubnetState(ctx, t.block)
		value = mustJSON(v)
	case TaskBlockHash:
		var v string
		v, err = o.source.BlockHash(ctx, t.block)
		value = mustJSON(v)
	case TaskBlockTimestamp:
		var v time.Time
		v, err = o.source.BlockTimestamp(ctx, t.block)
		value = mustJSON(v)
	case TaskShieldedNeurons:
		var v []uint16
		v, err = o.source.ShieldedNeurons(ctx, t.block)
		value = mustJSON(v)
	}
	if err != nil {
		o.log.Warn("precache fetch failed", "block", t.block, "task", t.typ, "err", err)
		return
	}
	o.backend.Set(cacheKey(t.block, t.typ), value, DefaultTTL)
}

// produce implements the freshness gate: once the cache is already
// CacheAhead blocks ahead of the chain head, it sleeps rather than
// busy-polling for a new head.
func (o *Oracle) produce(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stop:
			return
		default:
		}

		current, err := o.source.CurrentBlock(ctx)
		if err != nil {
			o.log.Warn("precache producer failed to read current block", "err", err)
			o.sleepOrStop(ctx, time.Second)
			continue
		}

		o.mu.Lock()
		highest := o.highestBlockSubmitted
		o.mu.Unlock()

		if highest >= current+CacheAhead-1 {
			o.sleepOrStop(ctx, 500*time.Millisecond)
			continue
		}

		next := highest + 1
		for _, typ := range allTaskTypes {
			select {
			case o.tasks <- task{block: next, typ: typ}:
			case <-ctx.Done():
				return
			case <-o.stop:
				return
			}
		}

		o.mu.Lock()
		o.highestBlockSubmitted = next
		o.mu.Unlock()
	}
}

func (o *Oracle) sleepOrStop(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-o.stop:
	case <-time.After(d):
	}
}

// read fetches a value through the cache, falling back to a live
// chainoracle call (and seeding the cache with the result) unless
// ThrowOnCacheMiss is set.
func read[T any](ctx context.Context, o *Oracle, block int64, typ TaskType, live func() (T, error)) (T, error) {
	var zero T
	if raw, ok := o.backend.Get(cacheKey(block, typ)); ok {
		var v T
		if err := jsonUnmarshal(raw, &v); err != nil {
			return zero, errors.Wrap(err, "decoding cached value")
		}
		return v, nil
	}
	if o.throwOnCacheMiss {
		return zero, &CacheMiss{Block: block, Task: typ}
	}
	v, err := live()
	if err != nil {
		return zero, err
	}
	o.backend.Set(cacheKey(block, typ), mustJSON(v), DefaultTTL)
	return v, nil
}

func (o *Oracle) Neurons(ctx context.Context, block int64) ([]metagraph.Neuron, error) {
	return read(ctx, o, block, TaskNeurons, func() ([]metagraph.Neuron, error) { return o.source.Neurons(ctx, block) })
}

func (o *Oracle) Validators(ctx context.Context, block int64) ([]metagraph.Validator, error) {
	return read(ctx, o, block, TaskValidators, func() ([]metagraph.Validator, error) { return o.source.Validators(ctx, block) })
}

func (o *Oracle) SubnetState(ctx context.Context, block int64) (metagraph.SubnetState, error) {
	return read(ctx, o, block, TaskSubnetState, func() (metagraph.SubnetState, error) { return o.source.SubnetState(ctx, block) })
}

func (o *Oracle) BlockHash(ctx context.Context, block int64) (string, error) {
	return read(ctx, o, block, TaskBlockHash, func() (string, error) { return o.source.BlockHash(ctx, block) })
}

func (o *Oracle) BlockTimestamp(ctx context.Context, block int64) (time.Time, error) {
	return read(ctx, o, block, TaskBlockTimestamp, func() (time.Time, error) { return o.source.BlockTimestamp(ctx, block) })
}

func (o *Oracle) ShieldedNeurons(ctx context.Context, block int64) ([]uint16, error) {
	return read(ctx, o, block, TaskShieldedNeurons, func() ([]uint16, error) { return o.source.ShieldedNeurons(ctx, block) })
}

func (o *Oracle) CurrentBlock(ctx context.Context) (int64, error) {
	return o.source.CurrentBlock(ctx)
}
