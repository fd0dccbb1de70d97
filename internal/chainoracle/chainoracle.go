// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package chainoracle is the validator's only window onto the chain:
// it wraps a RawChainClient external collaborator with finality lag,
// bounded retries and an optional archive-node fallback for blocks too
// old for the lite node to serve.
package chainoracle

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/vlog"
)

// FinalityLag is subtracted from the chain head to avoid handing out
// blocks that could still be reorganized.
const FinalityLag = 5

// LiteBlockLookback bounds how far back a lite (non-archive) node can
// be queried.
const LiteBlockLookback = 200

// ErrUnknownBlock is returned by a RawChainClient when the requested
// block has been pruned.
var ErrUnknownBlock = errors.New("chainoracle: unknown block")

// RawChainClient is the external collaborator: a thin binding over
// the chain's RPC surface. Implementations are not provided by this
// module — they live in a companion package wiring an actual
// substrate/bittensor client.
type RawChainClient interface {
	CurrentBlock(ctx context.Context) (int64, error)
	Neurons(ctx context.Context, block int64) ([]metagraph.Neuron, error)
	Validators(ctx context.Context, block int64) ([]metagraph.Validator, error)
	SubnetState(ctx context.Context, block int64) (metagraph.SubnetState, error)
	BlockHash(ctx context.Context, block int64) (string, error)
	BlockTimestamp(ctx context.Context, block int64) (time.Time, error)
	ShieldedNeurons(ctx context.Context, block int64) ([]uint16, error)
}

// DefaultRPCRate bounds outbound calls to the lite/archive client so a
// cache-miss storm on this validator never floods the RPC endpoint.
const DefaultRPCRate = 20 // requests per second

// Oracle is the validated, retrying, archive-aware view over a
// RawChainClient.
type Oracle struct {
	lite    RawChainClient
	archive RawChainClient // nil if no archive node configured
	log     vlog.Logger
	limiter *rate.Limiter
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithArchive attaches an archive-node client used when the lite
// client reports ErrUnknownBlock.
func WithArchive(archive RawChainClient) Option {
	return func(o *Oracle) { o.archive = archive }
}

// WithLogger overrides the oracle's logger.
func WithLogger(l vlog.Logger) Option {
	return func(o *Oracle) { o.log = l }
}

// WithRPCRate overrides DefaultRPCRate, the sustained outbound request
// rate allowed against the lite/archive client.
func WithRPCRate(requestsPerSecond float64) Option {
	return func(o *Oracle) { o.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1) }
}

// New builds an Oracle over lite.
func New(lite RawChainClient, opts ...Option) *Oracle {
	o := &Oracle{
		lite:    lite,
		log:     vlog.Root().With("component", "chainoracle"),
		limiter: rate.NewLimiter(DefaultRPCRate, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// retryPolicy mirrors the original's tenacity configuration: 3
// attempts, exponential backoff between 100ms and 800ms.
const (
	retryAttempts = 3
	retryMinWait  = 100 * time.Millisecond
	retryMaxWait  = 800 * time.Millisecond
)

func withRetry[T any](ctx context.Context, limiter *rate.Limiter, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	wait := retryMinWait
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}
		var v T
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if attempt == retryAttempts {
			break
		}
		jittered := wait/2 + time.Duration(rand.Int63n(int64(wait/2+1)))
		if jittered < retryMinWait {
			jittered = retryMinWait
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(jittered):
		}
		wait *= 2
		if wait > retryMaxWait {
			wait = retryMaxWait
		}
	}
	return zero, err
}

// archiveFallback retries against lite, then — if the error is
// ErrUnknownBlock and an archive client is configured — retries the
// same call against archive.
func archiveFallback[T any](ctx context.Context, o *Oracle, liteCall, archiveCall func() (T, error)) (T, error) {
	v, err := withRetry(ctx, o.limiter, liteCall)
	if err == nil || o.archive == nil || !errors.Is(err, ErrUnknownBlock) {
		return v, err
	}
	o.log.Warn("falling back to archive node", "err", err)
	return withRetry(ctx, o.limiter, archiveCall)
}

// CurrentBlock returns the chain head minus FinalityLag.
func (o *Oracle) CurrentBlock(ctx context.Context) (int64, error) {
	head, err := withRetry(ctx, o.limiter, func() (int64, error) { return o.lite.CurrentBlock(ctx) })
	if err != nil {
		return 0, err
	}
	return head - FinalityLag, nil
}

// OldestReachableBlock returns the oldest block this oracle can serve:
// negative infinity (math.MinInt64) if an archive node is configured,
// otherwise current - LiteBlockLookback.
func (o *Oracle) OldestReachableBlock(ctx context.Context) (int64, error) {
	if o.archive != nil {
		return math.MinInt64, nil
	}
	current, err := o.CurrentBlock(ctx)
	if err != nil {
		return 0, err
	}
	return current - LiteBlockLookback, nil
}

func (o *Oracle) Neurons(ctx context.Context, block int64) ([]metagraph.Neuron, error) {
	return archiveFallback(ctx, o,
		func() ([]metagraph.Neuron, error) { return o.lite.Neurons(ctx, block) },
		func() ([]metagraph.Neuron, error) { return o.archive.Neurons(ctx, block) },
	)
}

func (o *Oracle) Validators(ctx context.Context, block int64) ([]metagraph.Validator, error) {
	return archiveFallback(ctx, o,
		func() ([]metagraph.Validator, error) { return o.lite.Validators(ctx, block) },
		func() ([]metagraph.Validator, error) { return o.archive.Validators(ctx, block) },
	)
}

func (o *Oracle) SubnetState(ctx context.Context, block int64) (metagraph.SubnetState, error) {
	return archiveFallback(ctx, o,
		func() (metagraph.SubnetState, error) { return o.lite.SubnetState(ctx, block) },
		func() (metagraph.SubnetState, error) { return o.archive.SubnetState(ctx, block) },
	)
}

func (o *Oracle) BlockHash(ctx context.Context, block int64) (string, error) {
	return archiveFallback(ctx, o,
		func() (string, error) { return o.lite.BlockHash(ctx, block) },
		func() (string, error) { return o.archive.BlockHash(ctx, block) },
	)
}

func (o *Oracle) BlockTimestamp(ctx context.Context, block int64) (time.Time, error) {
	return archiveFallback(ctx, o,
		func() (time.Time, error) { return o.lite.BlockTimestamp(ctx, block) },
		func() (time.Time, error) { return o.archive.BlockTimestamp(ctx, block) },
	)
}

func (o *Oracle) ShieldedNeurons(ctx context.Context, block int64) ([]uint16, error) {
	return archiveFallback(ctx, o,
		func() ([]uint16, error) { return o.lite.ShieldedNeurons(ctx, block) },
		func() ([]uint16, error) { return o.archive.ShieldedNeurons(ctx, block) },
	)
}

// Snapshot assembles a full metagraph.Snapshot for block in one call,
// used by the precaching layer to populate its cache entries.
func (o *Oracle) Snapshot(ctx context.Context, block int64) (metagraph.Snapshot, error) {
	neurons, err := o.Neurons(ctx, block)
	if err != nil {
		return metagraph.Snapshot{}, err
	}
	hash, err := o.BlockHash(ctx, block)
	if err != nil {
		return metagraph.Snapshot{}, err
	}
	ts, err := o.BlockTimestamp(ctx, block)
	if err != nil {
		return metagraph.Snapshot{}, err
	}
	state, err := o.SubnetState(ctx, block)
	if err != nil {
		return metagraph.Snapshot{}, err
	}

	uids := make([]uint16, len(neurons))
	hotkeys := make([]metagraph.SS58, len(neurons))
	for i, n := range neurons {
		uids[i] = n.UID
		hotkeys[i] = n.Hotkey
	}
	var serving []metagraph.SS58
	for _, n := range neurons {
		if n.Axon.Serving() {
			serving = append(serving, n.Hotkey)
		}
	}

	return metagraph.Snapshot{
		Block:           block,
		BlockHash:       hash,
		BlockTimestamp:  ts,
		UIDs:            uids,
		Hotkeys:         hotkeys,
		ServingHotkeys:  serving,
		TotalStake:      state.TotalStake,
	}, nil
}
