// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package chainoracle

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/metagraph"
)

type fakeClient struct {
	head           int64
	failUntilCount int
	calls          int
	unknownBlocks  map[int64]bool
}

func (f *fakeClient) CurrentBlock(ctx context.Context) (int64, error) {
	f.calls++
	if f.calls <= f.failUntilCount {
		return 0, errTransient
	}
	return f.head, nil
}

func (f *fakeClient) Neurons(ctx context.Context, block int64) ([]metagraph.Neuron, error) {
	if f.unknownBlocks[block] {
		return nil, ErrUnknownBlock
	}
	return []metagraph.Neuron{{UID: 1, Hotkey: "hot1", Axon: metagraph.Axon{IP: "1.2.3.4", Port: 8000}}}, nil
}
func (f *fakeClient) Validators(ctx context.Context, block int64) ([]metagraph.Validator, error) {
	return nil, nil
}
func (f *fakeClient) SubnetState(ctx context.Context, block int64) (metagraph.SubnetState, error) {
	return metagraph.SubnetState{TotalStake: []float64{1, 2, 3}}, nil
}
func (f *fakeClient) BlockHash(ctx context.Context, block int64) (string, error) { return "0xabc", nil }
func (f *fakeClient) BlockTimestamp(ctx context.Context, block int64) (time.Time, error) {
	return time.Unix(1000, 0), nil
}
func (f *fakeClient) ShieldedNeurons(ctx context.Context, block int64) ([]uint16, error) {
	return nil, nil
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errTransient = staticErr("transient rpc error")

func TestCurrentBlockAppliesFinalityLag(t *testing.T) {
	fc := &fakeClient{head: 1000}
	o := New(fc)
	block, err := o.CurrentBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1000-FinalityLag), block)
}

func TestCurrentBlockRetriesTransientErrors(t *testing.T) {
	fc := &fakeClient{head: 1000, failUntilCount: 2}
	o := New(fc)
	block, err := o.CurrentBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1000-FinalityLag), block)
	require.Equal(t, 3, fc.calls)
}

func TestOldestReachableBlockWithoutArchive(t *testing.T) {
	fc := &fakeClient{head: 1000}
	o := New(fc)
	oldest, err := o.OldestReachableBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1000-FinalityLag-LiteBlockLookback), oldest)
}

func TestOldestReachableBlockWithArchive(t *testing.T) {
	lite := &fakeClient{head: 1000}
	archive := &fakeClient{head: 1000}
	o := New(lite, WithArchive(archive))
	oldest, err := o.OldestReachableBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(math.MinInt64), oldest)
}

func TestNeuronsFallsBackToArchiveOnUnknownBlock(t *testing.T) {
	lite := &fakeClient{unknownBlocks: map[int64]bool{42: true}}
	archive := &fakeClient{}
	o := New(lite, WithArchive(archive))
	neurons, err := o.Neurons(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, neurons, 1)
}
