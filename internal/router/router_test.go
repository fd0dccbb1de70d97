// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/allowance"
	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/protocol"
	"github.com/nova-compute/validator/internal/store"
)

func protocolReceipt(hotkey metagraph.SS58, now time.Time) protocol.Receipt {
	return protocol.Receipt{Payload: protocol.ReceiptPayload{
		Type:          protocol.PayloadJobStarted,
		JobUUID:       "job-" + string(hotkey),
		MinerHotkey:   hotkey,
		ExecutorClass: class,
		Timestamp:     now,
		TTLSeconds:    300,
		IsOrganic:     true,
	}}
}

const class = metagraph.DefaultExecutorClass

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedMiner(t *testing.T, s *store.Store, hotkey metagraph.SS58, online int) {
	t.Helper()
	require.NoError(t, s.PutMiner(store.Miner{Hotkey: hotkey, Address: "10.0.0.1", Port: 8000}))
	require.NoError(t, s.PutManifest(store.MinerManifest{
		MinerHotkey: hotkey, ExecutorClass: class, DeclaredCount: online, OnlineCount: online,
	}))
}

func basicRequest() JobRequest {
	return JobRequest{ExecutorClass: class, ExecutionTimeLimit: 5 * time.Second}
}

func TestPickMinerTrustedBypass(t *testing.T) {
	s := newTestStore(t)
	ledger := allowance.New(time.Second, 0)
	trusted := store.Miner{Hotkey: "trusted", Address: "1.1.1.1", Port: 9000}
	r := New(s, ledger, time.Minute, WithTrustedMiner(trusted))

	pick, err := r.PickMiner(JobRequest{ExecutorClass: class, OnTrustedMiner: true})
	require.NoError(t, err)
	require.Equal(t, trusted, pick.Miner)
	require.Nil(t, pick.Reservation)
}

func TestPickMinerNoMinerForExecutorType(t *testing.T) {
	s := newTestStore(t)
	ledger := allowance.New(time.Second, 0)
	r := New(s, ledger, time.Minute)

	_, err := r.PickMiner(basicRequest())
	require.Error(t, err)
	var noMiner *NoMinerForExecutorType
	require.ErrorAs(t, err, &noMiner)
}

func TestPickMinerSkipsBlacklistedMiner(t *testing.T) {
	s := newTestStore(t)
	seedMiner(t, s, "hot1", 1)
	now := time.Now()
	require.NoError(t, s.PutBlacklist(store.MinerBlacklist{
		MinerHotkey: "hot1", Reason: store.BlacklistJobFailed, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	ledger := allowance.New(time.Second, 0)
	ledger.Earn("hot1", class, 1, 10)
	r := New(s, ledger, time.Minute, WithClock(func() time.Time { return now }))

	_, err := r.PickMiner(basicRequest())
	require.Error(t, err)
	var noMiner *NoMinerForExecutorType
	require.ErrorAs(t, err, &noMiner)
}

func TestPickMinerAllBusy(t *testing.T) {
	s := newTestStore(t)
	seedMiner(t, s, "hot1", 1)
	now := time.Now()
	ledger := allowance.New(time.Second, 0)
	ledger.Earn("hot1", class, 1, 100)
	r := New(s, ledger, time.Minute, WithClock(func() time.Time { return now }))

	// saturate hot1's single online slot with an active JobStarted receipt
	require.NoError(t, seedActiveJobStarted(s, "hot1", now))

	_, err := r.PickMiner(basicRequest())
	require.Error(t, err)
	var busy *AllMinersBusy
	require.ErrorAs(t, err, &busy)
}

func TestPickMinerSelectsHighestAllowanceAndReserves(t *testing.T) {
	s := newTestStore(t)
	seedMiner(t, s, "hot1", 5)
	seedMiner(t, s, "hot2", 5)
	now := time.Now()
	ledger := allowance.New(time.Second, 0)
	ledger.Earn("hot1", class, 1, 1)  // 1s
	ledger.Earn("hot2", class, 1, 10) // 10s
	r := New(s, ledger, time.Minute, WithClock(func() time.Time { return now }))

	pick, err := r.PickMiner(basicRequest())
	require.NoError(t, err)
	require.Equal(t, metagraph.SS58("hot2"), pick.Miner.Hotkey)
	require.NotNil(t, pick.Reservation)

	// hot2's allowance should now be reserved, so a second concurrent
	// pick must not choose hot2 again if its remaining allowance is low.
	require.Less(t, ledger.Available("hot2", class), 10.0)
}

func seedActiveJobStarted(s *store.Store, hotkey metagraph.SS58, now time.Time) error {
	r := protocolReceipt(hotkey, now)
	_, err := s.PutReceipt(r)
	return err
}

// TestPickMinerExcludesLiveReservations covers the case where a miner
// has been preliminarily reserved by a concurrent pick but hasn't yet
// produced a JobStarted receipt, so CountActiveJobStarted alone would
// miss it. Five miners with ample allowance and a single online slot
// each should yield five distinct picks, and a sixth should find
// everyone busy rather than mistakenly reporting an allowance problem.
func TestPickMinerExcludesLiveReservations(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	ledger := allowance.New(time.Second, 0)
	hotkeys := []metagraph.SS58{"hot1", "hot2", "hot3", "hot4", "hot5"}
	for _, hk := range hotkeys {
		seedMiner(t, s, hk, 1)
		ledger.Earn(hk, class, 1, 1000)
	}
	r := New(s, ledger, time.Minute, WithClock(func() time.Time { return now }))

	picked := make(map[metagraph.SS58]bool)
	for i := 0; i < len(hotkeys); i++ {
		pick, err := r.PickMiner(basicRequest())
		require.NoError(t, err)
		require.NotNil(t, pick.Reservation)
		require.False(t, picked[pick.Miner.Hotkey], "miner %s picked twice while still reserved", pick.Miner.Hotkey)
		picked[pick.Miner.Hotkey] = true
	}
	require.Len(t, picked, len(hotkeys))

	_, err := r.PickMiner(basicRequest())
	require.Error(t, err)
	var busy *AllMinersBusy
	require.ErrorAs(t, err, &busy, "sixth pick should report AllMinersBusy, not an allowance shortfall")
}
