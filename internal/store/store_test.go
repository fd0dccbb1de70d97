// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMinerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	m := Miner{Hotkey: "hot1", Address: "1.2.3.4", Port: 8000, IPVer: 4}
	require.NoError(t, s.PutMiner(m))

	got, ok, err := s.GetMiner("hot1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)

	_, ok, err = s.GetMiner("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBlacklistExpiry(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	require.NoError(t, s.PutBlacklist(MinerBlacklist{
		MinerHotkey: "hot1",
		Reason:      BlacklistJobFailed,
		CreatedAt:   now,
		ExpiresAt:   now.Add(-15 * time.Minute),
	}))

	_, active, err := s.ActiveBlacklist("hot1", now)
	require.NoError(t, err)
	require.False(t, active, "expired blacklist should not be active")

	require.NoError(t, s.PutBlacklist(MinerBlacklist{
		MinerHotkey: "hot2",
		Reason:      BlacklistJobFailed,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}))
	_, active, err = s.ActiveBlacklist("hot2", now)
	require.NoError(t, err)
	require.True(t, active)
}

func TestReceiptDedup(t *testing.T) {
	s := newTestStore(t)
	r := protocol.Receipt{Payload: protocol.ReceiptPayload{
		Type:        protocol.PayloadJobStarted,
		JobUUID:     "job-1",
		MinerHotkey: "hot1",
	}}

	inserted, err := s.PutReceipt(r)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.PutReceipt(r)
	require.NoError(t, err)
	require.False(t, inserted, "duplicate (job_uuid, payload_type) must not re-insert")
}

func TestCountActiveJobStarted(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		r := protocol.Receipt{Payload: protocol.ReceiptPayload{
			Type:          protocol.PayloadJobStarted,
			JobUUID:       "job-" + string(rune('a'+i)),
			MinerHotkey:   "hot1",
			ExecutorClass: metagraph.DefaultExecutorClass,
			Timestamp:     now,
			TTLSeconds:    60,
		}}
		_, err := s.PutReceipt(r)
		require.NoError(t, err)
	}
	count, err := s.CountActiveJobStarted("hot1", metagraph.DefaultExecutorClass, now)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = s.CountActiveJobStarted("hot1", metagraph.DefaultExecutorClass, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, count, "TTL-expired receipts should not count as active")
}
