// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package jobdriver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/allowance"
	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/protocol"
	"github.com/nova-compute/validator/internal/router"
	"github.com/nova-compute/validator/internal/signing"
	"github.com/nova-compute/validator/internal/store"
)

const class = metagraph.DefaultExecutorClass

type scriptedConn struct {
	outbound []any
	frames   []frame
	idx      int
}

type frame struct {
	typ  protocol.MessageType
	body any
}

func (c *scriptedConn) Send(ctx context.Context, messageType protocol.MessageType, v any) error {
	c.outbound = append(c.outbound, v)
	return nil
}

func (c *scriptedConn) Recv(ctx context.Context) (protocol.MessageType, []byte, error) {
	if c.idx >= len(c.frames) {
		<-ctx.Done()
		return "", nil, ctx.Err()
	}
	f := c.frames[c.idx]
	c.idx++
	data, _ := json.Marshal(f.body)
	return f.typ, data, nil
}

func (c *scriptedConn) Close() error { return nil }

func testDriver(t *testing.T) (*Driver, *store.Store, *allowance.Ledger) {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ledger := allowance.New(time.Second, 0)
	r := router.New(s, ledger, time.Minute)
	excuse := router.NewExcusePolicy(r)

	key := make([]byte, 32)
	_, _ = rand.Read(key)
	oracle, err := signing.NewOracle(key)
	require.NoError(t, err)

	d := New(s, ledger, excuse, oracle, "validator1")
	return d, s, ledger
}

func testMiner() store.Miner { return store.Miner{Hotkey: "hot1", Address: "1.2.3.4", Port: 8000} }

func testRequest() protocol.OrganicJobRequest {
	return protocol.OrganicJobRequest{UUID: "job-1", ExecutorClass: class, ExecutionTimeLimit: 60}
}

func collectUpdates() (StatusSink, *[]protocol.JobStatusUpdate) {
	var updates []protocol.JobStatusUpdate
	return func(u protocol.JobStatusUpdate) error {
		updates = append(updates, u)
		return nil
	}, &updates
}

func TestDriveHappyPath(t *testing.T) {
	d, s, ledger := testDriver(t)
	ledger.Earn("hot1", class, 1, 10)
	reservation, err := ledger.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)

	conn := &scriptedConn{frames: []frame{
		{typ: protocol.MsgAccept, body: protocol.V0Accept{MessageType: protocol.MsgAccept, JobUUID: "job-1"}},
		{typ: protocol.MsgExecutorReady, body: protocol.V0ExecutorReady{MessageType: protocol.MsgExecutorReady, JobUUID: "job-1"}},
		{typ: protocol.MsgJobFinished, body: protocol.V0JobFinished{MessageType: protocol.MsgJobFinished, JobUUID: "job-1", Stdout: "ok"}},
	}}
	sink, updates := collectUpdates()

	result := d.Drive(context.Background(), testRequest(), testMiner(), conn, reservation,
		Timeouts{InitialResponse: time.Second, ExecutorReady: time.Second, TotalJob: time.Second}, sink)

	require.Equal(t, StateCompleted, result.State)
	require.Equal(t, ReservationSpent, reservation.State)
	statuses := make([]protocol.JobStatusType, len(*updates))
	for i, u := range *updates {
		statuses[i] = u.Status
	}
	require.Contains(t, statuses, protocol.StatusReceived)
	require.Contains(t, statuses, protocol.StatusAccepted)
	require.Contains(t, statuses, protocol.StatusExecutorReady)
	require.Contains(t, statuses, protocol.StatusCompleted)
	require.Equal(t, protocol.StatusReceived, statuses[0])

	_, blacklisted, err := s.ActiveBlacklist("hot1", time.Now())
	require.NoError(t, err)
	require.False(t, blacklisted, "a completed job must not blacklist the miner")
}

func TestDriveInitialResponseTimeout(t *testing.T) {
	d, s, ledger := testDriver(t)
	ledger.Earn("hot1", class, 1, 10)
	reservation, err := ledger.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)

	conn := &scriptedConn{}
	sink, _ := collectUpdates()

	result := d.Drive(context.Background(), testRequest(), testMiner(), conn, reservation,
		Timeouts{InitialResponse: 10 * time.Millisecond, ExecutorReady: time.Second, TotalJob: time.Second}, sink)

	require.Equal(t, StateRejected, result.State)
	require.Equal(t, ReasonInitialResponseTimedOut, result.Reason)
	require.Contains(t, result.Comment, "timed out waiting for initial response")
	require.Equal(t, ReservationReleased, reservation.State)

	bl, blacklisted, err := s.ActiveBlacklist("hot1", time.Now())
	require.NoError(t, err)
	require.True(t, blacklisted, "a protocol timeout should blacklist the miner")
	require.Equal(t, store.BlacklistJobFailed, bl.Reason)
}

func TestDriveDeclineBusyProperlyExcused(t *testing.T) {
	d, s, ledger := testDriver(t)
	require.NoError(t, s.PutManifest(store.MinerManifest{MinerHotkey: "hot1", ExecutorClass: class, DeclaredCount: 1, OnlineCount: 1}))
	ledger.Earn("hot1", class, 1, 10)
	reservation, err := ledger.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)

	excuseReceipt := protocol.Receipt{Payload: protocol.ReceiptPayload{
		Type: protocol.PayloadJobStarted, JobUUID: "other-job", MinerHotkey: "hot1",
		ExecutorClass: class, IsOrganic: true, Timestamp: time.Now(),
	}}
	conn := &scriptedConn{frames: []frame{
		{typ: protocol.MsgDecline, body: protocol.V0Decline{MessageType: protocol.MsgDecline, JobUUID: "job-1", Reason: protocol.DeclineBusy, Receipts: []protocol.Receipt{excuseReceipt}}},
	}}
	sink, _ := collectUpdates()
	d.ValidatorStake = func(metagraph.SS58) float64 { return 2000 }
	d.MinimumValidatorStake = 1000

	result := d.Drive(context.Background(), testRequest(), testMiner(), conn, reservation,
		Timeouts{InitialResponse: time.Second, ExecutorReady: time.Second, TotalJob: time.Second}, sink)

	require.Equal(t, StateExcused, result.State)
	require.True(t, strings.Contains(result.Comment, "properly excused"))
	require.Equal(t, ReservationReleased, reservation.State)

	_, blacklisted, err := s.ActiveBlacklist("hot1", time.Now())
	require.NoError(t, err)
	require.False(t, blacklisted, "a properly excused decline must not blacklist the miner")
}

func TestDriveDeclineBusyNotExcused(t *testing.T) {
	d, s, ledger := testDriver(t)
	require.NoError(t, s.PutManifest(store.MinerManifest{MinerHotkey: "hot1", ExecutorClass: class, DeclaredCount: 3, OnlineCount: 3}))
	ledger.Earn("hot1", class, 1, 10)
	reservation, err := ledger.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)

	conn := &scriptedConn{frames: []frame{
		{typ: protocol.MsgDecline, body: protocol.V0Decline{MessageType: protocol.MsgDecline, JobUUID: "job-1", Reason: protocol.DeclineBusy}},
	}}
	sink, _ := collectUpdates()

	result := d.Drive(context.Background(), testRequest(), testMiner(), conn, reservation,
		Timeouts{InitialResponse: time.Second, ExecutorReady: time.Second, TotalJob: time.Second}, sink)

	require.Equal(t, StateRejected, result.State)
	require.True(t, strings.Contains(result.Comment, "failed to excuse"))

	bl, blacklisted, err := s.ActiveBlacklist("hot1", time.Now())
	require.NoError(t, err)
	require.True(t, blacklisted, "a busy decline without enough excuse receipts should blacklist the miner")
	require.Equal(t, store.BlacklistInsufficientExcuse, bl.Reason)
}

func TestDriveExecutorReadyTimeout(t *testing.T) {
	d, s, ledger := testDriver(t)
	ledger.Earn("hot1", class, 1, 10)
	reservation, err := ledger.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)

	conn := &scriptedConn{frames: []frame{
		{typ: protocol.MsgAccept, body: protocol.V0Accept{MessageType: protocol.MsgAccept, JobUUID: "job-1"}},
	}}
	sink, _ := collectUpdates()

	result := d.Drive(context.Background(), testRequest(), testMiner(), conn, reservation,
		Timeouts{InitialResponse: time.Second, ExecutorReady: 10 * time.Millisecond, TotalJob: time.Second}, sink)

	require.Equal(t, StateFailed, result.State)
	require.Equal(t, ReasonExecutorReadinessTimedOut, result.Reason)
	require.Contains(t, result.Comment, "timed out while preparing executor")

	bl, blacklisted, err := s.ActiveBlacklist("hot1", time.Now())
	require.NoError(t, err)
	require.True(t, blacklisted, "an executor-readiness timeout should blacklist the miner")
	require.Equal(t, store.BlacklistJobFailed, bl.Reason)
}

func TestDriveBlacklistDisabledWhenZero(t *testing.T) {
	d, s, ledger := testDriver(t)
	d.BlacklistTime = 0
	ledger.Earn("hot1", class, 1, 10)
	reservation, err := ledger.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)

	conn := &scriptedConn{}
	sink, _ := collectUpdates()

	d.Drive(context.Background(), testRequest(), testMiner(), conn, reservation,
		Timeouts{InitialResponse: 10 * time.Millisecond, ExecutorReady: time.Second, TotalJob: time.Second}, sink)

	_, blacklisted, err := s.ActiveBlacklist("hot1", time.Now())
	require.NoError(t, err)
	require.False(t, blacklisted, "BlacklistTime=0 must disable blacklisting")
}
