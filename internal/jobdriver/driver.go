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
	"encoding/json"
	"fmt"
	"time"

	"github.com/nova-compute/validator/internal/allowance"
	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/protocol"
	"github.com/nova-compute/validator/internal/router"
	"github.com/nova-compute/validator/internal/signing"
	"github.com/nova-compute/validator/internal/store"
	"github.com/nova-compute/validator/internal/vlog"
)

// DefaultBlacklistTime is the BlacklistTime New assigns to a Driver.
const DefaultBlacklistTime = 10 * time.Minute

// Result is the terminal outcome of one Drive call.
type Result struct {
	State         State
	Reason        FailureReason
	Comment       string
	MinerResponse *protocol.MinerResponse
}

// StatusSink receives exactly one JobStatusUpdate per transition, for
// forwarding to the facilitator.
type StatusSink func(protocol.JobStatusUpdate) error

// Driver drives one organic job through the miner protocol.
type Driver struct {
	Store             *store.Store
	Ledger            *allowance.Ledger
	Excuse            *router.ExcusePolicy
	Oracle            signing.Oracle
	ValidatorHotkey   metagraph.SS58
	ValidatorStake    func(metagraph.SS58) float64
	MinimumValidatorStake float64
	// BlacklistTime is how long a miner is blacklisted after declining,
	// timing out or failing a job. Zero disables blacklisting. Defaults
	// to DefaultBlacklistTime in New.
	BlacklistTime time.Duration
	Log           vlog.Logger
	Now           func() time.Time
}

// New builds a Driver with Now set to time.Now and BlacklistTime set to
// DefaultBlacklistTime.
func New(st *store.Store, ledger *allowance.Ledger, excuse *router.ExcusePolicy, oracle signing.Oracle, validatorHotkey metagraph.SS58) *Driver {
	return &Driver{
		Store:           st,
		Ledger:          ledger,
		Excuse:          excuse,
		Oracle:          oracle,
		ValidatorHotkey: validatorHotkey,
		BlacklistTime:   DefaultBlacklistTime,
		Now:             time.Now,
		Log:             vlog.Root().With("component", "jobdriver"),
	}
}

// Drive sends req to miner over conn and walks it through the
// protocol state machine until a terminal state, emitting a
// JobStatusUpdate via sink at every transition and a signed receipt at
// acceptance, start and completion.
func (d *Driver) Drive(
	ctx context.Context,
	req protocol.OrganicJobRequest,
	miner store.Miner,
	conn MinerConn,
	reservation *allowance.Reservation,
	timeouts Timeouts,
	sink StatusSink,
) Result {
	d.emit(sink, req.UUID, protocol.StatusReceived, "", nil)

	if err := conn.Send(ctx, protocol.MsgInitialJobRequest, protocol.InitialJobRequest{
		MessageType:   protocol.MsgInitialJobRequest,
		JobUUID:       req.UUID,
		ExecutorClass: req.ExecutorClass,
		DockerImage:   req.DockerImage,
	}); err != nil {
		return d.fail(req, miner, reservation, StateRejected, ReasonMinerConnectionFailed,
			fmt.Sprintf("Miner %s connection failed: %s", miner.Hotkey, err), sink)
	}

	msgType, body, err := d.recvWithTimeout(ctx, conn, timeouts.InitialResponse)
	if err != nil {
		return d.fail(req, miner, reservation, StateRejected, ReasonInitialResponseTimedOut,
			fmt.Sprintf("Miner %s timed out waiting for initial response", miner.Hotkey), sink)
	}

	switch msgType {
	case protocol.MsgDecline:
		var decline protocol.V0Decline
		_ = json.Unmarshal(body, &decline)
		return d.handleDecline(req, miner, reservation, decline, sink)
	case protocol.MsgAccept:
		// fallthrough to acceptance handling below
	default:
		return d.fail(req, miner, reservation, StateRejected, ReasonJobDeclined,
			fmt.Sprintf("Miner %s sent unexpected message %s instead of accept/decline", miner.Hotkey, msgType), sink)
	}

	if err := d.emitReceipt(req, miner, protocol.PayloadJobAccepted, false); err != nil {
		d.Log.Warn("failed to emit JobAccepted receipt", "err", err)
	}
	d.emit(sink, req.UUID, protocol.StatusAccepted, "Job accepted by miner "+string(miner.Hotkey), nil)

	return d.driveExecution(ctx, req, miner, conn, reservation, timeouts, sink)
}

func (d *Driver) handleDecline(req protocol.OrganicJobRequest, miner store.Miner, reservation *allowance.Reservation, decline protocol.V0Decline, sink StatusSink) Result {
	d.release(reservation)

	if decline.Reason != protocol.DeclineBusy {
		comment := fmt.Sprintf("Miner %s declined job: %s", miner.Hotkey, decline.Reason)
		d.emit(sink, req.UUID, protocol.StatusRejected, comment, nil)
		d.blacklist(miner.Hotkey, store.BlacklistJobFailed)
		return Result{State: StateRejected, Reason: ReasonJobDeclined, Comment: comment}
	}

	excused, err := d.Excuse.IsExcused(miner.Hotkey, req.ExecutorClass, req.UUID, d.Now(), decline.Receipts, d.ValidatorStake, d.MinimumValidatorStake)
	if err != nil {
		d.Log.Warn("excuse policy check failed", "err", err)
	}
	if excused {
		comment := fmt.Sprintf("Miner %s properly excused job %s as busy", miner.Hotkey, req.UUID)
		d.emit(sink, req.UUID, protocol.StatusRejected, comment, nil)
		return Result{State: StateExcused, Reason: ReasonJobDeclinedExcused, Comment: comment}
	}

	comment := fmt.Sprintf("Miner %s failed to excuse job %s: claimed busy without enough concurrent receipts", miner.Hotkey, req.UUID)
	d.emit(sink, req.UUID, protocol.StatusRejected, comment, nil)
	d.blacklist(miner.Hotkey, store.BlacklistInsufficientExcuse)
	return Result{State: StateRejected, Reason: ReasonJobDeclined, Comment: comment}
}

func (d *Driver) driveExecution(
	ctx context.Context,
	req protocol.OrganicJobRequest,
	miner store.Miner,
	conn MinerConn,
	reservation *allowance.Reservation,
	timeouts Timeouts,
	sink StatusSink,
) Result {
	if err := conn.Send(ctx, protocol.MsgJobRequest, protocol.JobRequest{
		MessageType: protocol.MsgJobRequest,
		JobUUID:     req.UUID,
		DockerImage: req.DockerImage,
		Args:        req.Args,
		Env:         req.Env,
		UseGPU:      req.UseGPU,
		Volume:      req.Volume,
		Output:      req.OutputUpload,
	}); err != nil {
		return d.fail(req, miner, reservation, StateFailed, ReasonMinerConnectionFailed,
			fmt.Sprintf("Miner %s connection failed sending job request: %s", miner.Hotkey, err), sink)
	}

	msgType, _, err := d.recvWithTimeout(ctx, conn, timeouts.ExecutorReady)
	if err != nil {
		return d.fail(req, miner, reservation, StateFailed, ReasonExecutorReadinessTimedOut,
			fmt.Sprintf("Miner %s timed out while preparing executor", miner.Hotkey), sink)
	}

	switch msgType {
	case protocol.MsgExecutorFailed:
		return d.fail(req, miner, reservation, StateFailed, ReasonExecutorFailed,
			fmt.Sprintf("Miner %s executor failed to start", miner.Hotkey), sink)
	case protocol.MsgVolumesReady:
		d.emit(sink, req.UUID, protocol.StatusVolumesReady, "Volumes ready on miner "+string(miner.Hotkey), nil)
		msgType, _, err = d.recvWithTimeout(ctx, conn, timeouts.ExecutorReady)
		if err != nil {
			return d.fail(req, miner, reservation, StateFailed, ReasonStreamingJobReadyTimedOut,
				fmt.Sprintf("Miner %s timed out: FailureReason.VOLUMES_TIMED_OUT", miner.Hotkey), sink)
		}
		if msgType != protocol.MsgExecutorReady {
			return d.fail(req, miner, reservation, StateFailed, ReasonExecutorFailed,
				fmt.Sprintf("Miner %s sent unexpected message %s after volumes ready", miner.Hotkey, msgType), sink)
		}
	case protocol.MsgExecutorReady:
		// proceed
	default:
		return d.fail(req, miner, reservation, StateFailed, ReasonExecutorFailed,
			fmt.Sprintf("Miner %s sent unexpected message %s instead of executor ready", miner.Hotkey, msgType), sink)
	}

	if err := d.emitReceipt(req, miner, protocol.PayloadJobStarted, true); err != nil {
		d.Log.Warn("failed to emit JobStarted receipt", "err", err)
	}
	if reservation != nil {
		if err := d.Ledger.Spend(reservation.ID); err != nil {
			d.Log.Warn("failed to spend allowance reservation", "err", err)
		}
	}
	d.emit(sink, req.UUID, protocol.StatusExecutorReady, "Executor ready on miner "+string(miner.Hotkey), nil)

	finalType, finalBody, err := d.recvWithTimeout(ctx, conn, timeouts.TotalJob)
	if err != nil {
		d.blacklist(miner.Hotkey, store.BlacklistJobFailed)
		return Result{
			State:   StateFailed,
			Reason:  ReasonFinalResponseTimedOut,
			Comment: d.failAndEmit(sink, req.UUID, fmt.Sprintf("Miner %s timed out waiting for final response", miner.Hotkey)),
		}
	}

	switch finalType {
	case protocol.MsgJobFinished:
		var finished protocol.V0JobFinished
		_ = json.Unmarshal(finalBody, &finished)
		if err := d.emitReceipt(req, miner, protocol.PayloadJobFinished, true); err != nil {
			d.Log.Warn("failed to emit JobFinished receipt", "err", err)
		}
		resp := &protocol.MinerResponse{JobUUID: req.UUID, MessageType: string(finalType), Stdout: finished.Stdout, Stderr: finished.Stderr, Artifacts: finished.Artifacts}
		d.emit(sink, req.UUID, protocol.StatusCompleted, "Job completed on miner "+string(miner.Hotkey), resp)
		return Result{State: StateCompleted, MinerResponse: resp}
	case protocol.MsgJobFailed:
		var failed protocol.V0JobFailed
		_ = json.Unmarshal(finalBody, &failed)
		reason := ReasonJobFailed
		comment := fmt.Sprintf("Job failed on miner %s: exit status %d", miner.Hotkey, failed.ExitStatus)
		if failed.ErrorType == protocol.ErrorTypeHuggingfaceDownload {
			reason = ReasonJobFailedHuggingfaceDownload
			comment = fmt.Sprintf("Job failed on miner %s: error downloading from huggingface: %s", miner.Hotkey, failed.ErrorDetail)
		}
		resp := &protocol.MinerResponse{JobUUID: req.UUID, MessageType: string(finalType), Stdout: failed.Stdout, Stderr: failed.Stderr}
		d.emit(sink, req.UUID, protocol.StatusFailed, comment, resp)
		d.blacklist(miner.Hotkey, store.BlacklistJobFailed)
		return Result{State: StateFailed, Reason: reason, Comment: comment, MinerResponse: resp}
	default:
		comment := fmt.Sprintf("Miner %s sent unexpected final message %s", miner.Hotkey, finalType)
		d.emit(sink, req.UUID, protocol.StatusFailed, comment, nil)
		d.blacklist(miner.Hotkey, store.BlacklistJobFailed)
		return Result{State: StateFailed, Reason: ReasonJobFailed, Comment: comment}
	}
}

func (d *Driver) fail(req protocol.OrganicJobRequest, miner store.Miner, reservation *allowance.Reservation, state State, reason FailureReason, comment string, sink StatusSink) Result {
	d.release(reservation)
	status := protocol.StatusRejected
	if state == StateFailed {
		status = protocol.StatusFailed
	}
	d.emit(sink, req.UUID, status, comment, nil)
	d.blacklist(miner.Hotkey, store.BlacklistJobFailed)
	return Result{State: state, Reason: reason, Comment: comment}
}

// blacklist records a blacklist entry for hotkey so the router excludes
// it from selection until it expires. A zero BlacklistTime disables
// blacklisting entirely.
func (d *Driver) blacklist(hotkey metagraph.SS58, reason store.BlacklistReason) {
	if d.BlacklistTime <= 0 || d.Store == nil {
		return
	}
	now := d.Now()
	if err := d.Store.PutBlacklist(store.MinerBlacklist{
		MinerHotkey: hotkey,
		Reason:      reason,
		CreatedAt:   now,
		ExpiresAt:   now.Add(d.BlacklistTime),
	}); err != nil {
		d.Log.Warn("failed to blacklist miner", "hotkey", hotkey, "err", err)
	}
}

func (d *Driver) failAndEmit(sink StatusSink, uuid, comment string) string {
	d.emit(sink, uuid, protocol.StatusFailed, comment, nil)
	return comment
}

func (d *Driver) release(reservation *allowance.Reservation) {
	if reservation == nil {
		return
	}
	if err := d.Ledger.Release(reservation.ID); err != nil {
		d.Log.Warn("failed to release allowance reservation", "err", err)
	}
}

func (d *Driver) emit(sink StatusSink, uuid string, status protocol.JobStatusType, comment string, resp *protocol.MinerResponse) {
	if sink == nil {
		return
	}
	if err := sink(protocol.JobStatusUpdate{
		UUID:   uuid,
		Status: status,
		Metadata: protocol.JobStatusMetadata{Comment: comment, MinerResponse: resp},
	}); err != nil {
		d.Log.Warn("status sink failed", "err", err)
	}
}

func (d *Driver) emitReceipt(req protocol.OrganicJobRequest, miner store.Miner, payloadType protocol.PayloadType, isOrganic bool) error {
	payload := protocol.ReceiptPayload{
		Type:          payloadType,
		JobUUID:       req.UUID,
		MinerHotkey:   miner.Hotkey,
		ValidatorHotkey: d.ValidatorHotkey,
		Timestamp:     d.Now(),
		ExecutorClass: req.ExecutorClass,
		IsOrganic:     isOrganic,
		TTLSeconds:    req.ExecutionTimeLimit,
	}
	sig, err := d.Oracle.Sign(payload.BlobForSigning())
	if err != nil {
		return err
	}
	_, err = d.Store.PutReceipt(protocol.Receipt{Payload: payload, ValidatorSig: sig})
	return err
}

// recvWithTimeout blocks on conn.Recv until a frame arrives or timeout
// elapses, whichever first.
func (d *Driver) recvWithTimeout(ctx context.Context, conn MinerConn, timeout time.Duration) (protocol.MessageType, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		msgType protocol.MessageType
		body    []byte
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		msgType, body, err := conn.Recv(ctx)
		ch <- result{msgType, body, err}
	}()

	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case r := <-ch:
		return r.msgType, r.body, r.err
	}
}
