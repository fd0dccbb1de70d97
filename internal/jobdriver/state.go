// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package jobdriver drives one organic job through the miner protocol
// state machine, emitting exactly one JobStatusUpdate per transition
// and exactly one signed receipt at each of acceptance, start and
// completion.
package jobdriver

// State is a node in the job's protocol lifecycle.
type State string

const (
	StatePending       State = "PENDING"
	StateSent          State = "SENT"
	StateAccepted      State = "ACCEPTED"
	StateExecutorReady State = "EXECUTOR_READY"
	StateVolumesReady  State = "VOLUMES_READY"
	StateRunning       State = "RUNNING"
	StateDone          State = "DONE"
	StateCompleted     State = "COMPLETED"
	StateExcused       State = "EXCUSED"
	StateRejected      State = "REJECTED"
	StateFailed        State = "FAILED"
)

// terminal reports whether a state ends the drive loop.
func (s State) terminal() bool {
	switch s {
	case StateCompleted, StateExcused, StateRejected, StateFailed:
		return true
	default:
		return false
	}
}

// FailureReason classifies why a job drive ended in FAILED or
// REJECTED, mirroring the branch table in miner_driver.py's
// drive_organic_job.
type FailureReason string

const (
	ReasonMinerConnectionFailed        FailureReason = "MINER_CONNECTION_FAILED"
	ReasonInitialResponseTimedOut      FailureReason = "INITIAL_RESPONSE_TIMED_OUT"
	ReasonJobDeclinedExcused           FailureReason = "JOB_DECLINED_EXCUSED"
	ReasonJobDeclined                  FailureReason = "JOB_DECLINED"
	ReasonExecutorReadinessTimedOut    FailureReason = "EXECUTOR_READINESS_RESPONSE_TIMED_OUT"
	ReasonStreamingJobReadyTimedOut    FailureReason = "STREAMING_JOB_READY_TIMED_OUT"
	ReasonExecutorFailed               FailureReason = "EXECUTOR_FAILED"
	ReasonFinalResponseTimedOut        FailureReason = "FINAL_RESPONSE_TIMED_OUT"
	ReasonJobFailed                     FailureReason = "JOB_FAILED"
	ReasonJobFailedHuggingfaceDownload FailureReason = "JOB_FAILED_HUGGINGFACE_DOWNLOAD"
)
