// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package protocol

import "github.com/nova-compute/validator/internal/metagraph"

// MessageType discriminates miner protocol frames carried over the
// websocket connection between validator and miner.
type MessageType string

const (
	MsgInitialJobRequest MessageType = "V0InitialJobRequest"
	MsgJobRequest        MessageType = "V0JobRequest"
	MsgAccept            MessageType = "V0AcceptJobRequest"
	MsgDecline           MessageType = "V0DeclineJobRequest"
	MsgExecutorReady     MessageType = "V0ExecutorReadyRequest"
	MsgExecutorFailed    MessageType = "V0ExecutorFailedRequest"
	MsgVolumesReady      MessageType = "V0VolumesReadyRequest"
	MsgExecutionDone     MessageType = "V0ExecutionDoneRequest"
	MsgJobFinished       MessageType = "V0JobFinishedRequest"
	MsgJobFailed         MessageType = "V0JobFailedRequest"
)

// DeclineReason enumerates why a miner declined a job.
type DeclineReason string

const (
	DeclineBusy          DeclineReason = "BUSY"
	DeclineExecutorFull  DeclineReason = "EXECUTOR_UNAVAILABLE"
	DeclineUnknownReason DeclineReason = "OTHER"
)

// Envelope wraps every miner-protocol frame with a discriminator so a
// single websocket read loop can dispatch by MessageType.
type Envelope struct {
	MessageType MessageType `json:"message_type"`
	Body        []byte      `json:"-"`
}

// InitialJobRequest is the validator's first message to a miner.
type InitialJobRequest struct {
	MessageType   MessageType             `json:"message_type"`
	JobUUID       string                  `json:"job_uuid"`
	ExecutorClass metagraph.ExecutorClass `json:"executor_class"`
	DockerImage   string                  `json:"docker_image"`
}

// JobRequest is sent once the executor is ready, carrying the full run
// spec (args, env, volume, output destination).
type JobRequest struct {
	MessageType MessageType       `json:"message_type"`
	JobUUID     string            `json:"job_uuid"`
	DockerImage string            `json:"docker_image"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env"`
	UseGPU      bool              `json:"use_gpu"`
	Volume      *VolumeSpec       `json:"volume,omitempty"`
	Output      *OutputUploadSpec `json:"output_upload,omitempty"`
}

// V0Accept is the miner's acceptance of an InitialJobRequest.
type V0Accept struct {
	MessageType MessageType `json:"message_type"`
	JobUUID     string      `json:"job_uuid"`
}

// V0Decline is the miner's refusal, optionally attaching excuse
// receipts to justify a BUSY decline.
type V0Decline struct {
	MessageType MessageType   `json:"message_type"`
	JobUUID     string        `json:"job_uuid"`
	Reason      DeclineReason `json:"reason"`
	Receipts    []Receipt     `json:"receipts,omitempty"`
}

// V0ExecutorReady signals the miner has an executor slot ready.
type V0ExecutorReady struct {
	MessageType MessageType `json:"message_type"`
	JobUUID     string      `json:"job_uuid"`
}

// V0ExecutorFailed signals the executor could not be started.
type V0ExecutorFailed struct {
	MessageType MessageType `json:"message_type"`
	JobUUID     string      `json:"job_uuid"`
	ErrorDetail string      `json:"error_detail,omitempty"`
}

// V0VolumesReady signals input volumes have finished staging
// (streaming job variant).
type V0VolumesReady struct {
	MessageType MessageType `json:"message_type"`
	JobUUID     string      `json:"job_uuid"`
}

// V0ExecutionDone signals the docker run completed (success path,
// pending final artifact upload confirmation).
type V0ExecutionDone struct {
	MessageType MessageType `json:"message_type"`
	JobUUID     string      `json:"job_uuid"`
}

// V0JobFinished is the terminal success message.
type V0JobFinished struct {
	MessageType MessageType       `json:"message_type"`
	JobUUID     string            `json:"job_uuid"`
	Stdout      string            `json:"docker_process_stdout"`
	Stderr      string            `json:"docker_process_stderr"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
}

// JobFailedErrorType sub-classifies a JOB_FAILED failure.
type JobFailedErrorType string

const (
	ErrorTypeNone               JobFailedErrorType = ""
	ErrorTypeHuggingfaceDownload JobFailedErrorType = "HUGGINGFACE_DOWNLOAD"
)

// V0JobFailed is the terminal failure message.
type V0JobFailed struct {
	MessageType MessageType        `json:"message_type"`
	JobUUID     string             `json:"job_uuid"`
	ExitStatus  int                `json:"exit_status"`
	Stdout      string             `json:"docker_process_stdout"`
	Stderr      string             `json:"docker_process_stderr"`
	ErrorType   JobFailedErrorType `json:"error_type,omitempty"`
	ErrorDetail string             `json:"error_detail,omitempty"`
}
