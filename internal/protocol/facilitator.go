// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package protocol

import "github.com/nova-compute/validator/internal/metagraph"

// VolumeSpec describes where a job's input volume comes from. Only the
// shape is consumed here; the actual variant handlers live in
// internal/artifact.
type VolumeSpec struct {
	Variant    string         `json:"volume_type"`
	Contents   map[string]any `json:"contents,omitempty"`
	URL        string         `json:"url,omitempty"`
	Volumes    []VolumeSpec   `json:"volumes,omitempty"`
	SizeBytes  int64          `json:"size_bytes,omitempty"`
}

// OutputUploadSpec describes where completed artifacts should be sent.
type OutputUploadSpec struct {
	Variant   string            `json:"output_upload_type"`
	URL       string            `json:"url,omitempty"`
	FormFields map[string]string `json:"form_fields,omitempty"`
	Uploads   []OutputUploadSpec `json:"uploads,omitempty"`
}

// OrganicJobRequest is an inbound facilitator message requesting a job
// be run on behalf of an end user.
type OrganicJobRequest struct {
	UUID                string                  `json:"uuid"`
	ExecutorClass       metagraph.ExecutorClass `json:"executor_class"`
	DockerImage         string                  `json:"docker_image"`
	Args                []string                `json:"args"`
	Env                 map[string]string       `json:"env"`
	UseGPU              bool                    `json:"use_gpu"`
	Volume              *VolumeSpec             `json:"volume,omitempty"`
	OutputUpload        *OutputUploadSpec       `json:"output_upload,omitempty"`
	ArtifactsDir        string                  `json:"artifacts_dir,omitempty"`
	DownloadTimeLimit   int                     `json:"download_time_limit"`
	ExecutionTimeLimit  int                     `json:"execution_time_limit"`
	UploadTimeLimit     int                     `json:"upload_time_limit"`
	OnTrustedMiner      bool                    `json:"on_trusted_miner,omitempty"`
}

// JobCheated is an out-of-band report from the facilitator that a job
// uuid's result was fraudulent.
type JobCheated struct {
	UUID string `json:"uuid"`
}

// JobStatusType enumerates the outbound status values.
type JobStatusType string

const (
	StatusReceived     JobStatusType = "received"
	StatusAccepted     JobStatusType = "accepted"
	StatusExecutorReady JobStatusType = "executor_ready"
	StatusVolumesReady JobStatusType = "volumes_ready"
	StatusRejected     JobStatusType = "rejected"
	StatusFailed       JobStatusType = "failed"
	StatusCompleted    JobStatusType = "completed"
)

// MinerResponse mirrors the last protocol message received from the
// miner, surfaced to the facilitator for diagnostics.
type MinerResponse struct {
	JobUUID     string   `json:"job_uuid"`
	MessageType string   `json:"message_type,omitempty"`
	Stdout      string   `json:"docker_process_stdout,omitempty"`
	Stderr      string   `json:"docker_process_stderr,omitempty"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
}

// JobStatusMetadata carries the human-readable comment and the last
// miner message for a status update.
type JobStatusMetadata struct {
	Comment       string         `json:"comment"`
	MinerResponse *MinerResponse `json:"miner_response,omitempty"`
}

// JobStatusUpdate is the outbound message sent to the facilitator for
// every job state transition, exactly one per transition.
type JobStatusUpdate struct {
	UUID     string            `json:"uuid"`
	Status   JobStatusType     `json:"status"`
	Metadata JobStatusMetadata `json:"metadata"`
}
