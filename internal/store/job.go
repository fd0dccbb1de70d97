// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package store

import (
	"time"

	"github.com/nova-compute/validator/internal/metagraph"
)

// JobStatus is the persisted lifecycle status of an OrganicJob.
type JobStatus string

const (
	JobPending       JobStatus = "pending"
	JobAccepted      JobStatus = "accepted"
	JobExecutorReady JobStatus = "executor_ready"
	JobVolumesReady  JobStatus = "volumes_ready"
	JobRunning       JobStatus = "running"
	JobCompleted     JobStatus = "completed"
	JobFailed        JobStatus = "failed"
	JobExcused       JobStatus = "excused"
	JobRejected      JobStatus = "rejected"
	JobCheated       JobStatus = "cheated"
)

// OrganicJob is the persisted record of a single driven job, kept for
// audit purposes. The job driver does not write it: no component of
// this module calls PutJob, so job lifecycle state is not persisted.
type OrganicJob struct {
	JobUUID         string                  `json:"job_uuid"`
	MinerHotkey     metagraph.SS58          `json:"miner_hotkey"`
	MinerAddress    string                  `json:"miner_address"`
	MinerPort       int                     `json:"miner_port"`
	ExecutorClass   metagraph.ExecutorClass `json:"executor_class"`
	Block           int64                   `json:"block"`
	Status          JobStatus               `json:"status"`
	Comment         string                  `json:"comment"`
	Stdout          string                  `json:"stdout"`
	Stderr          string                  `json:"stderr"`
	ErrorType       string                  `json:"error_type,omitempty"`
	ErrorDetail     string                  `json:"error_detail,omitempty"`
	Artifacts       map[string]string       `json:"artifacts,omitempty"`
	OnTrustedMiner  bool                    `json:"on_trusted_miner"`
	CreatedAt       time.Time               `json:"created_at"`
}

const jobPrefix = "job/"

func jobKey(uuid string) []byte { return []byte(jobPrefix + uuid) }

func (s *Store) PutJob(j OrganicJob) error { return s.putJSON(jobKey(j.JobUUID), j) }

func (s *Store) GetJob(uuid string) (OrganicJob, bool, error) {
	var j OrganicJob
	ok, err := s.getJSON(jobKey(uuid), &j)
	return j, ok, err
}
