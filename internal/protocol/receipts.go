// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package protocol holds the wire types exchanged with the facilitator
// and with miners, plus the signed receipt payloads that form the
// validator's economic ledger.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nova-compute/validator/internal/metagraph"
)

// PayloadType discriminates the three receipt kinds.
type PayloadType string

const (
	PayloadJobStarted  PayloadType = "JobStarted"
	PayloadJobAccepted PayloadType = "JobAccepted"
	PayloadJobFinished PayloadType = "JobFinished"
)

// ReceiptPayload is the common shape of all three payload kinds.
type ReceiptPayload struct {
	Type            PayloadType          `json:"payload_type"`
	JobUUID         string               `json:"job_uuid"`
	MinerHotkey     metagraph.SS58       `json:"miner_hotkey"`
	ValidatorHotkey metagraph.SS58       `json:"validator_hotkey"`
	Timestamp       time.Time            `json:"timestamp"`
	ExecutorClass   metagraph.ExecutorClass `json:"executor_class"`
	IsOrganic       bool                 `json:"is_organic"`
	TTLSeconds      int                  `json:"ttl,omitempty"`
	TimeStarted     *time.Time           `json:"time_started,omitempty"`
	TimeTookUs      int64                `json:"time_took_us,omitempty"`
	ScoreStr        string               `json:"score_str,omitempty"`
}

// BlobForSigning returns the canonical bytes signed by validator and
// miner: a deterministic field order, producing the same canonical
// byte form before signature attachment on every call.
func (p ReceiptPayload) BlobForSigning() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "type=%s;job_uuid=%s;miner=%s;validator=%s;ts=%d;class=%s;organic=%t;ttl=%d",
		p.Type, p.JobUUID, p.MinerHotkey, p.ValidatorHotkey,
		p.Timestamp.UnixNano(), p.ExecutorClass, p.IsOrganic, p.TTLSeconds)
	return b.Bytes()
}

// Receipt is the signed tuple: payload plus both signatures.
type Receipt struct {
	Payload         ReceiptPayload `json:"payload"`
	ValidatorSig    string         `json:"validator_signature"`
	MinerSig        string         `json:"miner_signature"`
}

// Key identifies a receipt for deduplication: (job_uuid, payload_type).
func (r Receipt) Key() string { return string(r.Payload.Type) + ":" + r.Payload.JobUUID }

// MarshalLine renders the receipt as one line of a newline-delimited
// page, as served by GET /receipts/page/{page_id}.
func (r Receipt) MarshalLine() ([]byte, error) { return json.Marshal(r) }

// ParseLine parses one line of a receipt page.
func ParseLine(line []byte) (Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(line, &r); err != nil {
		return Receipt{}, err
	}
	return r, nil
}
