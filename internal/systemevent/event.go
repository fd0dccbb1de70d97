// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package systemevent defines the audit-trail Event and the Recorder
// that persists it. internal/store and LogRecorder implement Recorder;
// no component of this module calls Record on its failure paths.
package systemevent

import (
	"encoding/json"
	"time"

	"github.com/nova-compute/validator/internal/vlog"
)

// Type groups events by the subsystem that raised them.
type Type string

const (
	TypeAllowance      Type = "ALLOWANCE"
	TypeRouting        Type = "ROUTING"
	TypeOrganicJob     Type = "ORGANIC_JOB"
	TypeReceiptTransfer Type = "RECEIPT_TRANSFER"
	TypeChain          Type = "CHAIN"
)

// Subtype further narrows an event within its Type.
type Subtype string

const (
	SubtypeSuccess                 Subtype = "SUCCESS"
	SubtypeFailure                 Subtype = "FAILURE"
	SubtypeMinerConnectionError    Subtype = "MINER_CONNECTION_ERROR"
	SubtypeJobNotStarted           Subtype = "JOB_NOT_STARTED"
	SubtypeJobExcused              Subtype = "JOB_EXCUSED"
	SubtypeJobRejected             Subtype = "JOB_REJECTED"
	SubtypeJobExecutionTimeout     Subtype = "JOB_EXECUTION_TIMEOUT"
	SubtypeErrorDownloadingHF      Subtype = "ERROR_DOWNLOADING_FROM_HUGGINGFACE"
)

// Event is one audited failure or success, mirroring a relational
// SystemEvent table: type, subtype, a human description and a
// structured data blob for the offending component's state.
type Event struct {
	Type            Type           `json:"type"`
	Subtype         Subtype        `json:"subtype"`
	LongDescription string         `json:"long_description"`
	Data            map[string]any `json:"data,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Recorder persists Events. The store-backed implementation lives in
// internal/store to avoid a dependency cycle; this package only
// defines the interface and a log-only fallback.
type Recorder interface {
	Record(e Event) error
}

// LogRecorder writes events to a Logger instead of persisting them;
// used by components that run before a Store is available (e.g. very
// early startup failures).
type LogRecorder struct{ Logger vlog.Logger }

func (r LogRecorder) Record(e Event) error {
	data, _ := json.Marshal(e.Data)
	r.Logger.Warn("system event", "type", e.Type, "subtype", e.Subtype, "description", e.LongDescription, "data", string(data))
	return nil
}

// New builds an Event stamped with the current time.
func New(typ Type, subtype Subtype, longDescription string, data map[string]any) Event {
	return Event{Type: typ, Subtype: subtype, LongDescription: longDescription, Data: data, CreatedAt: time.Now()}
}
