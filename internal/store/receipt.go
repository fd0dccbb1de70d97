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
	"github.com/nova-compute/validator/internal/protocol"
)

const receiptPrefix = "receipt/"

func receiptKey(r protocol.Receipt) []byte {
	return []byte(receiptPrefix + r.Key())
}

// PutReceipt persists a receipt, deduplicated by (job_uuid,
// payload_type). Returns whether the receipt was new.
func (s *Store) PutReceipt(r protocol.Receipt) (inserted bool, err error) {
	var existing protocol.Receipt
	ok, err := s.getJSON(receiptKey(r), &existing)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	return true, s.putJSON(receiptKey(r), r)
}

// GetReceipt looks up a receipt by job uuid and payload type.
func (s *Store) GetReceipt(jobUUID string, payloadType protocol.PayloadType) (protocol.Receipt, bool, error) {
	var r protocol.Receipt
	ok, err := s.getJSON([]byte(receiptPrefix+string(payloadType)+":"+jobUUID), &r)
	return r, ok, err
}

// CountActiveJobStarted counts JobStarted receipts for (hotkey, class)
// whose TTL has not elapsed as of now — used by the router to
// determine "busy" miners.
func (s *Store) CountActiveJobStarted(hotkey metagraph.SS58, class metagraph.ExecutorClass, now time.Time) (int, error) {
	count := 0
	err := s.scanPrefix([]byte(receiptPrefix+string("JobStarted")), func(_, v []byte) (bool, error) {
		var r protocol.Receipt
		if err := jsonUnmarshal(v, &r); err != nil {
			return false, err
		}
		if r.Payload.MinerHotkey != hotkey || r.Payload.ExecutorClass != class {
			return true, nil
		}
		ttl := time.Duration(r.Payload.TTLSeconds) * time.Second
		if r.Payload.Timestamp.Add(ttl).After(now) {
			count++
		}
		return true, nil
	})
	return count, err
}

// HasJobFinished reports whether a JobFinished receipt exists for
// jobUUID.
func (s *Store) HasJobFinished(jobUUID string) (bool, error) {
	_, ok, err := s.GetReceipt(jobUUID, protocol.PayloadJobFinished)
	return ok, err
}

// CountValidExcuses counts excuse receipts matching the excuse policy's
// criteria: validator stake floor, timestamp at or before checkTime,
// same executor class, non-synthetic, same miner.
func (s *Store) CountValidExcuses(
	minerHotkey metagraph.SS58,
	class metagraph.ExecutorClass,
	declinedJobUUID string,
	checkTime time.Time,
	receipts []protocol.Receipt,
	validatorStake func(metagraph.SS58) float64,
	minimumValidatorStake float64,
) int {
	count := 0
	for _, r := range receipts {
		if r.Payload.Type != protocol.PayloadJobStarted {
			continue
		}
		if r.Payload.MinerHotkey != minerHotkey {
			continue
		}
		if r.Payload.ExecutorClass != class {
			continue
		}
		if !r.Payload.IsOrganic {
			// synthetic receipts don't count as excuses
			continue
		}
		if r.Payload.JobUUID == declinedJobUUID {
			continue
		}
		if r.Payload.Timestamp.After(checkTime) {
			continue
		}
		if validatorStake(r.Payload.ValidatorHotkey) < minimumValidatorStake {
			continue
		}
		count++
	}
	return count
}
