// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package allowance

import (
	"fmt"

	"github.com/nova-compute/validator/internal/metagraph"
)

// CannotReserveAllowanceError reports that a miner does not have
// enough unspent allowance seconds to cover a reservation request.
type CannotReserveAllowanceError struct {
	Miner                    metagraph.SS58
	RequiredAllowanceSeconds float64
	AvailableAllowanceSeconds float64
}

func (e *CannotReserveAllowanceError) Error() string {
	return fmt.Sprintf("cannot reserve allowance for %s: required %.2fs, available %.2fs",
		e.Miner, e.RequiredAllowanceSeconds, e.AvailableAllowanceSeconds)
}

// NotEnoughAllowanceError reports that no miner in the candidate set
// has sufficient allowance, surfacing the best two candidates found so
// the router can log a useful diagnostic.
type NotEnoughAllowanceError struct {
	HighestAvailableAllowance     float64
	HighestAvailableAllowanceSS58 metagraph.SS58
	HighestUnspentAllowance       float64
	HighestUnspentAllowanceSS58   metagraph.SS58
}

func (e *NotEnoughAllowanceError) Error() string {
	return fmt.Sprintf("no miner has enough allowance: best available %.2fs (%s), best unspent %.2fs (%s)",
		e.HighestAvailableAllowance, e.HighestAvailableAllowanceSS58,
		e.HighestUnspentAllowance, e.HighestUnspentAllowanceSS58)
}

// ReservationNotFoundError is returned by Spend/Release when the
// reservation id is unknown.
type ReservationNotFoundError struct {
	ReservationID string
}

func (e *ReservationNotFoundError) Error() string {
	return fmt.Sprintf("reservation not found: %s", e.ReservationID)
}

// ReservationAlreadySpentError is returned by Spend/Release when the
// reservation has already transitioned out of the active state.
type ReservationAlreadySpentError struct {
	ReservationID string
}

func (e *ReservationAlreadySpentError) Error() string {
	return fmt.Sprintf("reservation already spent or released: %s", e.ReservationID)
}

// NeuronSnapshotMissingError is returned when allowance accounting
// needs a metagraph snapshot for a block that was never recorded.
type NeuronSnapshotMissingError struct {
	Block int64
}

func (e *NeuronSnapshotMissingError) Error() string {
	return fmt.Sprintf("neuron snapshot missing for block %d", e.Block)
}
