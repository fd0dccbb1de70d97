// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package metagraph holds the core chain-derived data model: neurons,
// validators, manifests and per-block metagraph snapshots.
package metagraph

import "time"

// SS58 is a chain address. It is a distinct type (rather than a bare
// string) so hotkeys and coldkeys cannot be silently swapped at call
// sites, the same way common.Hash and common.Address wrap raw bytes
// instead of passing them around untyped.
type SS58 string

// ExecutorClass is a categorical capacity descriptor for a miner's
// workers (e.g. "spin_up-4min.gpu-24gb").
type ExecutorClass string

// DefaultExecutorClass is used by tests and the trusted-miner path.
const DefaultExecutorClass ExecutorClass = "always_on.gpu-24gb"

// MinValidatorStake is the stake threshold (in the chain's native
// staking unit) at or above which a Neuron is also a Validator.
const MinValidatorStake = 1000.0

// Axon is a miner's reachable endpoint, or the zero value if the
// neuron is not serving.
type Axon struct {
	IP   string
	Port uint16
}

func (a Axon) Serving() bool { return a.IP != "" && a.IP != "0.0.0.0" }

// Neuron is a registered participant in the subnet.
type Neuron struct {
	UID     uint16
	Hotkey  SS58
	Coldkey SS58
	Axon    Axon
	Stake   float64
}

func (n Neuron) IsValidator() bool { return n.Stake >= MinValidatorStake }

// Validator is the subset of Neurons with Stake >= MinValidatorStake,
// annotated with their effective (subnet-weighted) stake.
type Validator struct {
	UID            uint16
	Hotkey         SS58
	EffectiveStake float64
}

// SubnetState is the slice of chain-reported per-neuron aggregates the
// ledger needs; total stake is indexed by UID.
type SubnetState struct {
	TotalStake []float64
}

// Snapshot is an immutable view of the metagraph as of Block. It is
// reproducible purely from (ChainOracle, Block): the same oracle asked
// for the same block always rebuilds the same snapshot.
type Snapshot struct {
	Block          int64
	BlockHash      string
	BlockTimestamp time.Time
	UIDs           []uint16
	Hotkeys        []SS58
	ServingHotkeys []SS58
	TotalStake     []float64
}

// Manifest is a miner's declared capacity for one executor class as of
// a synthetic-job batch.
type Manifest struct {
	MinerHotkey     SS58
	ExecutorClass   ExecutorClass
	DeclaredCount   int
	OnlineCount     int
	CreatedAt       time.Time
	SyntheticBatch  int64
}

// IsServing reports whether hotkey appears in the snapshot's serving set.
func (s *Snapshot) IsServing(hotkey SS58) bool {
	for _, h := range s.ServingHotkeys {
		if h == hotkey {
			return true
		}
	}
	return false
}
