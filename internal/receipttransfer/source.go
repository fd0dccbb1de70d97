// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package receipttransfer

import (
	"context"

	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/store"
)

// MinerEndpoint is a miner's network address for receipt-page fetches.
type MinerEndpoint struct {
	Hotkey  metagraph.SS58
	Address string
	Port    int
}

// MinerSource enumerates which miners to sweep for receipt pages.
type MinerSource interface {
	ActiveMiners(ctx context.Context) ([]MinerEndpoint, error)
}

// MetagraphMinerSource lists every miner the store knows a connection
// address for — the production source.
type MetagraphMinerSource struct {
	Store *store.Store
}

func (s MetagraphMinerSource) ActiveMiners(ctx context.Context) ([]MinerEndpoint, error) {
	miners, err := s.Store.ListMiners()
	if err != nil {
		return nil, err
	}
	out := make([]MinerEndpoint, len(miners))
	for i, m := range miners {
		out[i] = MinerEndpoint{Hotkey: m.Hotkey, Address: m.Address, Port: m.Port}
	}
	return out, nil
}

// StaticMinerSource always returns a single fixed endpoint, for the
// operator debug override (--debug-miner-hotkey/--debug-miner-ip
// /--debug-miner-port).
type StaticMinerSource struct {
	Endpoint MinerEndpoint
}

func (s StaticMinerSource) ActiveMiners(ctx context.Context) ([]MinerEndpoint, error) {
	return []MinerEndpoint{s.Endpoint}, nil
}
