// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package store

import (
	"fmt"
	"time"

	"github.com/nova-compute/validator/internal/metagraph"
)

// Miner is a known network participant's reachable address.
type Miner struct {
	Hotkey  metagraph.SS58 `json:"hotkey"`
	Address string         `json:"address"`
	Port    int            `json:"port"`
	IPVer   int            `json:"ip_version"`
}

const minerPrefix = "miner/"

func minerKey(hotkey metagraph.SS58) []byte { return []byte(minerPrefix + string(hotkey)) }

func (s *Store) PutMiner(m Miner) error { return s.putJSON(minerKey(m.Hotkey), m) }

func (s *Store) GetMiner(hotkey metagraph.SS58) (Miner, bool, error) {
	var m Miner
	ok, err := s.getJSON(minerKey(hotkey), &m)
	return m, ok, err
}

func (s *Store) ListMiners() ([]Miner, error) {
	var out []Miner
	err := s.scanPrefix([]byte(minerPrefix), func(_, v []byte) (bool, error) {
		var m Miner
		if err := jsonUnmarshal(v, &m); err != nil {
			return false, err
		}
		out = append(out, m)
		return true, nil
	})
	return out, err
}

// MinerManifest is a miner's declared capacity for one executor class,
// recorded at the last synthetic-job batch.
type MinerManifest struct {
	MinerHotkey   metagraph.SS58          `json:"miner_hotkey"`
	ExecutorClass metagraph.ExecutorClass `json:"executor_class"`
	DeclaredCount int                     `json:"executor_count"`
	OnlineCount   int                     `json:"online_executor_count"`
	CreatedAt     time.Time               `json:"created_at"`
	BatchBlock    int64                   `json:"batch_block"`
}

const manifestPrefix = "manifest/"

func manifestKey(hotkey metagraph.SS58, class metagraph.ExecutorClass) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", manifestPrefix, hotkey, class))
}

func (s *Store) PutManifest(m MinerManifest) error {
	return s.putJSON(manifestKey(m.MinerHotkey, m.ExecutorClass), m)
}

func (s *Store) GetManifest(hotkey metagraph.SS58, class metagraph.ExecutorClass) (MinerManifest, bool, error) {
	var m MinerManifest
	ok, err := s.getJSON(manifestKey(hotkey, class), &m)
	return m, ok, err
}

func (s *Store) ListManifestsForClass(class metagraph.ExecutorClass) ([]MinerManifest, error) {
	var out []MinerManifest
	err := s.scanPrefix([]byte(manifestPrefix), func(_, v []byte) (bool, error) {
		var m MinerManifest
		if err := jsonUnmarshal(v, &m); err != nil {
			return false, err
		}
		if m.ExecutorClass == class {
			out = append(out, m)
		}
		return true, nil
	})
	return out, err
}

// BlacklistReason records why a miner was blacklisted.
type BlacklistReason string

const (
	BlacklistJobFailed     BlacklistReason = "JOB_FAILED"
	BlacklistInsufficientExcuse BlacklistReason = "INSUFFICIENT_EXCUSE"
	BlacklistJobCheated    BlacklistReason = "JOB_CHEATED"
)

// MinerBlacklist is a temporary ban on routing jobs to a miner.
type MinerBlacklist struct {
	MinerHotkey metagraph.SS58  `json:"miner_hotkey"`
	Reason      BlacklistReason `json:"reason"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

const blacklistPrefix = "blacklist/"

func blacklistKey(hotkey metagraph.SS58) []byte { return []byte(blacklistPrefix + string(hotkey)) }

func (s *Store) PutBlacklist(b MinerBlacklist) error { return s.putJSON(blacklistKey(b.MinerHotkey), b) }

// ActiveBlacklist returns the blacklist entry for hotkey if it exists
// and has not expired as of now.
func (s *Store) ActiveBlacklist(hotkey metagraph.SS58, now time.Time) (MinerBlacklist, bool, error) {
	var b MinerBlacklist
	ok, err := s.getJSON(blacklistKey(hotkey), &b)
	if err != nil || !ok {
		return MinerBlacklist{}, false, err
	}
	if !b.ExpiresAt.After(now) {
		return MinerBlacklist{}, false, nil
	}
	return b, true, nil
}
