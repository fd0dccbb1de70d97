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
)

// Cycle is a span of blocks aligning synthetic-job batches.
type Cycle struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
}

// SyntheticJobBatch records when a cycle's manifests were collected.
type SyntheticJobBatch struct {
	Block     int64     `json:"block"`
	CreatedAt time.Time `json:"created_at"`
	CycleStart int64    `json:"cycle_start"`
}

const cyclePrefix = "cycle/"

func cycleKey(start int64) []byte { return []byte(fmt.Sprintf("%s%020d", cyclePrefix, start)) }

func (s *Store) PutCycle(c Cycle) error { return s.putJSON(cycleKey(c.Start), c) }

func (s *Store) LatestCycle() (Cycle, bool, error) {
	var latest Cycle
	found := false
	err := s.scanPrefix([]byte(cyclePrefix), func(_, v []byte) (bool, error) {
		var c Cycle
		if err := jsonUnmarshal(v, &c); err != nil {
			return false, err
		}
		if !found || c.Start > latest.Start {
			latest = c
			found = true
		}
		return true, nil
	})
	return latest, found, err
}
