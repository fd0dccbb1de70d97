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

	"github.com/nova-compute/validator/internal/metagraph"
)

const snapshotPrefix = "snapshot/"
const latestSnapshotKey = "snapshot_latest"

func snapshotKey(block int64) []byte { return []byte(fmt.Sprintf("%s%020d", snapshotPrefix, block)) }

// PutSnapshot persists a metagraph snapshot and updates the
// latest-snapshot pointer if block is the newest seen so far.
func (s *Store) PutSnapshot(snap metagraph.Snapshot) error {
	if err := s.putJSON(snapshotKey(snap.Block), snap); err != nil {
		return err
	}
	latest, ok, err := s.LatestSnapshot()
	if err != nil {
		return err
	}
	if !ok || snap.Block > latest.Block {
		return s.putJSON([]byte(latestSnapshotKey), snap)
	}
	return nil
}

func (s *Store) GetSnapshot(block int64) (metagraph.Snapshot, bool, error) {
	var snap metagraph.Snapshot
	ok, err := s.getJSON(snapshotKey(block), &snap)
	return snap, ok, err
}

// LatestSnapshot returns the snapshot with the highest block stored so
// far. Within this module only PutSnapshot calls it.
func (s *Store) LatestSnapshot() (metagraph.Snapshot, bool, error) {
	var snap metagraph.Snapshot
	ok, err := s.getJSON([]byte(latestSnapshotKey), &snap)
	return snap, ok, err
}
