// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package store

import (
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockedError marks a locked condition for IsLocked. Nothing in this
// package returns it: TryAcquire reports contention as (false, nil).
type lockedError struct{ name string }

func (e *lockedError) Error() string { return "locked: " + e.name }

// AdvisoryLock is a cross-process mutual-exclusion primitive backed by
// a file lock, standing in for the relational store's row-level
// advisory lock (used to serialize allowance-fetching sweeps across
// validator processes sharing one store).
type AdvisoryLock struct {
	fl *flock.Flock
}

// AdvisoryLock returns the named advisory lock, a file name+".lock" in
// the caller-supplied dir; the store's own directory is not consulted.
func (s *Store) AdvisoryLock(dir, name string) *AdvisoryLock {
	path := filepath.Join(dir, name+".lock")
	return &AdvisoryLock{fl: flock.New(path)}
}

// TryAcquire attempts a non-blocking lock. It returns (true, nil) if
// acquired, (false, nil) if another holder has it, or a non-nil error
// on I/O failure.
func (l *AdvisoryLock) TryAcquire() (bool, error) {
	return l.fl.TryLock()
}

// Release gives up the lock. Safe to call even if never acquired.
func (l *AdvisoryLock) Release() error {
	return l.fl.Unlock()
}

// IsLocked reports whether Error wraps a locked condition (reserved
// for symmetry with the allowance package's Locked sentinel; the
// Store layer itself only ever returns (false, nil) for contention).
func IsLocked(err error) bool {
	_, ok := err.(*lockedError)
	return ok
}
