// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package allowance

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nova-compute/validator/internal/vlog"
)

// AdvisoryLock is the subset of store.AdvisoryLock the backfill loop
// needs; declared locally so this package doesn't import internal/store.
type AdvisoryLock interface {
	TryAcquire() (bool, error)
	Release() error
}

// ErrLocked is returned by RunBackfill when another process already
// holds the ALLOWANCE_FETCHING lock.
var ErrLocked = errors.New("allowance: fetching lock held by another process")

// lockHoldTime mirrors the original Celery task's Lock(LockType.ALLOWANCE_FETCHING, 5.0).
const lockHoldTime = 5 * time.Second

// RunBackfill runs fn while holding the ALLOWANCE_FETCHING advisory
// lock, so only one process backfills earned allowance from the chain
// at a time. If the lock is already held, it returns ErrLocked
// immediately rather than blocking — the caller (a periodic task) is
// expected to simply retry on its next tick.
func RunBackfill(ctx context.Context, lock AdvisoryLock, log vlog.Logger, fn func(ctx context.Context) error) error {
	acquired, err := lock.TryAcquire()
	if err != nil {
		return errors.Wrap(err, "acquiring allowance fetching lock")
	}
	if !acquired {
		return ErrLocked
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("failed to release allowance fetching lock", "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, lockHoldTime)
	defer cancel()
	return fn(ctx)
}
