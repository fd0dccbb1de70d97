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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/vlog"
)

type fakeLock struct {
	acquired bool
	released bool
}

func (f *fakeLock) TryAcquire() (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release() error {
	f.released = true
	f.acquired = false
	return nil
}

func TestRunBackfillRunsFnUnderLock(t *testing.T) {
	lock := &fakeLock{}
	ran := false
	err := RunBackfill(context.Background(), lock, vlog.Root(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, lock.released)
}

func TestRunBackfillReturnsLockedWhenHeld(t *testing.T) {
	lock := &fakeLock{acquired: true}
	err := RunBackfill(context.Background(), lock, vlog.Root(), func(ctx context.Context) error {
		t.Fatal("fn should not run while locked")
		return nil
	})
	require.ErrorIs(t, err, ErrLocked)
}
