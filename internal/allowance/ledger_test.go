// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package allowance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/metagraph"
)

const class = metagraph.DefaultExecutorClass

func TestEarnAndReserve(t *testing.T) {
	l := New(12*time.Second, 0)
	l.Earn("hot1", class, 100, 2) // 2 slots * 12s = 24s

	require.Equal(t, 24.0, l.Available("hot1", class))

	r, err := l.Reserve("hot1", class, 20, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 4.0, l.Available("hot1", class))
	require.Equal(t, ReservationActive, r.State)
}

func TestReserveInsufficientAllowance(t *testing.T) {
	l := New(12*time.Second, 0)
	l.Earn("hot1", class, 100, 1) // 12s

	_, err := l.Reserve("hot1", class, 50, time.Now().Add(time.Minute))
	require.Error(t, err)
	var cannotReserve *CannotReserveAllowanceError
	require.ErrorAs(t, err, &cannotReserve)
	require.Equal(t, 12.0, cannotReserve.AvailableAllowanceSeconds)
}

func TestSpendDebitsOldestCellsFirst(t *testing.T) {
	l := New(10*time.Second, 0)
	l.Earn("hot1", class, 1, 1) // 10s at block 1
	l.Earn("hot1", class, 2, 1) // 10s at block 2

	r, err := l.Reserve("hot1", class, 15, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, l.Spend(r.ID))

	// 15 of 20 spent, all from the oldest cell first: cell@1 (10) fully
	// consumed, cell@2 partially consumed by 5, leaving 5 available.
	require.Equal(t, 5.0, l.Available("hot1", class))
}

func TestReleaseReturnsSecondsToPool(t *testing.T) {
	l := New(10*time.Second, 0)
	l.Earn("hot1", class, 1, 1)
	r, err := l.Reserve("hot1", class, 10, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0.0, l.Available("hot1", class))

	require.NoError(t, l.Release(r.ID))
	require.Equal(t, 10.0, l.Available("hot1", class))
}

func TestSpendUnknownOrAlreadyResolvedReservation(t *testing.T) {
	l := New(10*time.Second, 0)
	err := l.Spend("does-not-exist")
	require.Error(t, err)
	var notFound *ReservationNotFoundError
	require.ErrorAs(t, err, &notFound)

	l.Earn("hot1", class, 1, 1)
	r, err := l.Reserve("hot1", class, 5, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, l.Spend(r.ID))

	err = l.Spend(r.ID)
	require.Error(t, err)
	var alreadySpent *ReservationAlreadySpentError
	require.ErrorAs(t, err, &alreadySpent)
}

func TestExpireStaleReleasesReservation(t *testing.T) {
	l := New(10*time.Second, 0)
	l.Earn("hot1", class, 1, 1)
	past := time.Now().Add(-time.Second)
	r, err := l.Reserve("hot1", class, 10, past)
	require.NoError(t, err)
	require.Equal(t, 0.0, l.Available("hot1", class))

	n := l.ExpireStale(time.Now())
	require.Equal(t, 1, n)
	require.Equal(t, 10.0, l.Available("hot1", class))
	require.Equal(t, ReservationExpired, r.State)
}

func TestGCForfeitsOldCells(t *testing.T) {
	l := New(10*time.Second, 5)
	l.Earn("hot1", class, 1, 1)
	l.Earn("hot1", class, 100, 1)

	l.GC(105) // cutoff = 100, block 1 cell forfeited, block 100 retained
	require.Equal(t, 10.0, l.Available("hot1", class))
}

func TestFindBestMinerPicksMostAvailable(t *testing.T) {
	l := New(10*time.Second, 0)
	l.Earn("hot1", class, 1, 1) // 10s
	l.Earn("hot2", class, 1, 3) // 30s

	best, err := l.FindBestMiner([]metagraph.SS58{"hot1", "hot2"}, class, 15)
	require.NoError(t, err)
	require.Equal(t, metagraph.SS58("hot2"), best)
}

func TestFindBestMinerReturnsDiagnosticsWhenNoneQualify(t *testing.T) {
	l := New(10*time.Second, 0)
	l.Earn("hot1", class, 1, 1) // 10s

	_, err := l.FindBestMiner([]metagraph.SS58{"hot1"}, class, 100)
	require.Error(t, err)
	var notEnough *NotEnoughAllowanceError
	require.ErrorAs(t, err, &notEnough)
	require.Equal(t, metagraph.SS58("hot1"), notEnough.HighestAvailableAllowanceSS58)
	require.Equal(t, 10.0, notEnough.HighestAvailableAllowance)
}
