// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package allowance is the ledger of compute-time seconds each miner
// has earned by declaring online executor slots, and the reservation
// lifecycle (reserve, spend, release, expire) the router uses to avoid
// double-booking a busy miner.
package allowance

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nova-compute/validator/internal/metagraph"
)

// ReservationState is the lifecycle of one Reserve call.
type ReservationState string

const (
	ReservationActive   ReservationState = "active"
	ReservationSpent    ReservationState = "spent"
	ReservationReleased ReservationState = "released"
	ReservationExpired  ReservationState = "expired"
)

// Reservation is a hold against a miner's available allowance, created
// by Reserve and resolved by exactly one of Spend, Release or the
// passive ExpireStale sweep.
type Reservation struct {
	ID            string
	MinerHotkey   metagraph.SS58
	ExecutorClass metagraph.ExecutorClass
	Seconds       float64
	State         ReservationState
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// cell is one block's worth of earned, partially-spendable allowance.
// Cells are consumed oldest-first so a miner's earliest-earned seconds
// are spent before its most recent.
type cell struct {
	block    int64
	seconds  float64
	earnedAt time.Time
}

type acctKey struct {
	hotkey metagraph.SS58
	class  metagraph.ExecutorClass
}

type account struct {
	mu              sync.Mutex
	cells           []*cell
	reservedSeconds float64
}

func (a *account) available() float64 {
	total := 0.0
	for _, c := range a.cells {
		total += c.seconds
	}
	return total - a.reservedSeconds
}

func (a *account) unspent() float64 {
	total := 0.0
	for _, c := range a.cells {
		total += c.seconds
	}
	return total
}

// Ledger is the accounting layer over per-(miner, executor class)
// accounts. All mutation goes through per-account locks so distinct
// miners never contend.
type Ledger struct {
	mu            sync.RWMutex
	accounts      map[acctKey]*account
	reservations  map[string]*Reservation
	resMu         sync.Mutex
	blockDuration time.Duration
	retention     int64 // blocks; cells older than (current - retention) are forfeit on GC
}

// New builds an empty Ledger. blockDuration is the chain's expected
// seconds-per-block, used to convert a manifest's declared slot count
// into earned allowance-seconds. retentionBlocks bounds how long
// unspent allowance survives before GC forfeits it.
func New(blockDuration time.Duration, retentionBlocks int64) *Ledger {
	return &Ledger{
		accounts:      make(map[acctKey]*account),
		reservations:  make(map[string]*Reservation),
		blockDuration: blockDuration,
		retention:     retentionBlocks,
	}
}

func (l *Ledger) accountFor(hotkey metagraph.SS58, class metagraph.ExecutorClass) *account {
	key := acctKey{hotkey, class}
	l.mu.RLock()
	a, ok := l.accounts[key]
	l.mu.RUnlock()
	if ok {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok = l.accounts[key]
	if !ok {
		a = &account{}
		l.accounts[key] = a
	}
	return a
}

// Earn credits hotkey with declaredCount slots' worth of allowance for
// block, pro-rated by the ledger's block duration.
func (l *Ledger) Earn(hotkey metagraph.SS58, class metagraph.ExecutorClass, block int64, declaredCount int) {
	if declaredCount <= 0 {
		return
	}
	seconds := float64(declaredCount) * l.blockDuration.Seconds()
	a := l.accountFor(hotkey, class)
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.cells); n > 0 && a.cells[n-1].block == block {
		a.cells[n-1].seconds += seconds
		return
	}
	a.cells = append(a.cells, &cell{block: block, seconds: seconds, earnedAt: time.Now()})
}

// Available returns hotkey's currently reservable allowance seconds
// for class.
func (l *Ledger) Available(hotkey metagraph.SS58, class metagraph.ExecutorClass) float64 {
	a := l.accountFor(hotkey, class)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available()
}

// Reserve holds requiredSeconds of hotkey's allowance, returning a
// Reservation that expires at expiresAt unless spent or released
// first. It fails with CannotReserveAllowanceError if insufficient
// allowance is available.
func (l *Ledger) Reserve(hotkey metagraph.SS58, class metagraph.ExecutorClass, requiredSeconds float64, expiresAt time.Time) (*Reservation, error) {
	a := l.accountFor(hotkey, class)
	a.mu.Lock()
	available := a.available()
	if available < requiredSeconds {
		a.mu.Unlock()
		return nil, &CannotReserveAllowanceError{
			Miner:                     hotkey,
			RequiredAllowanceSeconds:  requiredSeconds,
			AvailableAllowanceSeconds: available,
		}
	}
	a.reservedSeconds += requiredSeconds
	a.mu.Unlock()

	r := &Reservation{
		ID:            uuid.NewString(),
		MinerHotkey:   hotkey,
		ExecutorClass: class,
		Seconds:       requiredSeconds,
		State:         ReservationActive,
		CreatedAt:     time.Now(),
		ExpiresAt:     expiresAt,
	}
	l.resMu.Lock()
	l.reservations[r.ID] = r
	l.resMu.Unlock()
	return r, nil
}

// Spend commits a reservation: its seconds are debited from the
// oldest cells first and the reservation transitions to spent.
func (l *Ledger) Spend(reservationID string) error {
	r, err := l.takeActive(reservationID)
	if err != nil {
		return err
	}
	a := l.accountFor(r.MinerHotkey, r.ExecutorClass)
	a.mu.Lock()
	remaining := r.Seconds
	i := 0
	for remaining > 0 && i < len(a.cells) {
		c := a.cells[i]
		if c.seconds <= remaining {
			remaining -= c.seconds
			c.seconds = 0
			i++
			continue
		}
		c.seconds -= remaining
		remaining = 0
	}
	a.cells = a.cells[i:]
	a.reservedSeconds -= r.Seconds
	a.mu.Unlock()

	l.resMu.Lock()
	r.State = ReservationSpent
	l.resMu.Unlock()
	return nil
}

// Release returns a reservation's held seconds to the available pool
// without debiting any cell, e.g. when a job is excused or a miner
// declines before starting.
func (l *Ledger) Release(reservationID string) error {
	r, err := l.takeActive(reservationID)
	if err != nil {
		return err
	}
	a := l.accountFor(r.MinerHotkey, r.ExecutorClass)
	a.mu.Lock()
	a.reservedSeconds -= r.Seconds
	a.mu.Unlock()

	l.resMu.Lock()
	r.State = ReservationReleased
	l.resMu.Unlock()
	return nil
}

// HasActiveReservation reports whether hotkey currently holds a live
// (not yet spent, released or expired) reservation for class. The
// router uses this to keep a second concurrent pick from landing on a
// miner that is mid-handshake but hasn't yet produced a JobStarted
// receipt.
func (l *Ledger) HasActiveReservation(hotkey metagraph.SS58, class metagraph.ExecutorClass) bool {
	l.resMu.Lock()
	defer l.resMu.Unlock()
	for _, r := range l.reservations {
		if r.State == ReservationActive && r.MinerHotkey == hotkey && r.ExecutorClass == class {
			return true
		}
	}
	return false
}

func (l *Ledger) takeActive(reservationID string) (*Reservation, error) {
	l.resMu.Lock()
	defer l.resMu.Unlock()
	r, ok := l.reservations[reservationID]
	if !ok {
		return nil, &ReservationNotFoundError{ReservationID: reservationID}
	}
	if r.State != ReservationActive {
		return nil, &ReservationAlreadySpentError{ReservationID: reservationID}
	}
	return r, nil
}

// ExpireStale releases every active reservation whose ExpiresAt is at
// or before now, returning how many it released. The router calls this
// periodically so a miner that never sent a JobStarted receipt isn't
// permanently marked busy.
func (l *Ledger) ExpireStale(now time.Time) int {
	l.resMu.Lock()
	var stale []*Reservation
	for _, r := range l.reservations {
		if r.State == ReservationActive && !now.Before(r.ExpiresAt) {
			stale = append(stale, r)
		}
	}
	l.resMu.Unlock()

	for _, r := range stale {
		a := l.accountFor(r.MinerHotkey, r.ExecutorClass)
		a.mu.Lock()
		a.reservedSeconds -= r.Seconds
		a.mu.Unlock()
		l.resMu.Lock()
		r.State = ReservationExpired
		l.resMu.Unlock()
	}
	return len(stale)
}

// GC forfeits cells earned before currentBlock - retention, bounding
// how long a miner can stockpile unused allowance.
func (l *Ledger) GC(currentBlock int64) {
	if l.retention <= 0 {
		return
	}
	cutoff := currentBlock - l.retention
	l.mu.RLock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	for _, a := range accounts {
		a.mu.Lock()
		i := 0
		for i < len(a.cells) && a.cells[i].block < cutoff {
			i++
		}
		a.cells = a.cells[i:]
		a.mu.Unlock()
	}
}

// FindBestMiner picks the candidate with the most available allowance
// for class, provided it covers requiredSeconds. If none qualifies it
// returns NotEnoughAllowanceError describing the best available and
// best unspent candidates, for router diagnostics.
func (l *Ledger) FindBestMiner(candidates []metagraph.SS58, class metagraph.ExecutorClass, requiredSeconds float64) (metagraph.SS58, error) {
	var bestAvailableHotkey, bestUnspentHotkey metagraph.SS58
	bestAvailable, bestUnspent := -1.0, -1.0

	for _, hk := range candidates {
		a := l.accountFor(hk, class)
		a.mu.Lock()
		avail := a.available()
		unspent := a.unspent()
		a.mu.Unlock()

		if avail > bestAvailable {
			bestAvailable, bestAvailableHotkey = avail, hk
		}
		if unspent > bestUnspent {
			bestUnspent, bestUnspentHotkey = unspent, hk
		}
	}

	if bestAvailable >= requiredSeconds {
		return bestAvailableHotkey, nil
	}
	return "", &NotEnoughAllowanceError{
		HighestAvailableAllowance:     bestAvailable,
		HighestAvailableAllowanceSS58: bestAvailableHotkey,
		HighestUnspentAllowance:       bestUnspent,
		HighestUnspentAllowanceSS58:   bestUnspentHotkey,
	}
}
