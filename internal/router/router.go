// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package router picks the miner that should run an organic job,
// balancing fairness (spend the allowance ledger evenly), correctness
// (never hand a job to a busy or blacklisted miner) and liveness (an
// atomic preliminary reservation so two concurrent routing calls never
// pick the same idle miner).
package router

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nova-compute/validator/internal/allowance"
	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/store"
)

// NoMinerForExecutorType is returned when no non-blacklisted miner has
// declared any online slots for the requested executor class.
type NoMinerForExecutorType struct {
	ExecutorClass metagraph.ExecutorClass
}

func (e *NoMinerForExecutorType) Error() string {
	return fmt.Sprintf("no miner online for executor class %s", e.ExecutorClass)
}

// AllMinersBusy is returned when every miner declaring the requested
// executor class is already at its declared capacity.
type AllMinersBusy struct {
	ExecutorClass metagraph.ExecutorClass
	Candidates    int
}

func (e *AllMinersBusy) Error() string {
	return fmt.Sprintf("all %d miners for executor class %s are busy", e.Candidates, e.ExecutorClass)
}

// JobRequest is the routing-relevant subset of an organic job request.
type JobRequest struct {
	ExecutorClass     metagraph.ExecutorClass
	DownloadTimeLimit time.Duration
	ExecutionTimeLimit time.Duration
	UploadTimeLimit   time.Duration
	OnTrustedMiner    bool
}

func (r JobRequest) requiredAllowanceSeconds() float64 {
	return (r.DownloadTimeLimit + r.ExecutionTimeLimit + r.UploadTimeLimit).Seconds()
}

// Pick is the outcome of a successful routing decision.
type Pick struct {
	Miner       store.Miner
	Reservation *allowance.Reservation
}

// Router selects miners for organic jobs.
type Router struct {
	store                    *store.Store
	ledger                   *allowance.Ledger
	trustedMiner             *store.Miner
	preliminaryReservationTTL time.Duration
	now                      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithTrustedMiner designates a fixed miner that bypasses routing
// entirely, used for trusted/debug job execution.
func WithTrustedMiner(m store.Miner) Option {
	return func(r *Router) { r.trustedMiner = &m }
}

// WithClock overrides the router's notion of "now", for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New builds a Router over st and ledger. preliminaryReservationTTL
// should equal the dynamic config's
// ROUTING_PRELIMINARY_RESERVATION_TIME_SECONDS.
func New(st *store.Store, ledger *allowance.Ledger, preliminaryReservationTTL time.Duration, opts ...Option) *Router {
	r := &Router{
		store:                     st,
		ledger:                    ledger,
		preliminaryReservationTTL: preliminaryReservationTTL,
		now:                       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PickMiner runs the six-step selection algorithm: trusted bypass,
// candidate filtering by manifest and blacklist, busy-exclusion by
// JobStarted receipts, live-reservation exclusion, allowance-based
// selection and a preliminary reservation. Reservations past their
// ExpiresAt are expired first.
func (r *Router) PickMiner(req JobRequest) (*Pick, error) {
	if req.OnTrustedMiner {
		if r.trustedMiner == nil {
			return nil, errors.New("router: OnTrustedMiner requested but no trusted miner configured")
		}
		return &Pick{Miner: *r.trustedMiner}, nil
	}

	now := r.now()
	r.ledger.ExpireStale(now)
	candidates, err := r.candidateHotkeys(req.ExecutorClass, now)
	if err != nil {
		return nil, err
	}
	if candidates.all.Cardinality() == 0 {
		return nil, &NoMinerForExecutorType{ExecutorClass: req.ExecutorClass}
	}
	if candidates.idle.Cardinality() == 0 {
		return nil, &AllMinersBusy{ExecutorClass: req.ExecutorClass, Candidates: candidates.all.Cardinality()}
	}

	required := req.requiredAllowanceSeconds()
	picked, err := r.ledger.FindBestMiner(candidates.idle.ToSlice(), req.ExecutorClass, required)
	if err != nil {
		return nil, err
	}

	reservation, err := r.ledger.Reserve(picked, req.ExecutorClass, required, now.Add(r.preliminaryReservationTTL))
	if err != nil {
		return nil, err
	}

	miner, ok, err := r.store.GetMiner(picked)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf("router: miner %s selected but has no connection record", picked)
	}
	return &Pick{Miner: miner, Reservation: reservation}, nil
}

// candidateSet tracks the miners known to declare the requested
// executor class online. Declarations are deduplicated by hotkey the
// same way a peer tracks its set of known transaction/block hashes.
type candidateSet struct {
	all  mapset.Set[metagraph.SS58] // every non-blacklisted miner declaring the class online
	idle mapset.Set[metagraph.SS58] // of those, not currently at declared capacity
}

func (r *Router) candidateHotkeys(class metagraph.ExecutorClass, now time.Time) (candidateSet, error) {
	set := candidateSet{all: mapset.NewSet[metagraph.SS58](), idle: mapset.NewSet[metagraph.SS58]()}
	manifests, err := r.store.ListManifestsForClass(class)
	if err != nil {
		return set, err
	}

	for _, m := range manifests {
		if m.OnlineCount <= 0 {
			continue
		}
		_, blacklisted, err := r.store.ActiveBlacklist(m.MinerHotkey, now)
		if err != nil {
			return set, err
		}
		if blacklisted {
			continue
		}
		set.all.Add(m.MinerHotkey)

		busy, err := r.store.CountActiveJobStarted(m.MinerHotkey, class, now)
		if err != nil {
			return set, err
		}
		if busy >= m.OnlineCount {
			continue
		}
		// A miner can be mid-handshake on a job it has already been
		// preliminarily reserved for without yet having emitted a
		// JobStarted receipt (CountActiveJobStarted wouldn't see it).
		// Exclude it too, so a second concurrent pick doesn't land on
		// the same miner before the reservation resolves.
		if r.ledger.HasActiveReservation(m.MinerHotkey, class) {
			continue
		}
		set.idle.Add(m.MinerHotkey)
	}
	return set, nil
}
