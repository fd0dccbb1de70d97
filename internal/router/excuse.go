// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package router

import (
	"time"

	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/protocol"
)

// ExcusePolicy decides whether a miner's BUSY decline is legitimate:
// it is excused only if it was already running at least as many
// organic jobs, for valid (sufficiently-staked) validators, as its
// manifest declares online — otherwise the decline looks like a lie
// and the caller should blacklist instead (grounded on
// miner_driver.py's drive_organic_job BUSY branch).
type ExcusePolicy struct {
	router *Router
}

func NewExcusePolicy(r *Router) *ExcusePolicy { return &ExcusePolicy{router: r} }

// IsExcused reports whether minerHotkey's decline of declinedJobUUID
// is covered by enough concurrently-running organic jobs from
// sufficiently-staked validators to explain being busy.
func (p *ExcusePolicy) IsExcused(
	minerHotkey metagraph.SS58,
	class metagraph.ExecutorClass,
	declinedJobUUID string,
	checkTime time.Time,
	receipts []protocol.Receipt,
	validatorStake func(metagraph.SS58) float64,
	minimumValidatorStake float64,
) (bool, error) {
	manifest, ok, err := p.router.store.GetManifest(minerHotkey, class)
	if err != nil {
		return false, err
	}
	if !ok || manifest.OnlineCount <= 0 {
		// no manifest on file: nothing to excuse against, so treat as
		// not excused — the miner should not have been routed to at all.
		return false, nil
	}

	valid := p.router.store.CountValidExcuses(minerHotkey, class, declinedJobUUID, checkTime, receipts, validatorStake, minimumValidatorStake)
	return valid >= manifest.OnlineCount, nil
}
