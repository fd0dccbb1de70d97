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
	"github.com/nova-compute/validator/internal/store"
)

// HandleJobCheated bans hotkey from routing for blacklistTime, out of
// band from the usual decline/timeout failure paths: cheating is
// detected after the fact (a facilitator-reported JobCheated), not
// during the normal job drive, so it has its own entry point rather
// than flowing through the job driver's failure-reason table.
func (r *Router) HandleJobCheated(hotkey metagraph.SS58, blacklistTime time.Duration) error {
	now := r.now()
	return r.store.PutBlacklist(store.MinerBlacklist{
		MinerHotkey: hotkey,
		Reason:      store.BlacklistJobCheated,
		CreatedAt:   now,
		ExpiresAt:   now.Add(blacklistTime),
	})
}
