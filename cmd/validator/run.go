// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nova-compute/validator/internal/allowance"
	"github.com/nova-compute/validator/internal/config"
	"github.com/nova-compute/validator/internal/receipttransfer"
	"github.com/nova-compute/validator/internal/router"
	"github.com/nova-compute/validator/internal/store"
	"github.com/nova-compute/validator/internal/vlog"
)

// blockDuration is the subnet's average block time, used to convert a
// neuron's declared block count into earned allowance seconds.
const blockDuration = 12 * time.Second

// retentionBlocks bounds how long unspent allowance cells survive
// before GC forfeits them: roughly one day of blocks at blockDuration.
const retentionBlocks int64 = 7200

// chainEpoch anchors receipt transfer's page numbering. It is a fixed
// point in the past rather than process start, so two validators
// restarted at different times still agree on page boundaries.
var chainEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// runCommand starts the validator's main loop: the allowance ledger
// and router serve organic job routing (driven by a facilitator
// connection not part of this build), while receipt transfer runs as
// a background daemon until the process receives SIGINT/SIGTERM.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the validator daemon",
		Action: func(c *cli.Context) error {
			log := vlog.Root()

			cfgStore, err := config.NewStore(c.String("config"))
			if err != nil {
				return err
			}

			st, err := store.Open(c.String("data-dir"))
			if err != nil {
				return err
			}
			defer st.Close()

			ledger := allowance.New(blockDuration, retentionBlocks)
			_ = router.New(st, ledger, cfgStore.Get().RoutingPreliminaryReservationTime)

			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			go receipttransfer.Daemon(ctx, cfgStore, chainEpoch,
				receipttransfer.MetagraphMinerSource{Store: st},
				receipttransfer.NewHTTPPageFetcher(receipttransfer.ActiveFetchTimeout),
				st, log.With("component", "receipttransfer"))

			log.Info("validator started", "data_dir", c.String("data-dir"))
			<-ctx.Done()
			log.Info("validator shutting down")
			return nil
		},
	}
}
