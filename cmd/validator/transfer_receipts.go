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

	"github.com/nova-compute/validator/internal/config"
	"github.com/nova-compute/validator/internal/metagraph"
	"github.com/nova-compute/validator/internal/receipttransfer"
	"github.com/nova-compute/validator/internal/store"
	"github.com/nova-compute/validator/internal/vlog"
)

// transferReceiptsCommand runs receipt transfer standalone, without
// the routing/allowance machinery, for operators who only want this
// validator replicating receipts with its peers.
func transferReceiptsCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfer-receipts",
		Usage: "replicate receipts with peer validators",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "catch up once and exit instead of running as a daemon"},
			&cli.StringFlag{Name: "debug-miner-hotkey", Usage: "bypass the metagraph and sweep a single miner's hotkey"},
			&cli.StringFlag{Name: "debug-miner-ip", Usage: "address for --debug-miner-hotkey"},
			&cli.IntFlag{Name: "debug-miner-port", Usage: "port for --debug-miner-hotkey", Value: 8000},
		},
		Action: func(c *cli.Context) error {
			log := vlog.Root().With("component", "receipttransfer")

			cfgStore, err := config.NewStore(c.String("config"))
			if err != nil {
				return err
			}

			st, err := store.Open(c.String("data-dir"))
			if err != nil {
				return err
			}
			defer st.Close()

			source := receipttransfer.MinerSource(receipttransfer.MetagraphMinerSource{Store: st})
			if hotkey := c.String("debug-miner-hotkey"); hotkey != "" {
				source = receipttransfer.StaticMinerSource{Endpoint: receipttransfer.MinerEndpoint{
					Hotkey:  metagraph.SS58(hotkey),
					Address: c.String("debug-miner-ip"),
					Port:    c.Int("debug-miner-port"),
				}}
			}
			fetcher := receipttransfer.NewHTTPPageFetcher(receipttransfer.ActiveFetchTimeout)

			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if c.Bool("once") {
				current := receipttransfer.Page(time.Now(), chainEpoch)
				result, err := receipttransfer.CatchUp(ctx, source, fetcher, st, 0, current, log)
				if err != nil {
					return err
				}
				log.Info("receipt catch-up complete", "receipts_new", result.ReceiptsNew)
				return nil
			}

			receipttransfer.Daemon(ctx, cfgStore, chainEpoch, source, fetcher, st, log)
			return nil
		},
	}
}
