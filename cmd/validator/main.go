// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Command validator runs the Nova Compute subnet validator: it drives
// organic jobs to miners, keeps an allowance ledger backed by the
// chain's metagraph, and replicates receipts with peer validators.
package main

import (
	"fmt"
	"log/slog"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/urfave/cli/v2"

	"github.com/nova-compute/validator/internal/vlog"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "validator",
		Usage:   "Nova Compute subnet validator",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to validator.toml", EnvVars: []string{"NOVA_CONFIG"}},
			&cli.StringFlag{Name: "data-dir", Usage: "pebble store directory", Value: "./data", EnvVars: []string{"NOVA_DATA_DIR"}},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug-level logging"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("debug") {
				level = slog.LevelDebug
			}
			vlog.SetRoot(vlog.New(os.Stderr, level))
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			transferReceiptsCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
