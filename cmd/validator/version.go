// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the validator version",
		Action: func(c *cli.Context) error {
			fmt.Println(version)
			return nil
		},
	}
}
