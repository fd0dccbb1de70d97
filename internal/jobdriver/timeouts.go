// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package jobdriver

import "time"

// Timeouts bounds each stage of the drive, sourced from
// internal/config's Dynamic.
type Timeouts struct {
	InitialResponse time.Duration
	ExecutorReady   time.Duration
	TotalJob        time.Duration
}
