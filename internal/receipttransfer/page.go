// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package receipttransfer pulls other validators' (and miners') receipt
// pages on a schedule, so every validator eventually holds the receipts
// it needs to judge excuses and score synthetic jobs, without any
// push/broadcast fan-out.
package receipttransfer

import "time"

// PageDuration is the width of one receipt page.
const PageDuration = 2 * time.Minute

// Page returns the page index containing t, relative to epoch.
func Page(t time.Time, epoch time.Time) int64 {
	return int64(t.Sub(epoch) / PageDuration)
}

// PageStart returns the start time of page p relative to epoch.
func PageStart(p int64, epoch time.Time) time.Time {
	return epoch.Add(time.Duration(p) * PageDuration)
}
