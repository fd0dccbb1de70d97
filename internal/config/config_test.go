// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	d, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), d)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
organic_job_timeout_seconds = 600
receipt_transfer_enabled = false
minimum_validator_stake_for_excuse = 5000.0
`), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 600*time.Second, d.OrganicJobTimeout)
	require.False(t, d.ReceiptTransferEnabled)
	require.Equal(t, 5000.0, d.MinimumValidatorStakeForExcuse)
	require.Equal(t, Defaults().OrganicJobInitialResponseTimeout, d.OrganicJobInitialResponseTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`receipt_transfer_enabled = true`), 0o644))

	t.Setenv("NOVA_RECEIPT_TRANSFER_ENABLED", "false")
	d, err := Load(path)
	require.NoError(t, err)
	require.False(t, d.ReceiptTransferEnabled)
}

func TestStoreReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`organic_job_timeout_seconds = 100`), 0o644))

	s, err := NewStore(path)
	require.NoError(t, err)
	require.Equal(t, 100*time.Second, s.Get().OrganicJobTimeout)

	require.NoError(t, os.WriteFile(path, []byte(`organic_job_timeout_seconds = 200`), 0o644))
	require.NoError(t, s.Reload())
	require.Equal(t, 200*time.Second, s.Get().OrganicJobTimeout)
}
