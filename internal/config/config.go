// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package config holds the validator's tunable runtime options
// (routing timeouts, blacklist durations, receipt-transfer toggles).
// Values load from a TOML file and may be overridden by environment
// variables, then hot-swapped at runtime via Dynamic.
package config

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Dynamic mirrors the relational DynamicConfig table of the original
// system: every field here may change between reads without a
// restart, via Reload.
type Dynamic struct {
	RoutingPreliminaryReservationTime time.Duration
	OrganicJobTimeout                 time.Duration
	OrganicJobInitialResponseTimeout  time.Duration
	OrganicJobExecutorReadyTimeout    time.Duration
	JobCheatedBlacklistTime           time.Duration
	MinimumValidatorStakeForExcuse    float64
	ReceiptTransferEnabled            bool
	ReceiptTransferInterval           time.Duration
	DisableTrustedOrganicJobEvents    bool
}

// Defaults matches the constants scattered through the original
// Django settings and the job driver's hard-coded timeouts.
func Defaults() Dynamic {
	return Dynamic{
		RoutingPreliminaryReservationTime: 30 * time.Second,
		OrganicJobTimeout:                 300 * time.Second,
		OrganicJobInitialResponseTimeout:  10 * time.Second,
		OrganicJobExecutorReadyTimeout:    90 * time.Second,
		JobCheatedBlacklistTime:           7 * 24 * time.Hour,
		MinimumValidatorStakeForExcuse:    1000.0,
		ReceiptTransferEnabled:            true,
		ReceiptTransferInterval:           2 * time.Minute,
		DisableTrustedOrganicJobEvents:    false,
	}
}

// fileShape is the TOML wire format; durations are expressed in
// seconds since TOML has no native duration type.
type fileShape struct {
	RoutingPreliminaryReservationTimeSeconds int     `toml:"routing_preliminary_reservation_time_seconds"`
	OrganicJobTimeoutSeconds                 int     `toml:"organic_job_timeout_seconds"`
	OrganicJobInitialResponseTimeoutSeconds  int     `toml:"organic_job_initial_response_timeout_seconds"`
	OrganicJobExecutorReadyTimeoutSeconds    int     `toml:"organic_job_executor_ready_timeout_seconds"`
	JobCheatedBlacklistTimeSeconds           int     `toml:"job_cheated_blacklist_time_seconds"`
	MinimumValidatorStakeForExcuse           float64 `toml:"minimum_validator_stake_for_excuse"`
	ReceiptTransferEnabled                   *bool   `toml:"receipt_transfer_enabled"`
	ReceiptTransferIntervalSeconds           int     `toml:"receipt_transfer_interval_seconds"`
	DisableTrustedOrganicJobEvents           bool    `toml:"disable_trusted_organic_job_events"`
}

// Load reads path (if non-empty and present) over Defaults, then
// applies NOVA_ environment variable overrides.
func Load(path string) (Dynamic, error) {
	d := Defaults()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			var f fileShape
			if _, err := toml.DecodeFile(path, &f); err != nil {
				return Dynamic{}, errors.Wrapf(err, "decode config %s", path)
			}
			applyFile(&d, f)
		} else if !os.IsNotExist(err) {
			return Dynamic{}, errors.Wrapf(err, "stat config %s", path)
		}
	}
	applyEnv(&d)
	return d, nil
}

func applyFile(d *Dynamic, f fileShape) {
	if f.RoutingPreliminaryReservationTimeSeconds > 0 {
		d.RoutingPreliminaryReservationTime = time.Duration(f.RoutingPreliminaryReservationTimeSeconds) * time.Second
	}
	if f.OrganicJobTimeoutSeconds > 0 {
		d.OrganicJobTimeout = time.Duration(f.OrganicJobTimeoutSeconds) * time.Second
	}
	if f.OrganicJobInitialResponseTimeoutSeconds > 0 {
		d.OrganicJobInitialResponseTimeout = time.Duration(f.OrganicJobInitialResponseTimeoutSeconds) * time.Second
	}
	if f.OrganicJobExecutorReadyTimeoutSeconds > 0 {
		d.OrganicJobExecutorReadyTimeout = time.Duration(f.OrganicJobExecutorReadyTimeoutSeconds) * time.Second
	}
	if f.JobCheatedBlacklistTimeSeconds > 0 {
		d.JobCheatedBlacklistTime = time.Duration(f.JobCheatedBlacklistTimeSeconds) * time.Second
	}
	if f.MinimumValidatorStakeForExcuse > 0 {
		d.MinimumValidatorStakeForExcuse = f.MinimumValidatorStakeForExcuse
	}
	if f.ReceiptTransferEnabled != nil {
		d.ReceiptTransferEnabled = *f.ReceiptTransferEnabled
	}
	if f.ReceiptTransferIntervalSeconds > 0 {
		d.ReceiptTransferInterval = time.Duration(f.ReceiptTransferIntervalSeconds) * time.Second
	}
	d.DisableTrustedOrganicJobEvents = f.DisableTrustedOrganicJobEvents
}

func applyEnv(d *Dynamic) {
	if v, ok := os.LookupEnv("NOVA_RECEIPT_TRANSFER_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			d.ReceiptTransferEnabled = b
		}
	}
	if v, ok := os.LookupEnv("NOVA_RECEIPT_TRANSFER_INTERVAL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.ReceiptTransferInterval = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv("NOVA_MINIMUM_VALIDATOR_STAKE_FOR_EXCUSE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			d.MinimumValidatorStakeForExcuse = f
		}
	}
}

// Store holds a Dynamic behind an atomic pointer so readers never
// block on a concurrent Reload.
type Store struct {
	path string
	ptr  atomic.Pointer[Dynamic]
}

// NewStore loads path once and returns a Store wrapping the result.
func NewStore(path string) (*Store, error) {
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.ptr.Store(&d)
	return s, nil
}

// Get returns the current configuration snapshot.
func (s *Store) Get() Dynamic { return *s.ptr.Load() }

// Reload re-reads the backing file and environment, swapping the
// active snapshot atomically. Safe to call from any goroutine,
// concurrently with Get.
func (s *Store) Reload() error {
	d, err := Load(s.path)
	if err != nil {
		return err
	}
	s.ptr.Store(&d)
	return nil
}
