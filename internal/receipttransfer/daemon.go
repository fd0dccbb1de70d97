// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package receipttransfer

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nova-compute/validator/internal/config"
	"github.com/nova-compute/validator/internal/store"
	"github.com/nova-compute/validator/internal/vlog"
)

// ErrTransferDisabled is returned by a keep-up tick when the dynamic
// kill switch is off.
var ErrTransferDisabled = errors.New("receiptransfer: transfer disabled by dynamic config")

// disabledBackoff is how long Daemon sleeps after seeing the kill
// switch off, matching the original's 60-second re-check interval.
const disabledBackoff = 60 * time.Second

// KeepUp runs one poll: if transfer is disabled it returns
// ErrTransferDisabled without sweeping; otherwise it sweeps the
// current page from every active miner.
func KeepUp(ctx context.Context, cfg config.Dynamic, epoch time.Time, source MinerSource, fetcher PageFetcher, st *store.Store, log vlog.Logger) (*Result, error) {
	if err := throwIfDisabled(cfg); err != nil {
		return nil, err
	}
	endpoints, err := source.ActiveMiners(ctx)
	if err != nil {
		return nil, err
	}
	current := Page(time.Now(), epoch)
	return Sweep(ctx, endpoints, current, fetcher, st, ActiveConcurrency, log), nil
}

func throwIfDisabled(cfg config.Dynamic) error {
	if !cfg.ReceiptTransferEnabled {
		return ErrTransferDisabled
	}
	return nil
}

// Daemon runs CatchUp once, then polls KeepUp at cfg's
// ReceiptTransferInterval until ctx is done. It never returns unless
// ctx is cancelled; every per-tick error (including ErrTransferDisabled)
// is logged and the loop sleeps rather than exiting.
func Daemon(ctx context.Context, cfgStore *config.Store, epoch time.Time, source MinerSource, fetcher PageFetcher, st *store.Store, log vlog.Logger) {
	cfg := cfgStore.Get()
	if err := throwIfDisabled(cfg); err == nil {
		current := Page(time.Now(), epoch)
		if _, err := CatchUp(ctx, source, fetcher, st, 0, current, log); err != nil {
			log.Warn("receipt transfer catch-up failed", "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cfg = cfgStore.Get()
		result, err := KeepUp(ctx, cfg, epoch, source, fetcher, st, log)
		if err != nil {
			if errors.Is(err, ErrTransferDisabled) {
				log.Info("receipt transfer disabled, backing off")
				sleep(ctx, disabledBackoff)
				continue
			}
			log.Warn("receipt transfer keep-up failed", "err", err)
			sleep(ctx, cfg.ReceiptTransferInterval)
			continue
		}

		pushMetrics(log, result)
		sleep(ctx, cfg.ReceiptTransferInterval)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// pushMetrics logs a per-exception-type breakdown, standing in for the
// original's prometheus counters.
func pushMetrics(log vlog.Logger, r *Result) {
	log.Info("receipt transfer sweep complete",
		"miners", r.MinersSwept, "pages", r.PagesFetched,
		"receipts_seen", r.ReceiptsSeen, "receipts_new", r.ReceiptsNew,
		"errors_by_type", r.ErrorsByType)
}
