// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package verrors implements the validator's error taxonomy: Transient,
// Policy, Protocol and Fatal, each carrying a cause chain via
// cockroachdb/errors so a SystemEvent can record a full stack.
package verrors

import (
	"github.com/cockroachdb/errors"
)

// Class distinguishes how a failure should be handled by its caller.
type Class int

const (
	// ClassTransient failures are retried with bounded backoff at the
	// lowest layer able to make progress (network timeouts, UnknownBlock,
	// HTTP 5xx).
	ClassTransient Class = iota
	// ClassPolicy failures are surfaced to the facilitator as a typed
	// rejected status and are never retried.
	ClassPolicy
	// ClassProtocol failures are terminal for a single job.
	ClassProtocol
	// ClassFatal failures indicate misconfiguration; the caller audits
	// and retries after a sleep.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPolicy:
		return "policy"
	case ClassProtocol:
		return "protocol"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classified wraps an error with its handling class.
type Classified struct {
	class Class
	err   error
}

func (c *Classified) Error() string { return c.err.Error() }
func (c *Classified) Unwrap() error { return c.err }
func (c *Classified) Class() Class  { return c.class }

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Classified{class: ClassTransient, err: errors.WithStack(err)}
}

// Policy wraps err as a non-retryable routing/allowance rejection.
func Policy(err error) error {
	if err == nil {
		return nil
	}
	return &Classified{class: ClassPolicy, err: errors.WithStack(err)}
}

// Protocol wraps err as a terminal per-job protocol failure.
func Protocol(err error) error {
	if err == nil {
		return nil
	}
	return &Classified{class: ClassProtocol, err: errors.WithStack(err)}
}

// Fatal wraps err as a misconfiguration failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &Classified{class: ClassFatal, err: errors.WithStack(err)}
}

// ClassOf extracts the handling class of err, defaulting to
// ClassProtocol for unclassified errors (the most conservative of the
// "something went wrong with a job" classes).
func ClassOf(err error) Class {
	var c *Classified
	if errors.As(err, &c) {
		return c.class
	}
	return ClassProtocol
}

// Is reports whether err (or any error in its chain) was classified as
// class.
func Is(err error, class Class) bool {
	var c *Classified
	if errors.As(err, &c) {
		return c.class == class
	}
	return false
}
