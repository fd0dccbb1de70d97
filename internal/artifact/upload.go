// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	kzip "github.com/klauspost/compress/flate"
	"golang.org/x/sync/semaphore"

	"github.com/nova-compute/validator/internal/protocol"
)

// MaxConcurrentUploads bounds how many output uploads run at once.
const MaxConcurrentUploads = 3

// UploadTimeout bounds a single upload attempt.
const UploadTimeout = 300 * time.Second

// MaxNumberOfFiles caps how many files a system zip may contain.
const MaxNumberOfFiles = 1000

const (
	uploadRetries    = 3
	uploadInitialWait = time.Second
	uploadBackoffMul = 2
)

// PartialUploadError reports that a MultiUpload completed some but not
// all of its sub-uploads. Upload is best-effort and at-least-once: a
// partial failure does not roll back uploads that already succeeded.
type PartialUploadError struct {
	Succeeded int
	Failed    int
	Errs      []error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("artifact: %d of %d uploads failed", e.Failed, e.Succeeded+e.Failed)
}

// Uploader sends artifacts to the destination described by an
// OutputUploadSpec.
type Uploader struct {
	Client *http.Client
}

func NewUploader() *Uploader {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return kzip.NewWriter(w, kzip.BestSpeed)
	})
	return &Uploader{Client: http.DefaultClient}
}

// Upload dispatches on spec.Variant, retrying transient failures with
// exponential backoff.
func (u *Uploader) Upload(ctx context.Context, spec protocol.OutputUploadSpec, files map[string][]byte) error {
	switch spec.Variant {
	case "zip_and_post":
		return u.uploadWithRetry(ctx, func(ctx context.Context) error { return u.zipAndSend(ctx, http.MethodPost, spec, files) })
	case "zip_and_put":
		return u.uploadWithRetry(ctx, func(ctx context.Context) error { return u.zipAndSend(ctx, http.MethodPut, spec, files) })
	case "multi_upload":
		return u.multiUpload(ctx, spec, files)
	default:
		return fmt.Errorf("artifact: unknown output upload variant %q", spec.Variant)
	}
}

func (u *Uploader) uploadWithRetry(ctx context.Context, fn func(context.Context) error) error {
	wait := uploadInitialWait
	var lastErr error
	for attempt := 1; attempt <= uploadRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == uploadRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= uploadBackoffMul
	}
	return errors.Wrap(lastErr, "upload failed after retries")
}

func (u *Uploader) zipAndSend(ctx context.Context, method string, spec protocol.OutputUploadSpec, files map[string][]byte) error {
	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	archivePath, cleanup, err := buildZip(files, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, method, spec.URL, f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/zip")
	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("artifact: upload to %s returned status %d", spec.URL, resp.StatusCode)
	}
	return nil
}

// multiUpload runs each sub-upload concurrently (bounded by
// MaxConcurrentUploads), excluding any relative path already shipped
// as part of a single-file sub-upload from the remaining system zip.
func (u *Uploader) multiUpload(ctx context.Context, spec protocol.OutputUploadSpec, files map[string][]byte) error {
	excluded := make(map[string]bool)
	for _, sub := range spec.Uploads {
		if sub.Variant == "single_file" {
			for path := range sub.FormFields {
				excluded[path] = true
			}
		}
	}
	remaining := make(map[string][]byte, len(files))
	for path, data := range files {
		if !excluded[path] {
			remaining[path] = data
		}
	}

	sem := semaphore.NewWeighted(MaxConcurrentUploads)
	type outcome struct {
		err error
	}
	results := make([]outcome, len(spec.Uploads))

	for i, sub := range spec.Uploads {
		i, sub := i, sub
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			payload := remaining
			if sub.Variant == "single_file" {
				payload = nil // single-file uploads send one file directly, not a zip
			}
			results[i] = outcome{err: u.Upload(ctx, sub, payload)}
		}()
	}
	// sem.Acquire blocks until a slot is free, so by the time the loop
	// above exits every goroutine has at least started; drain fully by
	// acquiring all slots back.
	if err := sem.Acquire(ctx, MaxConcurrentUploads); err != nil {
		return err
	}

	succeeded, failed := 0, 0
	var errs []error
	for _, r := range results {
		if r.err != nil {
			failed++
			errs = append(errs, r.err)
		} else {
			succeeded++
		}
	}
	if failed > 0 {
		return &PartialUploadError{Succeeded: succeeded, Failed: failed, Errs: errs}
	}
	return nil
}

// buildZip writes files into a scoped temp file, returning its path
// and a cleanup func that removes it. excludePaths are relative paths
// to skip (already sent as standalone single-file uploads).
func buildZip(files map[string][]byte, excludePaths map[string]bool) (string, func(), error) {
	if len(files) > MaxNumberOfFiles {
		return "", nil, fmt.Errorf("artifact: %d files exceeds max of %d", len(files), MaxNumberOfFiles)
	}

	tmp, err := os.CreateTemp("", "artifacts-*.zip")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	w := zip.NewWriter(tmp)
	for path, data := range files {
		if excludePaths[path] {
			continue
		}
		fw, err := w.Create(filepath.ToSlash(path))
		if err != nil {
			_ = w.Close()
			_ = tmp.Close()
			cleanup()
			return "", nil, err
		}
		if _, err := io.Copy(fw, bytes.NewReader(data)); err != nil {
			_ = w.Close()
			_ = tmp.Close()
			cleanup()
			return "", nil, err
		}
	}
	if err := w.Close(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}
