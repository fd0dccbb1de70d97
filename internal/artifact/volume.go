// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package artifact resolves a job's input VolumeSpec into bytes a
// miner's executor can mount, and uploads a completed job's output
// artifacts back to the facilitator.
package artifact

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/nova-compute/validator/internal/protocol"
)

// MaxVolumeSizeBytes bounds any single fetched volume.
const MaxVolumeSizeBytes = 2 << 30 // 2 GiB

// ErrVolumeTooLarge is returned when a volume's declared or observed
// size exceeds MaxVolumeSizeBytes.
var ErrVolumeTooLarge = errors.New("artifact: volume exceeds maximum size")

// Variant names recognized in VolumeSpec.Variant.
const (
	VariantInline      = "inline"
	VariantSingleFile  = "single_file"
	VariantZipURL      = "zip_url"
	VariantMulti       = "multi"
	VariantHuggingface = "huggingface"
)

// VolumeResolver checks a VolumeSpec against MaxVolumeSizeBytes before
// any body bytes are transferred. It does not download volume contents.
type VolumeResolver struct {
	Client *http.Client
}

func NewVolumeResolver() *VolumeResolver {
	return &VolumeResolver{Client: http.DefaultClient}
}

// CheckContentLength does a HEAD request and rejects the volume before
// any body bytes are streamed if the server reports a size over the
// limit.
func (v *VolumeResolver) CheckContentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.ContentLength > MaxVolumeSizeBytes {
		return resp.ContentLength, ErrVolumeTooLarge
	}
	return resp.ContentLength, nil
}

// Resolve dispatches on spec.Variant and validates the volume: inline
// volumes pass as they are, URL-backed variants need a URL and must
// pass CheckContentLength, and multi volumes are checked sub-volume by
// sub-volume. It returns only an error; it neither reports sizes nor
// fetches any bytes.
func (v *VolumeResolver) Resolve(ctx context.Context, spec protocol.VolumeSpec) error {
	switch spec.Variant {
	case VariantInline:
		return nil // contents already embedded in the VolumeSpec
	case VariantSingleFile, VariantZipURL, VariantHuggingface:
		if spec.URL == "" {
			return errors.Newf("artifact: %s volume missing URL", spec.Variant)
		}
		_, err := v.CheckContentLength(ctx, spec.URL)
		return err
	case VariantMulti:
		for i, sub := range spec.Volumes {
			if err := v.Resolve(ctx, sub); err != nil {
				return errors.Wrapf(err, "sub-volume %d", i)
			}
		}
		return nil
	default:
		return fmt.Errorf("artifact: unknown volume variant %q", spec.Variant)
	}
}
