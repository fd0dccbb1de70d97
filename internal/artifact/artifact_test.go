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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-compute/validator/internal/protocol"
)

func TestResolveInlineVolumeIsNoOp(t *testing.T) {
	v := NewVolumeResolver()
	err := v.Resolve(context.Background(), protocol.VolumeSpec{Variant: VariantInline})
	require.NoError(t, err)
}

func TestResolveSingleFileRejectsOversizedVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "999999999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewVolumeResolver()
	err := v.Resolve(context.Background(), protocol.VolumeSpec{Variant: VariantSingleFile, URL: srv.URL})
	require.ErrorIs(t, err, ErrVolumeTooLarge)
}

func TestBuildZipRoundTrips(t *testing.T) {
	files := map[string][]byte{"a.txt": []byte("hello"), "dir/b.txt": []byte("world")}
	path, cleanup, err := buildZip(files, nil)
	require.NoError(t, err)
	defer cleanup()

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 2)

	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.Equal(t, files[f.Name], data)
		rc.Close()
	}
}

func TestUploadZipAndPostSucceeds(t *testing.T) {
	received := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := NewUploader()
	err := u.Upload(context.Background(), protocol.OutputUploadSpec{Variant: "zip_and_post", URL: srv.URL},
		map[string][]byte{"out.txt": []byte("done")})
	require.NoError(t, err)
	require.True(t, received)
}

func TestUploadRetriesThenFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewUploader()
	err := u.Upload(context.Background(), protocol.OutputUploadSpec{Variant: "zip_and_post", URL: srv.URL},
		map[string][]byte{"out.txt": []byte("done")})
	require.Error(t, err)
	require.Equal(t, uploadRetries, attempts)
}
