// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package receipttransfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PageFetcher retrieves the raw newline-delimited body of one miner's
// receipt page.
type PageFetcher interface {
	FetchPage(ctx context.Context, m MinerEndpoint, page int64) ([]byte, error)
}

// HTTPPageFetcher fetches pages over plain HTTP from each miner's
// receipt-serving port, mirroring the original's GET
// /receipts/page/{page_id}.
type HTTPPageFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPPageFetcher builds a fetcher with the given per-request
// timeout applied via context, independent of the shared client's own
// timeout (if any).
func NewHTTPPageFetcher(timeout time.Duration) *HTTPPageFetcher {
	return &HTTPPageFetcher{Client: http.DefaultClient, Timeout: timeout}
}

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, m MinerEndpoint, page int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d/receipts/page/%d", m.Address, m.Port, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // page doesn't exist yet; not an error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receiptransfer: miner %s returned status %d", m.Hotkey, resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
