// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package store is the validator's persisted state: Miner,
// MinerManifest, MinerBlacklist, Cycle, OrganicJob, receipts and
// SystemEvent, backed by a single cockroachdb/pebble key-value engine
// with typed key prefixes standing in for the original's relational
// tables. There is no admin/CRUD surface on top of it — only the core
// components read and write it.
package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Store wraps a pebble.DB with typed helpers for each logical table.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble store at dir. Pass
// dir == "" for an ephemeral in-memory store, useful for tests.
func Open(dir string) (*Store, error) {
	opts := &pebble.Options{}
	path := dir
	if dir == "" {
		opts.FS = vfs.NewMem()
		path = ""
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble store")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble handle.
func (s *Store) Close() error { return s.db.Close() }

func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// putJSON marshals v and writes it under key, synchronously.
func (s *Store) putJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshaling value")
	}
	return s.db.Set(key, data, pebble.Sync)
}

// getJSON reads the value at key into v. It reports (false, nil) if
// the key is absent.
func (s *Store) getJSON(key []byte, v any) (bool, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "reading value")
	}
	defer closer.Close()
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrap(err, "unmarshaling value")
	}
	return true, nil
}

func (s *Store) delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

// scanPrefix calls fn for every key/value pair whose key has the given
// prefix, in key order. fn receives a copy of key and value; it may
// return false to stop early.
func (s *Store) scanPrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "creating iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k := append([]byte{}, iter.Key()...)
		v := append([]byte{}, iter.Value()...)
		cont, err := fn(k, v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key that is strictly greater
// than every key with the given prefix (standard pebble idiom for
// prefix-bounded iteration).
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
