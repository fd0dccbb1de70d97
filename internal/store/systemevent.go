// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nova-compute/validator/internal/systemevent"
)

const systemEventPrefix = "sysevent/"

func systemEventKey(createdAtUnixNano int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", systemEventPrefix, createdAtUnixNano, id))
}

// Record persists e, keyed so ListSystemEvents returns events in
// creation order. It satisfies systemevent.Recorder.
func (s *Store) Record(e systemevent.Event) error {
	return s.putJSON(systemEventKey(e.CreatedAt.UnixNano(), uuid.NewString()), e)
}

// ListSystemEvents returns every recorded event in creation order.
// The audit log has no retention policy of its own; operators prune
// via external tooling.
func (s *Store) ListSystemEvents() ([]systemevent.Event, error) {
	var events []systemevent.Event
	err := s.scanPrefix([]byte(systemEventPrefix), func(_, v []byte) (bool, error) {
		var e systemevent.Event
		if err := jsonUnmarshal(v, &e); err != nil {
			return false, err
		}
		events = append(events, e)
		return true, nil
	})
	return events, err
}

var _ systemevent.Recorder = (*Store)(nil)
