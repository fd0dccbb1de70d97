// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package jobdriver

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/nova-compute/validator/internal/protocol"
)

// MinerConn is the miner-protocol transport: one per in-flight job
// drive. WebsocketConn is the production implementation; tests drive
// the state machine against a fake.
type MinerConn interface {
	Send(ctx context.Context, messageType protocol.MessageType, v any) error
	// Recv blocks until a frame arrives, ctx is done, or the connection
	// errors. It returns the frame's message_type and raw JSON body.
	Recv(ctx context.Context) (protocol.MessageType, []byte, error)
	Close() error
}

// WebsocketConn wraps a gorilla/websocket connection to a single
// miner for the duration of one job.
type WebsocketConn struct {
	ws *websocket.Conn
}

func NewWebsocketConn(ws *websocket.Conn) *WebsocketConn { return &WebsocketConn{ws: ws} }

func (c *WebsocketConn) Send(ctx context.Context, messageType protocol.MessageType, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = messageType // message_type is embedded in v's own json tags
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Recv does not observe ctx: it returns only when a frame arrives or the
// underlying websocket read fails.
func (c *WebsocketConn) Recv(ctx context.Context) (protocol.MessageType, []byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	var probe struct {
		MessageType protocol.MessageType `json:"message_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", nil, err
	}
	return probe.MessageType, data, nil
}

func (c *WebsocketConn) Close() error { return c.ws.Close() }
