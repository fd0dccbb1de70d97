// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package vlog provides the validator's structured logger: a thin
// wrapper around log/slog with a terminal-aware colored handler, in
// the spirit of go-ethereum's own log package.
package vlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-isatty"
)

// Logger is the interface every component takes a handle to instead of
// reaching for a process-wide global.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type logger struct {
	inner *slog.Logger
}

// New builds a Logger writing to w. If w is a terminal, output is
// colorized by level; otherwise it falls back to plain key=value pairs.
func New(w io.Writer, level slog.Level) Logger {
	h := &termHandler{
		w:       w,
		level:   level,
		color:   isTerminal(w),
		mu:      &sync.Mutex{},
		attrs:   nil,
		groupID: "",
	}
	return &logger{inner: slog.New(h)}
}

// Root is the process-wide default, set once at startup.
var rootMu sync.Mutex
var root Logger = New(os.Stderr, slog.LevelInfo)

func SetRoot(l Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = l
}

func Root() Logger {
	rootMu.Lock()
	defer rootMu.Unlock()
	return root
}

func (l *logger) Debug(msg string, args ...any) { l.inner.Debug(msg, withCaller(args)...) }
func (l *logger) Info(msg string, args ...any)  { l.inner.Info(msg, withCaller(args)...) }
func (l *logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, withCaller(args)...) }
func (l *logger) Error(msg string, args ...any) { l.inner.Error(msg, withCaller(args)...) }
func (l *logger) With(args ...any) Logger       { return &logger{inner: l.inner.With(args...)} }

func withCaller(args []any) []any {
	c := stack.Caller(2)
	return append(args, "at", fmt.Sprintf("%+v", c))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// termHandler implements slog.Handler with optional ANSI coloring.
type termHandler struct {
	w       io.Writer
	level   slog.Level
	color   bool
	mu      *sync.Mutex
	attrs   []slog.Attr
	groupID string
}

func (h *termHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *termHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.Time.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(h.levelString(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *termHandler) levelString(level slog.Level) string {
	s := level.String()
	if !h.color {
		return s
	}
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed).Sprint(s)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow).Sprint(s)
	case level >= slog.LevelInfo:
		return color.New(color.FgGreen).Sprint(s)
	default:
		return color.New(color.FgCyan).Sprint(s)
	}
}

func (h *termHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *termHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groupID = name
	return &next
}
