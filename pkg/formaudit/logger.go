// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// logger.go provides the logging capability consumed by the engines.
// Log calls are fire-and-forget; nothing in the core inspects a logger's
// return value.

package formaudit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger is the minimal logging surface the engines depend on. Errorf is
// also used for caught exceptions, with the error formatted into the
// message.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// TextLogger writes timestamped, severity-tagged lines to stderr and,
// when a sink is open, tees every line to a file.
type TextLogger struct {
	mu   sync.Mutex
	sink io.WriteCloser
}

// NewTextLogger returns a TextLogger writing to stderr.
func NewTextLogger() *TextLogger { return &TextLogger{} }

// OpenSink opens path and tees subsequent log lines to it until
// CloseSink is called. An already-open sink is closed first.
func (l *TextLogger) OpenSink(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening log sink: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink != nil {
		l.sink.Close()
	}
	l.sink = f
	return nil
}

// CloseSink closes the tee file, if any.
func (l *TextLogger) CloseSink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink != nil {
		l.sink.Close()
		l.sink = nil
	}
}

func (l *TextLogger) logf(severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format(time.RFC3339)
	line := fmt.Sprintf("[%s] [%s] %s\n", ts, severity, msg)
	fmt.Fprint(os.Stderr, line)
	l.mu.Lock()
	if l.sink != nil {
		l.sink.Write([]byte(line))
	}
	l.mu.Unlock()
}

func (l *TextLogger) Infof(format string, args ...any)  { l.logf("INFO", format, args...) }
func (l *TextLogger) Warnf(format string, args ...any)  { l.logf("WARNING", format, args...) }
func (l *TextLogger) Errorf(format string, args ...any) { l.logf("ERROR", format, args...) }

// JSONLogger emits one structured entry per line, in the shape the Cloud
// Run log collector ingests.
type JSONLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONLogger returns a JSONLogger writing to out.
func NewJSONLogger(out io.Writer) *JSONLogger { return &JSONLogger{out: out} }

type jsonLogEntry struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Time     string `json:"time"`
}

func (l *JSONLogger) logf(severity, format string, args ...any) {
	entry := jsonLogEntry{
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	l.out.Write(append(data, '\n'))
	l.mu.Unlock()
}

func (l *JSONLogger) Infof(format string, args ...any)  { l.logf("INFO", format, args...) }
func (l *JSONLogger) Warnf(format string, args ...any)  { l.logf("WARNING", format, args...) }
func (l *JSONLogger) Errorf(format string, args ...any) { l.logf("ERROR", format, args...) }

// NopLogger discards everything. Used in tests and as the default when
// no logger is supplied.
type NopLogger struct{}

func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
