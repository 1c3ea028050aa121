//go:build linux

package main

import (
	"fmt"
	"io"
)

// Level controls how much a Logger emits: silent, warnings only, or
// warnings plus debug detail. A single Logger value satisfies both
// executor.Logger (Warnf/Debugf) and shrink.Logger (Debugf) structurally,
// without either package depending on cmd/artifact-executor.
type Level int

const (
	// LevelSilent drops everything.
	LevelSilent Level = iota
	// LevelWarn emits only Warnf calls.
	LevelWarn
	// LevelDebug emits both Warnf and Debugf calls.
	LevelDebug
)

// Logger writes leveled messages to Out. A zero-value Logger is silent.
type Logger struct {
	Level Level
	Out   io.Writer
}

// Warnf emits a warning if Level is at least LevelWarn.
func (l Logger) Warnf(format string, args ...any) {
	if l.Level < LevelWarn || l.Out == nil {
		return
	}

	_, _ = fmt.Fprintf(l.Out, "warning: "+format+"\n", args...)
}

// Debugf emits a debug message if Level is LevelDebug.
func (l Logger) Debugf(format string, args ...any) {
	if l.Level < LevelDebug || l.Out == nil {
		return
	}

	_, _ = fmt.Fprintf(l.Out, "debug: "+format+"\n", args...)
}