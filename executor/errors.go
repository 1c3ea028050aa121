// Package executor orchestrates cache lookup, sandboxed execution, trace
// processing, hermeticity checks, and action publishing — spec.md §4.5.
package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the error kinds of spec.md §7. Callers use
// errors.Is/errors.As against these.
var (
	// ErrConfig marks a ConfigError: cache directory missing from both
	// flag and environment, or a required manifest missing.
	ErrConfig = errors.New("config error")
	// ErrNotFound marks a NotFound: a declared input, expected sandbox
	// file, or expected cached object does not exist on disk.
	ErrNotFound = errors.New("not found")
	// ErrHashMismatch marks a HashMismatch: on cache hit, a rekeyed
	// sub-digest disagrees with the stored action record.
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrNonHermeticDivergent marks a NonHermeticDivergent: a traced
	// access outside the sandbox touched a file whose sandboxed and
	// unsandboxed contents differ.
	ErrNonHermeticDivergent = errors.New("non-hermetic access with divergent contents")
	// ErrUndeclaredInput marks an UndeclaredInput: a traced input was not
	// in the declared input set.
	ErrUndeclaredInput = errors.New("undeclared input")
	// ErrMissingOutput marks a MissingOutput: a declared output was never
	// traced as written.
	ErrMissingOutput = errors.New("missing output")
	// ErrTracerFailure marks a TracerFailure: the tracer subprocess exited
	// nonzero or emitted an unknown event kind.
	ErrTracerFailure = errors.New("tracer failure")
)

// ConfigError reports a missing cache directory or manifest.
type ConfigError struct{ Detail string }

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %s", e.Detail) }
func (e *ConfigError) Unwrap() error { return ErrConfig }

// NotFoundError reports a missing file where one was required.
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Path) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// HashMismatchError reports a corrupt action record: one of the five
// rekeyed sub-digests disagreed with the stored record (spec.md §4.5 step
// 3, §8 scenario 6).
type HashMismatchError struct {
	Field    string
	Expected string
	Got      string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch on %s: record has %s, recomputed %s", e.Field, e.Got, e.Expected)
}
func (e *HashMismatchError) Unwrap() error { return ErrHashMismatch }

// NonHermeticDivergentError reports a traced access outside the sandbox
// whose contents differ from the host file at the same path.
type NonHermeticDivergentError struct{ Path string }

func (e *NonHermeticDivergentError) Error() string {
	return fmt.Sprintf("non-hermetic access to %s: sandboxed and host contents differ", e.Path)
}
func (e *NonHermeticDivergentError) Unwrap() error { return ErrNonHermeticDivergent }

// UndeclaredInputError reports a traced read of a path not present in the
// declared input set (spec.md §4.5 step 6).
type UndeclaredInputError struct{ Path string }

func (e *UndeclaredInputError) Error() string {
	return fmt.Sprintf("undeclared input: %s", e.Path)
}
func (e *UndeclaredInputError) Unwrap() error { return ErrUndeclaredInput }

// MissingOutputError reports a declared output that was never traced as
// written (spec.md §4.5 step 7).
type MissingOutputError struct{ Path string }

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("missing output: %s", e.Path)
}
func (e *MissingOutputError) Unwrap() error { return ErrMissingOutput }

// TracerFailureError reports the tracer subprocess exiting nonzero or
// emitting a malformed event log.
type TracerFailureError struct{ Detail string }

func (e *TracerFailureError) Error() string { return fmt.Sprintf("tracer failure: %s", e.Detail) }
func (e *TracerFailureError) Unwrap() error { return ErrTracerFailure }
