// Package trace folds a stream of filesystem trace events into a per-path
// final classification, per spec.md §4.2.
package trace

import "fmt"

// EventKind identifies the kind of filesystem access a trace event records.
type EventKind int

const (
	// Read records a read access.
	Read EventKind = iota
	// Write records a write access.
	Write
	// Delete records a delete.
	Delete
)

func (k EventKind) String() string {
	switch k {
	case Read:
		return "r"
	case Write:
		return "w"
	case Delete:
		return "d"
	default:
		return "?"
	}
}

// Event is one filesystem access observed by the external tracer. Moves are
// expanded by the caller (see ExpandMove) into a Delete of the source
// followed by a Write of the destination before being folded.
type Event struct {
	Kind EventKind
	Path string
}

// ExpandMove rewrites a move of src to dst into the two-event sequence
// spec.md §4.2 specifies: "A move is rewritten to two events: d src, then
// w dst."
func ExpandMove(dst, src string) []Event {
	return []Event{{Kind: Delete, Path: src}, {Kind: Write, Path: dst}}
}

// pathState is the per-path state of the FSM: one of ∅ (absent from the
// map), r, w, rw, d.
type pathState int

const (
	stateRead pathState = iota
	stateWrite
	stateReadWrite
	stateDeleted
)

// Classification is the final disposition of a path once its event stream
// has been folded, per spec.md §4.2.
type Classification int

const (
	// ClassInput means the path was a declared input only (terminal state r).
	ClassInput Classification = iota
	// ClassOutput means the path was a declared output only (terminal state w).
	ClassOutput
	// ClassInputOutput means the path was both read and written (terminal state rw).
	ClassInputOutput
	// ClassTransient means the path was neither (terminal state d): created
	// and/or written, then deleted, before the action finished.
	ClassTransient
)

// StateError reports an impossible (state, event) transition: spec.md §4.2's
// delete-before-write, read-after-delete, and double-delete cases.
type StateError struct {
	Path  string
	State pathState
	Event EventKind
}

func (e *StateError) Error() string {
	return fmt.Sprintf("trace fsm: impossible transition for %q: state=%s event=%s", e.Path, e.State, e.Event)
}

func (s pathState) String() string {
	switch s {
	case stateRead:
		return "r"
	case stateWrite:
		return "w"
	case stateReadWrite:
		return "rw"
	case stateDeleted:
		return "d"
	default:
		return "?"
	}
}

// Fold reduces a finite event stream to a per-path classification map,
// implementing the transition table of spec.md §4.2:
//
//	from \ event |  r   |  w   |  d
//	∅            |  r   |  w   | error (delete-before-write)
//	r            |  r   |  rw  | error (read-then-delete)
//	w            |  w   |  w   |  d
//	rw           |  rw  |  rw  |  rw
//	d            | error (delete-then-read) | w | error (double-delete)
//
// Fold is pure: its only output is the returned map (or an error). An
// unknown event kind is rejected before Fold is invoked: the event-log
// parser (sandbox.ReadEventLog) fails on any kind other than r, w, d, m.
func Fold(events []Event) (map[string]Classification, error) {
	state := make(map[string]pathState, len(events))

	for _, ev := range events {
		cur, known := state[ev.Path]

		next, err := transition(ev.Path, cur, known, ev.Kind)
		if err != nil {
			return nil, err
		}

		state[ev.Path] = next
	}

	out := make(map[string]Classification, len(state))
	for path, s := range state {
		out[path] = classify(s)
	}

	return out, nil
}

func transition(path string, cur pathState, known bool, ev EventKind) (pathState, error) {
	if !known {
		switch ev {
		case Read:
			return stateRead, nil
		case Write:
			return stateWrite, nil
		case Delete:
			return 0, &StateError{Path: path, State: 0, Event: ev}
		}
	}

	switch cur {
	case stateRead:
		switch ev {
		case Read:
			return stateRead, nil
		case Write:
			return stateReadWrite, nil
		case Delete:
			return 0, &StateError{Path: path, State: cur, Event: ev}
		}
	case stateWrite:
		switch ev {
		case Read, Write:
			return stateWrite, nil
		case Delete:
			return stateDeleted, nil
		}
	case stateReadWrite:
		return stateReadWrite, nil
	case stateDeleted:
		switch ev {
		case Write:
			return stateWrite, nil
		case Read, Delete:
			return 0, &StateError{Path: path, State: cur, Event: ev}
		}
	}

	return 0, &StateError{Path: path, State: cur, Event: ev}
}

func classify(s pathState) Classification {
	switch s {
	case stateRead:
		return ClassInput
	case stateWrite:
		return ClassOutput
	case stateReadWrite:
		return ClassInputOutput
	default: // stateDeleted
		return ClassTransient
	}
}
