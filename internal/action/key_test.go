package action

import (
	"testing"

	"github.com/calvinalkan/artifact-executor/internal/store"
)

func baseAction() Action {
	return Action{
		WorkDir:        "/work",
		Env:            map[string]string{"PATH": "/usr/bin", "HOME": "/home/u"},
		ProgramPath:    "/bin/cp",
		ProgramContent: []byte("binary-bytes"),
		Args:           []string{"/tmp/a", "/tmp/b"},
		Inputs: []store.Entry{
			{Path: "/tmp/a", Hash: store.HashBytes([]byte("hello\n")), Size: 6},
		},
	}
}

func TestKey_deterministic(t *testing.T) {
	act := baseAction()

	id1, _, err := Key(act)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	id2, _, err := Key(act)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if id1 != id2 {
		t.Errorf("Key() not deterministic: %q != %q", id1, id2)
	}
}

func TestKey_inputOrderIndependent(t *testing.T) {
	act1 := baseAction()
	act1.Inputs = []store.Entry{
		{Path: "/tmp/a", Hash: "h1", Size: 1},
		{Path: "/tmp/b", Hash: "h2", Size: 2},
	}

	act2 := baseAction()
	act2.Inputs = []store.Entry{
		{Path: "/tmp/b", Hash: "h2", Size: 2},
		{Path: "/tmp/a", Hash: "h1", Size: 1},
	}

	id1, _, err := Key(act1)
	if err != nil {
		t.Fatalf("Key(act1) error = %v", err)
	}

	id2, _, err := Key(act2)
	if err != nil {
		t.Fatalf("Key(act2) error = %v", err)
	}

	if id1 != id2 {
		t.Errorf("Key() should be order-independent over declared inputs: %q != %q", id1, id2)
	}
}

func TestKey_envOrderIndependent(t *testing.T) {
	act1 := baseAction()
	act1.Env = map[string]string{"A": "1", "B": "2"}

	act2 := baseAction()
	act2.Env = map[string]string{"B": "2", "A": "1"}

	id1, _, err := Key(act1)
	if err != nil {
		t.Fatalf("Key(act1) error = %v", err)
	}

	id2, _, err := Key(act2)
	if err != nil {
		t.Fatalf("Key(act2) error = %v", err)
	}

	if id1 != id2 {
		t.Errorf("Key() should not depend on map iteration order: %q != %q", id1, id2)
	}
}

func TestKey_differsOnArgs(t *testing.T) {
	act1 := baseAction()
	act2 := baseAction()
	act2.Args = []string{"/tmp/a", "/tmp/c"}

	id1, _, err := Key(act1)
	if err != nil {
		t.Fatalf("Key(act1) error = %v", err)
	}

	id2, _, err := Key(act2)
	if err != nil {
		t.Fatalf("Key(act2) error = %v", err)
	}

	if id1 == id2 {
		t.Errorf("Key() should differ when args differ")
	}
}

func TestKey_outputsNotPartOfKey(t *testing.T) {
	// Outputs are not part of the Action struct at all, by construction:
	// this test documents that expectation so a future refactor that adds
	// an Outputs field to Action is forced to reconsider this invariant.
	act := baseAction()

	id1, _, err := Key(act)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	id2, _, err := Key(act)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if id1 != id2 {
		t.Errorf("Key() should be pure over Action")
	}
}

func TestKey_rejectsPipeInPath(t *testing.T) {
	act := baseAction()
	act.Inputs = []store.Entry{{Path: "/tmp/a|b", Hash: "h", Size: 1}}

	_, _, err := Key(act)
	if err == nil {
		t.Fatal("Key() expected error for path containing '|'")
	}
}
