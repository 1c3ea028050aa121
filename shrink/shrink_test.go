package shrink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/artifact-executor/internal/action"
	"github.com/calvinalkan/artifact-executor/internal/cache"
	"github.com/calvinalkan/artifact-executor/internal/store"
)

// publishAction hand-assembles and publishes a minimal action record
// sharing declared inputs across actions, mirroring spec.md §8 scenario 4
// (two actions, A and B, sharing an input blob).
func publishAction(t *testing.T, cacheDir string, program string, args []string, inputs []store.Entry, outputs []store.Entry) string {
	t.Helper()

	if err := store.NewLayout(cacheDir).Ensure(); err != nil {
		t.Fatal(err)
	}

	act := action.Action{
		WorkDir:        "/work",
		Env:            map[string]string{"LANG": "C"},
		ProgramPath:    program,
		ProgramContent: []byte(program),
		Args:           args,
		Inputs:         inputs,
	}

	id, digests, err := action.Key(act)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.WriteObjectBytes(cacheDir, []byte(digests.CanonicalWorkDir()+"\n")); err != nil {
		t.Fatal(err)
	}

	if _, err := store.WriteObjectBytes(cacheDir, store.EncodeLines(digests.CanonicalEnvLines())); err != nil {
		t.Fatal(err)
	}

	if _, err := store.WriteObjectBytes(cacheDir, []byte(program)); err != nil {
		t.Fatal(err)
	}

	if _, err := store.WriteObjectBytes(cacheDir, store.EncodeLines(args)); err != nil {
		t.Fatal(err)
	}

	if _, err := store.WriteObjectBytes(cacheDir, digests.Manifest().Encode()); err != nil {
		t.Fatal(err)
	}

	outManifest := store.Manifest(outputs)

	outHash, err := store.WriteObjectBytes(cacheDir, outManifest.Encode())
	if err != nil {
		t.Fatal(err)
	}

	err = cache.Publish(cacheDir, id, cache.Record{
		WorkDir:         digests.WorkDir,
		Env:             digests.Env,
		Program:         digests.Program,
		Args:            digests.Args,
		InputsManifest:  digests.InputsManifest,
		OutputsManifest: outHash,
	})
	if err != nil {
		t.Fatal(err)
	}

	return id
}

func ingestBlob(t *testing.T, cacheDir, content string) store.Entry {
	t.Helper()

	hash, err := store.WriteObjectBytes(cacheDir, []byte(content))
	if err != nil {
		t.Fatal(err)
	}

	return store.Entry{Path: "/shared/" + hash, Hash: hash, Size: int64(len(content))}
}

type scriptedPrompter struct {
	decisions []Decision
	i         int
	seen      []ActionSummary
}

func (p *scriptedPrompter) Prompt(s ActionSummary) (Decision, error) {
	p.seen = append(p.seen, s)

	d := p.decisions[p.i]
	p.i++

	return d, nil
}

func TestShrink_refcountingAcrossSharedInput(t *testing.T) {
	cacheDir := t.TempDir()

	shared := ingestBlob(t, cacheDir, "shared input content")

	idA := publishAction(t, cacheDir, "/bin/progA", []string{"--a"}, []store.Entry{shared}, nil)
	idB := publishAction(t, cacheDir, "/bin/progB", []string{"--b"}, []store.Entry{shared}, nil)

	// Remove A, then quit: B still references the shared blob, so it must
	// survive (spec.md §8 scenario 4).
	prompter := &scriptedPrompter{decisions: []Decision{DecisionRemove, DecisionQuit}}

	report, err := Shrink(cacheDir, prompter, nil)
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}

	if len(report.Removed) != 1 || report.Removed[0] != idA {
		t.Errorf("Removed = %v, want [%s]", report.Removed, idA)
	}

	if _, err := cache.Lookup(cacheDir, idA); err == nil {
		t.Error("action A should have been removed")
	}

	if _, err := cache.Lookup(cacheDir, idB); err != nil {
		t.Errorf("action B should still exist: %v", err)
	}

	if !store.NewLayout(cacheDir).HasObject(shared.Hash) {
		t.Error("shared blob should survive: still referenced by B")
	}
}

func TestShrink_removingLastReferenceFreesBlob(t *testing.T) {
	cacheDir := t.TempDir()

	shared := ingestBlob(t, cacheDir, "shared input content")

	idA := publishAction(t, cacheDir, "/bin/progA", []string{"--a"}, []store.Entry{shared}, nil)
	idB := publishAction(t, cacheDir, "/bin/progB", []string{"--b"}, []store.Entry{shared}, nil)

	prompter := &scriptedPrompter{decisions: []Decision{DecisionRemove, DecisionRemove}}

	if _, err := Shrink(cacheDir, prompter, nil); err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}

	if _, err := cache.Lookup(cacheDir, idA); err == nil {
		t.Error("action A should have been removed")
	}

	if _, err := cache.Lookup(cacheDir, idB); err == nil {
		t.Error("action B should have been removed")
	}

	if store.NewLayout(cacheDir).HasObject(shared.Hash) {
		t.Error("shared blob should be swept once both referencing actions are gone")
	}
}

func TestShrink_skipLeavesEverythingInPlace(t *testing.T) {
	cacheDir := t.TempDir()

	shared := ingestBlob(t, cacheDir, "content")
	id := publishAction(t, cacheDir, "/bin/prog", nil, []store.Entry{shared}, nil)

	prompter := &scriptedPrompter{decisions: []Decision{DecisionSkip}}

	report, err := Shrink(cacheDir, prompter, nil)
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}

	if len(report.Removed) != 0 {
		t.Errorf("Removed = %v, want none", report.Removed)
	}

	if _, err := cache.Lookup(cacheDir, id); err != nil {
		t.Errorf("action should still exist: %v", err)
	}
}

func TestShrink_summaryReportsProgramAndArgs(t *testing.T) {
	cacheDir := t.TempDir()

	input := ingestBlob(t, cacheDir, "x")
	publishAction(t, cacheDir, "/bin/myprog", []string{"build", "--flag"}, []store.Entry{input}, nil)

	prompter := &scriptedPrompter{decisions: []Decision{DecisionSkip}}

	if _, err := Shrink(cacheDir, prompter, nil); err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}

	if len(prompter.seen) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(prompter.seen))
	}

	got := prompter.seen[0]
	if got.Program != "/bin/myprog" {
		t.Errorf("Program = %q, want /bin/myprog", got.Program)
	}

	if len(got.Args) != 2 || got.Args[0] != "build" || got.Args[1] != "--flag" {
		t.Errorf("Args = %v, want [build --flag]", got.Args)
	}
}

func TestPruneEmptyPathIndexDirs(t *testing.T) {
	cacheDir := t.TempDir()

	nested := filepath.Join(store.NewLayout(cacheDir).PathIndexDir(), "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := store.PruneEmptyPathIndexDirs(cacheDir); err != nil {
		t.Fatalf("PruneEmptyPathIndexDirs() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.NewLayout(cacheDir).PathIndexDir(), "a")); !os.IsNotExist(err) {
		t.Errorf("expected empty nested dirs to be pruned, stat err = %v", err)
	}
}
