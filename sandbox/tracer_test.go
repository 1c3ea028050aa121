//go:build linux

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/artifact-executor/internal/trace"
	"github.com/google/go-cmp/cmp"
)

func TestStubTracer_writesEventLogAndFolds(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")

	stub := &StubTracer{
		Events: []RawEvent{
			{Kind: "r", Path: "/S/in"},
			{Kind: "w", Path: "/S/out.tmp"},
			{Kind: "m", Dst: "/S/out", Src: "/S/out.tmp"},
		},
	}

	err := stub.Trace(context.Background(), logPath, "/S", nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}

	if !stub.Ran {
		t.Error("Ran = false after Trace")
	}

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("opening event log: %v", err)
	}
	defer f.Close()

	events, err := ReadEventLog(f)
	if err != nil {
		t.Fatalf("ReadEventLog() error = %v", err)
	}

	classes, err := trace.Fold(events)
	if err != nil {
		t.Fatalf("Fold() error = %v", err)
	}

	want := map[string]trace.Classification{
		"/S/in":      trace.ClassInput,
		"/S/out.tmp": trace.ClassTransient,
		"/S/out":     trace.ClassOutput,
	}

	if diff := cmp.Diff(want, classes); diff != "" {
		t.Errorf("fold mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEventLog_unknownKindIsFatal(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(logPath, []byte("x|/foo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = ReadEventLog(f)
	if err == nil {
		t.Fatal("ReadEventLog() expected error for unknown event kind")
	}
}
