//go:build linux

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuild_copiesInputsAndProgramMirrorsWorkdir(t *testing.T) {
	tempParent := t.TempDir()
	hostDir := t.TempDir()

	inputPath := filepath.Join(hostDir, "input.txt")
	if err := os.WriteFile(inputPath, []byte("input data"), 0o644); err != nil {
		t.Fatal(err)
	}

	progPath := filepath.Join(hostDir, "prog")
	if err := os.WriteFile(progPath, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	env := Environment{
		WorkDir: hostDir,
		Env:     map[string]string{"HOME": hostDir, "LANG": "C"},
	}

	sb, cleanup, err := Build(tempParent, env, progPath, []string{inputPath})
	defer cleanup()

	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	gotInput, err := os.ReadFile(filepath.Join(sb.Root, inputPath))
	if err != nil {
		t.Fatalf("reading staged input: %v", err)
	}

	if string(gotInput) != "input data" {
		t.Errorf("staged input = %q, want %q", gotInput, "input data")
	}

	if _, err := os.Stat(filepath.Join(sb.Root, progPath)); err != nil {
		t.Errorf("program not staged: %v", err)
	}

	if sb.WorkDir != filepath.Join(sb.Root, hostDir) {
		t.Errorf("WorkDir = %s, want %s", sb.WorkDir, filepath.Join(sb.Root, hostDir))
	}

	if sb.Env["HOME"] != filepath.Join(sb.Root, hostDir) {
		t.Errorf("rebased HOME = %s, want %s", sb.Env["HOME"], filepath.Join(sb.Root, hostDir))
	}

	if sb.Env["LANG"] != "C" {
		t.Errorf("LANG should pass through unchanged, got %s", sb.Env["LANG"])
	}

	if err := cleanup(); err != nil {
		t.Errorf("cleanup() error = %v", err)
	}

	if _, err := os.Stat(sb.Root); !os.IsNotExist(err) {
		t.Errorf("sandbox root still exists after cleanup: %v", err)
	}
}

func TestBuild_distinctRootsPerCall(t *testing.T) {
	tempParent := t.TempDir()
	hostDir := t.TempDir()

	progPath := filepath.Join(hostDir, "prog")
	if err := os.WriteFile(progPath, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	env := Environment{WorkDir: hostDir, Env: map[string]string{}}

	sb1, cleanup1, err := Build(tempParent, env, progPath, nil)
	defer cleanup1()

	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	sb2, cleanup2, err := Build(tempParent, env, progPath, nil)
	defer cleanup2()

	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if sb1.Root == sb2.Root {
		t.Errorf("expected distinct sandbox roots, got the same: %s", sb1.Root)
	}
}

func TestExtractOutputs(t *testing.T) {
	root := t.TempDir()
	hostDir := t.TempDir()

	outputHost := filepath.Join(hostDir, "out.txt")
	sandboxed := filepath.Join(root, outputHost)

	if err := os.MkdirAll(filepath.Dir(sandboxed), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(sandboxed, []byte("produced"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ExtractOutputs(root, []string{outputHost}); err != nil {
		t.Fatalf("ExtractOutputs() error = %v", err)
	}

	got, err := os.ReadFile(outputHost)
	if err != nil {
		t.Fatalf("reading extracted output: %v", err)
	}

	if string(got) != "produced" {
		t.Errorf("extracted output = %q, want %q", got, "produced")
	}
}
