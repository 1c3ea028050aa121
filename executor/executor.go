//go:build linux

package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/calvinalkan/artifact-executor/internal/action"
	"github.com/calvinalkan/artifact-executor/internal/cache"
	"github.com/calvinalkan/artifact-executor/internal/store"
	"github.com/calvinalkan/artifact-executor/internal/trace"
	"github.com/calvinalkan/artifact-executor/sandbox"
)

// Logger receives warnings and debug detail emitted during execution
// (spec.md §7's "Warnings are logged and execution continues", and Design
// Note §9's level-checked logger value). A nil Logger silently drops both.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

// Input is the contract of execute() from spec.md §4.5: env, prog, args,
// declared_inputs, declared_outputs, cache_dir, plus the working directory
// that spec.md §3 folds into the action tuple.
type Input struct {
	CacheDir        string
	WorkDir         string
	Env             map[string]string
	Program         string
	Args            []string
	DeclaredInputs  []string
	DeclaredOutputs []string

	// Tracer runs the program under trace on a cache miss. Required.
	Tracer sandbox.Tracer
	// TempParent is the directory new sandbox roots are created under. If
	// empty, os.TempDir() is used.
	TempParent string
	// Stdin/Stdout/Stderr are connected to the traced program on a miss.
	Stdin          io.Reader
	Stdout, Stderr io.Writer
	// Logger receives warnings (NonHermeticIdentical, declared-but-untouched
	// inputs). May be nil.
	Logger Logger
}

// Result reports what Execute did.
type Result struct {
	ActionID              string
	Hit                   bool
	OutputsManifestDigest string
}

// Execute implements spec.md §4.5: key the action, replay on a cache hit,
// or sandbox/trace/verify/publish on a miss.
func Execute(ctx context.Context, in Input) (Result, error) {
	logger := in.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	if in.CacheDir == "" {
		return Result{}, &ConfigError{Detail: "cache directory not set"}
	}

	layout := store.NewLayout(in.CacheDir)
	if err := layout.Ensure(); err != nil {
		return Result{}, err
	}

	progAbs, err := resolveAbs(in.Program)
	if err != nil {
		return Result{}, &NotFoundError{Path: in.Program}
	}

	progContent, err := os.ReadFile(progAbs)
	if err != nil {
		return Result{}, &NotFoundError{Path: progAbs}
	}

	declaredInputsAbs := make([]string, 0, len(in.DeclaredInputs))

	inputEntries := make([]store.Entry, 0, len(in.DeclaredInputs))

	for _, p := range in.DeclaredInputs {
		abs, err := resolveAbs(p)
		if err != nil {
			return Result{}, &NotFoundError{Path: p}
		}

		declaredInputsAbs = append(declaredInputsAbs, abs)

		hash, size, err := store.CacheFile(in.CacheDir, abs, "")
		if err != nil {
			return Result{}, fmt.Errorf("ingesting declared input %s: %w", abs, err)
		}

		inputEntries = append(inputEntries, store.Entry{Path: abs, Hash: hash, Size: size})
	}

	// Ingest PROG itself so its content is addressable the same way
	// declared inputs are (spec.md §4.3 step 5 folds PROG into the inputs
	// manifest).
	if _, _, err := store.CacheFile(in.CacheDir, progAbs, ""); err != nil {
		return Result{}, fmt.Errorf("ingesting program %s: %w", progAbs, err)
	}

	act := action.Action{
		WorkDir:        in.WorkDir,
		Env:            in.Env,
		ProgramPath:    progAbs,
		ProgramContent: progContent,
		Args:           in.Args,
		Inputs:         inputEntries,
	}

	id, digests, err := action.Key(act)
	if err != nil {
		return Result{}, fmt.Errorf("keying action: %w", err)
	}

	// Side effect of keying: the five sub-digests' serialized forms are
	// themselves stored as objects, so a replay can verify them
	// bit-exactly (spec.md §4.3's final sentence).
	if _, err := store.WriteObjectBytes(in.CacheDir, []byte(digests.CanonicalWorkDir()+"\n")); err != nil {
		return Result{}, err
	}

	if _, err := store.WriteObjectBytes(in.CacheDir, store.EncodeLines(digests.CanonicalEnvLines())); err != nil {
		return Result{}, err
	}

	if _, err := store.WriteObjectBytes(in.CacheDir, progContent); err != nil {
		return Result{}, err
	}

	if _, err := store.WriteObjectBytes(in.CacheDir, store.EncodeLines(digests.CanonicalArgs())); err != nil {
		return Result{}, err
	}

	if _, err := store.WriteObjectBytes(in.CacheDir, digests.Manifest().Encode()); err != nil {
		return Result{}, err
	}

	record, hitErr := cache.Lookup(in.CacheDir, id)

	switch {
	case hitErr == nil:
		if err := verifyRecord(record, digests); err != nil {
			return Result{}, err
		}

		if err := replay(in.CacheDir, record); err != nil {
			return Result{}, err
		}

		return Result{ActionID: id, Hit: true, OutputsManifestDigest: record.OutputsManifest}, nil

	case !errors.Is(hitErr, cache.ErrNotFound):
		return Result{}, fmt.Errorf("looking up action %s: %w", id, hitErr)
	}

	declaredOutputsAbs := make([]string, 0, len(in.DeclaredOutputs))
	for _, p := range in.DeclaredOutputs {
		abs, err := filepath.Abs(p)
		if err != nil {
			return Result{}, fmt.Errorf("resolving declared output %s: %w", p, err)
		}

		declaredOutputsAbs = append(declaredOutputsAbs, abs)
	}

	outputsDigest, err := runMiss(ctx, in, logger, declaredInputsAbs, declaredOutputsAbs, progAbs)
	if err != nil {
		return Result{}, err
	}

	if err := cache.Publish(in.CacheDir, id, cache.Record{
		WorkDir:         digests.WorkDir,
		Env:             digests.Env,
		Program:         digests.Program,
		Args:            digests.Args,
		InputsManifest:  digests.InputsManifest,
		OutputsManifest: outputsDigest,
	}); err != nil {
		return Result{}, err
	}

	return Result{ActionID: id, Hit: false, OutputsManifestDigest: outputsDigest}, nil
}

// verifyRecord implements spec.md §4.5 step 3: the first five digests of a
// cached record must match the freshly computed ones bit-exactly.
func verifyRecord(record cache.Record, digests action.Digests) error {
	want := [5]string{digests.WorkDir, digests.Env, digests.Program, digests.Args, digests.InputsManifest}
	got := record.Digests()
	fields := [5]string{"wd", "env", "prog", "args", "inputs-manifest"}

	for i := range want {
		if want[i] != got[i] {
			return &HashMismatchError{Field: fields[i], Expected: want[i], Got: got[i]}
		}
	}

	return nil
}

// replay restores outputs from a cache hit: for each line of the recorded
// outputs manifest, copy objects/<hash> to the absolute path, creating
// parent directories (spec.md §4.5 step 3).
func replay(cacheDir string, record cache.Record) error {
	data, err := store.ReadObject(cacheDir, record.OutputsManifest)
	if err != nil {
		return fmt.Errorf("replaying outputs manifest: %w", err)
	}

	manifest, err := store.ParseManifest(data)
	if err != nil {
		return fmt.Errorf("parsing outputs manifest: %w", err)
	}

	for _, e := range manifest {
		if err := restoreObject(cacheDir, e); err != nil {
			return err
		}
	}

	return nil
}

func restoreObject(cacheDir string, e store.Entry) error {
	blob, err := store.ReadObject(cacheDir, e.Hash)
	if err != nil {
		return &NotFoundError{Path: store.NewLayout(cacheDir).ObjectPath(e.Hash)}
	}

	if err := os.MkdirAll(filepath.Dir(e.Path), 0o755); err != nil {
		return fmt.Errorf("restoring %s: %w", e.Path, err)
	}

	if err := os.WriteFile(e.Path, blob, 0o644); err != nil {
		return fmt.Errorf("restoring %s: %w", e.Path, err)
	}

	return store.TouchPathIndex(cacheDir, e.Path)
}

// runMiss implements spec.md §4.5 steps 4-9: build the sandbox, run the
// traced program, fold events, verify hermeticity, diff declared vs
// traced, cache outputs, extract them to the host. It returns the digest
// of the resulting outputs manifest.
func runMiss(ctx context.Context, in Input, logger Logger, declaredInputsAbs, declaredOutputsAbs []string, progAbs string) (string, error) {
	tempParent := in.TempParent
	if tempParent == "" {
		tempParent = os.TempDir()
	}

	sb, cleanup, err := sandbox.Build(tempParent, sandbox.Environment{WorkDir: in.WorkDir, Env: in.Env}, progAbs, declaredInputsAbs)
	defer cleanup()

	if err != nil {
		return "", fmt.Errorf("building sandbox: %w", err)
	}

	eventLogPath := filepath.Join(sb.Root, ".trace-events.log")

	argv := append([]string{progAbs}, in.Args...)
	envSlice := envMapToSlice(sb.Env)

	if err := in.Tracer.Trace(ctx, eventLogPath, sb.WorkDir, envSlice, argv, in.Stdin, in.Stdout, in.Stderr); err != nil {
		return "", &TracerFailureError{Detail: err.Error()}
	}

	f, err := os.Open(eventLogPath)
	if err != nil {
		return "", &TracerFailureError{Detail: fmt.Sprintf("reading trace log: %v", err)}
	}
	defer f.Close()

	events, err := sandbox.ReadEventLog(f)
	if err != nil {
		return "", &TracerFailureError{Detail: err.Error()}
	}

	classes, err := trace.Fold(events)
	if err != nil {
		return "", fmt.Errorf("folding trace events: %w", err)
	}

	tracedPaths := make([]string, 0, len(classes))
	for p := range classes {
		tracedPaths = append(tracedPaths, p)
	}

	hermeticity, err := sandbox.CheckHermeticFiles(sb.Root, tracedPaths)
	if err != nil {
		return "", err
	}

	for _, w := range hermeticity.Warnings {
		logger.Warnf("non-hermetic access to %s: sandboxed and host contents are identical", w)
	}

	if len(hermeticity.Divergent) > 0 {
		sort.Strings(hermeticity.Divergent)

		return "", &NonHermeticDivergentError{Path: hermeticity.Divergent[0]}
	}

	tracedInputs := map[string]bool{}
	tracedOutputs := map[string]bool{}

	for p, c := range classes {
		if sandbox.IsProcPath(hostPath(sb.Root, p)) {
			continue
		}

		host := hostPath(sb.Root, p)

		switch c {
		case trace.ClassInput:
			tracedInputs[host] = true
		case trace.ClassOutput:
			tracedOutputs[host] = true
		case trace.ClassInputOutput:
			tracedInputs[host] = true
			tracedOutputs[host] = true
		case trace.ClassTransient:
			// Neither input nor output; not reported (spec.md §4.2).
		}
	}

	declaredInputSet := toSet(declaredInputsAbs)

	for host := range tracedInputs {
		if !declaredInputSet[host] {
			return "", &UndeclaredInputError{Path: host}
		}
	}

	for _, declared := range declaredInputsAbs {
		if !tracedInputs[declared] {
			logger.Warnf("declared input %s was never touched by the action", declared)
		}
	}

	for _, declared := range declaredOutputsAbs {
		if !tracedOutputs[declared] {
			return "", &MissingOutputError{Path: declared}
		}
	}

	outputsManifest := make(store.Manifest, 0, len(declaredOutputsAbs))

	for _, out := range declaredOutputsAbs {
		sandboxed := filepath.Join(sb.Root, out)

		hash, size, err := store.CacheFile(in.CacheDir, sandboxed, out)
		if err != nil {
			return "", fmt.Errorf("caching output %s: %w", out, err)
		}

		outputsManifest = append(outputsManifest, store.Entry{Path: out, Hash: hash, Size: size})
	}

	if err := sandbox.ExtractOutputs(sb.Root, declaredOutputsAbs); err != nil {
		return "", err
	}

	for _, out := range declaredOutputsAbs {
		if err := store.TouchPathIndex(in.CacheDir, out); err != nil {
			return "", err
		}
	}

	outputsDigest, err := store.WriteObjectBytes(in.CacheDir, outputsManifest.Encode())
	if err != nil {
		return "", err
	}

	return outputsDigest, nil
}

// hostPath strips sandboxRoot from a traced path if it is hermetic;
// non-hermetic paths are already host-absolute and pass through unchanged.
func hostPath(sandboxRoot, tracedPath string) string {
	if sandbox.IsHermetic(sandboxRoot, tracedPath) {
		return sandbox.StripSandboxPrefix(sandboxRoot, tracedPath)
	}

	return tracedPath
}

func toSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}

	return set
}

func resolveAbs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	return real, nil
}

func envMapToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}

	sort.Strings(out)

	return out
}
