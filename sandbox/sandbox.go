//go:build linux

package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Sandbox is a fresh, per-action scratch directory tree (the "S" of
// spec.md §4.4), the rebased environment the action runs under, and the
// sandboxed working directory the action is launched in.
type Sandbox struct {
	// Root is S, an absolute path.
	Root string
	// WorkDir is S/<declared working directory>.
	WorkDir string
	// Env is the rebased environment map the child process runs with.
	Env map[string]string
}

// Rebase is the RebaseFunc used to build Env; overridable for tests that
// want to observe what was passed to the default.
var Rebase RebaseFunc = RebasePathsInEnvironment

// Build creates a fresh sandbox under tempParent for one action: it mirrors
// the declared working directory, copies every declared input and the
// resolved program binary into S at their real absolute paths, and rebases
// the environment (spec.md §4.4).
//
// inputs and programPath must already be resolved to absolute, real
// (symlink-free) paths; Build does not re-resolve them.
//
// The returned cleanup function removes S and is safe to call multiple
// times. Callers should defer cleanup() immediately so a sandbox is never
// leaked on an error return (spec.md §9's open question on temp-directory
// cleanup is resolved here: always remove, on both success and failure).
func Build(tempParent string, env Environment, programPath string, inputs []string) (*Sandbox, func() error, error) {
	root := filepath.Join(tempParent, "artifact-executor-sandbox-"+uuid.NewString())

	cleanup := func() error {
		err := os.RemoveAll(root)
		if err != nil {
			return fmt.Errorf("cleaning up sandbox %s: %w", root, err)
		}

		return nil
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, cleanup, fmt.Errorf("creating sandbox root: %w", err)
	}

	workDir := filepath.Join(root, env.WorkDir)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, cleanup, fmt.Errorf("mirroring working directory %s: %w", env.WorkDir, err)
	}

	toCopy := make([]string, 0, len(inputs)+1)
	toCopy = append(toCopy, inputs...)
	toCopy = append(toCopy, programPath)

	for _, p := range toCopy {
		if err := copyIntoSandbox(root, p); err != nil {
			return nil, cleanup, err
		}
	}

	rebased := Rebase(root, env.Env)

	return &Sandbox{Root: root, WorkDir: workDir, Env: rebased}, cleanup, nil
}

// copyIntoSandbox copies the real file at absPath into root/<absPath>,
// creating parent directories on demand and leaving the copy
// owner-writable, per spec.md §4.4's mount rules generalized from bind
// mounts to plain copies.
func copyIntoSandbox(root, absPath string) error {
	if !filepath.IsAbs(absPath) {
		return fmt.Errorf("sandbox: path %q is not absolute", absPath)
	}

	dst := filepath.Join(root, absPath)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating sandbox parent dirs for %s: %w", absPath, err)
	}

	src, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("copying %s into sandbox: %w", absPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", absPath, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return fmt.Errorf("creating sandbox copy of %s: %w", absPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copying %s into sandbox: %w", absPath, err)
	}

	return nil
}

// ExtractOutputs copies each declared output from sandboxRoot/<path> to
// path on the host, creating parent directories as needed (spec.md §4.4's
// extraction step).
func ExtractOutputs(sandboxRoot string, outputs []string) error {
	for _, out := range outputs {
		src := filepath.Join(sandboxRoot, out)

		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("creating output parent dirs for %s: %w", out, err)
		}

		if err := copyFile(src, out); err != nil {
			return fmt.Errorf("extracting output %s: %w", out, err)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)

	return err
}
