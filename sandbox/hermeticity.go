//go:build linux

package sandbox

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HermeticityResult partitions a set of traced paths into the ones that
// stayed inside the sandbox and the warnings/errors produced by the ones
// that didn't (spec.md §4.4's check_hermetic_files).
type HermeticityResult struct {
	// Warnings lists paths that escaped the sandbox but whose content,
	// compared byte-wise against the sandboxed copy, was identical
	// (NonHermeticIdentical — logged, not fatal).
	Warnings []string
	// Divergent lists paths that escaped the sandbox and whose content
	// differed (or were missing from the sandbox) — NonHermeticDivergent,
	// fatal.
	Divergent []string
}

// CheckHermeticFiles implements spec.md §4.4's check_hermetic_files: any
// traced path that does not start with sandboxRoot is non-hermetic.
// /proc/* paths are excluded from analysis entirely. For each remaining
// non-hermetic path, the real file is compared byte-wise against
// sandboxRoot/<path> (if present): equal contents are a warning, different
// or missing contents are fatal.
func CheckHermeticFiles(sandboxRoot string, tracedPaths []string) (HermeticityResult, error) {
	var result HermeticityResult

	for _, p := range tracedPaths {
		if IsHermetic(sandboxRoot, p) {
			continue
		}

		if IsProcPath(p) {
			continue
		}

		sandboxed := filepath.Join(sandboxRoot, p)

		equal, err := filesByteEqual(p, sandboxed)
		if err != nil {
			result.Divergent = append(result.Divergent, p)

			continue
		}

		if equal {
			result.Warnings = append(result.Warnings, p)
		} else {
			result.Divergent = append(result.Divergent, p)
		}
	}

	return result, nil
}

// IsHermetic reports whether path begins with sandboxRoot (spec.md §4.4:
// "Hermetic access: an access whose path begins with the current sandbox
// root.").
func IsHermetic(sandboxRoot, path string) bool {
	root := strings.TrimRight(sandboxRoot, "/")

	return path == root || strings.HasPrefix(path, root+"/")
}

// IsProcPath reports whether path falls under /proc, which is always
// excluded from hermeticity analysis and from undeclared-input checks
// (spec.md §4.4, §4.5 step 6).
func IsProcPath(path string) bool {
	return path == "/proc" || strings.HasPrefix(path, "/proc/")
}

// StripSandboxPrefix removes sandboxRoot from path, returning the
// corresponding host-absolute path, for use once a traced access has been
// confirmed hermetic (spec.md §4.5 step 6: "after stripping the S
// prefix").
func StripSandboxPrefix(sandboxRoot, path string) string {
	root := strings.TrimRight(sandboxRoot, "/")
	if path == root {
		return "/"
	}

	return strings.TrimPrefix(path, root)
}

func filesByteEqual(hostPath, sandboxPath string) (bool, error) {
	hostData, err := os.ReadFile(hostPath)
	if err != nil {
		return false, fmt.Errorf("reading host copy of %s: %w", hostPath, err)
	}

	sandboxData, err := os.ReadFile(sandboxPath)
	if err != nil {
		// Missing from the sandbox entirely: divergent, not an error — the
		// caller treats a false return the same whether content differed
		// or the sandboxed copy never existed.
		return false, nil
	}

	return bytes.Equal(hostData, sandboxData), nil
}
