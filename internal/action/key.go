// Package action canonicalizes and hashes the six components of an action
// into a stable action identifier, per spec.md §4.3.
package action

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calvinalkan/artifact-executor/internal/store"
)

// Action is the tuple spec.md §4.3 keys on: working directory, environment,
// program, arguments, and declared inputs (outputs are excluded from the
// key; they are only ever the record's value).
type Action struct {
	WorkDir string
	Env     map[string]string
	// ProgramPath is an absolute, symlink-resolved path to the program
	// binary; ProgramContent is its bytes, used to compute PROG's content
	// digest (spec.md §4.3 step 3).
	ProgramPath    string
	ProgramContent []byte
	Args           []string
	// Inputs is the declared input set, excluding PROG (it is folded into
	// the inputs manifest by Key per spec.md step 5).
	Inputs []store.Entry
}

// Digests holds the five sub-digests computed during canonicalization, each
// of which is itself stored as an object so replay can verify it
// bit-exactly (spec.md §4.3's final sentence).
type Digests struct {
	WorkDir          string
	Env              string
	Program          string
	Args             string
	InputsManifest   string
	inputsManifest   store.Manifest
	canonicalEnv     []string
	canonicalArgs    []string
	canonicalWorkdir string
}

// Key canonicalizes act and returns its five sub-digests, the resulting
// inputs manifest, and the top-level action identifier.
//
// The identifier is SHA-256("<wd-h>.<env-h>.<prog-h>.<args-h>.<inputs-manifest-h>\n"),
// per spec.md §4.3.
func Key(act Action) (id string, digests Digests, err error) {
	wdBytes := []byte(act.WorkDir + "\n")
	digests.canonicalWorkdir = act.WorkDir
	digests.WorkDir = store.HashBytes(wdBytes)

	envLines := canonicalEnvLines(act.Env)
	digests.canonicalEnv = envLines
	digests.Env = store.HashBytes(store.EncodeLines(envLines))

	digests.Program = store.HashBytes(act.ProgramContent)

	digests.canonicalArgs = act.Args
	digests.Args = store.HashBytes(store.EncodeLines(act.Args))

	manifest, err := inputsManifestWithProgram(act)
	if err != nil {
		return "", Digests{}, err
	}

	digests.inputsManifest = manifest
	digests.InputsManifest = manifest.Digest()

	key := fmt.Sprintf("%s.%s.%s.%s.%s\n",
		digests.WorkDir, digests.Env, digests.Program, digests.Args, digests.InputsManifest)

	return store.HashBytes([]byte(key)), digests, nil
}

// Manifest returns the canonical inputs manifest computed during Key
// (declared inputs plus PROG, sorted).
func (d Digests) Manifest() store.Manifest { return d.inputsManifest }

// CanonicalEnvLines returns the sorted "KEY=VALUE" lines used to compute the
// env digest.
func (d Digests) CanonicalEnvLines() []string { return d.canonicalEnv }

// CanonicalArgs returns the argument list, in original order, used to
// compute the args digest.
func (d Digests) CanonicalArgs() []string { return d.canonicalArgs }

// CanonicalWorkDir returns the working directory string used to compute the
// wd digest.
func (d Digests) CanonicalWorkDir() string { return d.canonicalWorkdir }

func canonicalEnvLines(env map[string]string) []string {
	lines := make([]string, 0, len(env))
	for k, v := range env {
		lines = append(lines, k+"="+v)
	}

	sort.Strings(lines)

	return lines
}

// inputsManifestWithProgram builds the *inputs manifest* of spec.md §4.3
// step 5: for each declared input plus PROG, emit "<abs-path>|<content-hash>|<size>",
// then sort.
func inputsManifestWithProgram(act Action) (store.Manifest, error) {
	manifest := make(store.Manifest, 0, len(act.Inputs)+1)
	manifest = append(manifest, act.Inputs...)

	progSize := int64(len(act.ProgramContent))
	manifest = append(manifest, store.Entry{
		Path: act.ProgramPath,
		Hash: store.HashBytes(act.ProgramContent),
		Size: progSize,
	})

	for _, e := range manifest {
		if strings.Contains(e.Path, "|") || strings.ContainsAny(e.Path, "\n\r") {
			return nil, fmt.Errorf("invalid manifest path %q: must not contain '|' or newline", e.Path)
		}
	}

	manifest.Sort()

	return manifest, nil
}
