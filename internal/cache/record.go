// Package cache manages the actions/ half of a cache root: action records
// keyed by action identifier, and their atomic publish/lookup (spec.md §3,
// §4.5).
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/artifact-executor/internal/store"
)

// ErrNotFound is returned by Lookup when no action record exists for the
// given identifier.
var ErrNotFound = errors.New("action record not found")

// Record is the six-digest body of an action record (spec.md §3):
// "wd|env|prog|args|inputs-manifest|outputs-manifest".
type Record struct {
	WorkDir        string
	Env            string
	Program        string
	Args           string
	InputsManifest string
	OutputsManifest string
}

// Digests returns the record's first five digests, the ones re-derived and
// checked on every cache hit (spec.md §4.5 step 3).
func (r Record) Digests() [5]string {
	return [5]string{r.WorkDir, r.Env, r.Program, r.Args, r.InputsManifest}
}

func (r Record) encode() []byte {
	line := strings.Join([]string{r.WorkDir, r.Env, r.Program, r.Args, r.InputsManifest, r.OutputsManifest}, "|")

	return []byte(line + "\n")
}

func parseRecord(data []byte) (Record, error) {
	line := strings.TrimRight(string(data), "\n")

	fields := strings.Split(line, "|")
	if len(fields) != 6 {
		return Record{}, fmt.Errorf("malformed action record: expected 6 fields, got %d", len(fields))
	}

	return Record{
		WorkDir:         fields[0],
		Env:             fields[1],
		Program:         fields[2],
		Args:            fields[3],
		InputsManifest:  fields[4],
		OutputsManifest: fields[5],
	}, nil
}

// actionPath returns actions/<id> for the given cache root.
func actionPath(root, id string) string {
	return filepath.Join(store.NewLayout(root).ActionsDir(), id)
}

// Lookup reads and parses actions/<id>. It returns ErrNotFound (wrapped) if
// the record does not exist.
func Lookup(root, id string) (Record, error) {
	data, err := os.ReadFile(actionPath(root, id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
		}

		return Record{}, fmt.Errorf("reading action record %s: %w", id, err)
	}

	rec, err := parseRecord(data)
	if err != nil {
		return Record{}, fmt.Errorf("action %s: %w", id, err)
	}

	return rec, nil
}

// Publish writes actions/<id>, creating the record or replacing it
// atomically (spec.md Invariant 3: "Action records are immutable;
// publishing is create-or-replace, never append"), via a temp sibling and
// rename so a killed process never leaves a half-written record visible
// (Design Note §9).
func Publish(root, id string, rec Record) error {
	layout := store.NewLayout(root)
	if err := os.MkdirAll(layout.ActionsDir(), 0o755); err != nil {
		return fmt.Errorf("creating actions dir: %w", err)
	}

	tmp, err := os.CreateTemp(layout.ActionsDir(), ".tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("publishing action %s: %w", id, err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(rec.encode())
	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("publishing action %s: %w", id, errors.Join(writeErr, closeErr))
	}

	if err := os.Rename(tmpPath, actionPath(root, id)); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("publishing action %s: %w", id, err)
	}

	return nil
}

// Remove deletes actions/<id>. Missing records are not an error (the
// shrinker may be asked to remove a record concurrently evicted).
func Remove(root, id string) error {
	err := os.Remove(actionPath(root, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing action %s: %w", id, err)
	}

	return nil
}

// List returns the identifiers of every action record in the cache,
// unordered.
func List(root string) ([]string, error) {
	dir := store.NewLayout(root).ActionsDir()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing actions: %w", err)
	}

	ids := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}

		ids = append(ids, e.Name())
	}

	return ids, nil
}
