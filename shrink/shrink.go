// Package shrink implements the interactive cache shrinker of spec.md
// §4.6: a reference-counted sweep over action records that lets an
// operator remove selected actions and reclaim the objects and
// path-index entries nothing else refers to anymore.
package shrink

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/calvinalkan/artifact-executor/internal/cache"
	"github.com/calvinalkan/artifact-executor/internal/store"
)

// Logger receives progress detail during a shrink run. A nil Logger
// silently drops everything.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// ActionSummary is what the display pass (spec.md §4.6 step 3) shows the
// operator before prompting.
type ActionSummary struct {
	ID       string
	Program  string
	Args     []string
	ModTime  time.Time
	MinBytes uint64
	MaxBytes uint64
}

// Decision is the operator's response to one ActionSummary.
type Decision int

const (
	// DecisionRemove deletes the action record and decrements its refs.
	DecisionRemove Decision = iota
	// DecisionSkip leaves the action untouched.
	DecisionSkip
	// DecisionQuit ends the display pass immediately.
	DecisionQuit
)

// Prompter summarizes one action and returns the operator's decision.
type Prompter interface {
	Prompt(ActionSummary) (Decision, error)
}

// Report summarizes what a Shrink run did.
type Report struct {
	Removed      []string
	ObjectsFreed int
	PathsFreed   int
}

// actionRefs is everything shrink needs about one action: its record and
// its two parsed manifests.
type actionRefs struct {
	id      string
	record  cache.Record
	inputs  store.Manifest
	outputs store.Manifest
}

// Shrink implements spec.md §4.6's four-step algorithm: refcount every
// action newest-first, prompt oldest-first for removal, then sweep
// whatever is left unreferenced.
func Shrink(cacheDir string, prompter Prompter, logger Logger) (Report, error) {
	if logger == nil {
		logger = nopLogger{}
	}

	newestFirst, refsByID, unreferencedObjects, unreferencedPaths, refcountObjects, refcountPaths, err := refcountPass(cacheDir)
	if err != nil {
		return Report{}, err
	}

	logger.Debugf("shrink: %d actions, %d distinct referenced objects, %d distinct referenced paths",
		len(newestFirst), len(refcountObjects), len(refcountPaths))

	var removed []string

displayPass:
	for i := len(newestFirst) - 1; i >= 0; i-- {
		id := newestFirst[i]
		refs := refsByID[id]

		summary, err := summarize(cacheDir, refs, refcountObjects)
		if err != nil {
			return Report{}, err
		}

		decision, err := prompter.Prompt(summary)
		if err != nil {
			return Report{}, fmt.Errorf("prompting for action %s: %w", id, err)
		}

		switch decision {
		case DecisionSkip:
			continue

		case DecisionQuit:
			break displayPass

		case DecisionRemove:
			for _, h := range objectRefs(refs) {
				refcountObjects[h]--
				if refcountObjects[h] <= 0 {
					delete(refcountObjects, h)
					unreferencedObjects[h] = struct{}{}
				}
			}

			for _, p := range pathRefs(refs) {
				refcountPaths[p]--
				if refcountPaths[p] <= 0 {
					delete(refcountPaths, p)
					unreferencedPaths[p] = struct{}{}
				}
			}

			if err := cache.Remove(cacheDir, id); err != nil {
				return Report{}, err
			}

			removed = append(removed, id)
		}
	}

	for h := range unreferencedObjects {
		if err := store.RemoveObject(cacheDir, h); err != nil {
			return Report{}, err
		}
	}

	for p := range unreferencedPaths {
		if err := store.RemovePathIndexEntry(cacheDir, p); err != nil {
			return Report{}, err
		}
	}

	if err := store.PruneEmptyPathIndexDirs(cacheDir); err != nil {
		return Report{}, err
	}

	return Report{Removed: removed, ObjectsFreed: len(unreferencedObjects), PathsFreed: len(unreferencedPaths)}, nil
}

// refcountPass runs spec.md §4.6 step 1 (the newest-first reference-counting
// pass) and returns everything both Shrink and Preview need to continue:
// the action order, each action's loaded refs, the objects/paths nothing
// references yet, and the live refcounts.
func refcountPass(cacheDir string) (newestFirst []string, refsByID map[string]actionRefs, unreferencedObjects, unreferencedPaths map[string]struct{}, refcountObjects, refcountPaths map[string]int, err error) {
	ids, err := cache.List(cacheDir)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("listing actions: %w", err)
	}

	newestFirst, err = sortByModTimeDesc(cacheDir, ids)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	refsByID = make(map[string]actionRefs, len(newestFirst))

	unreferencedObjects, err = setFromSlice(store.ListObjects(cacheDir))
	if err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	unreferencedPaths, err = setFromSlice(store.ListPathIndexPaths(cacheDir))
	if err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	refcountObjects = map[string]int{}
	refcountPaths = map[string]int{}

	for _, id := range newestFirst {
		refs, loadErr := loadActionRefs(cacheDir, id)
		if loadErr != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("loading action %s: %w", id, loadErr)
		}

		refsByID[id] = refs

		for _, h := range objectRefs(refs) {
			refcountObjects[h]++
			delete(unreferencedObjects, h)
		}

		for _, p := range pathRefs(refs) {
			refcountPaths[p]++
			delete(unreferencedPaths, p)
		}
	}

	return newestFirst, refsByID, unreferencedObjects, unreferencedPaths, refcountObjects, refcountPaths, nil
}

// Preview runs the same reference-counting pass as Shrink but never prompts
// or deletes anything: it returns the oldest-first summaries an interactive
// run would show, for `shrink --dry-run` (SPEC_FULL.md's supplemented
// shrink subcommand).
func Preview(cacheDir string) ([]ActionSummary, error) {
	newestFirst, refsByID, _, _, refcountObjects, _, err := refcountPass(cacheDir)
	if err != nil {
		return nil, err
	}

	summaries := make([]ActionSummary, 0, len(newestFirst))

	for i := len(newestFirst) - 1; i >= 0; i-- {
		summary, err := summarize(cacheDir, refsByID[newestFirst[i]], refcountObjects)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func loadActionRefs(cacheDir, id string) (actionRefs, error) {
	record, err := cache.Lookup(cacheDir, id)
	if err != nil {
		return actionRefs{}, err
	}

	inputsBytes, err := store.ReadObject(cacheDir, record.InputsManifest)
	if err != nil {
		return actionRefs{}, fmt.Errorf("reading inputs manifest for %s: %w", id, err)
	}

	inputs, err := store.ParseManifest(inputsBytes)
	if err != nil {
		return actionRefs{}, fmt.Errorf("parsing inputs manifest for %s: %w", id, err)
	}

	outputsBytes, err := store.ReadObject(cacheDir, record.OutputsManifest)
	if err != nil {
		return actionRefs{}, fmt.Errorf("reading outputs manifest for %s: %w", id, err)
	}

	outputs, err := store.ParseManifest(outputsBytes)
	if err != nil {
		return actionRefs{}, fmt.Errorf("parsing outputs manifest for %s: %w", id, err)
	}

	return actionRefs{id: id, record: record, inputs: inputs, outputs: outputs}, nil
}

// objectRefs lists every object hash this action refers to, as a
// multiset (duplicates intentional: pass 1 increments once per
// occurrence, removal decrements the same occurrences).
func objectRefs(refs actionRefs) []string {
	hashes := []string{
		refs.record.WorkDir,
		refs.record.Env,
		refs.record.Program,
		refs.record.Args,
		refs.record.InputsManifest,
		refs.record.OutputsManifest,
	}

	for _, e := range refs.inputs {
		hashes = append(hashes, e.Hash)
	}

	for _, e := range refs.outputs {
		hashes = append(hashes, e.Hash)
	}

	return hashes
}

// pathRefs lists every path-index path this action refers to.
func pathRefs(refs actionRefs) []string {
	var paths []string

	for _, e := range refs.inputs {
		paths = append(paths, e.Path)
	}

	for _, e := range refs.outputs {
		paths = append(paths, e.Path)
	}

	return paths
}

// summarize builds the display-pass summary for one action, per spec.md
// §4.6 step 3: program (the absolute path of the inputs manifest's PROG
// entry, identified by its hash matching record.Program), abbreviated
// args (read back from the args object), mtime, and min/max cached
// bytes.
func summarize(cacheDir string, refs actionRefs, refcountObjects map[string]int) (ActionSummary, error) {
	program := "(unknown)"

	for _, e := range refs.inputs {
		if e.Hash == refs.record.Program {
			program = e.Path

			break
		}
	}

	args, err := readArgs(cacheDir, refs.record.Args)
	if err != nil {
		return ActionSummary{}, err
	}

	modTime, err := cache.ModTime(cacheDir, refs.id)
	if err != nil {
		return ActionSummary{}, err
	}

	// own counts this action's occurrences of each hash: a blob is only
	// recoverable if every live reference to it comes from this action.
	own := map[string]int{}
	for _, h := range objectRefs(refs) {
		own[h]++
	}

	var minBytes, maxBytes uint64

	for h, n := range own {
		size, err := store.ObjectSize(cacheDir, h)
		if err != nil {
			continue // object missing from objects/; not counted
		}

		maxBytes += uint64(size)

		if refcountObjects[h] == n {
			minBytes += uint64(size)
		}
	}

	return ActionSummary{
		ID:       refs.id,
		Program:  program,
		Args:     args,
		ModTime:  modTime,
		MinBytes: minBytes,
		MaxBytes: maxBytes,
	}, nil
}

func readArgs(cacheDir, argsHash string) ([]string, error) {
	data, err := store.ReadObject(cacheDir, argsHash)
	if err != nil {
		return nil, fmt.Errorf("reading args object: %w", err)
	}

	trimmed := bytes.TrimRight(data, "\n")
	if len(trimmed) == 0 {
		return nil, nil
	}

	return strings.Split(string(trimmed), "\n"), nil
}

func sortByModTimeDesc(cacheDir string, ids []string) ([]string, error) {
	type stamped struct {
		id string
		t  time.Time
	}

	entries := make([]stamped, 0, len(ids))

	for _, id := range ids {
		t, err := cache.ModTime(cacheDir, id)
		if err != nil {
			return nil, fmt.Errorf("stat action %s: %w", id, err)
		}

		entries = append(entries, stamped{id: id, t: t})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].t.After(entries[j].t) })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}

	return out, nil
}

func setFromSlice(items []string, err error) (map[string]struct{}, error) {
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}

	return set, nil
}
