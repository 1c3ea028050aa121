//go:build linux

// Command artifact-executor is a content-addressed action cache and
// sandboxed executor (spec.md §1-§2): it keys actions on their declared
// inputs and environment, replays cached outputs on a hit, and otherwise
// sandboxes, traces, and verifies the action before publishing a new
// record.
package main

import (
	"os"
	"strings"
)

func main() {
	env := environMap(os.Environ())
	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env))
}

func environMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if ok {
			env[key] = val
		}
	}

	return env
}
