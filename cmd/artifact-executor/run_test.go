//go:build linux

package main

import (
	"strings"
	"testing"
)

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	c := NewCLITester(t)

	stdout := c.MustRun()

	for _, name := range []string{"execute", "cache-file", "is-cached", "shrink"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("usage output missing command %q: %s", name, stdout)
		}
	}
}

func TestRun_UnknownCommandFails(t *testing.T) {
	c := NewCLITester(t)

	stderr := c.MustFail("frobnicate")

	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("expected unknown command error, got: %s", stderr)
	}
}

func TestRun_HelpFlagPrintsUsage(t *testing.T) {
	c := NewCLITester(t)

	stdout := c.MustRun("--help")

	if !strings.Contains(stdout, "artifact-executor") {
		t.Errorf("expected usage banner, got: %s", stdout)
	}
}

func TestRun_GcIsAnAliasForShrink(t *testing.T) {
	c := NewCLITester(t)

	// An empty cache has nothing to shrink, so --yes should succeed cleanly
	// under either name.
	c.MustRun("gc", "-c", c.CacheDir, "--yes")
}
