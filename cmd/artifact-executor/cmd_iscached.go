//go:build linux

package main

import (
	"context"
	"io"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/artifact-executor/executor"
	"github.com/calvinalkan/artifact-executor/internal/store"
)

// IsCachedCmd implements spec.md §6's is-cached subcommand: exit 0 if the
// path-index fast-path matches the file on disk, exit 1 otherwise.
func IsCachedCmd(env map[string]string) *Command {
	flags := flag.NewFlagSet("is-cached", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")
	flags.StringP("cache", "c", "", "Cache root directory")
	flags.StringP("file", "f", "", "File to check")
	flags.StringP("input", "i", "", "Alias of --file")
	flags.String("config", "", "Config file path (default: .artifact-executor.jsonc)")

	return &Command{
		Flags:   flags,
		Usage:   "is-cached -c <cache-dir> -f <file>",
		Short:   "Check whether a file's path-index entry is fresh",
		Long:    "Exits 0 if path-index/<file> exists and is newer than the file on disk\n(spec.md §4.1's fast path); exits 1 otherwise. Prints nothing.",
		Aliases: nil,
		Exec: func(_ context.Context, _ io.Reader, _, _ io.Writer, _ []string) error {
			cacheDir, err := resolveCacheDir(mustGetString(flags, "cache"), env, mustGetString(flags, "config"))
			if err != nil {
				return err
			}

			if cacheDir == "" {
				return &executor.ConfigError{Detail: "cache directory not set (use -c, ARTIFACT_EXECUTOR_CACHE, or config file)"}
			}

			file := firstNonEmpty(mustGetString(flags, "file"), mustGetString(flags, "input"))
			if file == "" {
				return &executor.ConfigError{Detail: "file not set (use -f/-i)"}
			}

			abs, err := filepath.Abs(file)
			if err != nil {
				return err
			}

			if store.IsFileCached(cacheDir, abs) {
				return nil
			}

			return ErrSilentExit
		},
	}
}