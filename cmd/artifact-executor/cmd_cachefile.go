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

// CacheFileCmd implements spec.md §6's cache-file subcommand: ingest one
// file into the object store and path-index (spec.md §4.1's cache_file).
func CacheFileCmd(env map[string]string) *Command {
	flags := flag.NewFlagSet("cache-file", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")
	flags.StringP("cache", "c", "", "Cache root directory")
	flags.StringP("file", "f", "", "File to ingest")
	flags.StringP("path", "p", "", "Alias path to record in path-index (default: same as --file)")
	flags.String("config", "", "Config file path (default: .artifact-executor.jsonc)")

	// -i/-r are documented aliases of -f/-p respectively (spec.md §6);
	// pflag does not support multiple short names for one flag, so they
	// are registered as separate flags and merged before use.
	flags.StringP("input", "i", "", "Alias of --file")
	flags.StringP("real-path", "r", "", "Alias of --path")

	return &Command{
		Flags:   flags,
		Usage:   "cache-file -c <cache-dir> -f <file> [-p <alias-path>]",
		Short:   "Ingest one file into the object store",
		Long:    "Hashes and copies a file into the cache's object store, and records its\ncontent stamp in the path-index under the alias path (default: the file's\nown path), so a later cache-file or execute call can fast-path it.",
		Aliases: nil,
		Exec: func(_ context.Context, _ io.Reader, stdout, _ io.Writer, _ []string) error {
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

			alias := firstNonEmpty(mustGetString(flags, "path"), mustGetString(flags, "real-path"))

			abs, err := filepath.Abs(file)
			if err != nil {
				return err
			}

			var absAlias string
			if alias != "" {
				absAlias, err = filepath.Abs(alias)
				if err != nil {
					return err
				}
			}

			hash, size, err := store.CacheFile(cacheDir, abs, absAlias)
			if err != nil {
				return err
			}

			fprintf(stdout, "%s|%d\n", hash, size)

			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}