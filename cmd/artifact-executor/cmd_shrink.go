//go:build linux

package main

import (
	"context"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/artifact-executor/executor"
	"github.com/calvinalkan/artifact-executor/shrink"
)

// ShrinkCmd implements the interactive cache shrinker as a fourth
// subcommand (SPEC_FULL.md "SUPPLEMENTED FEATURES": spec.md §4.6 names the
// shrinker as a core component, but §6's CLI surface omits it).
func ShrinkCmd(env map[string]string) *Command {
	flags := flag.NewFlagSet("shrink", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")
	flags.StringP("cache", "c", "", "Cache root directory")
	flags.String("cache-dir", "", "Alias of --cache")
	flags.Bool("yes", false, "Remove every action without prompting (scripted pruning)")
	flags.Bool("dry-run", false, "Summarize every action without deleting anything")
	flags.String("config", "", "Config file path (default: .artifact-executor.jsonc)")
	flags.Int("debug", 0, "Logging verbosity: 0=silent, 1=warn, 2=debug")

	return &Command{
		Flags:   flags,
		Usage:   "shrink -c <cache-dir> [--yes]",
		Short:   "Interactively reclaim unreferenced objects and path-index entries",
		Long:    "Reference-counts every action record newest-first, then walks the actions\noldest-first prompting remove/skip/quit, and finally sweeps whatever objects\nand path-index entries nothing references anymore (spec.md §4.6).",
		Aliases: []string{"gc"},
		Exec: func(_ context.Context, stdin io.Reader, stdout, stderr io.Writer, _ []string) error {
			cacheFlag := firstNonEmpty(mustGetString(flags, "cache"), mustGetString(flags, "cache-dir"))

			cacheDir, err := resolveCacheDir(cacheFlag, env, mustGetString(flags, "config"))
			if err != nil {
				return err
			}

			if cacheDir == "" {
				return &executor.ConfigError{Detail: "cache directory not set (use -c, ARTIFACT_EXECUTOR_CACHE, or config file)"}
			}

			dryRun, _ := flags.GetBool("dry-run")
			if dryRun {
				summaries, err := shrink.Preview(cacheDir)
				if err != nil {
					return err
				}

				for _, s := range summaries {
					fprintf(stdout, "%s  %s  min=%d max=%d\n", s.ID, s.Program, s.MinBytes, s.MaxBytes)
				}

				return nil
			}

			yes, _ := flags.GetBool("yes")
			debugLevel, _ := flags.GetInt("debug")
			logger := Logger{Level: Level(debugLevel), Out: stderr}

			var prompter shrink.Prompter
			if yes {
				prompter = autoRemovePrompter{}
			} else {
				tty := shrink.NewTTYPrompter(stdout, stdin)
				defer tty.Close()

				prompter = tty
			}

			report, err := shrink.Shrink(cacheDir, prompter, logger)
			if err != nil {
				return err
			}

			fprintf(stdout, "removed %d action(s), freed %d object(s) and %d path-index entries\n",
				len(report.Removed), report.ObjectsFreed, report.PathsFreed)

			return nil
		},
	}
}

// autoRemovePrompter implements shrink.Prompter for --yes: every action is
// removed without asking.
type autoRemovePrompter struct{}

func (autoRemovePrompter) Prompt(shrink.ActionSummary) (shrink.Decision, error) {
	return shrink.DecisionRemove, nil
}