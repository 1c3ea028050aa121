//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
)

// binaryName is the canonical name of the artifact-executor binary, used in
// usage text and error prefixes.
const binaryName = "artifact-executor"

// ErrSilentExit signals that a command wants a non-zero exit code without
// printing an error (e.g. is-cached reporting a miss).
var ErrSilentExit = errors.New("silent exit")

// Command is one CLI subcommand: its own flag set plus an Exec function that
// receives the already-parsed flags and the remaining positional args.
type Command struct {
	Flags   *flag.FlagSet
	Usage   string
	Short   string
	Long    string
	Aliases []string
	Exec    func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error
}

// Run is the entry point isolated from global process state (stdin/stdout/
// stderr/env/args) so the whole dispatcher is unit-testable without
// touching the real process environment.
func Run(stdin io.Reader, stdout, stderr io.Writer, args []string, env map[string]string) int {
	commands := map[string]*Command{
		"execute":    ExecuteCmd(env),
		"cache-file": CacheFileCmd(env),
		"is-cached":  IsCachedCmd(env),
		"shrink":     ShrinkCmd(env),
	}

	byName := map[string]*Command{}

	for name, cmd := range commands {
		byName[name] = cmd
		for _, alias := range cmd.Aliases {
			byName[alias] = cmd
		}
	}

	if len(args) < 2 {
		printUsage(stdout, commands)

		return 0
	}

	if args[1] == "-h" || args[1] == "--help" {
		printUsage(stdout, commands)

		return 0
	}

	cmd, ok := byName[args[1]]
	if !ok {
		fprintError(stderr, fmt.Errorf("unknown command %q", args[1]))
		fprintln(stderr)
		printUsage(stderr, commands)

		return 1
	}

	cmd.Flags.SetOutput(&strings.Builder{})
	cmd.Flags.Usage = func() {}

	if err := cmd.Flags.Parse(args[2:]); err != nil {
		fprintError(stderr, err)

		return 1
	}

	if help, _ := cmd.Flags.GetBool("help"); help {
		fprintln(stdout, cmd.Usage)

		if cmd.Long != "" {
			fprintln(stdout)
			fprintln(stdout, cmd.Long)
		}

		return 0
	}

	err := cmd.Exec(context.Background(), stdin, stdout, stderr, cmd.Flags.Args())
	if err != nil {
		if errors.Is(err, ErrSilentExit) {
			return 1
		}

		fprintError(stderr, err)

		return 1
	}

	return 0
}

func printUsage(out io.Writer, commands map[string]*Command) {
	fprintf(out, "%s - content-addressed action cache and sandboxed executor\n\n", binaryName)
	fprintf(out, "Usage: %s <command> [flags]\n\n", binaryName)
	fprintln(out, "Commands:")

	for _, name := range []string{"execute", "cache-file", "is-cached", "shrink"} {
		fprintf(out, "  %-12s %s\n", name, commands[name].Short)
	}

	fprintln(out, "\nRun 'artifact-executor <command> --help' for flags of a specific command.")
}

func fprintln(out io.Writer, a ...any) {
	_, _ = fmt.Fprintln(out, a...)
}

func fprintf(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}

func fprintError(out io.Writer, err error) {
	fprintln(out, binaryName+": error:", err)
}

// envOrFlag resolves a flag's string value, falling back to an environment
// variable when the flag was never set (spec.md §6's "falls back to
// environment variable" convention, uniform across every subcommand flag
// that names one).
func envOrFlag(flags *flag.FlagSet, flagName, envName string, env map[string]string) string {
	return envOrFlagAliases(flags, []string{flagName}, envName, env)
}

// envOrFlagAliases resolves the first of several equivalent long-flag
// spellings that was actually set on the command line (spec.md §6 documents
// multiple long names per flag, e.g. -p|--program|--executable), falling
// back to an environment variable, and finally to the first flag's default
// when neither was set.
func envOrFlagAliases(flags *flag.FlagSet, flagNames []string, envName string, env map[string]string) string {
	for _, name := range flagNames {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)

			return v
		}
	}

	if v, ok := env[envName]; ok && v != "" {
		return v
	}

	v, _ := flags.GetString(flagNames[0])

	return v
}

func envOrFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}