//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/artifact-executor/executor"
	"github.com/calvinalkan/artifact-executor/sandbox"
)

// ExecuteCmd implements spec.md §6's execute subcommand: key, replay on hit,
// sandbox/trace/verify/publish on miss.
func ExecuteCmd(env map[string]string) *Command {
	flags := flag.NewFlagSet("execute", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Show help")
	flags.StringP("cache", "c", "", "Cache root directory")
	flags.StringP("env", "e", "", "Environment manifest file (KEY=VALUE lines)")
	flags.StringP("program", "p", "", "Program to execute")
	flags.StringP("args", "a", "", "Arguments manifest file (one arg per line)")
	flags.StringP("inputs", "i", "", "Declared inputs manifest file (one absolute path per line)")
	flags.StringP("outputs", "o", "", "Declared outputs manifest file (one absolute path per line)")
	flags.StringP("cwd", "C", "", "Working directory the program runs in (default: current directory)")
	flags.String("tracer", "", "Path to the external filesystem-tracer executable")
	flags.String("config", "", "Config file path (default: .artifact-executor.jsonc)")
	flags.Int("debug", 0, "Logging verbosity: 0=silent, 1=warn, 2=debug")

	// spec.md §6 documents additional long spellings for every flag above;
	// pflag does not support multiple long names for one flag, so each is
	// registered separately and merged with firstNonEmpty/envOrFlagAliases
	// before use (same pattern as cache-file's -i/-r aliases).
	flags.String("cache-dir", "", "Alias of --cache")
	flags.String("environment", "", "Alias of --env")
	flags.String("environment-manifest", "", "Alias of --env")
	flags.String("executable", "", "Alias of --program")
	flags.String("arguments-manifest", "", "Alias of --args")
	flags.String("inputs-manifest", "", "Alias of --inputs")
	flags.String("outputs-manifest", "", "Alias of --outputs")

	return &Command{
		Flags: flags,
		Usage: "execute -c <cache-dir> -p <program> [-e <env-file>] [-a <args-file>] [-i <inputs-file>] [-o <outputs-file>]",
		Short: "Execute a program under the cache, replaying on a hit",
		Long: "Keys the action (working directory, environment, program, arguments, declared\n" +
			"inputs), replays cached outputs on a hit, or sandboxes, traces, and verifies\n" +
			"the program on a miss before publishing a new action record.",
		Aliases: []string{"exec", "artifact-execute"},
		Exec: func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, _ []string) error {
			cacheFlag := firstNonEmpty(mustGetString(flags, "cache"), mustGetString(flags, "cache-dir"))

			cacheDir, err := resolveCacheDir(cacheFlag, env, mustGetString(flags, "config"))
			if err != nil {
				return err
			}

			if cacheDir == "" {
				return &executor.ConfigError{Detail: "cache directory not set (use -c/--cache-dir, ARTIFACT_EXECUTOR_CACHE, or config file)"}
			}

			program := envOrFlagAliases(flags, []string{"program", "executable"}, "ARTIFACT_EXECUTOR_PROGRAM", env)
			if program == "" {
				return &executor.ConfigError{Detail: "program not set (use -p/--executable or ARTIFACT_EXECUTOR_PROGRAM)"}
			}

			envManifestPath := envOrFlagAliases(flags, []string{"env", "environment", "environment-manifest"}, "ARTIFACT_EXECUTOR_ENV", env)

			var declaredEnv map[string]string
			if envManifestPath != "" {
				declaredEnv, err = parseEnvManifest(envManifestPath)
				if err != nil {
					return err
				}
			}

			argsPath := envOrFlagAliases(flags, []string{"args", "arguments-manifest"}, "ARTIFACT_EXECUTOR_ARGS", env)

			var args []string
			if argsPath != "" {
				args, err = parseLineManifest(argsPath)
				if err != nil {
					return err
				}
			}

			inputsPath := envOrFlagAliases(flags, []string{"inputs", "inputs-manifest"}, "ARTIFACT_EXECUTOR_INPUTS", env)

			var inputs []string
			if inputsPath != "" {
				inputs, err = parseLineManifest(inputsPath)
				if err != nil {
					return err
				}
			}

			outputsPath := envOrFlagAliases(flags, []string{"outputs", "outputs-manifest"}, "ARTIFACT_EXECUTOR_OUTPUTS", env)

			var outputs []string
			if outputsPath != "" {
				outputs, err = parseLineManifest(outputsPath)
				if err != nil {
					return err
				}
			}

			workDir, _ := flags.GetString("cwd")
			if workDir == "" {
				workDir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("determining working directory: %w", err)
				}
			}

			tracerPath := envOrFlag(flags, "tracer", "ARTIFACT_EXECUTOR_TRACER", env)
			if tracerPath == "" {
				return &executor.ConfigError{Detail: "tracer executable not set (use --tracer or ARTIFACT_EXECUTOR_TRACER)"}
			}

			debugLevel, _ := flags.GetInt("debug")

			result, err := executor.Execute(ctx, executor.Input{
				CacheDir:        cacheDir,
				WorkDir:         workDir,
				Env:             declaredEnv,
				Program:         program,
				Args:            args,
				DeclaredInputs:  inputs,
				DeclaredOutputs: outputs,
				Tracer:          sandbox.ExternalTracer{Path: tracerPath},
				Stdin:           stdin,
				Stdout:          stdout,
				Stderr:          stderr,
				Logger:          Logger{Level: Level(debugLevel), Out: stderr},
			})
			if err != nil {
				return err
			}

			fprintf(stdout, "%s %s\n", result.ActionID, hitLabel(result.Hit))

			return nil
		},
	}
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}

	return "miss"
}

func mustGetString(flags *flag.FlagSet, name string) string {
	v, _ := flags.GetString(name)

	return v
}
