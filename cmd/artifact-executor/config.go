//go:build linux

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds the optional JSONC defaults for the cache directory: comments
// allowed via hujson, unknown fields rejected. Every field here is also
// settable by flag or environment variable (SPEC_FULL.md "Configuration
// layering"), so a missing or absent config file is never fatal.
type Config struct {
	CacheDir string `json:"cacheDir,omitempty"`
}

// configFileName is the project-local config file searched for when
// --config is not given.
const configFileName = ".artifact-executor.jsonc"

// loadConfigFile reads and parses a JSONC config file at path. A caller
// that passes an empty explicitPath falls back to configFileName in the
// current directory; if neither exists, loadConfigFile returns a zero
// Config and no error (spec'd behavior never depends on the file existing).
func loadConfigFile(explicitPath string) (Config, error) {
	path := explicitPath
	if path == "" {
		path = configFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var cfg Config

	decoder := json.NewDecoder(bytes.NewReader(standardized))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// resolveCacheDir implements the precedence of SPEC_FULL.md's "Configuration
// layering": CLI flag > environment variable > config file > built-in
// default (empty, which is a ConfigError at the executor boundary).
func resolveCacheDir(flagVal string, env map[string]string, configPath string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}

	if v := env["ARTIFACT_EXECUTOR_CACHE"]; v != "" {
		return v, nil
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return "", err
	}

	if cfg.CacheDir != "" {
		if !filepath.IsAbs(cfg.CacheDir) {
			return "", fmt.Errorf("config cacheDir must be absolute, got %q", cfg.CacheDir)
		}

		return cfg.CacheDir, nil
	}

	return "", nil
}