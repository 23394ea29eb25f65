// Package storeconfig resolves PersistenceOptions/SyncOptions defaults
// for the cmd/bdstore demo and contrib/* packages — never for the core,
// which never reads files or environment variables directly (§1/§5).
// Grounded on internal/config/config.go's walk-up-from-cwd, then env,
// then defaults precedence.
package storeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/untoldecay/bdstore/plugin"
)

// Options mirrors the wire-level configuration shape of §6: persistence
// and sync knobs that Load resolves from, lowest precedence first, (1) an
// explicit Go struct passed by the caller, (2) a bdstore.toml/bdstore.yaml
// found by walking up from the working directory, (3) BDSTORE_*-prefixed
// environment variables. Fields left unset by all three fall back to the
// plugin package defaults.
type Options struct {
	Persistence plugin.PersistenceOptions
	Sync        plugin.SyncOptions
}

// fileConfig is the shape a bdstore.toml/bdstore.yaml is decoded into.
type fileConfig struct {
	Persistence struct {
		CollectionKey string `toml:"collection_key" mapstructure:"collection_key"`
		DebounceMs    int    `toml:"debounce_ms" mapstructure:"debounce_ms"`
		Key           string `toml:"key" mapstructure:"key"`
	} `toml:"persistence" mapstructure:"persistence"`
	Sync struct {
		PullIntervalMs int   `toml:"pull_interval_ms" mapstructure:"pull_interval_ms"`
		PushOnChange   *bool `toml:"push_on_change" mapstructure:"push_on_change"`
	} `toml:"sync" mapstructure:"sync"`
}

// Load resolves Options starting from explicit (the caller's own
// defaults, lowest precedence among the non-package-default sources),
// then overlaying a discovered config file, then environment variables
// (highest precedence).
func Load(explicit Options) (Options, error) {
	opts := explicit

	if path, ok := findConfigFile(); ok {
		fc, err := loadFile(path)
		if err != nil {
			return opts, fmt.Errorf("storeconfig: %w", err)
		}
		applyFile(&opts, fc)
	}

	applyEnv(&opts)
	return opts, nil
}

func findConfigFile() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		for _, name := range []string{"bdstore.toml", "bdstore.yaml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if strings.HasSuffix(path, ".toml") {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return fc, fmt.Errorf("decode %s: %w", path, err)
		}
		return fc, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return fc, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return fc, nil
}

func applyFile(opts *Options, fc fileConfig) {
	if fc.Persistence.CollectionKey != "" {
		opts.Persistence.CollectionKey = fc.Persistence.CollectionKey
	}
	if fc.Persistence.DebounceMs != 0 {
		opts.Persistence.DebounceMs = fc.Persistence.DebounceMs
	}
	if fc.Persistence.Key != "" {
		opts.Persistence.Key = fc.Persistence.Key
	}
	if fc.Sync.PullIntervalMs != 0 {
		opts.Sync.PullIntervalMs = fc.Sync.PullIntervalMs
	}
	if fc.Sync.PushOnChange != nil {
		opts.Sync = opts.Sync.WithPushOnChange(*fc.Sync.PushOnChange)
	}
}

func applyEnv(opts *Options) {
	v := viper.New()
	v.SetEnvPrefix("BDSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if v.IsSet("DEBOUNCE_MS") {
		opts.Persistence.DebounceMs = v.GetInt("DEBOUNCE_MS")
	}
	if v.IsSet("PULL_INTERVAL_MS") {
		opts.Sync.PullIntervalMs = v.GetInt("PULL_INTERVAL_MS")
	}
	if v.IsSet("PUSH_ON_CHANGE") {
		opts.Sync = opts.Sync.WithPushOnChange(v.GetBool("PUSH_ON_CHANGE"))
	}
}
