package config

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/harborsync/harborsync/pkg/errors"
)

// Load reads and validates a sync configuration from a YAML file.
func Load(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a sync configuration from YAML bytes.
func Parse(data []byte) (*SyncConfig, error) {
	var cfg SyncConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in fields the YAML omitted. An absent delete_threshold
// gets the guarded default; an explicit `delete_threshold: null` cannot be
// distinguished from omission by the decoder, so disabling the guard is done
// through Settings.DeleteThreshold = nil in code (see Provider docs).
func applyDefaults(cfg *SyncConfig) {
	if cfg.Settings.DeleteThreshold == nil {
		threshold := defaultDeleteThreshold
		cfg.Settings.DeleteThreshold = &threshold
	}
}
