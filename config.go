package anglefix

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/df-mc/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the config file used when none is configured.
const DefaultConfigPath = "anglefix.json"

// DefaultTargetMap is written to a freshly created config file as an example entry.
const DefaultTargetMap = "surf_reprise"

// Config is the on-disk configuration.
type Config struct {
	// TargetMaps lists the maps the fix is active on. An empty list enables it everywhere.
	TargetMaps []string `json:"TargetMaps" yaml:"TargetMaps"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{TargetMaps: []string{DefaultTargetMap}}
}

// LoadConfig reads the config file at path. If the file does not exist, the
// default configuration is written to path and returned.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON
// with comments.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		if err := SaveConfig(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = jsonc.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.TargetMaps == nil {
		return Config{}, fmt.Errorf("failed to parse config %s: missing TargetMaps", path)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating the parent directory if needed.
func SaveConfig(path string, cfg Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
