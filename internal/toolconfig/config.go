// Package toolconfig loads this binary's own settings — color, the
// default cargo-home override, default update policy, output format,
// verification and sparse-index concurrency. This is independent of,
// and sits above, the host build
// tool's own TOML configuration handled by internal/cargoconfig.
package toolconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultConfigRelPath = "depupdate/config.yaml"

// Config is the top-level depupdate tool configuration.
type Config struct {
	Color             *bool  `yaml:"color"`
	CargoHome         string `yaml:"cargo_home"`
	AllowPrerelease   bool   `yaml:"allow_prerelease"`
	Downdate          bool   `yaml:"downdate"`
	ForceGit          *bool  `yaml:"force_git"`
	Verify            bool   `yaml:"verify"`
	Output            string `yaml:"output"`
	SparseConcurrency int    `yaml:"sparse_concurrency"`
}

func defaults() *Config {
	return &Config{
		Verify:            true,
		Output:            "table",
		SparseConcurrency: 8,
	}
}

// Load reads configuration from a YAML file. If path is empty, it tries
// the default location under the user's config directory. A missing
// file is not an error — it yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath()
	}

	cfg := defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func defaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, defaultConfigRelPath)
}
