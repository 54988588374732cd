// Package registry walks the host build tool's source-replacement and
// named-registry configuration to turn a registry identifier (a name or
// a bare URL) into a concrete transport: an effective index URL, whether
// it is sparse, and the canonical registry name.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultCratesIOGit    = "https://github.com/rust-lang/crates.io-index"
	defaultCratesIOSparse = "sparse+https://index.crates.io/"
	cratesIOName          = "crates-io"
)

// cratesIOSynonyms are the URL forms that denote the crates.io registry
// regardless of which protocol is currently configured as default: the
// installation manifest always records the canonical git-style URL
// (spec.md's scenario 1), even when the index was actually fetched over
// the sparse protocol, so both spellings must resolve to "crates-io".
var cratesIOSynonyms = map[string]bool{
	defaultCratesIOGit:        true,
	defaultCratesIOSparse:     true,
	"https://index.crates.io/": true,
}

// Errors mirror spec.md §4.3's taxonomy.
var (
	ErrConfigRead   = fmt.Errorf("registry: could not read config")
	ErrConfigNotToml = fmt.Errorf("registry: config is not valid TOML")
	ErrUnknown      = fmt.Errorf("registry: identifier resolves to no known registry")
	ErrNotInConfig  = fmt.Errorf("registry: name not present in [registries.*]")
	ErrReplacementLoop = fmt.Errorf("registry: replace-with chain has a cycle")
)

type configTOML struct {
	Source     map[string]sourceEntry    `toml:"source"`
	Registries map[string]registryEntry  `toml:"registries"`
}

type sourceEntry struct {
	Registry    string `toml:"registry"`
	ReplaceWith string `toml:"replace-with"`
}

type registryEntry struct {
	Index string `toml:"index"`
}

// Resolved is the output of the Registry Resolver.
type Resolved struct {
	URL      string // index URL with any "sparse+" prefix stripped
	IsSparse bool
	Name     string
}

// Resolve implements spec.md §4.3: seed crates-io, walk [source.*] and
// [registries.*], chase replace-with with cycle detection, and return
// the effective transport for registryIdentifier.
func Resolve(cargoDir, registryIdentifier string, cratesIOProtocolSparse bool) (Resolved, error) {
	cfg, err := loadConfigTOML(cargoDir)
	if err != nil {
		return Resolved{}, err
	}

	registries := map[string]string{}
	if cratesIOProtocolSparse {
		registries[cratesIOName] = defaultCratesIOSparse
	} else {
		registries[cratesIOName] = defaultCratesIOGit
	}

	replaceWith := map[string]string{}
	for srcName, src := range cfg.Source {
		if src.ReplaceWith != "" {
			replaceWith[srcName] = src.ReplaceWith
		}
		if src.Registry != "" {
			registries[srcName] = src.Registry
			if registryIdentifier == src.Registry {
				registryIdentifier = srcName
			}
		}
	}

	for name, reg := range cfg.Registries {
		if reg.Index != "" {
			registries[name] = reg.Index
		}
	}

	name := registryIdentifier
	if cratesIOSynonyms[name] {
		name = cratesIOName
	}
	if looksLikeURL(name) {
		return Resolved{}, fmt.Errorf("%w: %s", ErrUnknown, name)
	}

	visited := map[string]bool{}
	for {
		if visited[name] {
			return Resolved{}, fmt.Errorf("%w: at %s", ErrReplacementLoop, name)
		}
		visited[name] = true
		next, ok := replaceWith[name]
		if !ok {
			break
		}
		name = next
	}

	url, ok := registries[name]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %s", ErrNotInConfig, name)
	}

	isSparse := strings.HasPrefix(url, "sparse+")
	url = strings.TrimPrefix(url, "sparse+")

	return Resolved{URL: url, IsSparse: isSparse, Name: name}, nil
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://")
}

func loadConfigTOML(cargoDir string) (configTOML, error) {
	var cfg configTOML

	path := filepath.Join(cargoDir, "config")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %v", ErrConfigRead, err)
		}
		path = filepath.Join(cargoDir, "config.toml")
		data, err = os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, nil
			}
			return cfg, fmt.Errorf("%w: %v", ErrConfigRead, err)
		}
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfigNotToml, err)
	}
	return cfg, nil
}
