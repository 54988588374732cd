// Package cargoconfig reads the host build tool's layered configuration
// (TOML config files plus a fixed set of environment variables) into a
// typed view: fetch transport preference, HTTP transport settings, and
// per-registry credential-provider chains.
package cargoconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// envPrefix is the host build tool's environment-variable namespace.
const envPrefix = "CARGO_"

// HTTPConfig holds the transport-level settings consumed by both Index
// Store modes.
type HTTPConfig struct {
	CAInfo      string
	CheckRevoke bool
	Proxy       string
}

// CargoConfig is the typed, layered view of the host tool's configuration.
type CargoConfig struct {
	GitFetchWithCLI        bool
	CratesIOProtocolSparse bool
	HTTP                   HTTPConfig
	Credentials            CredentialConfig
}

// rawTOML mirrors the small slice of the host tool's config schema this
// loader cares about; the decoder ignores every other key, so
// unrecognised keys never cause a parse failure.
type rawTOML struct {
	Net struct {
		GitFetchWithCLI *bool `toml:"git-fetch-with-cli"`
	} `toml:"net"`
	HTTP struct {
		CAInfo      *string `toml:"cainfo"`
		CheckRevoke *bool   `toml:"check-revoke"`
		Proxy       *string `toml:"proxy"`
	} `toml:"http"`
	Install struct {
		Root *string `toml:"root"`
	} `toml:"install"`
	Registries        map[string]registryTOML `toml:"registries"`
	Registry          registryDefaultTOML      `toml:"registry"`
	Source            map[string]sourceTOML    `toml:"source"`
	CredentialAlias   map[string]string        `toml:"credential-alias"`
}

type registryTOML struct {
	Index              string `toml:"index"`
	Token              string `toml:"token"`
	CredentialProvider string `toml:"credential-provider"`
	Protocol           string `toml:"protocol"`
}

type registryDefaultTOML struct {
	Token                     string   `toml:"token"`
	CredentialProvider        string   `toml:"credential-provider"`
	GlobalCredentialProviders []string `toml:"global-credential-providers"`
}

type sourceTOML struct {
	Registry   string `toml:"registry"`
	ReplaceWith string `toml:"replace-with"`
}

// Load reads `<cargoDir>/config` (falling back to `config.toml`) layered
// with environment variables; environment variables win. cargoDir is the
// directory containing the installation manifest (it is the caller's
// responsibility to have already chased `install.root`).
func Load(cargoDir string) (*CargoConfig, error) {
	raw, err := readLayeredTOML(cargoDir, "config")
	if err != nil {
		return nil, err
	}
	credsRaw, err := readLayeredTOML(cargoDir, "credentials")
	if err != nil {
		return nil, err
	}

	var parsed rawTOML
	if len(raw) > 0 {
		if err := toml.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("config not TOML: %w", err)
		}
	}
	var creds rawTOML
	if len(credsRaw) > 0 {
		if err := toml.Unmarshal(credsRaw, &creds); err != nil {
			return nil, fmt.Errorf("credentials not TOML: %w", err)
		}
	}

	cfg := &CargoConfig{
		GitFetchWithCLI:        boolField(parsed.Net.GitFetchWithCLI, false),
		CratesIOProtocolSparse: parsed.Registries["crates-io"].Protocol == "sparse",
		HTTP: HTTPConfig{
			CAInfo:      stringField(parsed.HTTP.CAInfo, ""),
			CheckRevoke: boolField(parsed.HTTP.CheckRevoke, defaultCheckRevoke()),
			Proxy:       stringField(parsed.HTTP.Proxy, ""),
		},
	}

	cfg.Credentials = buildCredentialConfig(parsed, creds)

	applyEnv(cfg, &parsed)

	return cfg, nil
}

func defaultCheckRevoke() bool {
	// The host tool defaults this to true on Windows, false elsewhere.
	return runtime.GOOS == "windows"
}

func boolField(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func stringField(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// readLayeredTOML reads `<dir>/<base>` or, if absent, `<dir>/<base>.toml`.
// Neither existing is not an error — it yields zero-value configuration.
func readLayeredTOML(dir, base string) ([]byte, error) {
	primary := filepath.Join(dir, base)
	data, err := os.ReadFile(primary)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", primary, err)
	}
	withExt := primary + ".toml"
	data, err = os.ReadFile(withExt)
	if err == nil {
		return data, nil
	}
	if os.IsNotExist(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("reading %s: %w", withExt, err)
}

// NormaliseEnvName upper-cases s and turns '.' and '-' into '_'; this is
// the canonical key used for token and credential-alias maps derived
// from registry names.
func NormaliseEnvName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if r == '.' || r == '-' {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truthy implements the host tool's truthiness rule for values coming
// from configuration or the environment: empty string, numeric zero, and
// "false" are false; everything else is true.
func Truthy(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "0", "false":
		return false
	default:
		return true
	}
}
