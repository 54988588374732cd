package cargoconfig

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// ResolveCargoHome follows `install.root` redirection starting at start,
// chasing the chain with a visited set so a cycle is a firm error
// instead of an infinite loop.
func ResolveCargoHome(start string) (string, error) {
	dir := start
	visited := map[string]bool{}
	for {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", dir, err)
		}
		if visited[abs] {
			return "", fmt.Errorf("install.root indirection cycle detected at %s", abs)
		}
		visited[abs] = true

		raw, err := readLayeredTOML(abs, "config")
		if err != nil {
			return "", err
		}
		if raw == nil {
			return abs, nil
		}
		var parsed struct {
			Install struct {
				Root *string `toml:"root"`
			} `toml:"install"`
		}
		if err := toml.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("config not TOML: %w", err)
		}
		if parsed.Install.Root == nil || *parsed.Install.Root == "" || *parsed.Install.Root == abs {
			return abs, nil
		}
		dir = expandHome(*parsed.Install.Root)
	}
}

func expandHome(p string) string {
	if p == "~" || len(p) == 0 {
		return p
	}
	if p[0] == '~' && (len(p) == 1 || p[1] == filepath.Separator || p[1] == '/') {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
