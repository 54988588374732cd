// Package inventory parses the host build tool's installation manifest
// into typed package descriptors, deduplicating aliases.
package inventory

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/sofmeright/depupdate/internal/pkgmodel"
)

type manifestTOML struct {
	V1 map[string][]string `toml:"v1"`
}

// Inventory is the disjoint pair of package vectors the reader produces.
type Inventory struct {
	Registry []*pkgmodel.RegistryPackage
	Git      []*pkgmodel.GitPackage
}

// Read parses the manifest at path into an Inventory. Entries that look
// like a descriptor but carry an unparsable version are silently
// dropped, per the host tool's own behaviour; callers that want to know
// why may inspect the returned droppedCount via ReadVerbose.
func Read(path string) (Inventory, error) {
	inv, _, err := ReadVerbose(path)
	return inv, err
}

// ReadVerbose is Read plus the count of entries silently dropped due to
// an unparsable descriptor or version (logged at debug level by callers
// that care; this module does not log on its own).
func ReadVerbose(path string) (Inventory, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inventory{}, 0, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var doc manifestTOML
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Inventory{}, 0, fmt.Errorf("manifest %s is not valid TOML: %w", path, err)
	}

	keys := make([]string, 0, len(doc.V1))
	for k := range doc.V1 {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	registryByName := map[string]*pkgmodel.RegistryPackage{}
	gitByName := map[string]*pkgmodel.GitPackage{}
	dropped := 0

	for _, key := range keys {
		execs := doc.V1[key]
		rp, gp, err := parseDescriptor(key, execs)
		if err != nil {
			dropped++
			continue
		}
		if rp != nil {
			if existing, ok := registryByName[rp.Name]; !ok || rp.InstalledVersion.GreaterThan(existing.InstalledVersion) {
				registryByName[rp.Name] = rp
			}
			continue
		}
		// Git packages: lexicographic key order stands in for "latest
		// occurrence" since the manifest's TOML table has no ordering
		// guarantee of its own; last-sorted wins.
		gitByName[gp.Name] = gp
	}

	inv := Inventory{}
	for _, rp := range registryByName {
		inv.Registry = append(inv.Registry, rp)
	}
	for _, gp := range gitByName {
		inv.Git = append(inv.Git, gp)
	}
	sort.Slice(inv.Registry, func(i, j int) bool { return inv.Registry[i].Name < inv.Registry[j].Name })
	sort.Slice(inv.Git, func(i, j int) bool { return inv.Git[i].Name < inv.Git[j].Name })

	return inv, dropped, nil
}

// parseDescriptor parses one "<name> <version> (<source>)" manifest key.
// Exactly one of the returned pointers is non-nil on success.
func parseDescriptor(key string, executables []string) (*pkgmodel.RegistryPackage, *pkgmodel.GitPackage, error) {
	parts := strings.SplitN(key, " ", 3)
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("malformed descriptor: %q", key)
	}
	name, versionStr, sourceExpr := parts[0], parts[1], parts[2]
	if !strings.HasPrefix(sourceExpr, "(") || !strings.HasSuffix(sourceExpr, ")") {
		return nil, nil, fmt.Errorf("malformed source expression: %q", key)
	}
	inner := sourceExpr[1 : len(sourceExpr)-1]

	kind, rest, ok := strings.Cut(inner, "+")
	if !ok {
		return nil, nil, fmt.Errorf("malformed source kind: %q", key)
	}

	switch kind {
	case "registry", "sparse":
		v, err := semver.NewVersion(versionStr)
		if err != nil {
			return nil, nil, fmt.Errorf("unparsable version %q: %w", versionStr, err)
		}
		return &pkgmodel.RegistryPackage{
			Name:             name,
			RegistryURL:      rest,
			InstalledVersion: v,
			Executables:      executables,
		}, nil, nil

	case "git":
		rawURL, oid, ok := cutLast(rest, "#")
		if !ok || len(oid) != 40 || !isHex(oid) {
			return nil, nil, fmt.Errorf("malformed git descriptor: %q", key)
		}
		cleanURL, branch, err := extractBranch(rawURL)
		if err != nil {
			return nil, nil, fmt.Errorf("malformed git URL in %q: %w", key, err)
		}
		return nil, &pkgmodel.GitPackage{
			Name:         name,
			URL:          cleanURL,
			Branch:       branch,
			InstalledOID: oid,
			Executables:  executables,
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown source kind %q in %q", kind, key)
	}
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') && !(r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

// extractBranch pulls a "?branch=<B>" query parameter out of a git
// package URL, returning the URL with that query removed.
func extractBranch(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	branch := u.Query().Get("branch")
	if branch == "" {
		return rawURL, "", nil
	}
	q := u.Query()
	q.Del("branch")
	u.RawQuery = q.Encode()
	return u.String(), branch, nil
}
