// Package pkgmodel holds the data types shared across the update-
// resolution pipeline: installed package descriptors, their resolved
// candidates, and the per-package configuration the Decision Engine
// consumes.
package pkgmodel

import "github.com/Masterminds/semver/v3"

// RegistryPackage is a package installed from a registry (Git index or
// HTTP sparse index). CandidateVersion and AlternativeVersion are
// populated exactly once, by index resolution.
type RegistryPackage struct {
	Name               string
	RegistryURL        string
	InstalledVersion   *semver.Version
	CandidateVersion   *semver.Version
	AlternativeVersion *semver.Version
	MaxVersion         *semver.Version
	Executables        []string
}

// UpdateToVersion is min(CandidateVersion, MaxVersion) when a candidate
// is set, else nil.
func (p *RegistryPackage) UpdateToVersion() *semver.Version {
	if p.CandidateVersion == nil {
		return nil
	}
	if p.MaxVersion == nil {
		return p.CandidateVersion
	}
	if p.MaxVersion.LessThan(p.CandidateVersion) {
		return p.MaxVersion
	}
	return p.CandidateVersion
}

// OIDResult is a Go rendering of the host tool's `Result<40-hex, error>`
// for a git package's resolved tip: exactly one field is meaningful.
type OIDResult struct {
	OID string
	Err error
}

// GitPackage is a package installed as a checkout of a remote Git
// repository, tracked by branch (or the default ref) at a specific OID.
type GitPackage struct {
	Name         string
	URL          string
	Branch       string // empty means "track HEAD"
	InstalledOID string
	NewestOID    OIDResult
	Executables  []string
}

// NeedsUpdate is true iff the resolved tip is known and differs from the
// installed commit.
func (g *GitPackage) NeedsUpdate() bool {
	return g.NewestOID.Err == nil && g.NewestOID.OID != "" && g.NewestOID.OID != g.InstalledOID
}

// PackageConfig is the shape of per-package configuration consumed by
// the Decision Engine. The persistent store backing it (read/write of a
// configuration file) is not part of this module; only this shape, and
// the pure functions that consume it, are.
type PackageConfig struct {
	Toolchain          string
	DefaultFeatures    bool
	Features           map[string]struct{}
	Debug              *bool
	InstallPrereleases bool
	EnforceLock        bool
	RespectBinaries    bool
	TargetVersion      *semver.Constraints
	Environment        map[string]*string
}
