// Package decision implements the pure update-decision policy: from an
// installed version, a sorted candidate list, per-package configuration,
// and global flags, decide whether (and to what) a package should be
// updated.
package decision

import (
	"github.com/Masterminds/semver/v3"
)

// Decision is the outcome of evaluating one package.
type Decision struct {
	UpdateTo *semver.Version
	Reason   string
}

// Inputs bundles the pure function's arguments.
type Inputs struct {
	Installed          *semver.Version
	Candidates         []*semver.Version // ascending, unyanked
	Constraint         *semver.Constraints
	MaxVersion         *semver.Version
	InstallPrereleases bool
	Downdate           bool
}

// WantPrerelease is true if the installed version is itself a prerelease
// sharing v's major/minor/patch. The global install-prereleases flag is
// not an input here; PullVersion and NeedsUpdate check it alongside this.
func WantPrerelease(installed, v *semver.Version) bool {
	if installed == nil || v == nil {
		return false
	}
	return installed.Prerelease() != "" &&
		installed.Major() == v.Major() && installed.Minor() == v.Minor() && installed.Patch() == v.Patch()
}

// PullVersion selects the candidate and alternative version from an
// ascending candidate list: the newest version, demoted to alternative
// when it is a prerelease that would be rejected, with the newest
// non-prerelease promoted to candidate in its place. When no
// non-prerelease fallback exists among the older candidates either, no
// swap occurs: newest stays the candidate and there is no alternative.
func PullVersion(installed *semver.Version, candidates []*semver.Version, installPrereleases bool) (candidate, alternative *semver.Version) {
	if len(candidates) == 0 {
		return nil, nil
	}
	newest := candidates[len(candidates)-1]
	if newest.Prerelease() == "" || installPrereleases || WantPrerelease(installed, newest) {
		return newest, nil
	}
	for i := len(candidates) - 2; i >= 0; i-- {
		if candidates[i].Prerelease() == "" {
			return candidates[i], newest
		}
	}
	return newest, nil
}

// UpdateToVersion is min(candidate, max) when candidate is set.
func UpdateToVersion(candidate, max *semver.Version) *semver.Version {
	if candidate == nil {
		return nil
	}
	if max == nil || candidate.LessThan(max) || candidate.Equal(max) {
		return candidate
	}
	return max
}

// NeedsUpdate implements spec.md §4.5's exact formula.
func NeedsUpdate(in Inputs) (bool, *semver.Version) {
	candidate, _ := PullVersion(in.Installed, in.Candidates, in.InstallPrereleases)
	u := UpdateToVersion(candidate, in.MaxVersion)

	reqMatchesInstalled := in.Constraint != nil && in.Installed != nil && in.Constraint.Check(in.Installed)
	reqMatchesU := in.Constraint == nil || (u != nil && in.Constraint.Check(u))

	if !(!reqMatchesInstalled || reqMatchesU) {
		return false, u
	}
	if u == nil {
		return false, u
	}
	if u.Prerelease() != "" && !in.InstallPrereleases && !WantPrerelease(in.Installed, u) {
		return false, u
	}
	if in.Installed == nil {
		return true, u
	}
	if in.Downdate {
		return !in.Installed.Equal(u), u
	}
	return in.Installed.LessThan(u), u
}

// FilterByToolchain implements the original's PackageFilterElement
// toolchain predicate: a package is filtered out of consideration when a
// toolchain filter is active and the package's configured toolchain
// doesn't match.
func FilterByToolchain(filter, packageToolchain string) bool {
	if filter == "" {
		return true
	}
	return packageToolchain == filter
}
