// Package orchestrator wires the Config Loader, Registry Resolver, Index
// Store, Git Package Resolver and Decision Engine together: it loads
// configuration, resolves each package's registry, refreshes the
// relevant indices, pulls git tips, runs the Decision Engine, and emits
// a deterministically ordered update plan (spec.md §4.8).
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/sofmeright/depupdate/internal/cargoconfig"
	"github.com/sofmeright/depupdate/internal/cargohash"
	"github.com/sofmeright/depupdate/internal/decision"
	"github.com/sofmeright/depupdate/internal/gitpkg"
	"github.com/sofmeright/depupdate/internal/index"
	"github.com/sofmeright/depupdate/internal/inventory"
	"github.com/sofmeright/depupdate/internal/pkgmodel"
	"github.com/sofmeright/depupdate/internal/registry"
)

// Options configures a single orchestration run. Configs carries the
// per-package configuration the Decision Engine consumes; a missing
// entry is treated as the type's zero value.
type Options struct {
	CargoDir           string
	ManifestPath       string
	ForkGit            bool
	ResolveGitPackages bool
	ToolchainFilter    string
	Downdate           bool
	// AllowPrerelease is the CLI's global --allow-prerelease flag; it ORs
	// into every package's InstallPrereleases, since the persistent
	// per-package config store (spec.md §1's non-goal) is not implemented
	// by this module.
	AllowPrerelease bool
	// Only, when non-empty, restricts consideration to these package
	// names (the CLI's positional package-name args). Empty means "all
	// installed packages".
	Only []string
	Configs            map[string]pkgmodel.PackageConfig
	CredentialRun      func(argv []string, env map[string]string) (string, error)
	Progress           io.Writer
}

// PackageDecision is one row of the emitted plan.
type PackageDecision struct {
	Name        string
	NeedsUpdate bool
	Installed   string
	UpdateTo    string
	Reason      string
	IsGit       bool
	Err         error
}

// Plan is the sorted output of a Run: needs_update descending, then
// name ascending (spec.md §5).
type Plan struct {
	Decisions []PackageDecision
}

// Run executes the full pipeline once: load config, resolve each
// package's registry, refresh the indices involved, resolve git tips,
// run the Decision Engine, and return the sorted plan.
func Run(ctx context.Context, opts Options) (Plan, error) {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}

	cargoDir, err := cargoconfig.ResolveCargoHome(opts.CargoDir)
	if err != nil {
		return Plan{}, fmt.Errorf("resolving cargo home: %w", err)
	}

	cfg, err := cargoconfig.Load(cargoDir)
	if err != nil {
		return Plan{}, fmt.Errorf("loading config: %w", err)
	}

	inv, dropped, err := inventory.ReadVerbose(opts.ManifestPath)
	if err != nil {
		return Plan{}, fmt.Errorf("reading manifest: %w", err)
	}
	if dropped > 0 {
		fmt.Fprintf(opts.Progress, "skipped %d malformed manifest entr%s\n", dropped, plural(dropped))
	}
	inv = filterInventory(inv, opts.Only)

	proxyURL := cargoconfig.ResolveProxy(cfg)
	decisions := make([]PackageDecision, 0, len(inv.Registry)+len(inv.Git))

	for registryURL, pkgs := range groupByRegistryURL(inv.Registry) {
		resolved, err := registry.Resolve(cargoDir, registryURL, cfg.CratesIOProtocolSparse)
		if err != nil {
			for _, p := range pkgs {
				decisions = append(decisions, PackageDecision{Name: p.Name, Installed: versionString(p.InstalledVersion), Err: err})
			}
			continue
		}

		handle, err := openAndRefreshIndex(ctx, cargoDir, resolved, pkgs, cfg, proxyURL, opts)
		if err != nil {
			for _, p := range pkgs {
				decisions = append(decisions, PackageDecision{Name: p.Name, Installed: versionString(p.InstalledVersion), Err: err})
			}
			continue
		}

		for _, p := range pkgs {
			decisions = append(decisions, decideRegistryPackage(p, handle, opts, opts.Downdate))
		}
	}

	if opts.ResolveGitPackages {
		resolver := &gitpkg.Resolver{
			DBDir:   filepath.Join(cargoDir, "git", "db"),
			ForkGit: opts.ForkGit,
		}
		for _, g := range inv.Git {
			resolver.Resolve(ctx, g)
			decisions = append(decisions, decideGitPackage(g))
		}
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].NeedsUpdate != decisions[j].NeedsUpdate {
			return decisions[i].NeedsUpdate
		}
		return decisions[i].Name < decisions[j].Name
	})

	return Plan{Decisions: decisions}, nil
}

// filterInventory restricts inv to the named packages when only is
// non-empty, leaving inv untouched otherwise.
func filterInventory(inv inventory.Inventory, only []string) inventory.Inventory {
	if len(only) == 0 {
		return inv
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	out := inventory.Inventory{}
	for _, p := range inv.Registry {
		if want[p.Name] {
			out.Registry = append(out.Registry, p)
		}
	}
	for _, g := range inv.Git {
		if want[g.Name] {
			out.Git = append(out.Git, g)
		}
	}
	return out
}

func groupByRegistryURL(pkgs []*pkgmodel.RegistryPackage) map[string][]*pkgmodel.RegistryPackage {
	out := map[string][]*pkgmodel.RegistryPackage{}
	for _, p := range pkgs {
		out[p.RegistryURL] = append(out[p.RegistryURL], p)
	}
	return out
}

// decideRegistryPackage applies a package's toolchain filter, pulls its
// version against the refreshed index, and runs the Decision Engine.
func decideRegistryPackage(p *pkgmodel.RegistryPackage, handle index.Handle, opts Options, downdate bool) PackageDecision {
	pkgCfg := opts.Configs[p.Name]
	if opts.ToolchainFilter != "" && !decision.FilterByToolchain(opts.ToolchainFilter, pkgCfg.Toolchain) {
		return PackageDecision{Name: p.Name, Installed: versionString(p.InstalledVersion), Reason: "filtered by toolchain"}
	}

	versions, ok, err := handle.Versions(p.Name)
	if err != nil {
		return PackageDecision{Name: p.Name, Installed: versionString(p.InstalledVersion), Err: fmt.Errorf("reading index for %s: %w", p.Name, err)}
	}
	if !ok {
		return PackageDecision{Name: p.Name, Installed: versionString(p.InstalledVersion), Reason: "package not found in index"}
	}

	allowPrerelease := pkgCfg.InstallPrereleases || opts.AllowPrerelease

	candidate, alternative := decision.PullVersion(p.InstalledVersion, versions, allowPrerelease)
	p.CandidateVersion = candidate
	p.AlternativeVersion = alternative

	needs, updateTo := decision.NeedsUpdate(decision.Inputs{
		Installed:          p.InstalledVersion,
		Candidates:         versions,
		Constraint:         pkgCfg.TargetVersion,
		MaxVersion:         p.MaxVersion,
		InstallPrereleases: allowPrerelease,
		Downdate:           downdate,
	})

	reason := "up to date"
	switch {
	case needs:
		reason = "update available"
	case updateTo == nil:
		reason = "no viable upgrade"
	case pkgCfg.TargetVersion != nil:
		reason = "constrained by version requirement"
	}

	return PackageDecision{
		Name:        p.Name,
		NeedsUpdate: needs,
		Installed:   versionString(p.InstalledVersion),
		UpdateTo:    versionString(updateTo),
		Reason:      reason,
	}
}

func decideGitPackage(g *pkgmodel.GitPackage) PackageDecision {
	if g.NewestOID.Err != nil {
		return PackageDecision{Name: g.Name, IsGit: true, Installed: g.InstalledOID, Err: g.NewestOID.Err}
	}
	return PackageDecision{
		Name:        g.Name,
		IsGit:       true,
		NeedsUpdate: g.NeedsUpdate(),
		Installed:   g.InstalledOID,
		UpdateTo:    g.NewestOID.OID,
	}
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func versionString(v *semver.Version) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// openAndRefreshIndex opens (and refreshes) the Index Store variant
// named by resolved, returning the Handle that decideRegistryPackage
// reads versions from.
func openAndRefreshIndex(ctx context.Context, cargoDir string, resolved registry.Resolved, pkgs []*pkgmodel.RegistryPackage, cfg *cargoconfig.CargoConfig, proxyURL string, opts Options) (index.Handle, error) {
	if resolved.IsSparse {
		idx := index.NewSparseIndex()
		names := make([]string, len(pkgs))
		for i, p := range pkgs {
			names[i] = p.Name
		}
		token, _ := cfg.Credentials.Resolve(resolved.Name, resolved.URL, opts.CredentialRun)
		authHeader := ""
		if token != "" {
			authHeader = "Bearer " + token
		}
		err := idx.Refresh(ctx, resolved.URL, names, index.SparseConfig{
			AuthToken:   authHeader,
			ProxyURL:    proxyURL,
			CAInfo:      cfg.HTTP.CAInfo,
			CheckRevoke: cfg.HTTP.CheckRevoke,
		}, opts.Progress)
		return idx, err
	}

	shortname, err := cargohash.RegistryShortname(resolved.URL)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cargoDir, "registry", "index", shortname)
	idx, err := index.OpenOrInitGitIndex(path)
	if err != nil {
		return nil, err
	}
	token, _ := cfg.Credentials.Resolve(resolved.Name, resolved.URL, opts.CredentialRun)
	auth := index.ResolveAuth(resolved.URL, token)
	if err := idx.Refresh(ctx, resolved.URL, cfg.GitFetchWithCLI, proxyURL, auth); err != nil {
		return nil, err
	}
	return idx, nil
}
