// Package gitpkg resolves the current tip of a git-sourced package's
// tracked ref at its remote, via an external git binary or the in-
// process library, maintaining a bare clone cache at a deterministic
// path under DBDir once one has been established; a package with no
// cache entry yet is probed directly, falling back to a scratch clone
// under the OS temp directory rather than claiming a DBDir slot itself.
package gitpkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/sofmeright/depupdate/internal/cargohash"
	"github.com/sofmeright/depupdate/internal/pkgmodel"
)

// Resolver resolves git-sourced packages' tips against DBDir, a cache of
// bare clones keyed by cargohash.GitCacheDirName.
type Resolver struct {
	DBDir    string
	ForkGit  bool
	ProxyURL string
	Auth     transport.AuthMethod
}

// Resolve fills in pkg.NewestOID. It never returns an error itself —
// per-package failures are recorded in NewestOID.Err so one broken
// remote does not abort the run (spec.md §5, §7).
func (r *Resolver) Resolve(ctx context.Context, pkg *pkgmodel.GitPackage) {
	oid, err := r.resolve(ctx, pkg)
	pkg.NewestOID = pkgmodel.OIDResult{OID: oid, Err: err}
}

// resolve implements spec.md §4.6 point 1: scan DBDir for the child this
// URL's cache would live at; if it exists, fetch into it. Otherwise
// probe the remote directly with ls-remote, and only if that also fails
// fall back to a fresh clone under the OS temp directory keyed by
// package name — never under DBDir, since nothing has established that
// this package owns a slot there yet.
func (r *Resolver) resolve(ctx context.Context, pkg *pkgmodel.GitPackage) (string, error) {
	if dbDir, ok := r.existingCloneDir(pkg); ok {
		return r.fetchExisting(ctx, pkg, dbDir)
	}

	if oid, err := r.lsRemoteProbe(ctx, pkg); err == nil {
		return oid, nil
	}

	scratchDir := filepath.Join(os.TempDir(), pkg.Name)
	return r.freshClone(ctx, pkg, scratchDir)
}

// existingCloneDir reports the deterministic DBDir child for pkg's URL
// (cargohash.GitCacheDirName) if it already exists on disk.
func (r *Resolver) existingCloneDir(pkg *pkgmodel.GitPackage) (string, bool) {
	candidate := filepath.Join(r.DBDir, cargohash.GitCacheDirName(pkg.URL))
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return candidate, true
}

// trackedRefName implements §4.6's "Tracked-ref selection".
func trackedRefName(pkg *pkgmodel.GitPackage, refs []*plumbing.Reference) (plumbing.ReferenceName, bool) {
	if pkg.Branch == "" {
		return plumbing.HEAD, true
	}
	wantHeads := plumbing.NewBranchReferenceName(pkg.Branch)
	wantTags := plumbing.NewTagReferenceName(pkg.Branch)
	for _, ref := range refs {
		if ref.Name() == wantHeads {
			return wantHeads, true
		}
	}
	for _, ref := range refs {
		if ref.Name() == wantTags {
			return wantTags, true
		}
	}
	return "", false
}

func (r *Resolver) lsRemoteProbe(ctx context.Context, pkg *pkgmodel.GitPackage) (string, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &config.RemoteConfig{Name: "probe", URLs: []string{pkg.URL}})
	refs, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: r.Auth})
	if err != nil {
		return "", fmt.Errorf("ls-remote %s: %w", pkg.URL, err)
	}

	refName, ok := trackedRefName(pkg, refs)
	if !ok {
		return "", fmt.Errorf("ref %q not found at %s", pkg.Branch, pkg.URL)
	}

	for _, ref := range refs {
		if ref.Name() != refName {
			continue
		}
		if ref.Type() != plumbing.HashReference {
			return "", fmt.Errorf("ref %s at %s is not a direct reference", refName, pkg.URL)
		}
		return ref.Hash().String(), nil
	}
	return "", fmt.Errorf("ref %s not found at %s", refName, pkg.URL)
}

func (r *Resolver) freshClone(ctx context.Context, pkg *pkgmodel.GitPackage, cloneDir string) (string, error) {
	if err := os.RemoveAll(cloneDir); err != nil {
		return "", fmt.Errorf("clearing stale clone dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cloneDir), 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	if r.ForkGit {
		args := []string{"clone", "--bare"}
		if pkg.Branch != "" {
			args = append(args, "-b", pkg.Branch)
		}
		args = append(args, "--", pkg.URL, cloneDir)
		if out, err := runGit(ctx, args...); err != nil {
			return "", fmt.Errorf("git clone failed: %w: %s", err, out)
		}
	} else {
		opts := &gogit.CloneOptions{URL: pkg.URL, Auth: r.Auth, Bare: true}
		if pkg.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(pkg.Branch)
		}
		if r.ProxyURL != "" {
			opts.ProxyOptions = transport.ProxyOptions{URL: r.ProxyURL}
		}
		if _, err := gogit.PlainCloneContext(ctx, cloneDir, true, opts); err != nil {
			return "", fmt.Errorf("git clone failed: %w", err)
		}
	}

	return r.headOID(cloneDir, pkg)
}

func (r *Resolver) fetchExisting(ctx context.Context, pkg *pkgmodel.GitPackage, cloneDir string) (string, error) {
	repo, err := gogit.PlainOpen(cloneDir)
	if err != nil {
		return "", fmt.Errorf("opening cached clone: %w", err)
	}

	if pkg.Branch == "" {
		head, err := repo.Reference(plumbing.HEAD, false)
		if err == nil && head.Type() == plumbing.HashReference {
			// Legacy state: HEAD is a direct OID rather than symbolic.
			// Recovery requires deleting and re-cloning from scratch.
			return r.freshClone(ctx, pkg, cloneDir)
		}
	}

	if r.ForkGit {
		if pkg.Branch != "" {
			if _, err := runGit(ctx, "-C", cloneDir, "symbolic-ref", "HEAD", "refs/heads/"+pkg.Branch); err != nil {
				return "", fmt.Errorf("setting HEAD: %w", err)
			}
			if _, err := runGit(ctx, "-C", cloneDir, "fetch", "-f", pkg.URL, pkg.Branch+":"+pkg.Branch); err != nil {
				return "", fmt.Errorf("git fetch failed: %w", err)
			}
		} else {
			if _, err := runGit(ctx, "-C", cloneDir, "fetch", "-f", pkg.URL, "HEAD:refs/remotes/origin/HEAD"); err != nil {
				return "", fmt.Errorf("git fetch failed: %w", err)
			}
			if _, err := runGit(ctx, "-C", cloneDir, "branch", "-f", "fetched", "refs/remotes/origin/HEAD"); err != nil {
				return "", fmt.Errorf("creating local branch: %w", err)
			}
		}
	} else {
		refSpec := config.RefSpec("+HEAD:refs/remotes/origin/HEAD")
		if pkg.Branch != "" {
			refSpec = config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/heads/%s", pkg.Branch, pkg.Branch))
		}
		remote, err := repo.CreateRemoteAnonymous(&config.RemoteConfig{Name: "anonymous", URLs: []string{pkg.URL}})
		if err != nil {
			return "", fmt.Errorf("creating anonymous remote: %w", err)
		}
		opts := &gogit.FetchOptions{RefSpecs: []config.RefSpec{refSpec}, Auth: r.Auth, Force: true}
		if r.ProxyURL != "" {
			opts.ProxyOptions = transport.ProxyOptions{URL: r.ProxyURL}
		}
		if err := remote.FetchContext(ctx, opts); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("git fetch failed: %w", err)
		}
	}

	return r.headOID(cloneDir, pkg)
}

// headOID reads the OID of the branch/ref we just fetched into.
func (r *Resolver) headOID(cloneDir string, pkg *pkgmodel.GitPackage) (string, error) {
	repo, err := gogit.PlainOpen(cloneDir)
	if err != nil {
		return "", fmt.Errorf("opening clone: %w", err)
	}
	var refName plumbing.ReferenceName
	switch {
	case pkg.Branch != "" && r.ForkGit:
		refName = plumbing.NewBranchReferenceName(pkg.Branch)
	case pkg.Branch != "":
		refName = plumbing.NewBranchReferenceName(pkg.Branch)
	case r.ForkGit:
		refName = "refs/heads/fetched"
	default:
		refName = "refs/remotes/origin/HEAD"
	}
	ref, err := repo.Reference(refName, true)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", refName, err)
	}
	if ref.Type() != plumbing.HashReference {
		return "", fmt.Errorf("%s has unexpected head shape", refName)
	}
	return ref.Hash().String(), nil
}

func runGit(ctx context.Context, args ...string) (string, error) {
	gitBin := "git"
	if v := os.Getenv("GIT"); v != "" {
		gitBin = v
	}
	cmd := exec.CommandContext(ctx, gitBin, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
