package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/Masterminds/semver/v3"
)

// trackingRef is where a registry index's single-ref fetch is landed,
// mirroring the host tool's "HEAD:refs/remotes/origin/HEAD" convention.
const trackingRef = "refs/remotes/origin/HEAD"

// GitIndex is the Git-backed Registry variant: a bare clone opened (or
// initialised) at a deterministic path, refreshed by a single-ref fetch.
type GitIndex struct {
	repo *gogit.Repository
	path string
}

// IndexPathInvalidError reports that an index's on-disk path exists but
// is not a directory, so it can neither hold an existing bare clone nor
// be initialised as one (spec.md §4.1).
type IndexPathInvalidError struct {
	Path string
}

func (e *IndexPathInvalidError) Error() string {
	return fmt.Sprintf("index path %s exists and is not a directory", e.Path)
}

// OpenOrInitGitIndex opens the bare repository at path, initialising one
// if none exists yet (spec.md §4.4's "opens (or initialises)"). A path
// that exists but names a regular file rather than a directory is
// reported as an *IndexPathInvalidError rather than attempted as either
// an open or an init.
func OpenOrInitGitIndex(path string) (*GitIndex, error) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return nil, &IndexPathInvalidError{Path: path}
	}

	repo, err := gogit.PlainOpen(path)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		repo, err = gogit.PlainInit(path, true)
	}
	if err != nil {
		return nil, fmt.Errorf("opening index repository at %s: %w", path, err)
	}
	return &GitIndex{repo: repo, path: path}, nil
}

func (g *GitIndex) IsSparse() bool { return false }

// Refresh fetches HEAD:refs/remotes/origin/HEAD from repoURL, either by
// forking an external git binary or via the in-process library with a
// credential callback chain and optional HTTP proxy — spec.md §9's
// "subprocess-or-library duality", selected by a single boolean.
func (g *GitIndex) Refresh(ctx context.Context, repoURL string, forkGit bool, proxyURL string, auth transport.AuthMethod) error {
	if forkGit {
		return g.refreshExternal(ctx, repoURL)
	}
	return g.refreshLibrary(ctx, repoURL, proxyURL, auth)
}

func (g *GitIndex) refreshExternal(ctx context.Context, repoURL string) error {
	gitBin := "git"
	if v := os.Getenv("GIT"); v != "" {
		gitBin = v
	}
	cmd := exec.CommandContext(ctx, gitBin, "-C", g.path, "fetch", "-f", repoURL, "HEAD:refs/remotes/origin/HEAD")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git fetch failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (g *GitIndex) refreshLibrary(ctx context.Context, repoURL, proxyURL string, auth transport.AuthMethod) error {
	remote, err := g.repo.CreateRemoteAnonymous(&config.RemoteConfig{
		Name: "anonymous",
		URLs: []string{repoURL},
	})
	if err != nil {
		return fmt.Errorf("creating anonymous remote: %w", err)
	}

	opts := &gogit.FetchOptions{
		RefSpecs: []config.RefSpec{config.RefSpec("+HEAD:" + trackingRef)},
		Auth:     auth,
		Force:    true,
	}
	if proxyURL != "" {
		opts.ProxyOptions = transport.ProxyOptions{URL: proxyURL}
	}

	if err := remote.FetchContext(ctx, opts); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("git fetch failed: %w", err)
	}
	return nil
}

// Versions reads the per-crate version list lazily from the blob at the
// path derived from name (§4.9), under the tree of the most recently
// fetched ref. The returned error is non-nil only for a genuine index
// problem (unreadable commit/tree, or a version-line parse failure);
// "crate not present in this index" is reported as (nil, false, nil),
// matching spec.md §4.4's "parse failures propagate" and §7's
// version-line parse error being a fatal IndexError rather than being
// folded into "not found".
func (g *GitIndex) Versions(name string) ([]*semver.Version, bool, error) {
	ref, err := g.repo.Reference(plumbing.ReferenceName(trackingRef), true)
	if err != nil {
		return nil, false, nil
	}
	commit, err := g.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, false, fmt.Errorf("reading index commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, false, fmt.Errorf("reading index tree: %w", err)
	}

	parts, err := SplitPackagePath(name)
	if err != nil {
		return nil, false, err
	}
	file, err := tree.File(strings.Join(parts, "/"))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading index entry for %s: %w", name, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("reading index entry for %s: %w", name, err)
	}
	versions, err := ParseCrateVersions([]byte(content))
	if err != nil {
		return nil, false, fmt.Errorf("parsing index entry for %s: %w", name, err)
	}
	return versions, true, nil
}

// ResolveAuth builds a go-git AuthMethod from a resolved bearer token
// (HTTPS) or falls back to the ambient SSH agent for git@ remotes — the
// library-transport half of the credential chain in spec.md §4.4.
func ResolveAuth(repoURL, token string) transport.AuthMethod {
	if strings.HasPrefix(repoURL, "git@") || strings.HasPrefix(repoURL, "ssh://") {
		if auth, err := gitssh.NewSSHAgentAuth("git"); err == nil {
			return auth
		}
		return nil
	}
	if token != "" {
		return &githttp.BasicAuth{Username: "token", Password: token}
	}
	return nil
}
