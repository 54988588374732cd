package gitpkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sofmeright/depupdate/internal/cargohash"
	"github.com/sofmeright/depupdate/internal/pkgmodel"
)

func refList(names ...string) []*plumbing.Reference {
	refs := make([]*plumbing.Reference, 0, len(names))
	for _, n := range names {
		refs = append(refs, plumbing.NewHashReference(plumbing.ReferenceName(n), plumbing.ZeroHash))
	}
	return refs
}

func TestTrackedRefNameDefaultsToHEAD(t *testing.T) {
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git"}
	name, ok := trackedRefName(pkg, nil)
	if !ok || name != plumbing.HEAD {
		t.Errorf("got %s, %v; want HEAD, true", name, ok)
	}
}

func TestTrackedRefNamePrefersBranchOverTag(t *testing.T) {
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git", Branch: "release"}
	refs := refList("refs/heads/release", "refs/tags/release")
	name, ok := trackedRefName(pkg, refs)
	if !ok || name != plumbing.NewBranchReferenceName("release") {
		t.Errorf("got %s, %v; want refs/heads/release, true", name, ok)
	}
}

func TestTrackedRefNameFallsBackToTag(t *testing.T) {
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git", Branch: "v1.0"}
	refs := refList("refs/heads/main", "refs/tags/v1.0")
	name, ok := trackedRefName(pkg, refs)
	if !ok || name != plumbing.NewTagReferenceName("v1.0") {
		t.Errorf("got %s, %v; want refs/tags/v1.0, true", name, ok)
	}
}

func TestTrackedRefNameMissing(t *testing.T) {
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git", Branch: "nope"}
	refs := refList("refs/heads/main")
	_, ok := trackedRefName(pkg, refs)
	if ok {
		t.Error("expected no match for a branch absent from the ref list")
	}
}

func TestExistingCloneDirAbsentWhenDBDirEmpty(t *testing.T) {
	r := &Resolver{DBDir: t.TempDir()}
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git"}

	if _, ok := r.existingCloneDir(pkg); ok {
		t.Error("expected no cache entry in a fresh DBDir")
	}
}

func TestExistingCloneDirFoundWhenPreCreated(t *testing.T) {
	dbDir := t.TempDir()
	r := &Resolver{DBDir: dbDir}
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git"}

	want := filepath.Join(dbDir, cargohash.GitCacheDirName(pkg.URL))
	if err := os.MkdirAll(want, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := r.existingCloneDir(pkg)
	if !ok || got != want {
		t.Errorf("got %s, %v; want %s, true", got, ok, want)
	}
}

func TestExistingCloneDirRejectsNonDirectory(t *testing.T) {
	dbDir := t.TempDir()
	r := &Resolver{DBDir: dbDir}
	pkg := &pkgmodel.GitPackage{URL: "https://example.com/a.git"}

	stray := filepath.Join(dbDir, cargohash.GitCacheDirName(pkg.URL))
	if err := os.WriteFile(stray, []byte("not a clone"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.existingCloneDir(pkg); ok {
		t.Error("a plain file at the cache path should not count as an existing clone")
	}
}

func TestResolveRecordsErrorRatherThanFailing(t *testing.T) {
	r := &Resolver{DBDir: t.TempDir()}
	pkg := &pkgmodel.GitPackage{Name: "nope", URL: "https://invalid.invalid/does-not-exist.git"}

	r.Resolve(context.Background(), pkg)

	if pkg.NewestOID.Err == nil {
		t.Fatal("expected an unreachable-remote error to be recorded on the package, not returned")
	}
}
