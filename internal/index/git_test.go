package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitBlob writes content at path within a fresh non-bare repo at dir,
// commits it, and points refs/remotes/origin/HEAD at that commit —
// standing in for a fetched registry index tree without needing an
// external git binary or network access.
func commitBlob(t *testing.T, dir, path, content string) *gogit.Repository {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	full := filepath.Join(dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(path); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit("index update", &gogit.CommitOptions{Author: sig})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(trackingRef, hash)); err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestOpenOrInitGitIndexInitialisesMissingPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	idx, err := OpenOrInitGitIndex(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.path != dir {
		t.Errorf("got path %s, want %s", idx.path, dir)
	}
}

func TestOpenOrInitGitIndexOpensExistingRepo(t *testing.T) {
	dir := t.TempDir()
	if _, err := gogit.PlainInit(dir, true); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenOrInitGitIndex(dir); err != nil {
		t.Fatalf("unexpected error opening an existing bare repo: %v", err)
	}
}

func TestOpenOrInitGitIndexRejectsNonDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index")
	if err := os.WriteFile(path, []byte("not a repo"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenOrInitGitIndex(path)
	var invalid *IndexPathInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("got err %v, want *IndexPathInvalidError", err)
	}
	if invalid.Path != path {
		t.Errorf("got Path %s, want %s", invalid.Path, path)
	}
}

func TestGitIndexVersionsReadsCommittedBlob(t *testing.T) {
	dir := t.TempDir()
	repo := commitBlob(t, dir, "ca/rg/cargo-update", `{"vers":"1.1.0","yanked":false}`+"\n")
	idx := &GitIndex{repo: repo, path: dir}

	versions, ok, err := idx.Versions("cargo-update")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || len(versions) != 1 || versions[0].String() != "1.1.0" {
		t.Errorf("got versions=%v ok=%v, want [1.1.0] true", versions, ok)
	}
}

func TestGitIndexVersionsPropagatesParseErrorRatherThanNotFound(t *testing.T) {
	dir := t.TempDir()
	repo := commitBlob(t, dir, "ca/rg/cargo-update", `{"vers":"not-a-version"}`+"\n")
	idx := &GitIndex{repo: repo, path: dir}

	versions, ok, err := idx.Versions("cargo-update")
	if err == nil {
		t.Fatal("expected a version-line parse error to propagate, not be folded into not-found")
	}
	if ok || versions != nil {
		t.Errorf("got versions=%v ok=%v on a parse failure, want nil/false", versions, ok)
	}
}

func TestGitIndexVersionsMissingCrateIsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	repo := commitBlob(t, dir, "ca/rg/cargo-update", `{"vers":"1.0.0","yanked":false}`+"\n")
	idx := &GitIndex{repo: repo, path: dir}

	versions, ok, err := idx.Versions("cargo-release")
	if err != nil {
		t.Fatalf("missing crate should not be a fatal error, got %v", err)
	}
	if ok || versions != nil {
		t.Errorf("got versions=%v ok=%v, want nil/false for an absent crate", versions, ok)
	}
}
