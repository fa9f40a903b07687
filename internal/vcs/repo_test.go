// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var testAuthor = Author{Name: "Release Bot", Email: "release@example.com"}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

// initRepo creates a repository in a temp dir with one commit per content
// value, each rewriting version.txt. It returns the directory and the commits
// in order.
func initRepo(t *testing.T, contents ...string) (string, []plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}

	hashes := make([]plumbing.Hash, 0, len(contents))
	for _, c := range contents {
		if err := os.WriteFile(filepath.Join(dir, "version.txt"), []byte(c), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := wt.Add("version.txt"); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		sig := &object.Signature{Name: testAuthor.Name, Email: testAuthor.Email, When: fixedClock()}
		h, err := wt.Commit("set "+c, &git.CommitOptions{Author: sig})
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		hashes = append(hashes, h)
	}
	return dir, hashes
}

func setRemoteBranch(t *testing.T, dir, branch string, h plumbing.Hash) {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen() error = %v", err)
	}
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(DefaultRemote, branch), h)
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("SetReference() error = %v", err)
	}
}

func readVersion(t *testing.T, dir string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "version.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(data)
}

func TestResetBranchFallsBackToMaster(t *testing.T) {
	t.Parallel()

	dir, commits := initRepo(t, "one", "two")
	setRemoteBranch(t, dir, "master", commits[0])

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	branch, err := r.ResetBranch(context.Background(), "feature/x", "")
	if err != nil {
		t.Fatalf("ResetBranch() error = %v", err)
	}
	if branch != "master" {
		t.Errorf("ResetBranch() branch = %q, want %q", branch, "master")
	}
	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head != commits[0] {
		t.Errorf("HEAD = %s, want %s", head, commits[0])
	}
	if got := readVersion(t, dir); got != "one" {
		t.Errorf("worktree content = %q, want %q", got, "one")
	}
}

func TestResetBranchPrefersRequestedBranch(t *testing.T) {
	t.Parallel()

	dir, commits := initRepo(t, "one", "two", "three")
	setRemoteBranch(t, dir, "master", commits[0])
	setRemoteBranch(t, dir, "release/2.0", commits[1])

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	branch, err := r.ResetBranch(context.Background(), "release/2.0", "master")
	if err != nil {
		t.Fatalf("ResetBranch() error = %v", err)
	}
	if branch != "release/2.0" {
		t.Errorf("ResetBranch() branch = %q, want %q", branch, "release/2.0")
	}
	if got := readVersion(t, dir); got != "two" {
		t.Errorf("worktree content = %q, want %q", got, "two")
	}
}

func TestResetBranchNotFound(t *testing.T) {
	t.Parallel()

	dir, _ := initRepo(t, "one")
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	_, err = r.ResetBranch(context.Background(), "feature", "develop")
	if !errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("ResetBranch() error = %v, want ErrBranchNotFound", err)
	}
	var notFound *BranchNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error is not a *BranchNotFoundError: %T", err)
	}
	if len(notFound.Tried) != 2 || notFound.Tried[0] != "feature" || notFound.Tried[1] != "develop" {
		t.Errorf("Tried = %v, want [feature develop]", notFound.Tried)
	}
}

func TestCommitAll(t *testing.T) {
	t.Parallel()

	dir, commits := initRepo(t, "1.0.0")
	r, err := Open(dir, WithAuthor(testAuthor), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "version.txt"), []byte("1.1.0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := r.CommitAll(context.Background(), "Bump to 1.1.0")
	if err != nil {
		t.Fatalf("CommitAll() error = %v", err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		t.Fatalf("CommitObject() error = %v", err)
	}
	if commit.Message != "Bump to 1.1.0" {
		t.Errorf("message = %q", commit.Message)
	}
	if commit.Author.Email != testAuthor.Email {
		t.Errorf("author = %q, want %q", commit.Author.Email, testAuthor.Email)
	}
	if len(commit.ParentHashes) != 1 || commit.ParentHashes[0] != commits[0] {
		t.Errorf("parents = %v, want [%s]", commit.ParentHashes, commits[0])
	}
	f, err := commit.File("version.txt")
	if err != nil {
		t.Fatalf("commit lacks version.txt: %v", err)
	}
	if content, _ := f.Contents(); content != "1.1.0" {
		t.Errorf("committed version.txt = %q, want 1.1.0", content)
	}
	if _, err := commit.File("notes.txt"); err == nil {
		t.Error("untracked file was committed")
	}

	if _, err := r.CommitAll(context.Background(), "Bump to 1.1.0"); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("second CommitAll() error = %v, want ErrNothingToCommit", err)
	}
}

func TestCommitAllCanceled(t *testing.T) {
	t.Parallel()

	dir, _ := initRepo(t, "1.0.0")
	r, err := Open(dir, WithAuthor(testAuthor))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.CommitAll(ctx, "Bump"); !errors.Is(err, context.Canceled) {
		t.Errorf("CommitAll() error = %v, want context.Canceled", err)
	}
}

func TestMirrorRequiresURL(t *testing.T) {
	t.Parallel()

	dir, _ := initRepo(t, "one")
	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Mirror(context.Background(), ""); !errors.Is(err, ErrNoMirrorURL) {
		t.Errorf("Mirror(\"\") error = %v, want ErrNoMirrorURL", err)
	}
}

// detachedCheckout mimics a CI clone: HEAD detached on the newest commit, no
// local branches, origin/master, origin/release/1.x, origin/HEAD and a tag.
func detachedCheckout(t *testing.T) (string, []plumbing.Hash) {
	t.Helper()

	dir, commits := initRepo(t, "one", "two")
	setRemoteBranch(t, dir, "master", commits[1])
	setRemoteBranch(t, dir, "release/1.x", commits[0])

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	refs := []*plumbing.Reference{
		plumbing.NewSymbolicReference(plumbing.NewRemoteHEADReferenceName(DefaultRemote), plumbing.NewRemoteReferenceName(DefaultRemote, "master")),
		plumbing.NewHashReference(plumbing.HEAD, commits[1]),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v1.0.0"), commits[0]),
	}
	for _, ref := range refs {
		if err := repo.Storer.SetReference(ref); err != nil {
			t.Fatalf("SetReference(%s) error = %v", ref.Name(), err)
		}
	}
	if err := repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("master")); err != nil {
		t.Fatalf("RemoveReference() error = %v", err)
	}
	return dir, commits
}

func TestMirrorRefSpecs(t *testing.T) {
	t.Parallel()

	dir, commits := detachedCheckout(t)
	setRemoteBranch(t, dir, "feature", commits[0])
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("feature"), commits[1])); err != nil {
		t.Fatal(err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	specs, err := r.MirrorRefSpecs()
	if err != nil {
		t.Fatalf("MirrorRefSpecs() error = %v", err)
	}
	want := []string{
		"+refs/heads/feature:refs/heads/feature",
		"+refs/remotes/origin/master:refs/heads/master",
		"+refs/remotes/origin/release/1.x:refs/heads/release/1.x",
		"+refs/tags/*:refs/tags/*",
	}
	if len(specs) != len(want) {
		t.Fatalf("MirrorRefSpecs() = %v, want %v", specs, want)
	}
	for i, s := range specs {
		if string(s) != want[i] {
			t.Errorf("spec[%d] = %q, want %q", i, s, want[i])
		}
		if err := s.Validate(); err != nil {
			t.Errorf("refspec %q invalid: %v", s, err)
		}
	}
}

func TestMirrorDetachedCheckout(t *testing.T) {
	t.Parallel()

	dir, commits := detachedCheckout(t)
	dest := filepath.Join(t.TempDir(), "mirror.git")
	if _, err := git.PlainInit(dest, true); err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Mirror(context.Background(), dest); err != nil {
		t.Fatalf("Mirror() error = %v", err)
	}

	mirror, err := git.PlainOpen(dest)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[plumbing.ReferenceName]plumbing.Hash{
		plumbing.NewBranchReferenceName("master"):      commits[1],
		plumbing.NewBranchReferenceName("release/1.x"): commits[0],
		plumbing.NewTagReferenceName("v1.0.0"):         commits[0],
	} {
		ref, err := mirror.Reference(name, false)
		if err != nil {
			t.Errorf("mirror lacks %s: %v", name, err)
			continue
		}
		if ref.Hash() != want {
			t.Errorf("mirror %s = %s, want %s", name, ref.Hash(), want)
		}
	}
	if _, err := mirror.Reference(plumbing.NewBranchReferenceName("HEAD"), false); err == nil {
		t.Error("origin/HEAD was pushed as a branch")
	}

	if err := r.Mirror(context.Background(), dest); err != nil {
		t.Errorf("second Mirror() error = %v, want nil", err)
	}
}

func TestMirrorWithoutBranches(t *testing.T) {
	t.Parallel()

	dir, commits := initRepo(t, "one")
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, commits[0])); err != nil {
		t.Fatal(err)
	}
	if err := repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("master")); err != nil {
		t.Fatal(err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Mirror(context.Background(), filepath.Join(t.TempDir(), "mirror.git")); !errors.Is(err, ErrNoBranches) {
		t.Errorf("Mirror() error = %v, want ErrNoBranches", err)
	}
}

func TestOpenMissingRepository(t *testing.T) {
	t.Parallel()

	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open() on a plain directory should fail")
	}
}
