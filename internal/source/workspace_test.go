// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tankerhq/tankerci/internal/config"
	"github.com/tankerhq/tankerci/internal/conan"
	"github.com/tankerhq/tankerci/internal/runner/runnertest"
	"github.com/tankerhq/tankerci/internal/vcs"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitReadme creates a repository at dir with README holding content and
// returns the commit.
func commitReadme(t *testing.T, dir, content string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit(%s) error = %v", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README"); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "CI", Email: "ci@example.com", When: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	h, err := wt.Commit("init", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// seedCheckout prepares dir as an existing workspace checkout whose
// origin/master points at its only commit.
func seedCheckout(t *testing.T, dir string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	h := commitReadme(t, dir, "upstream")
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(vcs.DefaultRemote, "master"), h)
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatal(err)
	}
}

// workingCheckout creates the binding checkout tankerci runs from, with an
// uncommitted README edit.
func workingCheckout(t *testing.T) (root string, head plumbing.Hash) {
	t.Helper()

	root = filepath.Join(t.TempDir(), "sdk-ruby")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	head = commitReadme(t, root, "pristine")
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("local edit"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root, head
}

func assertUntouched(t *testing.T, root string, head plumbing.Hash) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, "README"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "local edit" {
		t.Errorf("working checkout README = %q, want the local edit kept", data)
	}
	repo, err := git.PlainOpen(root)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	if ref.Hash() != head {
		t.Errorf("working checkout HEAD moved to %s", ref.Hash())
	}
}

func TestResolveSameAsBranchUsesIsolatedWorkspace(t *testing.T) {
	t.Parallel()

	root, head := workingCheckout(t)
	cfg := config.DefaultConfig()
	wsDir := filepath.Join(root, filepath.FromSlash(cfg.Workspace.Dir))
	seedCheckout(t, filepath.Join(wsDir, cfg.Workspace.NativeRepo))
	seedCheckout(t, filepath.Join(wsDir, cfg.Workspace.BindingRepo))

	rec := runnertest.New()
	r := NewResolver(cfg, root, conan.NewClient(rec, "", nil), WithWorkspaces(vcs.NewWorkspaces(nil)))

	got, err := r.Resolve(context.Background(), SameAsBranch{Branch: "feature-x"}, "default")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(wsDir, "sdk-ruby"); got.SourceRoot != want {
		t.Errorf("SourceRoot = %q, want %q", got.SourceRoot, want)
	}
	if got.SourceRoot == root {
		t.Error("SourceRoot is the working checkout")
	}
	if n := rec.Count("conan export " + filepath.Join(wsDir, "sdk-native")); n != 1 {
		t.Errorf("exports from workspace = %d, want 1 (commands: %q)", n, rec.Lines())
	}
	assertUntouched(t, root, head)
}

func TestResolveSameAsBranchRejectsOverlappingWorkspace(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{"..", "../.."} {
		t.Run(dir, func(t *testing.T) {
			t.Parallel()

			root, head := workingCheckout(t)
			cfg := config.DefaultConfig()
			cfg.Workspace.Dir = dir
			if dir == "../.." {
				cfg.Workspace.BindingRepo = filepath.Join(filepath.Base(filepath.Dir(root)), "sdk-ruby")
			}

			rec := runnertest.New()
			r := NewResolver(cfg, root, conan.NewClient(rec, "", nil), WithWorkspaces(vcs.NewWorkspaces(nil)))

			_, err := r.Resolve(context.Background(), SameAsBranch{Branch: "feature-x"}, "default")
			if !errors.Is(err, ErrWorkspaceOverlapsRoot) {
				t.Fatalf("Resolve() error = %v, want ErrWorkspaceOverlapsRoot", err)
			}
			if len(rec.Commands()) != 0 {
				t.Errorf("commands ran: %q", rec.Lines())
			}
			assertUntouched(t, root, head)
		})
	}
}
