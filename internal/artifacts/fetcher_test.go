// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func buildZip(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("Write(%s) error = %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func writeZip(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "artifacts.zip")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"vendor/libctanker/linux64/tanker/lib/libctanker.so": "elf",
		"vendor/libctanker/mac64/tanker/lib/libctanker.dylib": "macho",
	}
	order := []string{
		"vendor/libctanker/linux64/tanker/lib/libctanker.so",
		"vendor/libctanker/mac64/tanker/lib/libctanker.dylib",
	}
	archive := writeZip(t, buildZip(t, files, order...))

	dest := t.TempDir()
	got, err := Extract(archive, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Extract() files = %v", got)
	}
	for _, name := range order {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if string(data) != files[name] {
			t.Errorf("%s = %q, want %q", name, data, files[name])
		}
	}
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/etc/evil"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			archive := writeZip(t, buildZip(t, map[string]string{name: "x"}, name))
			dest := t.TempDir()
			if _, err := Extract(archive, dest); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Extract() error = %v, want ErrUnsafePath", err)
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt")); err == nil {
				t.Error("file was written outside the destination")
			}
		})
	}
}

func buildZipWithLink(t *testing.T, file, content, link, linkTarget string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	hdr := &zip.FileHeader{Name: link, Method: zip.Store}
	hdr.SetMode(os.ModeSymlink | 0o777)
	lw, err := zw.CreateHeader(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lw.Write([]byte(linkTarget)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_RecreatesSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	archive := writeZip(t, buildZipWithLink(t,
		"tanker/lib/libctanker.so.2", "elf",
		"tanker/lib/libctanker.so", "libctanker.so.2"))
	dest := t.TempDir()
	files, err := Extract(archive, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Extract() files = %v, want 2", files)
	}

	link := filepath.Join(dest, "tanker", "lib", "libctanker.so")
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat() error = %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("%s mode = %v, want a symlink", link, info.Mode())
	}
	if got, _ := os.Readlink(link); got != "libctanker.so.2" {
		t.Errorf("Readlink() = %q, want libctanker.so.2", got)
	}
	if data, err := os.ReadFile(link); err != nil || string(data) != "elf" {
		t.Errorf("read through link = %q, %v", data, err)
	}
}

func TestExtract_RejectsEscapingSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	for _, target := range []string{"../../../etc/passwd", "/etc/passwd"} {
		t.Run(target, func(t *testing.T) {
			t.Parallel()

			archive := writeZip(t, buildZipWithLink(t, "lib/a.so", "x", "lib/b.so", target))
			dest := t.TempDir()
			if _, err := Extract(archive, dest); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Extract() error = %v, want ErrUnsafePath", err)
			}
			if _, err := os.Lstat(filepath.Join(dest, "lib", "b.so")); err == nil {
				t.Error("escaping symlink was created")
			}
		})
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("other"), 0o644); err != nil {
		t.Fatal(err)
	}

	da, err := Digest(a)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if len(da) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(da))
	}
	again, _ := Digest(a)
	if da != again {
		t.Error("Digest() is not deterministic")
	}
	if db, _ := Digest(b); db == da {
		t.Error("different content produced the same digest")
	}
	if _, err := Digest(filepath.Join(dir, "missing")); err == nil {
		t.Error("Digest() of a missing file should fail")
	}
}

func TestFetcherDownload(t *testing.T) {
	t.Parallel()

	payload := buildZip(t, map[string]string{"out/lib.so": "binary"}, "out/lib.so")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/api/v4") {
		case "/projects/7/pipelines/99/jobs":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `[{"id": 501, "name": "build/linux", "status": "success"}]`)
		case "/projects/7/jobs/501/artifacts":
			if r.Header.Get("JOB-TOKEN") != "ci" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/zip")
			_, _ = w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, WithBaseURL(srv.URL), WithToken(Token{Header: "JOB-TOKEN", Value: "ci"}))
	dest := t.TempDir()
	res, err := NewFetcher(client, nil).Download(context.Background(), Request{
		ProjectID:  "7",
		PipelineID: "99",
		JobName:    "build/linux",
		Dest:       dest,
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.Job.ID != 501 {
		t.Errorf("job id = %d, want 501", res.Job.ID)
	}
	if res.Digest == "" {
		t.Error("digest is empty")
	}
	data, err := os.ReadFile(filepath.Join(dest, "out", "lib.so"))
	if err != nil || string(data) != "binary" {
		t.Errorf("extracted file = %q, %v", data, err)
	}
}

func TestFetcherDownload_RequiresIdentifiers(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher(newTestClient(t), nil).Download(context.Background(), Request{JobName: "x"})
	if err == nil {
		t.Error("Download() without project and pipeline ids should fail")
	}
}
