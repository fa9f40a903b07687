// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

const maxLinkTarget = 4096

// Extract unpacks the zip archive at archivePath under dest and returns the
// extracted file paths relative to dest, in archive order. Symlink entries are
// recreated as symlinks.
func Extract(archivePath, dest string) (files []string, err error) {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination: %w", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, f := range zr.File {
		target, rel, pathErr := safeJoin(absDest, f.Name)
		if pathErr != nil {
			return nil, pathErr
		}

		if f.FileInfo().IsDir() {
			if mkErr := os.MkdirAll(target, 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create directory: %w", mkErr)
			}
			continue
		}
		if mkErr := os.MkdirAll(filepath.Dir(target), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create parent directory: %w", mkErr)
		}
		if f.Mode()&os.ModeSymlink != 0 {
			if lnErr := extractSymlink(f, absDest, target); lnErr != nil {
				return nil, fmt.Errorf("failed to extract %s: %w", f.Name, lnErr)
			}
			files = append(files, rel)
			continue
		}
		if exErr := extractFile(f, target); exErr != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, exErr)
		}
		files = append(files, rel)
	}
	return files, nil
}

func safeJoin(root, name string) (target, rel string, err error) {
	clean := filepath.FromSlash(name)
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target = filepath.Join(root, clean)
	rel, relErr := filepath.Rel(root, target)
	if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, rel, nil
}

// extractSymlink recreates a symlink entry. The link must be relative and
// resolve inside root.
func extractSymlink(f *zip.File, root, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxLinkTarget+1))
	if err != nil {
		return err
	}
	if len(data) == 0 || len(data) > maxLinkTarget {
		return fmt.Errorf("%w: invalid link target", ErrUnsafePath)
	}
	link := filepath.FromSlash(string(data))
	if filepath.IsAbs(link) || filepath.VolumeName(link) != "" {
		return fmt.Errorf("%w: link to %s", ErrUnsafePath, data)
	}
	resolved, err := filepath.Rel(root, filepath.Join(filepath.Dir(target), link))
	if err != nil || resolved == ".." || strings.HasPrefix(resolved, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: link to %s", ErrUnsafePath, data)
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(link, target)
}

func extractFile(f *zip.File, target string) (err error) {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(dst, src)
	return err
}

// Digest returns the hex BLAKE3 digest of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
