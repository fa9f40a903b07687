// SPDX-License-Identifier: MPL-2.0

package release

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tankerhq/tankerci/internal/artifacts"
)

// ArtifactDigest is the BLAKE3 digest of a verified artifact.
type ArtifactDigest struct {
	Path   string
	Digest string
}

// VerifyArtifacts checks that every path exists under root. The first
// missing path, in list order, is returned as a *MissingArtifactError.
// Digests are computed only once all paths are known to exist.
func VerifyArtifacts(root string, paths []string) ([]ArtifactDigest, error) {
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			if os.IsNotExist(err) {
				return nil, &MissingArtifactError{Path: p}
			}
			return nil, fmt.Errorf("failed to check %s: %w", p, err)
		}
	}

	digests := make([]ArtifactDigest, 0, len(paths))
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			digests = append(digests, ArtifactDigest{Path: p})
			continue
		}
		sum, err := artifacts.Digest(full)
		if err != nil {
			return nil, err
		}
		digests = append(digests, ArtifactDigest{Path: p, Digest: sum})
	}
	return digests, nil
}
