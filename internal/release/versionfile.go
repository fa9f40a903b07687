// SPDX-License-Identifier: MPL-2.0

package release

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tankerhq/tankerci/internal/config"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// BumpFiles rewrites the version embedded in every file to version. Paths
// are relative to root. Files are written only after all of them were
// rewritten in memory.
func BumpFiles(root string, files []config.VersionFile, version string) error {
	type pending struct {
		path string
		mode os.FileMode
		data []byte
	}
	out := make([]pending, 0, len(files))
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.Path))
		info, err := os.Stat(path)
		if err != nil {
			return &VersionFileError{Path: f.Path, Err: err}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return &VersionFileError{Path: f.Path, Err: err}
		}
		updated, err := RewriteVersion(f, data, version)
		if err != nil {
			return &VersionFileError{Path: f.Path, Err: err}
		}
		out = append(out, pending{path: path, mode: info.Mode().Perm(), data: updated})
	}
	for _, p := range out {
		if err := os.WriteFile(p.path, p.data, p.mode); err != nil {
			return &VersionFileError{Path: p.path, Err: err}
		}
	}
	return nil
}

// RewriteVersion returns data with the version of f replaced.
func RewriteVersion(f config.VersionFile, data []byte, version string) ([]byte, error) {
	switch f.EffectiveKind() {
	case config.VersionFileRegex:
		return rewriteRegex(f.Pattern, data, version)
	case config.VersionFileTOML:
		return rewriteTOML(f.Key, data, version)
	default:
		return nil, f.Kind.Validate()
	}
}

func rewriteRegex(pattern string, data []byte, version string) ([]byte, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q has no capture group", pattern)
	}
	loc := re.FindSubmatchIndex(data)
	if loc == nil || loc[2] < 0 {
		return nil, fmt.Errorf("%w: no match for %q", ErrVersionNotFound, pattern)
	}
	return splice(data, loc[2], loc[3], []byte(version)), nil
}

// rewriteTOML replaces the string at the dotted key path in place, keeping
// comments and formatting of the rest of the document.
func rewriteTOML(key string, data []byte, version string) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid toml: %w", err)
	}
	want := strings.Split(key, ".")
	if _, ok := lookupString(doc, want); !ok {
		return nil, fmt.Errorf("%w: no string at key %q", ErrVersionNotFound, key)
	}

	p := unstable.Parser{}
	p.Reset(data)
	var table []string
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table:
			table = keyParts(expr.Key())
		case unstable.ArrayTable:
			// Entries of arrays of tables are never addressed by a dotted key.
			table = append(keyParts(expr.Key()), "[]")
		case unstable.KeyValue:
			path := append(append([]string{}, table...), keyParts(expr.Key())...)
			value := expr.Value()
			if equalPath(path, want) && value.Kind == unstable.String {
				start := int(value.Raw.Offset)
				end := start + int(value.Raw.Length)
				return splice(data, start, end, []byte(`"`+version+`"`)), nil
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, fmt.Errorf("invalid toml: %w", err)
	}
	return nil, errors.Join(ErrVersionNotFound, fmt.Errorf("key %q is not a plain key/value", key))
}

func keyParts(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lookupString(doc map[string]any, path []string) (string, bool) {
	var cur any = doc
	for _, part := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[part]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

func splice(data []byte, start, end int, repl []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) - (end - start) + len(repl))
	buf.Write(data[:start])
	buf.Write(repl)
	buf.Write(data[end:])
	return buf.Bytes()
}
