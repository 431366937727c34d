package gateways

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPattern matches the libraries scanned by default
const DefaultPattern = "*.jar"

// ArtifactFinder locates the artifacts to scan below an output directory
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// Find returns root itself when it is a file. For a directory it walks
// recursively and returns every file whose base name matches pattern,
// sorted lexically.
func (f *ArtifactFinder) Find(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("output directory does not exist: %s", root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var artifacts []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		// Match only fails on a malformed pattern, checked above
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			artifacts = append(artifacts, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(artifacts)
	return artifacts, nil
}
