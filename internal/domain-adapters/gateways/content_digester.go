// Package gateways provides adapter implementations for external services and tools.
package gateways

import (
	"crypto/md5"  //nolint:gosec // md5 is accepted for artifact ids only, never for integrity
	"crypto/sha1" //nolint:gosec // see above
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// contentDigester hashes whole files with a named algorithm
type contentDigester struct{}

// NewContentDigester creates a new content digester
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewContentDigester() *contentDigester {
	return &contentDigester{}
}

// SupportedDigests lists the algorithm names accepted by Digest
var SupportedDigests = []string{"md5", "sha1", "sha256", "sha512"}

// newDigest returns a hash for a case-insensitive algorithm name
func newDigest(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(strings.ReplaceAll(algorithm, "-", "")) {
	case "md5":
		return md5.New(), nil //nolint:gosec // see import
	case "sha1":
		return sha1.New(), nil //nolint:gosec // see import
	case "sha256", "":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
}

// Digest streams the file at filePath through algorithm and returns the hex digest
// The algorithm is resolved before the file is opened.
func (d *contentDigester) Digest(filePath, algorithm string) (string, error) {
	h, err := newDigest(algorithm)
	if err != nil {
		return "", fmt.Errorf("could not hash file %s: %w", filePath, err)
	}

	//nolint:gosec // G304: File path comes from artifact discovery
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("could not open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidateAlgorithm reports whether algorithm is accepted by Digest
func ValidateAlgorithm(algorithm string) error {
	_, err := newDigest(algorithm)
	return err
}
