package gateways

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

const (
	manifestPath = "META-INF/MANIFEST.MF"

	// fingerprintAlgorithm names the hash used for fingerprint records
	fingerprintAlgorithm = "SHA512"

	// maxNestedArchive bounds how much of an embedded archive is read into memory
	maxNestedArchive = 64 * 1024 * 1024
)

// libraryExtensions are zip based formats that may carry a manifest
var libraryExtensions = map[string]bool{
	".jar": true,
	".war": true,
	".ear": true,
	".zip": true,
}

// jarInspector reads manifests and fingerprints from zip based libraries
type jarInspector struct{}

// NewJarInspector creates a new jar inspector
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewJarInspector() *jarInspector {
	return &jarInspector{}
}

// IsLibrary reports whether path has a zip based library extension
func IsLibrary(path string) bool {
	return libraryExtensions[strings.ToLower(filepath.Ext(path))]
}

// ReadManifest returns the implementation title and version from the
// artifact's manifest. ok is false for non-library files, files that are
// not zip archives despite their extension, and archives without a manifest.
func (j *jarInspector) ReadManifest(path string) (title, version string, ok bool, err error) {
	if !IsLibrary(path) {
		return "", "", false, nil
	}

	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrFormat) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("could not open file %s: %w", filepath.Base(path), err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer r.Close()

	for _, f := range r.File {
		if !strings.EqualFold(f.Name, manifestPath) {
			continue
		}
		attrs, err := readManifestEntry(f)
		if err != nil {
			return "", "", false, fmt.Errorf("could not read manifest of %s: %w", filepath.Base(path), err)
		}
		return manifestTitle(attrs), manifestVersion(attrs), true, nil
	}

	return "", "", false, nil
}

func readManifestEntry(f *zip.File) (map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on read-only entry
	defer rc.Close()
	return ParseManifest(rc)
}

// ParseManifest parses the main section of a jar manifest.
// Continuation lines start with a single space.
func ParseManifest(r io.Reader) (map[string]string, error) {
	attrs := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastKey string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			// end of main section
			break
		}
		if strings.HasPrefix(line, " ") && lastKey != "" {
			attrs[lastKey] += line[1:]
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		lastKey = strings.TrimSpace(key)
		attrs[lastKey] = strings.TrimPrefix(value, " ")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return attrs, nil
}

func manifestTitle(attrs map[string]string) string {
	if v, ok := attrs["Implementation-Title"]; ok {
		return v
	}
	return attrs["Bundle-Name"]
}

func manifestVersion(attrs map[string]string) string {
	if v, ok := attrs["Implementation-Version"]; ok {
		return v
	}
	return attrs["Bundle-Version"]
}

// Fingerprints returns one record for the archive plus one per embedded
// archive. Files that are not libraries, or not zip archives, get a single
// whole-file record.
func (j *jarInspector) Fingerprints(_ context.Context, path string) ([]entities.FingerprintRecord, error) {
	name := filepath.Base(path)

	if !IsLibrary(path) {
		return wholeFileRecord(path)
	}

	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrFormat) {
		return wholeFileRecord(path)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", name, err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer r.Close()

	return fingerprintArchive(name, r.File)
}

func wholeFileRecord(path string) ([]entities.FingerprintRecord, error) {
	sum, err := NewContentDigester().Digest(path, fingerprintAlgorithm)
	if err != nil {
		return nil, err
	}
	return []entities.FingerprintRecord{{
		Algorithm: fingerprintAlgorithm,
		Hash:      sum,
		Filename:  filepath.Base(path),
	}}, nil
}

// fingerprintArchive hashes the class files of an archive. Archives without
// classes are hashed over their other entries instead, and an archive with
// nothing but embedded archives gets no record of its own.
func fingerprintArchive(name string, files []*zip.File) ([]entities.FingerprintRecord, error) {
	classes := make(map[string]string)
	resources := make(map[string]string)
	var nested []entities.FingerprintRecord

	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if IsLibrary(f.Name) {
			inner, err := fingerprintNested(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s in %s: %w", f.Name, name, err)
			}
			nested = append(nested, inner...)
			continue
		}

		sum, err := hashEntry(f)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s in %s: %w", f.Name, name, err)
		}
		if strings.HasSuffix(f.Name, ".class") {
			classes[f.Name] = sum
		} else {
			resources[f.Name] = sum
		}
	}

	entries := classes
	if len(entries) == 0 {
		entries = resources
	}
	if len(entries) == 0 {
		return nested, nil
	}

	record := entities.FingerprintRecord{
		Algorithm: fingerprintAlgorithm,
		Hash:      combinedHash(entries),
		Filename:  name,
		Entries:   entries,
	}
	return append([]entities.FingerprintRecord{record}, nested...), nil
}

func fingerprintNested(f *zip.File) ([]entities.FingerprintRecord, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on read-only entry
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxNestedArchive))
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Not a readable archive, nothing to fingerprint
		return nil, nil
	}
	return fingerprintArchive(filepath.Base(f.Name), zr.File)
}

func hashEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close on read-only entry
	defer rc.Close()

	h := sha512.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// combinedHash hashes the sorted entry hashes, so it does not depend on
// the order of entries inside the archive
func combinedHash(entries map[string]string) string {
	sums := make([]string, 0, len(entries))
	for _, sum := range entries {
		sums = append(sums, sum)
	}
	sort.Strings(sums)

	h := sha512.New()
	for _, sum := range sums {
		h.Write([]byte(sum))
	}
	return hex.EncodeToString(h.Sum(nil))
}
