package gateways

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJar builds a jar at dir/name holding the given entries
func writeJar(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buildJar(t, entries), 0600))
	return path
}

func buildJar(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestJarInspector_ReadManifest(t *testing.T) {
	dir := t.TempDir()
	inspector := NewJarInspector()

	t.Run("implementation attributes", func(t *testing.T) {
		path := writeJar(t, dir, "spring-2.5.6.jar", map[string][]byte{
			"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\r\n" +
				"Implementation-Title: Spring Framework\r\n" +
				"Implementation-Version: 2.5.6\r\n\r\n"),
			"org/springframework/Foo.class": []byte("cafebabe"),
		})

		title, version, ok, err := inspector.ReadManifest(path)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Spring Framework", title)
		assert.Equal(t, "2.5.6", version)
	})

	t.Run("bundle attributes fallback", func(t *testing.T) {
		path := writeJar(t, dir, "bundle-1.0.jar", map[string][]byte{
			"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n" +
				"Bundle-Name: Some Bundle\n" +
				"Bundle-Version: 1.0.0\n"),
		})

		title, version, ok, err := inspector.ReadManifest(path)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Some Bundle", title)
		assert.Equal(t, "1.0.0", version)
	})

	t.Run("no manifest", func(t *testing.T) {
		path := writeJar(t, dir, "plain.jar", map[string][]byte{
			"a/B.class": []byte("x"),
		})

		_, _, ok, err := inspector.ReadManifest(path)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("not a library", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

		_, _, ok, err := inspector.ReadManifest(path)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("library extension on a non zip file", func(t *testing.T) {
		path := filepath.Join(dir, "renamed-1.0.jar")
		require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0600))

		_, _, ok, err := inspector.ReadManifest(path)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, _, err := inspector.ReadManifest(filepath.Join(dir, "missing.jar"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not open file")
	})
}

func TestParseManifest_ContinuationLines(t *testing.T) {
	manifest := "Manifest-Version: 1.0\n" +
		"Implementation-Title: A very long title that\n" +
		"  wraps\n" +
		"Implementation-Version: 3.1\n" +
		"\n" +
		"Name: section/ignored\n" +
		"Implementation-Version: 9.9\n"

	attrs, err := ParseManifest(strings.NewReader(manifest))
	require.NoError(t, err)
	assert.Equal(t, "A very long title that wraps", attrs["Implementation-Title"])
	assert.Equal(t, "3.1", attrs["Implementation-Version"])
	assert.NotContains(t, attrs, "Name")
}

func TestJarInspector_Fingerprints(t *testing.T) {
	dir := t.TempDir()
	inspector := NewJarInspector()
	ctx := context.Background()

	classes := map[string][]byte{
		"a/A.class":            []byte("class A"),
		"a/B.class":            []byte("class B"),
		"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n"),
	}

	t.Run("one record per archive", func(t *testing.T) {
		path := writeJar(t, dir, "lib-1.0.jar", classes)

		records, err := inspector.Fingerprints(ctx, path)
		require.NoError(t, err)
		require.Len(t, records, 1)

		record := records[0]
		assert.Equal(t, "SHA512", record.Algorithm)
		assert.Equal(t, "lib-1.0.jar", record.Filename)
		assert.Len(t, record.Entries, 2)
		assert.Contains(t, record.Entries, "a/A.class")
		assert.Len(t, record.Hash, 128)
	})

	t.Run("hash ignores archive layout", func(t *testing.T) {
		a := writeJar(t, dir, "first.jar", classes)
		b := writeJar(t, dir, "second.jar", map[string][]byte{
			"a/B.class": []byte("class B"),
			"a/A.class": []byte("class A"),
		})

		ra, err := inspector.Fingerprints(ctx, a)
		require.NoError(t, err)
		rb, err := inspector.Fingerprints(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, ra[0].Hash, rb[0].Hash)
	})

	t.Run("changed class changes hash", func(t *testing.T) {
		a := writeJar(t, dir, "orig.jar", classes)
		b := writeJar(t, dir, "patched.jar", map[string][]byte{
			"a/A.class": []byte("class A patched"),
			"a/B.class": []byte("class B"),
		})

		ra, err := inspector.Fingerprints(ctx, a)
		require.NoError(t, err)
		rb, err := inspector.Fingerprints(ctx, b)
		require.NoError(t, err)
		assert.NotEqual(t, ra[0].Hash, rb[0].Hash)
	})

	t.Run("nested archive", func(t *testing.T) {
		inner := buildJar(t, map[string][]byte{"b/C.class": []byte("class C")})
		path := writeJar(t, dir, "app.war", map[string][]byte{
			"WEB-INF/classes/a/A.class": []byte("class A"),
			"WEB-INF/lib/inner-2.0.jar": inner,
		})

		records, err := inspector.Fingerprints(ctx, path)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "app.war", records[0].Filename)
		assert.Equal(t, "inner-2.0.jar", records[1].Filename)
		assert.Contains(t, records[1].Entries, "b/C.class")
	})

	t.Run("class-less archives hash their resources", func(t *testing.T) {
		a := writeJar(t, dir, "config-a-1.0.jar", map[string][]byte{
			"app.properties": []byte("key=value"),
		})
		b := writeJar(t, dir, "totally-different-9.jar", map[string][]byte{
			"schema.xsd": []byte("<xs:schema/>"),
		})

		ra, err := inspector.Fingerprints(ctx, a)
		require.NoError(t, err)
		rb, err := inspector.Fingerprints(ctx, b)
		require.NoError(t, err)
		require.Len(t, ra, 1)
		require.Len(t, rb, 1)

		emptyHash := combinedHash(map[string]string{})
		assert.NotEqual(t, emptyHash, ra[0].Hash)
		assert.NotEqual(t, emptyHash, rb[0].Hash)
		assert.NotEqual(t, ra[0].Hash, rb[0].Hash)
		assert.Contains(t, ra[0].Entries, "app.properties")
	})

	t.Run("classes take precedence over resources", func(t *testing.T) {
		a := writeJar(t, dir, "with-readme.jar", map[string][]byte{
			"a/A.class":  []byte("class A"),
			"README.txt": []byte("one"),
		})
		b := writeJar(t, dir, "other-readme.jar", map[string][]byte{
			"a/A.class":  []byte("class A"),
			"README.txt": []byte("two"),
		})

		ra, err := inspector.Fingerprints(ctx, a)
		require.NoError(t, err)
		rb, err := inspector.Fingerprints(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, ra[0].Hash, rb[0].Hash)
		assert.NotContains(t, ra[0].Entries, "README.txt")
	})

	t.Run("wrapper archive has no record of its own", func(t *testing.T) {
		inner := buildJar(t, map[string][]byte{"b/C.class": []byte("class C")})
		path := writeJar(t, dir, "bundle.zip", map[string][]byte{
			"lib/inner-2.0.jar": inner,
		})

		records, err := inspector.Fingerprints(ctx, path)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "inner-2.0.jar", records[0].Filename)
	})

	t.Run("empty archive has no record", func(t *testing.T) {
		path := writeJar(t, dir, "empty.jar", map[string][]byte{})

		records, err := inspector.Fingerprints(ctx, path)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("library extension on a non zip file", func(t *testing.T) {
		content := []byte("not a zip archive")
		path := filepath.Join(dir, "renamed-1.0.jar")
		require.NoError(t, os.WriteFile(path, content, 0600))

		want, err := NewContentDigester().Digest(path, "sha512")
		require.NoError(t, err)

		records, err := inspector.Fingerprints(ctx, path)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, want, records[0].Hash)
		assert.Empty(t, records[0].Entries)
	})

	t.Run("non library file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.bin")
		require.NoError(t, os.WriteFile(path, nil, 0600))

		records, err := inspector.Fingerprints(ctx, path)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e", records[0].Hash)
		assert.Empty(t, records[0].Entries)
	})
}
