package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
sources:
  - name: herodotus
    url: https://example.org/herodotus.txt
  - name: gibbon
    url: https://example.org/gibbon.zip
    format: zip
  - name: tacitus
    url: ftp://mirror.example.org/pub/tacitus.txt
    format: text
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Sources, 3)

	assert.Equal(t, "herodotus", m.Sources[0].Name)
	assert.Equal(t, "text", m.Sources[0].Format)
	assert.Equal(t, "zip", m.Sources[1].Format)
	assert.Equal(t, "ftp://mirror.example.org/pub/tacitus.txt", m.Sources[2].URL)
}

func TestLoadManifestRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":           `sources: []`,
		"missing name":    "sources:\n  - url: https://example.org/a.txt",
		"missing url":     "sources:\n  - name: a",
		"duplicate name":  "sources:\n  - name: a\n    url: https://x/1\n  - name: a\n    url: https://x/2",
		"unknown format":  "sources:\n  - name: a\n    url: https://x/1\n    format: tarball",
		"not yaml at all": `{{{{`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
