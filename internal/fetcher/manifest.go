package fetcher

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Source is one corpus source listed in the manifest.
type Source struct {
	// Name is the subdirectory (or file stem) the source lands under.
	Name string `yaml:"name"`
	// URL is an http(s) or ftp location.
	URL string `yaml:"url"`
	// Format is "text" for a single document or "zip" for an archive to
	// expand. Defaults to "text".
	Format string `yaml:"format"`
}

// Manifest is the corpus source list, usually sources.yaml.
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrapf(err, "manifest: parse %s", path)
	}

	if len(m.Sources) == 0 {
		return nil, eris.Errorf("manifest: no sources in %s", path)
	}
	seen := make(map[string]bool, len(m.Sources))
	for i := range m.Sources {
		s := &m.Sources[i]
		if s.Name == "" {
			return nil, eris.Errorf("manifest: source %d has no name", i)
		}
		if s.URL == "" {
			return nil, eris.Errorf("manifest: source %q has no url", s.Name)
		}
		if seen[s.Name] {
			return nil, eris.Errorf("manifest: duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		switch s.Format {
		case "":
			s.Format = "text"
		case "text", "zip":
		default:
			return nil, eris.Errorf("manifest: source %q has unknown format %q", s.Name, s.Format)
		}
	}
	return &m, nil
}
