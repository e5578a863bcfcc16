// Package dataset loads exported WatchGraph data (systems and their requirement
// mappings) from disk for offline reporting.
package dataset

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/watchgraph/internal/schema"
	"github.com/dshills/watchgraph/internal/schema/validate"
)

// Dataset is a loaded export with derived metadata.
type Dataset struct {
	Path     string
	Hash     string // "sha256:<hex>" of the raw file
	Systems  []schema.System
	Mappings []schema.Mapping
}

// document is the on-disk shape shared by the JSON and YAML encodings.
type document struct {
	Systems  []schema.System  `json:"systems" yaml:"systems"`
	Mappings []schema.Mapping `json:"mappings" yaml:"mappings"`
}

// Load reads a dataset file, hashes it, decodes it by extension (.json, .yaml,
// .yml) and checks that every system passes boundary validation and every
// mapping belongs to a known system. Mapping statuses are left for the
// compliance package to judge.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset file: %w", err)
	}
	sum := sha256.Sum256(data)

	doc, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := check(doc); err != nil {
		return nil, err
	}

	return &Dataset{
		Path:     path,
		Hash:     fmt.Sprintf("sha256:%x", sum),
		Systems:  doc.Systems,
		Mappings: doc.Mappings,
	}, nil
}

func decode(path string, data []byte) (*document, error) {
	var doc document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing dataset JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing dataset YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset extension %q: use .json, .yaml or .yml", ext)
	}
	return &doc, nil
}

func check(doc *document) error {
	known := make(map[string]bool, len(doc.Systems))
	for i, s := range doc.Systems {
		if s.ID == "" {
			return fmt.Errorf("systems[%d]: id is required", i)
		}
		if known[s.ID] {
			return fmt.Errorf("systems[%d]: duplicate id %q", i, s.ID)
		}
		if err := validate.System(s); err != nil {
			return fmt.Errorf("systems[%d]: %w", i, err)
		}
		known[s.ID] = true
	}
	seen := make(map[string]bool, len(doc.Mappings))
	for i, m := range doc.Mappings {
		if m.MappingID == "" {
			return fmt.Errorf("mappings[%d]: mapping_id is required", i)
		}
		if seen[m.MappingID] {
			return fmt.Errorf("mappings[%d]: duplicate mapping_id %q", i, m.MappingID)
		}
		seen[m.MappingID] = true
		if !known[m.SystemID] {
			return fmt.Errorf("mappings[%d]: system_id %q does not match any system", i, m.SystemID)
		}
	}
	return nil
}

// BySystem groups the mappings by system id. Every system has an entry, even
// when it has no mappings.
func (d *Dataset) BySystem() map[string][]schema.Mapping {
	out := make(map[string][]schema.Mapping, len(d.Systems))
	for _, s := range d.Systems {
		out[s.ID] = nil
	}
	for _, m := range d.Mappings {
		out[m.SystemID] = append(out[m.SystemID], m)
	}
	return out
}
