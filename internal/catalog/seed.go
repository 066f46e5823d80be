package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed maps business ids to their services in display order.
type Seed map[string][]Service

// Businesses returns the seeded business ids, sorted.
func (s Seed) Businesses() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DecodeSeed reads a seed document. YAML documents are normalised through
// JSON so the localized field aliases accepted by Service work in both formats.
func DecodeSeed(r io.Reader, format string) (Seed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: read seed: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("catalog: decode yaml seed: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("catalog: normalise yaml seed: %w", err)
		}
	case "json", "":
	default:
		return nil, fmt.Errorf("catalog: unsupported seed format %q", format)
	}

	var doc struct {
		Businesses map[string][]Service `json:"businesses"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode seed: %w", err)
	}
	seed := make(Seed, len(doc.Businesses))
	for id, services := range doc.Businesses {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("catalog: seed has a blank business id")
		}
		for i, svc := range services {
			if strings.TrimSpace(svc.ID) == "" {
				return nil, fmt.Errorf("catalog: business %s service #%d has no id", id, i+1)
			}
		}
		seed[id] = services
	}
	return seed, nil
}

// LoadSeed opens path and decodes it according to its extension.
func LoadSeed(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open seed: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f, strings.TrimPrefix(filepath.Ext(path), "."))
}
