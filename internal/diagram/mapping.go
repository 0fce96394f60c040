// Package diagram maps classification labels onto the anatomical
// diagram and lays out markers and call-outs for a render target.
package diagram

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed diagram_mapping.json
var embeddedMapping []byte

// Location is one anatomical site on the diagram. X and Y are
// fractions of the diagram image's intrinsic bounding box, independent
// of pixel size.
type Location struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Group       string  `json:"group"`
	DisplayName string  `json:"display_name"`
}

// Mapping is loaded once per run and read-only thereafter.
type Mapping map[string]Location

func ParseMapping(data []byte) (Mapping, error) {
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse diagram mapping: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("diagram mapping is empty")
	}
	for key, loc := range m {
		if loc.X < 0 || loc.X > 1 || loc.Y < 0 || loc.Y > 1 {
			return nil, fmt.Errorf("diagram mapping %q: coordinates (%g,%g) outside [0,1]", key, loc.X, loc.Y)
		}
	}
	return m, nil
}

// LoadMapping reads the mapping from path, or the embedded default
// when path is empty.
func LoadMapping(path string) (Mapping, error) {
	if path == "" {
		return ParseMapping(embeddedMapping)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read diagram mapping: %w", err)
	}
	return ParseMapping(data)
}
