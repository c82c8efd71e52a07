package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iwvelando/blend-optimizer/internal/blend"
)

// LoadMix reads a mix file: a YAML mapping of element to mass in kg.
//
//	A: 40
//	B: 30
func LoadMix(path string) (blend.Composition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mix file %s: %w", path, err)
	}
	mix, err := ParseMix(data)
	if err != nil {
		return nil, fmt.Errorf("mix file %s: %w", path, err)
	}
	return mix, nil
}

// ParseMix decodes the contents of a mix file. Anything but a mapping at
// the top level is rejected; element names and masses are checked later by
// blend.Validate.
func ParseMix(data []byte) (blend.Composition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("mix is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("mix must be a mapping of element to kg, line %d", root.Line)
	}

	var raw map[string]float64
	if err := root.Decode(&raw); err != nil {
		return nil, fmt.Errorf("mix values must be numbers: %w", err)
	}

	mix := make(blend.Composition, len(raw))
	for name, mass := range raw {
		mix[blend.Element(name)] = mass
	}
	return mix, nil
}
