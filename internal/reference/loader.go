package reference

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads versioned tables from a YAML file
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference tables %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML tables, validates and indexes them
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reference tables: %w", err)
	}
	t.index()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadOrDefault loads tables from path, or returns the built-in tables when
// path is empty
func LoadOrDefault(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
