package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading evaluation records from the registry file.
type Loader struct {
	path string
}

// NewLoader creates a new registry loader.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the registry from its YAML file. The SELECTOR_REGISTRY
// environment variable overrides the configured path; a missing file yields an
// empty registry rather than an error.
func (l *Loader) Load() (*Registry, error) {
	if path := os.Getenv("SELECTOR_REGISTRY"); path != "" {
		l.path = path
	}
	if l.path == "" {
		l.path = "registry.yaml"
	}

	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return &Registry{Records: []Record{}}, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", l.path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses a registry from YAML data.
func LoadFromBytes(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry YAML: %w", err)
	}
	return &reg, nil
}

// Save writes the registry back to its YAML file.
func (l *Loader) Save(reg *Registry) error {
	path := l.path
	if path == "" {
		path = "registry.yaml"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}
