// Package catalog loads the node type catalog that clients use to build decks
// and routines.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the public app configuration.
type Catalog struct {
	NodeTypes         []string          `yaml:"node_types" json:"node_types"`
	NodeInfo          map[string]string `yaml:"node_info" json:"node_info"`
	DefaultNodeConfig map[string]any    `yaml:"default_node_config" json:"default_node_config"`
	Version           string            `yaml:"version" json:"version"`
}

// Default returns the embedded catalog.
func Default() (Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog from path, or returns the embedded one when path is
// empty.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	if c.NodeInfo == nil {
		c.NodeInfo = map[string]string{}
	}
	if c.DefaultNodeConfig == nil {
		c.DefaultNodeConfig = map[string]any{}
	}
	return c, nil
}

// Validate checks the catalog shape clients rely on.
func (c Catalog) Validate() error {
	if len(c.NodeTypes) == 0 {
		return errors.New("node_types must be a non-empty list of strings")
	}
	known := make(map[string]struct{}, len(c.NodeTypes))
	for _, name := range c.NodeTypes {
		if strings.TrimSpace(name) == "" {
			return errors.New("node_types must not contain empty names")
		}
		known[name] = struct{}{}
	}
	for name := range c.NodeInfo {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("node_info refers to unknown node type %q", name)
		}
	}
	for name, cfg := range c.DefaultNodeConfig {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("default_node_config refers to unknown node type %q", name)
		}
		if _, ok := cfg.(map[string]any); !ok {
			return fmt.Errorf("default_node_config for %q must be a mapping", name)
		}
	}
	if strings.TrimSpace(c.Version) == "" {
		return errors.New("version must be a non-empty string")
	}
	return nil
}
