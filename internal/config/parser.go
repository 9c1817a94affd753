package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDocument loads a partial configuration document from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// Returns the parsed document or an error if parsing fails.
func LoadDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseDocument(data, path)
}

// ParseDocument parses a partial configuration document.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension. Empty input yields an
// empty document.
func ParseDocument(data []byte, path string) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		// Try YAML by default
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// ParseSet parses a single "path.to.field=value" override into a nested
// document. The value is decoded as a YAML scalar or flow collection, so
// "true", "4" and "[10, 20]" become a bool, an int and a list.
func ParseSet(expr string) (map[string]interface{}, error) {
	key, raw, ok := strings.Cut(expr, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("invalid override %q: expected path=value", expr)
	}

	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("invalid override value for %s: %w", key, err)
	}
	if value == nil {
		value = raw
	}

	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid override path %q", key)
		}
	}

	doc := map[string]interface{}{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		doc = map[string]interface{}{parts[i]: doc}
	}
	return doc, nil
}

// ApplySets deep-merges a list of overrides over doc.
func ApplySets(doc map[string]interface{}, sets []string) (map[string]interface{}, error) {
	result := Merge(map[string]interface{}{}, doc)
	for _, expr := range sets {
		override, err := ParseSet(expr)
		if err != nil {
			return nil, err
		}
		result = Merge(result, override)
	}
	return result, nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
