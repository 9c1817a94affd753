package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Default values of the original loader.
const (
	DefaultComplexity          = 100
	DefaultThreadPoolSize      = 1
	DefaultTrials              = 1
	DefaultMemorySize          = 10000
	DefaultMemoryIO            = 1000
	DefaultTmpFileName         = "mubtestfile.txt"
	DefaultDiskWriteBlockCount = 1000
	DefaultDiskWriteBlockSize  = 1024
	DefaultMeanResponseSize    = 11
)

// Defaults returns the default configuration. All stress units are disabled.
func Defaults() *Config {
	return &Config{
		CPUStress: CPUStress{
			RangeComplexity: [2]int{DefaultComplexity, DefaultComplexity},
			ThreadPoolSize:  DefaultThreadPoolSize,
			Trials:          DefaultTrials,
		},
		MemoryStress: MemoryStress{
			MemorySize: DefaultMemorySize,
			MemoryIO:   DefaultMemoryIO,
		},
		DiskStress: DiskStress{
			TmpFileName:         DefaultTmpFileName,
			DiskWriteBlockCount: DefaultDiskWriteBlockCount,
			DiskWriteBlockSize:  DefaultDiskWriteBlockSize,
		},
		MeanResponseSize: DefaultMeanResponseSize,
	}
}

// DefaultDocument returns the defaults as a generic document, the shape
// partial configurations are merged over.
func DefaultDocument() map[string]interface{} {
	doc, err := Defaults().Document()
	if err != nil {
		// Defaults are plain data and always encode.
		panic(err)
	}
	return doc
}

// Document renders the configuration as a generic JSON-shaped document.
func (c *Config) Document() (map[string]interface{}, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config document: %w", err)
	}
	return doc, nil
}

// Merge deep-merges override over base and returns a new document.
//
// Nested objects are merged key by key. Any other value in override,
// arrays included, replaces the value in base. Nil values in override are
// treated as absent. Neither input is modified.
func Merge(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = clone(v)
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		overrideMap, ok := v.(map[string]interface{})
		if !ok {
			result[k] = clone(v)
			continue
		}
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			result[k] = Merge(baseMap, overrideMap)
		} else {
			result[k] = clone(overrideMap)
		}
	}

	return result
}

// clone copies maps and slices so merged documents never share state with
// their inputs.
func clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = clone(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = clone(val)
		}
		return s
	default:
		return v
	}
}

// normalize converts a document to the representation encoding/json
// produces, turning YAML integers and typed slices into float64 and
// []interface{}.
func normalize(doc map[string]interface{}) (map[string]interface{}, error) {
	if doc == nil {
		return map[string]interface{}{}, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config document is not JSON-compatible: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config document is not JSON-compatible: %w", err)
	}
	return out, nil
}

// Resolve turns a partial configuration document into an effective Config.
//
// The steps are:
//  1. Validate the document structure against the embedded JSON Schema
//  2. Deep-merge it over the defaults
//  3. Apply the legacy mean_bandwidth alias
//  4. Decode and validate the result
func Resolve(input map[string]interface{}) (*Config, error) {
	doc, err := normalize(input)
	if err != nil {
		return nil, err
	}

	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	merged := Merge(DefaultDocument(), doc)
	if v, ok := merged[KeyMeanBandwidth]; ok {
		merged[KeyMeanResponseSize] = v
		delete(merged, KeyMeanBandwidth)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			errs := &ValidationErrors{}
			errs.Add(typeErr.Field, fmt.Sprintf("%s value %s does not fit %s", typeErr.Field, typeErr.Value, typeErr.Type))
			return nil, errs
		}
		return nil, fmt.Errorf("failed to decode merged config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
