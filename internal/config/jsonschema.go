package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var documentSchema string

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

// loadSchema compiles the embedded document schema once.
func loadSchema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", strings.NewReader(documentSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("invalid schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("schema.json")
		if compiledSchemaErr != nil {
			compiledSchemaErr = fmt.Errorf("invalid schema: %w", compiledSchemaErr)
		}
	})
	return compiledSchema, compiledSchemaErr
}

// ValidateDocument checks the structure of a partial configuration document:
// value types of every known field and the shape of range_complexity.
// Unknown keys are tolerated.
//
// The document must be JSON-shaped (as produced by encoding/json). Returns
// nil if valid, or a *ValidationErrors with one entry per violation.
func ValidateDocument(doc map[string]interface{}) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	errs := &ValidationErrors{}
	collectSchemaErrors(validationErr, errs)
	if !errs.HasErrors() {
		errs.Add("", validationErr.Message)
	}
	return errs
}

// collectSchemaErrors flattens the leaf causes of a schema validation error.
func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		if err.Message != "" {
			errs.Add(pointerToField(err.InstanceLocation), err.Message)
		}
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}

// pointerToField turns a JSON pointer such as "/cpu_stress/range_complexity/0"
// into "cpu_stress.range_complexity[0]".
func pointerToField(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}

	var sb strings.Builder
	for i, part := range strings.Split(pointer, "/") {
		if isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
