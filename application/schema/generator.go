// Package schema generates JSON schemas for the declarative configuration
// surface, so rule files can be validated in editors and CI before the
// daemon ever sees them.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/breakglass-dev/breakglass/application/config"
)

// Generate creates a JSON Schema (Draft 2020-12) from a Go struct.
func Generate(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	s := reflector.Reflect(v)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// RuleFileSchema returns the schema of the declarative rule file.
func RuleFileSchema() ([]byte, error) {
	return Generate(&config.RuleFile{})
}
