package manifest

import (
	_ "embed"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

var (
	//go:embed schema/manifest.schema.json
	manifestSchema []byte

	//go:embed schema/expected_failures.schema.json
	expectedFailuresSchema []byte
)

func validateDocument(schemaData, data []byte) error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaData)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
