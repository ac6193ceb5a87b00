// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"poultry-review/internal/models"
)

// Application payloads are validated at submit time against a per-kind JSON
// schema. The schemas deliberately allow additional properties: the payload
// carries free-form farm data alongside the fields the pipeline reads.

const registrationSchema = `{
	"type": "object",
	"required": ["farmName", "farmAddress"],
	"properties": {
		"farmName":    {"type": "string", "minLength": 1},
		"farmAddress": {"type": "string", "minLength": 1},
		"birdTypes":   {"type": "array", "items": {"type": "string"}},
		"housingType": {"type": "string"},
		"hasWaterSupply": {"type": "boolean"}
	}
}`

const enrollmentSchema = `{
	"type": "object",
	"required": ["programCode", "farmName"],
	"properties": {
		"programCode": {"type": "string", "minLength": 1},
		"farmName":    {"type": "string", "minLength": 1},
		"batchId":     {"type": "string"},
		"requestedSupport": {"type": "string"}
	}
}`

var schemaByKind = map[models.ApplicationKind]*gojsonschema.Schema{}

func init() {
	for kind, raw := range map[models.ApplicationKind]string{
		models.KindRegistration: registrationSchema,
		models.KindEnrollment:   enrollmentSchema,
	} {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid %s payload schema: %v", kind, err))
		}
		schemaByKind[kind] = schema
	}
}

// ValidatePayload checks an application payload against the schema for its
// kind. Returns a list of field-level problems; empty means valid.
func ValidatePayload(kind models.ApplicationKind, payload map[string]interface{}) ([]string, error) {
	schema, ok := schemaByKind[kind]
	if !ok {
		return nil, fmt.Errorf("unknown application kind: %s", kind)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("payload validation error: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems, nil
}
