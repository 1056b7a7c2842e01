package vault

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// vaultSchemaJSON is the JSON Schema for the decrypted vault document.
// Embedded as a constant to avoid filesystem dependencies.
const vaultSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://vaultsmith.dev/schemas/vault.json",
  "type": "object",
  "required": ["schemaVersion", "projects"],
  "properties": {
    "schemaVersion": {
      "type": "integer",
      "minimum": 1
    },
    "projects": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/project" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "project": {
      "type": "object",
      "required": ["name", "secrets"],
      "properties": {
        "name": {
          "type": "string",
          "minLength": 1
        },
        "description": { "type": "string" },
        "secrets": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/secret" }
        }
      },
      "additionalProperties": false
    },
    "secret": {
      "type": "object",
      "required": ["key", "value", "category", "source"],
      "properties": {
        "key": {
          "type": "string",
          "pattern": "^[A-Z_][A-Z0-9_]*$"
        },
        "value": {
          "type": "string",
          "minLength": 1
        },
        "category": {
          "type": "string",
          "enum": ["api_key", "password", "token", "jwt_secret", "database",
                   "cache", "auth", "webhook", "service_url", "configuration",
                   "unknown"]
        },
        "source": {
          "type": "string",
          "enum": ["manual", "auto_import"]
        },
        "tags": {
          "type": "array",
          "items": { "type": "string" }
        },
        "metadata": {
          "type": "object",
          "properties": {
            "rotationIntervalDays": { "type": "integer", "minimum": 1 }
          }
        },
        "created": { "type": "string" },
        "lastUpdated": { "type": "string" }
      },
      "additionalProperties": false
    }
  }
}`

// documentValidator validates a decrypted vault document against the embedded
// JSON Schema. It is safe for concurrent use.
type documentValidator struct {
	compiled *jsonschema.Schema
}

func newDocumentValidator() (*documentValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(vaultSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal vault schema: %w", err)
	}
	if err := c.AddResource("https://vaultsmith.dev/schemas/vault.json", doc); err != nil {
		return nil, fmt.Errorf("add vault schema resource: %w", err)
	}
	compiled, err := c.Compile("https://vaultsmith.dev/schemas/vault.json")
	if err != nil {
		return nil, fmt.Errorf("compile vault schema: %w", err)
	}
	return &documentValidator{compiled: compiled}, nil
}

// validate checks the document structure, then the invariants JSON Schema
// cannot express (key/name uniqueness, timestamp ordering).
func (v *documentValidator) validate(vault *schema.Vault) error {
	doc, err := toJSONValue(vault)
	if err != nil {
		return schema.NewError(schema.ErrCodeVaultCorrupt, "failed to serialize vault document").WithCause(err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return toPipelineError(err)
	}
	return vault.Validate()
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toPipelineError converts a jsonschema.ValidationError into a PipelineError
// with clear messages identifying the offending document location.
func toPipelineError(err error) *schema.PipelineError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeVaultCorrupt, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeVaultCorrupt, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeVaultCorrupt, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	msg := fmt.Sprintf("vault document failed validation with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeVaultCorrupt, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
