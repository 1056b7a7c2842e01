package scan

import (
	"context"
	"encoding/json"
	"os"

	"github.com/itchyny/gojq"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// WriteReport writes the scan report artifact as indented JSON. When query
// is non-empty it is compiled as a jq expression and applied to the report
// document first, so consumers can reshape the artifact at scan time.
func WriteReport(ctx context.Context, report *schema.ScanReport, path, query string) error {
	var doc any = report
	if query != "" {
		transformed, err := applyQuery(ctx, report, query)
		if err != nil {
			return err
		}
		doc = transformed
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "marshal scan report: %s", err.Error()).WithCause(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write scan report %s: %s", path, err.Error()).WithCause(err)
	}
	return nil
}

// applyQuery runs a jq expression against the JSON form of the report.
// jq expressions can produce multiple outputs: one output is returned
// directly, several are collected into a slice.
func applyQuery(ctx context.Context, report *schema.ScanReport, query string) (any, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "jq parse error in %q: %s", query, err.Error()).WithCause(err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "jq compile error in %q: %s", query, err.Error()).WithCause(err)
	}

	// Round-trip through JSON so gojq sees plain maps and slices.
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "marshal scan report: %s", err.Error()).WithCause(err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode scan report: %s", err.Error()).WithCause(err)
	}

	iter := code.RunWithContext(ctx, input)
	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if evalErr, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"jq evaluation failed for %q: %s", query, evalErr.Error()).WithCause(evalErr)
		}
		results = append(results, val)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
