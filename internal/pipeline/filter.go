package pipeline

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// CandidateFilter narrows auto-import candidates with a user-supplied expr
// expression evaluated once per project. The environment exposes:
//   - name:       project name
//   - confidence: "high" | "medium" | "low"
//   - secrets:    number of extracted candidates
//   - envFiles:   number of env-like files
//
// Example: `confidence == "high" && secrets >= 2 && name != "sandbox"`.
type CandidateFilter struct {
	expression string
	prg        *vm.Program
}

// NewCandidateFilter compiles the expression. An empty expression returns a
// nil filter, which matches everything.
func NewCandidateFilter(expression string) (*CandidateFilter, error) {
	if expression == "" {
		return nil, nil
	}
	prg, err := expr.Compile(expression,
		expr.Env(filterEnv(schema.ProjectAnalysis{})),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"filter compile error in %q: %s", expression, err.Error()).WithCause(err)
	}
	return &CandidateFilter{expression: expression, prg: prg}, nil
}

// Match evaluates the filter for one project analysis.
func (f *CandidateFilter) Match(analysis schema.ProjectAnalysis) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := vm.Run(f.prg, filterEnv(analysis))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"filter evaluation failed for %q: %s", f.expression, err.Error()).WithCause(err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"filter %q did not evaluate to a boolean", f.expression)
	}
	return matched, nil
}

func filterEnv(a schema.ProjectAnalysis) map[string]any {
	return map[string]any{
		"name":       a.Name,
		"confidence": string(a.Confidence),
		"secrets":    a.EstimatedSecrets,
		"envFiles":   len(a.EnvFiles),
	}
}
