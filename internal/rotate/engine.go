package rotate

import (
	"context"
	"log/slog"
	"time"

	"github.com/vaultsmith/vaultsmith/internal/logging"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// errNoStrategy is the per-secret failure message for unrotatable categories.
const errNoStrategy = "no rotation strategy for category"

// VaultMutator is the slice of the vault store the engine needs to merge
// rotated values back. Satisfied by *vault.Store.
type VaultMutator interface {
	UpsertSecret(v *schema.Vault, projectName string, sec schema.Secret) error
}

// Engine decides which secrets are due for rotation, generates replacement
// material per category, and merges successes back through the vault store's
// mutation API. Each secret's rotation is independent: one failure never
// blocks or rolls back another.
type Engine struct {
	policy Policy
	store  VaultMutator
	logger *slog.Logger
	now    func() time.Time // injectable clock for tests
}

// NewEngine creates a rotation engine. A nil policy gets DefaultPolicy.
func NewEngine(policy Policy, store VaultMutator, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{policy: policy, store: store, logger: logger, now: time.Now}
}

// RotateDueSecrets walks every secret in the vault. Per secret the state
// machine is Unchecked -> Skipped (not due, no result) or Rotating ->
// RotatedOK | RotationFailed. Results are returned for every due secret;
// successes are already merged into the vault, which the caller saves once
// if len(successes) > 0.
func (e *Engine) RotateDueSecrets(ctx context.Context, v *schema.Vault) []schema.RotationResult {
	var results []schema.RotationResult
	now := e.now().UTC()

	for pi := range v.Projects {
		project := &v.Projects[pi]
		pctx := logging.WithProject(ctx, project.Name)

		for si := range project.Secrets {
			sec := &project.Secrets[si]
			if !e.policy.Due(sec, now) {
				continue
			}
			results = append(results, e.rotateOne(pctx, v, project.Name, sec, now))
		}
	}
	return results
}

// rotateOne attempts a single secret's rotation.
func (e *Engine) rotateOne(ctx context.Context, v *schema.Vault, projectName string, sec *schema.Secret, now time.Time) schema.RotationResult {
	result := schema.RotationResult{
		ProjectName: projectName,
		SecretKey:   sec.Key,
		RotatedAt:   now,
	}

	gen, ok := GeneratorFor(sec.Category)
	if !ok {
		result.Err = errNoStrategy
		logging.LogWith(ctx, e.logger).Warn("rotation failed",
			slog.String("key", sec.Key),
			slog.String("category", string(sec.Category)),
			slog.String("error", result.Err))
		return result
	}

	newValue, err := gen()
	if err != nil {
		result.Err = err.Error()
		logging.LogWith(ctx, e.logger).Error("rotation generation failed",
			slog.String("key", sec.Key),
			slog.String("error", result.Err))
		return result
	}

	rotated := *sec
	rotated.Value = newValue
	rotated.AddTag(schema.TagAutoRotated)
	if err := e.store.UpsertSecret(v, projectName, rotated); err != nil {
		result.Err = err.Error()
		return result
	}

	result.Success = true
	result.NewValue = newValue
	logging.LogWith(ctx, e.logger).Info("secret rotated",
		slog.String("key", sec.Key),
		slog.String("category", string(sec.Category)),
		slog.String("value", schema.Redact(newValue)))
	return result
}

// Succeeded counts successful results.
func Succeeded(results []schema.RotationResult) int {
	n := 0
	for i := range results {
		if results[i].Success {
			n++
		}
	}
	return n
}
