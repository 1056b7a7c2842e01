package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaultsmith/vaultsmith/internal/audit"
	"github.com/vaultsmith/vaultsmith/internal/logging"
	"github.com/vaultsmith/vaultsmith/internal/notify"
	"github.com/vaultsmith/vaultsmith/internal/rotate"
	"github.com/vaultsmith/vaultsmith/internal/vault"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// RotateSummary reports what one rotation run did.
type RotateSummary struct {
	RunID          string
	Results        []schema.RotationResult
	Rotated        int
	Failed         int
	Saved          bool
	NotifierStatus string
}

// Rotator is the rotate-and-notify pipeline: load vault, rotate due secrets,
// save once if anything succeeded, record the run, then invoke the notifier.
// A notifier failure is the run's failure, but the vault stays saved.
type Rotator struct {
	store    *vault.Store
	engine   *rotate.Engine
	notifier notify.Notifier // nil = no downstream regeneration configured
	auditLog *audit.Log      // nil = history disabled
	logger   *slog.Logger
}

// NewRotator creates a rotation pipeline.
func NewRotator(store *vault.Store, engine *rotate.Engine, notifier notify.Notifier, auditLog *audit.Log, logger *slog.Logger) *Rotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{store: store, engine: engine, notifier: notifier, auditLog: auditLog, logger: logger}
}

// Run executes one rotation pass. It is safely re-entrant: a crash before
// save loses nothing (the next run recomputes), and a crash during save is
// guarded by the store's atomic rename.
func (r *Rotator) Run(ctx context.Context) (*RotateSummary, error) {
	summary := &RotateSummary{
		RunID:          uuid.NewString(),
		NotifierStatus: audit.NotifierSkipped,
	}
	ctx = logging.WithRunID(ctx, summary.RunID)
	started := time.Now().UTC()

	ctx = logging.WithPhase(ctx, "rotate")
	v, err := r.store.Load(ctx)
	if err != nil {
		r.appendAudit(ctx, summary, started, err)
		return summary, err
	}

	summary.Results = r.engine.RotateDueSecrets(ctx, v)
	summary.Rotated = rotate.Succeeded(summary.Results)
	summary.Failed = len(summary.Results) - summary.Rotated

	logging.LogWith(ctx, r.logger).Info("rotation pass complete",
		slog.Int("due", len(summary.Results)),
		slog.Int("rotated", summary.Rotated),
		slog.Int("failed", summary.Failed))

	if summary.Rotated > 0 {
		if err := r.store.Save(ctx, v); err != nil {
			r.appendAudit(ctx, summary, started, err)
			return summary, err
		}
		summary.Saved = true
	}

	var notifyErr error
	if r.notifier != nil && summary.Saved {
		ctx = logging.WithPhase(ctx, "notify")
		if _, notifyErr = r.notifier.Notify(ctx); notifyErr != nil {
			summary.NotifierStatus = audit.NotifierFailed
			logging.LogWith(ctx, r.logger).Error("notifier failed",
				slog.String("error", notifyErr.Error()))
		} else {
			summary.NotifierStatus = audit.NotifierOK
		}
	}

	r.appendAudit(ctx, summary, started, notifyErr)
	return summary, notifyErr
}

// appendAudit best-effort records the run; audit failures are logged, never
// escalated over the run's own outcome.
func (r *Rotator) appendAudit(ctx context.Context, summary *RotateSummary, started time.Time, runErr error) {
	if r.auditLog == nil {
		return
	}
	run := &audit.RotationRun{
		ID:             summary.RunID,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		VaultPath:      r.store.Path(),
		Rotated:        summary.Rotated,
		Failed:         summary.Failed,
		Checked:        len(summary.Results),
		NotifierStatus: summary.NotifierStatus,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.auditLog.AppendRun(ctx, run); err != nil {
		logging.LogWith(ctx, r.logger).Warn("audit append failed",
			slog.String("error", err.Error()))
	}
}
