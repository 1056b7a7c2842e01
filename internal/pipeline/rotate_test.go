package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsmith/vaultsmith/internal/notify"
	"github.com/vaultsmith/vaultsmith/internal/rotate"
	"github.com/vaultsmith/vaultsmith/internal/vault"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// fakeNotifier records invocations and optionally fails.
type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context) (*notify.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &notify.Result{ExitCode: 0}, nil
}

// seedVault saves a vault with one secret last updated the given days ago.
func seedVault(t *testing.T, store *vault.Store, cat schema.SecretCategory, ageDays int) {
	t.Helper()
	updated := time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour)
	v := &schema.Vault{
		SchemaVersion: schema.CurrentSchemaVersion,
		Projects: []schema.Project{{
			Name: "auth",
			Secrets: []schema.Secret{{
				Key:         "JWT_SECRET",
				Value:       "old-value",
				Category:    cat,
				Source:      schema.SourceManual,
				Created:     updated,
				LastUpdated: updated,
			}},
		}},
	}
	require.NoError(t, store.Save(context.Background(), v))
}

func TestRotator_RotatesAndNotifies(t *testing.T) {
	store := testVaultStore(t)
	seedVault(t, store, schema.CategoryJwtSecret, 8) // 7-day policy: due

	notifier := &fakeNotifier{}
	rotator := NewRotator(store, rotate.NewEngine(nil, store, nil), notifier, nil, nil)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Rotated)
	assert.Equal(t, 0, summary.Failed)
	assert.True(t, summary.Saved)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "ok", summary.NotifierStatus)

	v, err := store.Load(context.Background())
	require.NoError(t, err)
	sec := store.FindSecret(v, "auth", "JWT_SECRET")
	require.NotNil(t, sec)
	assert.NotEqual(t, "old-value", sec.Value)
	assert.Len(t, sec.Value, 64)
	assert.True(t, sec.HasTag(schema.TagAutoRotated))
}

func TestRotator_NothingDue(t *testing.T) {
	store := testVaultStore(t)
	seedVault(t, store, schema.CategoryJwtSecret, 2) // 7-day policy: not due

	notifier := &fakeNotifier{}
	rotator := NewRotator(store, rotate.NewEngine(nil, store, nil), notifier, nil, nil)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err, "a pass with nothing due is a successful run")
	assert.Empty(t, summary.Results)
	assert.False(t, summary.Saved)
	assert.Equal(t, 0, notifier.calls, "no save, no notification")
	assert.Equal(t, "skipped", summary.NotifierStatus)
}

func TestRotator_MissingVaultFails(t *testing.T) {
	store := testVaultStore(t)
	rotator := NewRotator(store, rotate.NewEngine(nil, store, nil), nil, nil, nil)

	_, err := rotator.Run(context.Background())
	require.Error(t, err)
	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeNotFound, perr.Code)
}

func TestRotator_NotifierFailureIsRunFailure(t *testing.T) {
	store := testVaultStore(t)
	seedVault(t, store, schema.CategoryJwtSecret, 8)

	notifier := &fakeNotifier{err: errors.New("regen broke")}
	rotator := NewRotator(store, rotate.NewEngine(nil, store, nil), notifier, nil, nil)

	summary, err := rotator.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed", summary.NotifierStatus)

	// The rotation itself persisted despite the notifier failure.
	assert.True(t, summary.Saved)
	v, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	sec := store.FindSecret(v, "auth", "JWT_SECRET")
	require.NotNil(t, sec)
	assert.NotEqual(t, "old-value", sec.Value)
}

func TestRotator_FailedOnlyResultsDoNotSave(t *testing.T) {
	store := testVaultStore(t)

	// Due via metadata override, but no generator exists for the category.
	updated := time.Now().UTC().Add(-40 * 24 * time.Hour)
	v := &schema.Vault{
		SchemaVersion: schema.CurrentSchemaVersion,
		Projects: []schema.Project{{
			Name: "db",
			Secrets: []schema.Secret{{
				Key:         "DATABASE_URL",
				Value:       "postgres://prod",
				Category:    schema.CategoryDatabase,
				Source:      schema.SourceManual,
				Metadata:    map[string]any{schema.MetadataRotationInterval: 30},
				Created:     updated,
				LastUpdated: updated,
			}},
		}},
	}
	require.NoError(t, store.Save(context.Background(), v))

	notifier := &fakeNotifier{}
	rotator := NewRotator(store, rotate.NewEngine(nil, store, nil), notifier, nil, nil)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Rotated)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Saved)
	assert.Equal(t, 0, notifier.calls)
}
