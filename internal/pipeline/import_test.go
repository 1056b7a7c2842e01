package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsmith/vaultsmith/internal/scan"
	"github.com/vaultsmith/vaultsmith/internal/vault"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

func testMasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func testVaultStore(t *testing.T) *vault.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.enc")
	s, err := vault.NewStore(path, vault.CryptoConfig{MasterKey: testMasterKey()}, nil)
	require.NoError(t, err)
	return s
}

// scanFixture builds a base dir with one High-confidence project ("billing",
// two secret-bearing files) and one Medium project ("web", single env file).
func scanFixture(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	billing := filepath.Join(base, "billing")
	require.NoError(t, os.MkdirAll(billing, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(billing, ".env"),
		[]byte("STRIPE_API_KEY=sk-live4eC39HqLyjWDarjtT1zdp7dc\nDB_PASSWORD=hunter22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(billing, "secrets.env"),
		[]byte("JWT_SECRET=a3f5b2c8d9e0f1a2b3c4d5e6f7a8b9c0\n"), 0o644))

	web := filepath.Join(base, "web")
	require.NoError(t, os.MkdirAll(web, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(web, ".env"),
		[]byte("ANALYTICS_TOKEN=abc123def\n"), 0o644))
	return base
}

func TestImporter_ReportOnly(t *testing.T) {
	base := scanFixture(t)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: base}, nil), nil, nil)
	summary, err := imp.Run(context.Background(), ImportOptions{ReportPath: reportPath})
	require.NoError(t, err)

	assert.FileExists(t, reportPath)
	assert.Equal(t, 2, summary.Report.ProjectsWithSecrets)
	assert.Equal(t, 0, summary.ImportedSecrets, "no import without the flag")
}

func TestImporter_AutoImportHighOnly(t *testing.T) {
	base := scanFixture(t)
	store := testVaultStore(t)

	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: base}, nil), store, nil)
	summary, err := imp.Run(context.Background(), ImportOptions{
		ReportPath: filepath.Join(t.TempDir(), "report.json"),
		Import:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ImportedProjects, "only the High-tier project imports")
	assert.Equal(t, 3, summary.ImportedSecrets)

	v, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Projects, 1)
	assert.Equal(t, "billing", v.Projects[0].Name)
	assert.Nil(t, v.FindProject("web"), "Medium-tier projects never auto-import")

	sec := store.FindSecret(v, "billing", "STRIPE_API_KEY")
	require.NotNil(t, sec)
	assert.Equal(t, "sk-live4eC39HqLyjWDarjtT1zdp7dc", sec.Value)
	assert.Equal(t, schema.CategoryApiKey, sec.Category)
	assert.Equal(t, schema.SourceAutoImport, sec.Source)
	assert.True(t, sec.HasTag(schema.TagAutoImported))
	assert.True(t, sec.HasTag(string(schema.CategoryApiKey)))
	assert.False(t, sec.Created.IsZero())
}

func TestImporter_SingleEnvStrongKeyImports(t *testing.T) {
	// A project with a single .env whose only pair is a near-certain
	// provider credential is High tier and auto-imports unattended.
	base := t.TempDir()
	dir := filepath.Join(base, "billing")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("STRIPE_API_KEY=sk-live4eC39HqLyjWDarjtT1zdp7dcXYZ99\n"), 0o644))

	store := testVaultStore(t)
	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: base}, nil), store, nil)
	summary, err := imp.Run(context.Background(), ImportOptions{Import: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ImportedSecrets)

	v, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store.FindSecret(v, "billing", "STRIPE_API_KEY"))
}

func TestImporter_FilterNarrowsImport(t *testing.T) {
	base := scanFixture(t)
	store := testVaultStore(t)

	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: base}, nil), store, nil)
	summary, err := imp.Run(context.Background(), ImportOptions{
		Import:     true,
		FilterExpr: `name != "billing"`,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ImportedSecrets)
	assert.False(t, store.Exists(), "nothing imported, nothing saved")
}

func TestImporter_Rescan_Idempotent(t *testing.T) {
	base := scanFixture(t)
	store := testVaultStore(t)
	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: base}, nil), store, nil)
	opts := ImportOptions{Import: true}

	first, err := imp.Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := imp.Run(context.Background(), opts)
	require.NoError(t, err)

	// Re-import upserts by key: secret count stays stable.
	assert.Equal(t, first.ImportedSecrets, second.ImportedSecrets)
	v, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v.SecretCount())
}

func TestImporter_ImportWithoutStore(t *testing.T) {
	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: scanFixture(t)}, nil), nil, nil)
	_, err := imp.Run(context.Background(), ImportOptions{Import: true})
	require.Error(t, err)
	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}

func TestImporter_BadFilterFailsBeforeScan(t *testing.T) {
	imp := NewImporter(scan.NewScanner(scan.Options{BaseDir: t.TempDir()}, nil), nil, nil)
	_, err := imp.Run(context.Background(), ImportOptions{FilterExpr: "secrets >="})
	require.Error(t, err)
}
