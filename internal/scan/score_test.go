package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

func TestScore_BaseOnly(t *testing.T) {
	// Short value, neutral key: base confidence only.
	assert.InDelta(t, 0.3, Score("PORT", "8080"), 1e-9)
}

func TestScore_KeySignal(t *testing.T) {
	assert.InDelta(t, 0.6, Score("API_KEY", "short"), 1e-9)
	assert.InDelta(t, 0.6, Score("MY_SECRET", "short"), 1e-9)
	assert.InDelta(t, 0.6, Score("REFRESH_TOKEN", "short"), 1e-9)
}

func TestScore_ProviderPrefix(t *testing.T) {
	// sk- prefix plus a key signal on a short value.
	assert.InDelta(t, 1.0, Score("STRIPE_API_KEY", "sk-live1"), 1e-9)

	score := Score("SOMETHING", "AKIA1234")
	assert.InDelta(t, 0.7, score, 1e-9)
}

func TestScore_StripeKeyIsHighConfidence(t *testing.T) {
	// A realistic provider credential must clear the high-confidence bar.
	assert.GreaterOrEqual(t, Score("STRIPE_API_KEY", "sk-live4eC39HqLyjWDarjtT1zdp7dc"), 0.9)
}

func TestScore_HexValue(t *testing.T) {
	hex := "a3f5b2c8d9e0f1a2b3c4d5e6f7a8b9c0"
	// 32 hex chars: length + base64-charset + hex signals on top of base.
	assert.InDelta(t, 1.0, Score("X", hex), 1e-9)
}

func TestScore_Base64Value(t *testing.T) {
	// 24 chars of base64 alphabet, not hex.
	assert.InDelta(t, 0.7, Score("X", "dGhpcyBpcyBub3QgaGV4Lg=="), 1e-9)
}

func TestScore_ClampedToOne(t *testing.T) {
	assert.LessOrEqual(t, Score("API_SECRET_TOKEN_KEY", "sk-"+"a3f5b2c8d9e0f1a2b3c4d5e6f7a8b9c0"), 1.0)
}

func TestScore_Monotonic(t *testing.T) {
	// Adding a signal never lowers the score.
	weak := Score("VALUE", "short")
	stronger := Score("VALUE_KEY", "short")
	assert.Greater(t, stronger, weak)
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		name string
		sig  projectSignals
		want schema.ConfidenceTier
	}{
		{"two files with secrets", projectSignals{filesWithSecrets: 2}, schema.ConfidenceHigh},
		{"secret-named file", projectSignals{secretNamedFile: true}, schema.ConfidenceHigh},
		{"single near-certain pair", projectSignals{envFiles: 1, filesWithSecrets: 1, strongestPair: 0.95}, schema.ConfidenceHigh},
		{"single weak pair", projectSignals{envFiles: 1, filesWithSecrets: 1, strongestPair: 0.6}, schema.ConfidenceMedium},
		{"single env file", projectSignals{envFiles: 1}, schema.ConfidenceMedium},
		{"two config files", projectSignals{configFiles: 2}, schema.ConfidenceMedium},
		{"one config file", projectSignals{configFiles: 1}, schema.ConfidenceLow},
		{"nothing", projectSignals{}, schema.ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tierFor(tc.sig))
		})
	}
}
