package rotate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

func TestGeneratorFor_Coverage(t *testing.T) {
	for _, cat := range []schema.SecretCategory{
		schema.CategoryApiKey,
		schema.CategoryToken,
		schema.CategoryJwtSecret,
		schema.CategoryPassword,
	} {
		_, ok := GeneratorFor(cat)
		assert.True(t, ok, "category %s", cat)
	}
	for _, cat := range []schema.SecretCategory{
		schema.CategoryDatabase,
		schema.CategoryCache,
		schema.CategoryAuth,
		schema.CategoryWebhook,
		schema.CategoryServiceUrl,
		schema.CategoryConfiguration,
		schema.CategoryUnknown,
	} {
		_, ok := GeneratorFor(cat)
		assert.False(t, ok, "category %s", cat)
	}
}

func TestGenerate_ApiKeyAndToken(t *testing.T) {
	for _, cat := range []schema.SecretCategory{schema.CategoryApiKey, schema.CategoryToken} {
		gen, ok := GeneratorFor(cat)
		require.True(t, ok)
		v, err := gen()
		require.NoError(t, err)
		assert.Len(t, v, 32)
		for _, r := range v {
			assert.Contains(t, alphanumeric, string(r))
		}
	}
}

func TestGenerate_JwtSecret(t *testing.T) {
	gen, ok := GeneratorFor(schema.CategoryJwtSecret)
	require.True(t, ok)
	v, err := gen()
	require.NoError(t, err)
	assert.Len(t, v, 64)
}

func TestGenerate_Password(t *testing.T) {
	gen, ok := GeneratorFor(schema.CategoryPassword)
	require.True(t, ok)

	// Class guarantees must hold on every draw, not just on average.
	for i := 0; i < 50; i++ {
		v, err := gen()
		require.NoError(t, err)
		require.Len(t, v, 16)
		assert.True(t, strings.ContainsAny(v, lowerChars), "password %q lacks lowercase", v)
		assert.True(t, strings.ContainsAny(v, upperChars), "password %q lacks uppercase", v)
		assert.True(t, strings.ContainsAny(v, digitChars), "password %q lacks digit", v)
		assert.True(t, strings.ContainsAny(v, symbolChars), "password %q lacks symbol", v)
	}
}

func TestGenerate_ValuesDiffer(t *testing.T) {
	gen, _ := GeneratorFor(schema.CategoryApiKey)
	a, err := gen()
	require.NoError(t, err)
	b, err := gen()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRandomString_Charset(t *testing.T) {
	v, err := randomString("ab", 100)
	require.NoError(t, err)
	require.Len(t, v, 100)
	assert.Equal(t, "", strings.Trim(v, "ab"))
}
