package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSecret(key string) Secret {
	now := time.Now().UTC()
	return Secret{
		Key:         key,
		Value:       "v",
		Category:    CategoryToken,
		Source:      SourceManual,
		Created:     now,
		LastUpdated: now,
	}
}

func TestSecret_Validate(t *testing.T) {
	s1 := validSecret("API_KEY")
	require.NoError(t, s1.Validate())
	s2 := validSecret("_PRIVATE")
	require.NoError(t, s2.Validate())
}

func TestSecret_Validate_BadKey(t *testing.T) {
	for _, key := range []string{"api_key", "1KEY", "MY-KEY", ""} {
		s := validSecret("GOOD")
		s.Key = key
		err := s.Validate()
		require.Error(t, err, "key %q", key)
		var perr *PipelineError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ErrCodeValidation, perr.Code)
	}
}

func TestSecret_Validate_TimestampOrder(t *testing.T) {
	s := validSecret("KEY")
	s.LastUpdated = s.Created.Add(-time.Hour)
	require.Error(t, s.Validate())
}

func TestSecret_Validate_UnknownCategory(t *testing.T) {
	s := validSecret("KEY")
	s.Category = "banana"
	require.Error(t, s.Validate())
}

func TestSecret_RotationIntervalDays(t *testing.T) {
	s := validSecret("KEY")
	_, ok := s.RotationIntervalDays()
	assert.False(t, ok)

	// YAML and JSON decoding produce different numeric types.
	for _, v := range []any{15, int64(15), float64(15)} {
		s.Metadata = map[string]any{MetadataRotationInterval: v}
		days, ok := s.RotationIntervalDays()
		require.True(t, ok)
		assert.Equal(t, 15, days)
	}
}

func TestSecret_Tags(t *testing.T) {
	s := validSecret("KEY")
	s.AddTag(TagAutoRotated)
	s.AddTag(TagAutoRotated)
	assert.Equal(t, []string{TagAutoRotated}, s.Tags)
	assert.True(t, s.HasTag(TagAutoRotated))
	assert.False(t, s.HasTag(TagAutoImported))
}

func TestProject_Validate_DuplicateKeys(t *testing.T) {
	p := Project{
		Name:    "billing",
		Secrets: []Secret{validSecret("KEY"), validSecret("KEY")},
	}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate secret key")
}

func TestVault_Validate_DuplicateProjects(t *testing.T) {
	v := Vault{
		SchemaVersion: CurrentSchemaVersion,
		Projects:      []Project{{Name: "a"}, {Name: "a"}},
	}
	require.Error(t, v.Validate())
}

func TestVault_FindProject(t *testing.T) {
	v := Vault{Projects: []Project{{Name: "a"}, {Name: "b"}}}
	require.NotNil(t, v.FindProject("b"))
	assert.Nil(t, v.FindProject("c"))
}

func TestVault_SecretCount(t *testing.T) {
	v := Vault{Projects: []Project{
		{Name: "a", Secrets: []Secret{validSecret("X"), validSecret("Y")}},
		{Name: "b", Secrets: []Secret{validSecret("Z")}},
	}}
	assert.Equal(t, 3, v.SecretCount())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "sk-a**** (len 12)", Redact("sk-abc123def"))
	assert.Equal(t, "**** (len 3)", Redact("abc"))
	assert.NotContains(t, Redact("supersecretvalue"), "secretvalue")
}

func TestConfidenceTier_Rank(t *testing.T) {
	assert.Greater(t, ConfidenceHigh.Rank(), ConfidenceMedium.Rank())
	assert.Greater(t, ConfidenceMedium.Rank(), ConfidenceLow.Rank())
}
