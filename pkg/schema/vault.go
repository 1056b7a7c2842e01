package schema

import (
	"fmt"
	"regexp"
	"time"
)

// CurrentSchemaVersion is the vault document version written by this build.
// Bump together with a migration step in internal/vault.
const CurrentSchemaVersion = 1

// SecretCategory classifies what kind of credential a secret is. It drives
// both confidence reporting and rotation strategy selection.
type SecretCategory string

const (
	CategoryApiKey        SecretCategory = "api_key"
	CategoryPassword      SecretCategory = "password"
	CategoryToken         SecretCategory = "token"
	CategoryJwtSecret     SecretCategory = "jwt_secret"
	CategoryDatabase      SecretCategory = "database"
	CategoryCache         SecretCategory = "cache"
	CategoryAuth          SecretCategory = "auth"
	CategoryWebhook       SecretCategory = "webhook"
	CategoryServiceUrl    SecretCategory = "service_url"
	CategoryConfiguration SecretCategory = "configuration"
	CategoryUnknown       SecretCategory = "unknown"
)

// Categories lists every valid category, in declaration order.
var Categories = []SecretCategory{
	CategoryApiKey, CategoryPassword, CategoryToken, CategoryJwtSecret,
	CategoryDatabase, CategoryCache, CategoryAuth, CategoryWebhook,
	CategoryServiceUrl, CategoryConfiguration, CategoryUnknown,
}

// Valid reports whether c is a known category.
func (c SecretCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// SecretSource records how a secret entered the vault.
type SecretSource string

const (
	SourceManual     SecretSource = "manual"
	SourceAutoImport SecretSource = "auto_import"
)

// Well-known provenance tags.
const (
	TagAutoImported = "auto_imported"
	TagAutoRotated  = "auto_rotated"
)

// MetadataRotationInterval is the recognized metadata key overriding the
// policy default rotation interval, in days.
const MetadataRotationInterval = "rotationIntervalDays"

// KeyPattern is the grammar for secret keys: uppercase env-style identifiers.
var KeyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Secret is one credential/config value with its metadata. Value is
// sensitive material and must never be logged in full.
type Secret struct {
	Key         string         `yaml:"key" json:"key"`
	Value       string         `yaml:"value" json:"value"`
	Category    SecretCategory `yaml:"category" json:"category"`
	Source      SecretSource   `yaml:"source" json:"source"`
	Tags        []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Created     time.Time      `yaml:"created" json:"created"`
	LastUpdated time.Time      `yaml:"lastUpdated" json:"lastUpdated"`
}

// RotationIntervalDays returns the per-secret rotation override, if set.
func (s *Secret) RotationIntervalDays() (int, bool) {
	if s.Metadata == nil {
		return 0, false
	}
	switch v := s.Metadata[MetadataRotationInterval].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// HasTag reports whether the secret carries the given tag.
func (s *Secret) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag if not already present.
func (s *Secret) AddTag(tag string) {
	if !s.HasTag(tag) {
		s.Tags = append(s.Tags, tag)
	}
}

// Validate checks the per-secret invariants.
func (s *Secret) Validate() error {
	if !KeyPattern.MatchString(s.Key) {
		return NewErrorf(ErrCodeValidation, "invalid secret key %q", s.Key)
	}
	if s.Value == "" {
		return NewErrorf(ErrCodeValidation, "secret %s has empty value", s.Key)
	}
	if !s.Category.Valid() {
		return NewErrorf(ErrCodeValidation, "secret %s has unknown category %q", s.Key, s.Category)
	}
	if s.Source != SourceManual && s.Source != SourceAutoImport {
		return NewErrorf(ErrCodeValidation, "secret %s has unknown source %q", s.Key, s.Source)
	}
	if !s.Created.IsZero() && !s.LastUpdated.IsZero() && s.LastUpdated.Before(s.Created) {
		return NewErrorf(ErrCodeValidation, "secret %s lastUpdated precedes created", s.Key)
	}
	return nil
}

// Project groups the secrets belonging to one external project. Secrets keep
// insertion order for diff-friendly serialization.
type Project struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Secrets     []Secret `yaml:"secrets" json:"secrets"`
}

// FindSecret returns the secret with the given key, or nil.
func (p *Project) FindSecret(key string) *Secret {
	for i := range p.Secrets {
		if p.Secrets[i].Key == key {
			return &p.Secrets[i]
		}
	}
	return nil
}

// Validate checks project invariants, including key uniqueness.
func (p *Project) Validate() error {
	if p.Name == "" {
		return NewError(ErrCodeValidation, "project name is empty")
	}
	seen := make(map[string]struct{}, len(p.Secrets))
	for i := range p.Secrets {
		s := &p.Secrets[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Key]; dup {
			return NewErrorf(ErrCodeValidation, "duplicate secret key %q", s.Key).WithProject(p.Name)
		}
		seen[s.Key] = struct{}{}
	}
	return nil
}

// Vault is the decrypted form of the single per-environment document holding
// all projects and their secrets. The vault store in internal/vault owns all
// mutation; everything else treats a Vault value as read-only.
type Vault struct {
	SchemaVersion int       `yaml:"schemaVersion" json:"schemaVersion"`
	Projects      []Project `yaml:"projects" json:"projects"`
}

// FindProject returns the project with the given name, or nil.
func (v *Vault) FindProject(name string) *Project {
	for i := range v.Projects {
		if v.Projects[i].Name == name {
			return &v.Projects[i]
		}
	}
	return nil
}

// SecretCount returns the total number of secrets across all projects.
func (v *Vault) SecretCount() int {
	n := 0
	for i := range v.Projects {
		n += len(v.Projects[i].Secrets)
	}
	return n
}

// Validate checks vault-wide invariants: project name uniqueness and every
// nested project/secret invariant.
func (v *Vault) Validate() error {
	seen := make(map[string]struct{}, len(v.Projects))
	for i := range v.Projects {
		p := &v.Projects[i]
		if _, dup := seen[p.Name]; dup {
			return NewErrorf(ErrCodeValidation, "duplicate project name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Redact returns a loggable form of a secret value: at most the first four
// characters plus the total length.
func Redact(value string) string {
	if len(value) <= 4 {
		return fmt.Sprintf("**** (len %d)", len(value))
	}
	return fmt.Sprintf("%s**** (len %d)", value[:4], len(value))
}
