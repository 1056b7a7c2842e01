package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vaultsmith/vaultsmith/internal/logging"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// magic identifies a vaultsmith-encrypted file. It precedes the sealed
// payload so a wrong-file error is distinguishable from a wrong-key error.
var magic = []byte("VSMITH1\n")

// Store loads, mutates, and saves the encrypted vault file. It is the single
// source of truth for secret data and is NOT safe for concurrent mutation;
// callers serialize mutating calls within one logical run and save once at
// the end.
type Store struct {
	path      string
	box       *box
	validator *documentValidator
	logger    *slog.Logger
}

// NewStore creates a store for the vault file at path.
func NewStore(path string, cfg CryptoConfig, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "vault path is empty")
	}
	b, err := newBox(cfg)
	if err != nil {
		return nil, err
	}
	v, err := newDocumentValidator()
	if err != nil {
		return nil, fmt.Errorf("vault validator: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, box: b, validator: v, logger: logger}, nil
}

// Path returns the vault file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the vault file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Init creates a new empty vault file. It fails if the file already exists.
func (s *Store) Init(ctx context.Context) (*schema.Vault, error) {
	if s.Exists() {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "vault already exists at %s", s.path)
	}
	v := &schema.Vault{SchemaVersion: schema.CurrentSchemaVersion}
	if err := s.Save(ctx, v); err != nil {
		return nil, err
	}
	logging.LogWith(ctx, s.logger).Info("vault initialized", slog.String("path", s.path))
	return v, nil
}

// Load decrypts and parses the vault file, migrating older schema versions
// forward. A decryption or parse failure maps to VAULT_CORRUPT; an
// unsupported schemaVersion maps to VAULT_SCHEMA.
func (s *Store) Load(ctx context.Context) (*schema.Vault, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "vault file not found at %s", s.path).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read vault file: %s", err.Error()).WithCause(err)
	}
	if !bytes.HasPrefix(raw, magic) {
		return nil, schema.NewErrorf(schema.ErrCodeVaultCorrupt, "%s is not a vaultsmith vault file", s.path)
	}

	plaintext, err := s.box.open(raw[len(magic):])
	if err != nil {
		return nil, err
	}

	var v schema.Vault
	if err := yaml.Unmarshal(plaintext, &v); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeVaultCorrupt, "parse vault document: %s", err.Error()).WithCause(err)
	}

	migrated, err := migrate(&v)
	if err != nil {
		return nil, err
	}
	if migrated {
		logging.LogWith(ctx, s.logger).Info("vault schema migrated",
			slog.Int("to_version", v.SchemaVersion))
	}

	if err := s.validator.validate(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Save serializes, encrypts, and atomically replaces the vault file: the
// payload is written to a temp file in the target directory, synced, then
// renamed over the path. The on-disk file is never left partially written.
func (s *Store) Save(ctx context.Context, v *schema.Vault) error {
	if err := s.validator.validate(v); err != nil {
		return err
	}

	plaintext, err := yaml.Marshal(v)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "serialize vault: %s", err.Error()).WithCause(err)
	}
	sealed, err := s.box.seal(plaintext)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encrypt vault: %s", err.Error()).WithCause(err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create temp vault file: %s", err.Error()).WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(magic); err != nil {
		tmp.Close()
		return schema.NewErrorf(schema.ErrCodeStore, "write vault: %s", err.Error()).WithCause(err)
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return schema.NewErrorf(schema.ErrCodeStore, "write vault: %s", err.Error()).WithCause(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return schema.NewErrorf(schema.ErrCodeStore, "sync vault: %s", err.Error()).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "close temp vault file: %s", err.Error()).WithCause(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "replace vault file: %s", err.Error()).WithCause(err)
	}

	logging.LogWith(ctx, s.logger).Debug("vault saved",
		slog.String("path", s.path),
		slog.Int("projects", len(v.Projects)),
		slog.Int("secrets", v.SecretCount()))
	return nil
}

// UpsertSecret inserts or overwrites (by key) a secret within the named
// project, creating the project if absent. LastUpdated is bumped on
// overwrite; Created is preserved.
func (s *Store) UpsertSecret(v *schema.Vault, projectName string, sec schema.Secret) error {
	now := time.Now().UTC()
	if sec.Created.IsZero() {
		sec.Created = now
	}
	if sec.LastUpdated.IsZero() || sec.LastUpdated.Before(sec.Created) {
		sec.LastUpdated = sec.Created
	}
	if err := sec.Validate(); err != nil {
		return err
	}

	p := v.FindProject(projectName)
	if p == nil {
		v.Projects = append(v.Projects, schema.Project{Name: projectName})
		p = &v.Projects[len(v.Projects)-1]
	}

	if existing := p.FindSecret(sec.Key); existing != nil {
		sec.Created = existing.Created
		sec.LastUpdated = now
		*existing = sec
		return nil
	}
	p.Secrets = append(p.Secrets, sec)
	return nil
}

// FindSecret returns the secret for the given project and key, or nil.
// Read-only, no side effects.
func (s *Store) FindSecret(v *schema.Vault, projectName, key string) *schema.Secret {
	p := v.FindProject(projectName)
	if p == nil {
		return nil
	}
	return p.FindSecret(key)
}

// migrate brings an older vault document up to CurrentSchemaVersion, one
// version step at a time. Returns true if any step ran.
func migrate(v *schema.Vault) (bool, error) {
	if v.SchemaVersion > schema.CurrentSchemaVersion {
		return false, schema.NewErrorf(schema.ErrCodeVaultSchema,
			"unsupported vault schemaVersion %d (max %d)", v.SchemaVersion, schema.CurrentSchemaVersion)
	}
	migrated := false
	for v.SchemaVersion < schema.CurrentSchemaVersion {
		step, ok := migrations[v.SchemaVersion]
		if !ok {
			return false, schema.NewErrorf(schema.ErrCodeVaultSchema,
				"no migration from vault schemaVersion %d", v.SchemaVersion)
		}
		step(v)
		v.SchemaVersion++
		migrated = true
	}
	return migrated, nil
}

// migrations maps a source version to the step that upgrades it by one.
var migrations = map[int]func(*schema.Vault){
	// v0: pre-versioned documents with no schemaVersion field and possibly
	// missing category/source on secrets.
	0: func(v *schema.Vault) {
		for pi := range v.Projects {
			p := &v.Projects[pi]
			for si := range p.Secrets {
				sec := &p.Secrets[si]
				if sec.Category == "" {
					sec.Category = schema.CategoryUnknown
				}
				if sec.Source == "" {
					sec.Source = schema.SourceManual
				}
				if sec.Created.IsZero() {
					sec.Created = time.Now().UTC()
				}
				if sec.LastUpdated.IsZero() {
					sec.LastUpdated = sec.Created
				}
			}
		}
	},
}
