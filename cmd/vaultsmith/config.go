package main

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/vaultsmith/vaultsmith/internal/vault"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// Config holds all vaultsmith configuration.
// Priority: env vars > .env file > settings.json > defaults.
type Config struct {
	VaultPath     string `json:"vault_path"`
	AuditDBPath   string `json:"audit_db_path"`
	LogLevel      string `json:"log_level"`
	ScanDir       string `json:"scan_dir"`
	ReportPath    string `json:"report_path"`
	NotifyCmd     string `json:"notify_cmd"`
	NotifyTimeout string `json:"notify_timeout"`

	// Key material, never written to settings.json.
	MasterKeyHex string `json:"-"`
	Passphrase   string `json:"-"`
	Salt         string `json:"-"`
}

func defaultConfig() Config {
	return Config{
		VaultPath:     filepath.Join(vaultsmithDir(), "vault.enc"),
		AuditDBPath:   "file:" + filepath.Join(vaultsmithDir(), "audit.db"),
		LogLevel:      "info",
		ReportPath:    "scan-report.json",
		NotifyTimeout: "60s",
	}
}

func vaultsmithDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vaultsmith"
	}
	return filepath.Join(home, ".vaultsmith")
}

func settingsPath() string {
	return filepath.Join(vaultsmithDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: .env file. godotenv only sets variables not already present,
	// so real environment variables still win.
	_ = godotenv.Load()

	// Layer 4: env vars override.
	if v := os.Getenv("VAULTSMITH_VAULT_PATH"); v != "" {
		cfg.VaultPath = v
	}
	if v := os.Getenv("VAULTSMITH_AUDIT_DB"); v != "" {
		cfg.AuditDBPath = v
	}
	if v := os.Getenv("VAULTSMITH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VAULTSMITH_SCAN_DIR"); v != "" {
		cfg.ScanDir = v
	}
	if v := os.Getenv("VAULTSMITH_REPORT_PATH"); v != "" {
		cfg.ReportPath = v
	}
	if v := os.Getenv("VAULTSMITH_NOTIFY_CMD"); v != "" {
		cfg.NotifyCmd = v
	}
	if v := os.Getenv("VAULTSMITH_NOTIFY_TIMEOUT"); v != "" {
		cfg.NotifyTimeout = v
	}
	cfg.MasterKeyHex = os.Getenv("VAULTSMITH_MASTER_KEY")
	cfg.Passphrase = os.Getenv("VAULTSMITH_PASSPHRASE")
	cfg.Salt = os.Getenv("VAULTSMITH_SALT")

	return cfg
}

// cryptoConfig builds the vault key material from configuration. The key is
// supplied through the environment, never embedded in the vault file.
func (c Config) cryptoConfig() (vault.CryptoConfig, error) {
	if c.MasterKeyHex != "" {
		key, err := hex.DecodeString(c.MasterKeyHex)
		if err != nil {
			return vault.CryptoConfig{}, schema.NewError(schema.ErrCodeValidation,
				"VAULTSMITH_MASTER_KEY is not valid hex")
		}
		return vault.CryptoConfig{MasterKey: key}, nil
	}
	if c.Passphrase != "" {
		if c.Salt == "" {
			return vault.CryptoConfig{}, schema.NewError(schema.ErrCodeValidation,
				"VAULTSMITH_SALT is required with VAULTSMITH_PASSPHRASE")
		}
		return vault.CryptoConfig{Passphrase: c.Passphrase, Salt: []byte(c.Salt)}, nil
	}
	return vault.CryptoConfig{}, schema.NewError(schema.ErrCodeValidation,
		"set VAULTSMITH_MASTER_KEY or VAULTSMITH_PASSPHRASE+VAULTSMITH_SALT")
}

func (c Config) notifyTimeout() time.Duration {
	d, err := time.ParseDuration(c.NotifyTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
