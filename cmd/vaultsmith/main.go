// Command vaultsmith is the secret discovery, vault storage, and rotation
// pipeline: scan external project directories for candidate credentials,
// keep them in an encrypted per-environment vault, and rotate them on a
// type-based policy.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vaultsmith/vaultsmith/internal/logging"
)

const usage = `vaultsmith - encrypted secret vault with discovery and rotation

Usage:
  vaultsmith scan   -dir <base> [-out report.json] [-import] [-filter <expr>] [-jq <query>]
  vaultsmith rotate [-schedule <cron>] [-notify-cmd <cmd>] [-notify-arg <arg>]... [-notify-timeout <dur>]
  vaultsmith init
  vaultsmith version

Environment:
  VAULTSMITH_VAULT_PATH   path to the encrypted vault file
  VAULTSMITH_MASTER_KEY   hex-encoded 32-byte key, or
  VAULTSMITH_PASSPHRASE   passphrase (with VAULTSMITH_SALT) for PBKDF2
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	switch args[0] {
	case "scan":
		return runScan(cfg, logger, args[1:])
	case "rotate":
		return runRotate(cfg, logger, args[1:])
	case "init":
		return runInit(cfg, logger)
	case "version":
		printVersion()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
