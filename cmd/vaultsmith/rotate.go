package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vaultsmith/vaultsmith/internal/audit"
	"github.com/vaultsmith/vaultsmith/internal/notify"
	"github.com/vaultsmith/vaultsmith/internal/pipeline"
	"github.com/vaultsmith/vaultsmith/internal/rotate"
	"github.com/vaultsmith/vaultsmith/internal/scheduler"
	"github.com/vaultsmith/vaultsmith/internal/vault"
)

// runRotate executes one rotation pass, or runs it on a cron schedule with
// -schedule. Exit 0 includes "nothing due"; vault load/save and notifier
// failures are fatal.
func runRotate(cfg Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	schedule := fs.String("schedule", "", "cron expression for daemon mode (default: run once)")
	notifyCmd := fs.String("notify-cmd", cfg.NotifyCmd, "command regenerating dependent artifacts after save")
	var notifyArgs repeatedFlag
	fs.Var(&notifyArgs, "notify-arg", "argument for the notifier command (repeatable, preserves spaces)")
	notifyTimeout := fs.Duration("notify-timeout", cfg.notifyTimeout(), "timeout for the notifier command")
	noAudit := fs.Bool("no-audit", false, "disable the rotation-run audit log")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	crypto, err := cfg.cryptoConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	store, err := vault.NewStore(cfg.VaultPath, crypto, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var notifier notify.Notifier
	if *notifyCmd != "" {
		command, cmdArgs := notifierArgv(*notifyCmd, notifyArgs)
		notifier = notify.NewExecNotifier(command, cmdArgs, *notifyTimeout, logger)
	}

	var auditLog *audit.Log
	if !*noAudit {
		auditLog, err = audit.Open(context.Background(), cfg.AuditDBPath)
		if err != nil {
			// History is best-effort; rotation still runs without it.
			logger.Warn("audit log unavailable", slog.String("error", err.Error()))
		} else {
			defer auditLog.Close()
		}
	}

	engine := rotate.NewEngine(rotate.DefaultPolicy(), store, logger)
	rotator := pipeline.NewRotator(store, engine, notifier, auditLog, logger)

	if *schedule != "" {
		return runScheduled(*schedule, rotator, logger)
	}

	summary, err := rotator.Run(context.Background())
	if err != nil {
		logger.Error("rotation run failed", slog.String("error", err.Error()))
		return 1
	}
	fmt.Printf("checked %d due secrets: %d rotated, %d failed\n",
		len(summary.Results), summary.Rotated, summary.Failed)
	return 0
}

// repeatedFlag collects a flag's values across repeats.
type repeatedFlag []string

func (r *repeatedFlag) String() string { return strings.Join(*r, " ") }

func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

// notifierArgv resolves the notifier command line. With -notify-arg flags the
// command string is argv[0] verbatim and each flag value is one argument, so
// arguments containing spaces survive. Without them the command string is
// whitespace-split for simple cases.
func notifierArgv(cmd string, extra []string) (string, []string) {
	if len(extra) > 0 {
		return cmd, extra
	}
	parts := strings.Fields(cmd)
	return parts[0], parts[1:]
}

// runScheduled blocks running rotation passes on the cron schedule until
// SIGINT/SIGTERM.
func runScheduled(cronExpr string, rotator *pipeline.Rotator, logger *slog.Logger) int {
	runner := scheduler.RunnerFunc(func(ctx context.Context) error {
		_, err := rotator.Run(ctx)
		return err
	})
	sched, err := scheduler.New(cronExpr, runner, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// runInit creates an empty vault for a new environment.
func runInit(cfg Config, logger *slog.Logger) int {
	crypto, err := cfg.cryptoConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	store, err := vault.NewStore(cfg.VaultPath, crypto, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := store.Init(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("vault created at %s\n", cfg.VaultPath)
	return 0
}
