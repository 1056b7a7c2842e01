package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/vaultsmith/vaultsmith/internal/pipeline"
	"github.com/vaultsmith/vaultsmith/internal/scan"
	"github.com/vaultsmith/vaultsmith/internal/vault"
)

// runScan executes the discovery scan and optional auto-import. Individual
// file and project failures are warnings; only a report-write or vault
// failure changes the exit code.
func runScan(cfg Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dir := fs.String("dir", cfg.ScanDir, "base directory containing project subdirectories")
	out := fs.String("out", cfg.ReportPath, "scan report output path")
	doImport := fs.Bool("import", false, "auto-import high-confidence candidates into the vault")
	filterExpr := fs.String("filter", "", "expr filter narrowing auto-import candidates")
	jqQuery := fs.String("jq", "", "jq transform applied to the report artifact")
	concurrency := fs.Int("concurrency", 0, "max parallel project scans (default min(8, CPUs))")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dir == "" {
		fmt.Fprintln(os.Stderr, "scan: -dir is required (or set VAULTSMITH_SCAN_DIR)")
		return 2
	}

	scanner := scan.NewScanner(scan.Options{
		BaseDir:     *dir,
		Concurrency: *concurrency,
	}, logger)

	var store *vault.Store
	if *doImport {
		crypto, err := cfg.cryptoConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		store, err = vault.NewStore(cfg.VaultPath, crypto, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	importer := pipeline.NewImporter(scanner, store, logger)
	summary, err := importer.Run(context.Background(), pipeline.ImportOptions{
		ReportPath: *out,
		Query:      *jqQuery,
		Import:     *doImport,
		FilterExpr: *filterExpr,
	})
	if err != nil {
		logger.Error("scan failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Printf("scanned %d projects: %d with secrets, %d candidates (%d high / %d medium / %d low)\n",
		summary.Report.TotalProjects,
		summary.Report.ProjectsWithSecrets,
		summary.Report.TotalSecretsFound,
		summary.Report.HighConfidence,
		summary.Report.MediumConfidence,
		summary.Report.LowConfidence)
	if *doImport {
		fmt.Printf("imported %d secrets across %d projects\n",
			summary.ImportedSecrets, summary.ImportedProjects)
	}
	return 0
}
