// Package pipeline wires the scan/vault/rotate/notify components into the
// two logical runs the CLI exposes: scan-import and rotate-and-notify. Each
// run mutates the vault in memory and performs exactly one save at the end.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/vaultsmith/vaultsmith/internal/logging"
	"github.com/vaultsmith/vaultsmith/internal/scan"
	"github.com/vaultsmith/vaultsmith/internal/vault"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// ImportOptions configures one scan-import run.
type ImportOptions struct {
	ReportPath string // write the ScanReport JSON artifact here ("" = skip)
	Query      string // optional jq transform applied to the artifact
	Import     bool   // auto-import candidates into the vault
	FilterExpr string // optional expr filter narrowing import candidates
}

// ImportSummary reports what one scan-import run did.
type ImportSummary struct {
	Report           *schema.ScanReport
	ImportedProjects int
	ImportedSecrets  int
}

// Importer runs the discovery scan and, optionally, auto-imports
// high-confidence candidates into the vault.
type Importer struct {
	scanner *scan.Scanner
	store   *vault.Store
	logger  *slog.Logger
}

// NewImporter creates a scan-import pipeline. The store may be nil when
// import is never requested (report-only scans).
func NewImporter(scanner *scan.Scanner, store *vault.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{scanner: scanner, store: store, logger: logger}
}

// Run scans, writes the report artifact, and auto-imports eligible projects.
// Only High-confidence projects are eligible for unattended import; the
// optional filter expression narrows them further. The vault is saved once.
func (p *Importer) Run(ctx context.Context, opts ImportOptions) (*ImportSummary, error) {
	ctx = logging.WithPhase(ctx, "scan")

	filter, err := NewCandidateFilter(opts.FilterExpr)
	if err != nil {
		return nil, err
	}

	report, err := p.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithRunID(ctx, report.ID)

	if opts.ReportPath != "" {
		if err := scan.WriteReport(ctx, report, opts.ReportPath, opts.Query); err != nil {
			return nil, err
		}
		logging.LogWith(ctx, p.logger).Info("scan report written",
			slog.String("path", opts.ReportPath))
	}

	summary := &ImportSummary{Report: report}
	if !opts.Import {
		return summary, nil
	}
	if p.store == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "import requested without a vault store")
	}

	ctx = logging.WithPhase(ctx, "import")
	v, err := p.loadOrInit(ctx)
	if err != nil {
		return nil, err
	}

	for _, analysis := range report.Projects {
		if analysis.Confidence != schema.ConfidenceHigh {
			continue
		}
		matched, err := filter.Match(analysis)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}

		pctx := logging.WithProject(ctx, analysis.Name)
		imported := 0
		for _, c := range analysis.Candidates {
			sec := schema.Secret{
				Key:      c.Key,
				Value:    c.Value,
				Category: c.Category,
				Source:   schema.SourceAutoImport,
				Tags:     []string{string(c.Category), schema.TagAutoImported},
			}
			if err := p.store.UpsertSecret(v, analysis.Name, sec); err != nil {
				// A malformed candidate should not sink the whole import.
				logging.LogWith(pctx, p.logger).Warn("candidate rejected",
					slog.String("key", c.Key),
					slog.String("error", err.Error()))
				continue
			}
			imported++
		}
		if imported > 0 {
			summary.ImportedProjects++
			summary.ImportedSecrets += imported
			logging.LogWith(pctx, p.logger).Info("project imported",
				slog.Int("secrets", imported))
		}
	}

	if summary.ImportedSecrets > 0 {
		if err := p.store.Save(ctx, v); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// loadOrInit loads the vault, creating an empty one on first run.
func (p *Importer) loadOrInit(ctx context.Context) (*schema.Vault, error) {
	if !p.store.Exists() {
		return p.store.Init(ctx)
	}
	return p.store.Load(ctx)
}
