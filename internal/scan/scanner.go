package scan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultsmith/vaultsmith/internal/logging"
	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

const (
	defaultMaxFileSize        = 1 << 20 // 1 MiB per candidate file
	defaultMaxFilesPerProject = 512
)

// ignoredDirs are project subdirectory names never treated as projects.
var ignoredDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	".next":        {},
	"coverage":     {},
	"temp":         {},
	"tmp":          {},
}

// knownConfigFiles are filenames always counted as config-like.
var knownConfigFiles = map[string]struct{}{
	"config.json":      {},
	"config.yaml":      {},
	"config.yml":       {},
	"settings.json":    {},
	"application.yml":  {},
	"application.yaml": {},
	"appsettings.json": {},
}

// Options configures a discovery scan.
type Options struct {
	BaseDir            string
	MaxFileSize        int64 // reject candidate files above this size (default 1 MiB)
	MaxFilesPerProject int   // stop listing a project after this many entries (default 512)
	Concurrency        int   // worker pool size (default min(8, NumCPU))
}

// Scanner walks a base directory, discovers project subdirectories, and
// produces a ScanReport. Per-project analysis is read-only and runs on a
// bounded analysis pool; a single project's failure never aborts the scan.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// NewScanner creates a scanner with defaults applied.
func NewScanner(opts Options, logger *slog.Logger) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.MaxFilesPerProject <= 0 {
		opts.MaxFilesPerProject = defaultMaxFilesPerProject
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = min(8, runtime.NumCPU())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{opts: opts, logger: logger}
}

// Scan enumerates immediate subdirectories of BaseDir and analyzes each in
// parallel. Only projects with at least one extracted candidate appear in
// the report. The final ordering is a stable sort by (confidence tier desc,
// candidate count desc, name asc), independent of completion order.
func (s *Scanner) Scan(ctx context.Context) (*schema.ScanReport, error) {
	entries, err := os.ReadDir(s.opts.BaseDir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExtraction, "read base directory %s: %s", s.opts.BaseDir, err.Error()).WithCause(err)
	}

	report := &schema.ScanReport{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		BaseDir:   s.opts.BaseDir,
	}

	pool := newAnalysisPool(s.opts.Concurrency)
	total := 0

	for _, entry := range entries {
		if !entry.IsDir() || skipDir(entry.Name()) {
			continue
		}
		total++
		name := entry.Name()
		dir := filepath.Join(s.opts.BaseDir, name)

		err := pool.analyze(ctx, func(ctx context.Context) (*schema.ProjectAnalysis, error) {
			ctx = logging.WithProject(ctx, name)
			analysis, err := s.analyzeProject(ctx, name, dir)
			if err != nil {
				// Partial-failure isolation: warn and continue the scan.
				logging.LogWith(ctx, s.logger).Warn("project scan failed",
					slog.String("error", err.Error()))
				return nil, err
			}
			return analysis, nil
		})
		if err != nil {
			// Context cancelled while waiting for a slot.
			pool.drain()
			return nil, err
		}
	}
	analyses := pool.drain()

	// Completion order is nondeterministic; the report order must not be.
	sort.SliceStable(analyses, func(i, j int) bool {
		a, b := analyses[i], analyses[j]
		if a.Confidence.Rank() != b.Confidence.Rank() {
			return a.Confidence.Rank() > b.Confidence.Rank()
		}
		if a.EstimatedSecrets != b.EstimatedSecrets {
			return a.EstimatedSecrets > b.EstimatedSecrets
		}
		return a.Name < b.Name
	})

	report.TotalProjects = total
	report.Projects = analyses
	report.ProjectsWithSecrets = len(analyses)
	for i := range analyses {
		report.TotalSecretsFound += analyses[i].EstimatedSecrets
		switch analyses[i].Confidence {
		case schema.ConfidenceHigh:
			report.HighConfidence++
		case schema.ConfidenceMedium:
			report.MediumConfidence++
		default:
			report.LowConfidence++
		}
	}

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("projects", total),
		slog.Int("with_secrets", report.ProjectsWithSecrets),
		slog.Int("candidates", report.TotalSecretsFound),
		slog.Int64("failed_projects", pool.stats().Failed))
	return report, nil
}

// analyzeProject lists a project's top-level files, partitions them into
// env-like and config-like, and extracts candidates from the env-like set.
func (s *Scanner) analyzeProject(ctx context.Context, name, dir string) (*schema.ProjectAnalysis, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExtraction, "read project directory: %s", err.Error()).
			WithProject(name).WithCause(err)
	}
	if len(entries) > s.opts.MaxFilesPerProject {
		entries = entries[:s.opts.MaxFilesPerProject]
	}

	analysis := &schema.ProjectAnalysis{Name: name, Path: dir}
	sig := projectSignals{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fname := entry.Name()
		switch {
		case isEnvLike(fname):
			analysis.EnvFiles = append(analysis.EnvFiles, fname)
			sig.envFiles++
			if strings.Contains(strings.ToLower(fname), "secret") {
				sig.secretNamedFile = true
			}
		case isConfigLike(fname):
			analysis.ConfigFiles = append(analysis.ConfigFiles, fname)
			sig.configFiles++
		}
	}

	for _, fname := range analysis.EnvFiles {
		candidates := s.extractFromFile(ctx, dir, fname)
		if len(candidates) > 0 {
			sig.filesWithSecrets++
		}
		for i := range candidates {
			if candidates[i].Confidence > sig.strongestPair {
				sig.strongestPair = candidates[i].Confidence
			}
		}
		analysis.Candidates = append(analysis.Candidates, candidates...)
	}

	analysis.EstimatedSecrets = len(analysis.Candidates)
	analysis.Confidence = tierFor(sig)
	return analysis, nil
}

// extractFromFile reads one candidate file and scores its pairs. Unreadable,
// oversized, and binary files are skipped silently: extraction never raises
// for a single bad file.
func (s *Scanner) extractFromFile(ctx context.Context, dir, fname string) []schema.CandidateSecret {
	path := filepath.Join(dir, fname)

	info, err := os.Stat(path)
	if err != nil || info.Size() > s.opts.MaxFileSize {
		if err == nil {
			logging.LogWith(ctx, s.logger).Debug("skipping oversized file",
				slog.String("file", fname), slog.Int64("size", info.Size()))
		}
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		logging.LogWith(ctx, s.logger).Debug("skipping unreadable file",
			slog.String("file", fname), slog.String("error", err.Error()))
		return nil
	}

	pairs := ExtractPairs(content)
	candidates := make([]schema.CandidateSecret, 0, len(pairs))
	for _, p := range pairs {
		candidates = append(candidates, schema.CandidateSecret{
			Key:        p.Key,
			Value:      p.Value,
			ValueHint:  schema.Redact(p.Value),
			Category:   Classify(p.Key),
			Confidence: Score(p.Key, p.Value),
			File:       fname,
		})
	}
	return candidates
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ignored := ignoredDirs[name]
	return ignored
}

// isEnvLike reports whether a filename looks like an environment/secret
// file: contains ".env" or "secret", or is a known secrets file.
func isEnvLike(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, ".env") || strings.Contains(lower, "secret") {
		return true
	}
	return lower == "secrets.json" || lower == "secrets.yaml"
}

// isConfigLike reports whether a filename looks like configuration: a known
// config filename, or a yaml/json file whose name mentions config/settings.
func isConfigLike(name string) bool {
	lower := strings.ToLower(name)
	if _, known := knownConfigFiles[lower]; known {
		return true
	}
	ext := filepath.Ext(lower)
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return false
	}
	return strings.Contains(lower, "config") || strings.Contains(lower, "settings")
}
