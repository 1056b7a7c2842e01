package schema

import "time"

// ConfidenceTier buckets a project's aggregate secret signal.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Rank orders tiers for sorting: high > medium > low.
func (c ConfidenceTier) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// CandidateSecret is one key/value pair extracted during a scan, before any
// vault import. Value stays in memory only; the report artifact carries the
// redacted form.
type CandidateSecret struct {
	Key        string         `json:"key"`
	Value      string         `json:"-"`
	ValueHint  string         `json:"valueHint"`
	Category   SecretCategory `json:"category"`
	Confidence float64        `json:"confidence"`
	File       string         `json:"file"`
}

// ProjectAnalysis is the per-project result of a discovery scan.
type ProjectAnalysis struct {
	Name             string            `json:"name"`
	Path             string            `json:"path"`
	Confidence       ConfidenceTier    `json:"confidence"`
	EnvFiles         []string          `json:"envFiles,omitempty"`
	ConfigFiles      []string          `json:"configFiles,omitempty"`
	Candidates       []CandidateSecret `json:"candidates"`
	EstimatedSecrets int               `json:"estimatedSecrets"`
}

// ScanReport is the ephemeral artifact of one discovery run. It is written
// as JSON to the report path and never persisted inside the vault.
type ScanReport struct {
	ID                  string            `json:"id"`
	Timestamp           time.Time         `json:"timestamp"`
	BaseDir             string            `json:"baseDir"`
	TotalProjects       int               `json:"totalProjects"`
	ProjectsWithSecrets int               `json:"projectsWithSecrets"`
	TotalSecretsFound   int               `json:"totalSecretsFound"`
	HighConfidence      int               `json:"highConfidence"`
	MediumConfidence    int               `json:"mediumConfidence"`
	LowConfidence       int               `json:"lowConfidence"`
	Projects            []ProjectAnalysis `json:"projects"`
}

// RotationResult records the outcome of one secret's rotation attempt.
type RotationResult struct {
	ProjectName string    `json:"project"`
	SecretKey   string    `json:"secretKey"`
	Success     bool      `json:"success"`
	NewValue    string    `json:"-"`
	Err         string    `json:"error,omitempty"`
	RotatedAt   time.Time `json:"rotatedAt"`
}
