package scan

import (
	"regexp"
	"strings"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// Additive confidence signals. The constants are heuristic defaults, tuned
// to over-flag rather than under-flag: every candidate still passes human or
// tier review before unattended import.
const (
	baseConfidence   = 0.3
	keySignalWeight  = 0.3
	lengthWeight     = 0.2
	base64Weight     = 0.2
	hexWeight        = 0.3
	prefixWeight     = 0.4
	longValueMinimum = 20

	// A single pair this confident marks its whole project High: a
	// near-certain provider credential in one lone .env file is still a
	// finding worth unattended import.
	strongPairFloor = 0.9
)

var (
	base64Like = regexp.MustCompile(`^[A-Za-z0-9+/=]{20,}$`)
	hexLike    = regexp.MustCompile(`^[a-fA-F0-9]{32,}$`)

	// providerPrefixes are well-known credential prefixes (Stripe, GitHub,
	// Slack, AWS).
	providerPrefixes = []string{"sk-", "pk_", "sk_", "ghp_", "gho_", "xoxb-", "xoxp-", "AKIA"}
)

// Score assigns a [0,1] confidence that the key/value pair is a genuine
// secret. Signals are additive and the result is clamped to 1.0, so a value
// matching a superset of another value's signals never scores lower.
func Score(key, value string) float64 {
	score := baseConfidence

	upper := strings.ToUpper(key)
	if strings.Contains(upper, "KEY") || strings.Contains(upper, "SECRET") || strings.Contains(upper, "TOKEN") {
		score += keySignalWeight
	}
	if len(value) > longValueMinimum {
		score += lengthWeight
	}
	if base64Like.MatchString(value) {
		score += base64Weight
	}
	if hexLike.MatchString(value) {
		score += hexWeight
	}
	for _, prefix := range providerPrefixes {
		if strings.HasPrefix(value, prefix) {
			score += prefixWeight
			break
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// projectSignals aggregates the per-project inputs to tier classification.
type projectSignals struct {
	filesWithSecrets int
	secretNamedFile  bool
	envFiles         int
	configFiles      int
	strongestPair    float64 // highest single-pair confidence seen
}

// tierFor buckets a project's aggregate signal. Only High projects are
// eligible for unattended auto-import; false positives and negatives are
// expected at every tier.
func tierFor(sig projectSignals) schema.ConfidenceTier {
	if sig.filesWithSecrets >= 2 || sig.secretNamedFile || sig.strongestPair >= strongPairFloor {
		return schema.ConfidenceHigh
	}
	if sig.envFiles >= 1 || sig.configFiles >= 2 {
		return schema.ConfidenceMedium
	}
	return schema.ConfidenceLow
}
