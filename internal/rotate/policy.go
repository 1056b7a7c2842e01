package rotate

import (
	"time"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// Policy maps a secret category to its rotation interval in days. Categories
// absent from the policy have no automatic rotation.
type Policy map[schema.SecretCategory]int

// DefaultPolicy returns the built-in rotation intervals.
func DefaultPolicy() Policy {
	return Policy{
		schema.CategoryApiKey:    90,
		schema.CategoryPassword:  30,
		schema.CategoryToken:     60,
		schema.CategoryJwtSecret: 7,
		schema.CategoryWebhook:   120,
	}
}

// IntervalFor resolves the rotation interval for a secret: a per-secret
// metadata override wins, then the policy default for its category. The
// second return is false when the secret is never rotated automatically.
func (p Policy) IntervalFor(sec *schema.Secret) (int, bool) {
	if days, ok := sec.RotationIntervalDays(); ok && days > 0 {
		return days, true
	}
	days, ok := p[sec.Category]
	return days, ok
}

// Due reports whether the secret's age, measured from LastUpdated in UTC,
// has reached its rotation interval.
func (p Policy) Due(sec *schema.Secret, now time.Time) bool {
	days, ok := p.IntervalFor(sec)
	if !ok {
		return false
	}
	age := now.UTC().Sub(sec.LastUpdated.UTC())
	return age >= time.Duration(days)*24*time.Hour
}
