package scan

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// envLine matches one KEY=value assignment. Keys follow the vault key
// grammar; everything after the first '=' is the raw value.
var envLine = regexp.MustCompile(`^([A-Z_][A-Z0-9_]*)\s*=\s*(.*)$`)

// Pair is one extracted key/value candidate.
type Pair struct {
	Key   string
	Value string
}

// ExtractPairs parses KEY=value-style content, one assignment per line.
// '#'-prefixed lines and blank lines are ignored. Values are stripped of one
// layer of matching surrounding quotes; empty and pure-quote values are
// discarded. Binary content yields no pairs.
func ExtractPairs(content []byte) []Pair {
	if looksBinary(content) {
		return nil
	}

	var pairs []Pair
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := envLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := unquote(m[2])
		if value == "" {
			continue
		}
		pairs = append(pairs, Pair{Key: m[1], Value: value})
	}
	return pairs
}

// unquote removes one layer of matching surrounding quotes.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// looksBinary reports whether content appears to be non-text. A NUL byte in
// the first 8 KiB is treated as binary.
func looksBinary(content []byte) bool {
	probe := content
	if len(probe) > 8*1024 {
		probe = probe[:8*1024]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// categoryRule maps a key-substring predicate to a category. Rules are
// evaluated in order; the first match wins.
type categoryRule struct {
	match func(key string) bool
	cat   schema.SecretCategory
}

func anyOf(subs ...string) func(string) bool {
	return func(key string) bool {
		for _, sub := range subs {
			if strings.Contains(key, sub) {
				return true
			}
		}
		return false
	}
}

var categoryRules = []categoryRule{
	{anyOf("API_KEY"), schema.CategoryApiKey},
	// SECRET/TOKEN keys that also mention JWT are JWT signing secrets.
	{func(key string) bool {
		return anyOf("SECRET", "TOKEN")(key) && strings.Contains(key, "JWT")
	}, schema.CategoryJwtSecret},
	{anyOf("SECRET", "TOKEN"), schema.CategoryToken},
	{anyOf("PASSWORD", "PASS"), schema.CategoryPassword},
	{anyOf("DATABASE", "DB_"), schema.CategoryDatabase},
	{anyOf("REDIS", "CACHE"), schema.CategoryCache},
	{anyOf("JWT", "AUTH"), schema.CategoryAuth},
	{anyOf("WEBHOOK", "CALLBACK"), schema.CategoryWebhook},
	{anyOf("URL", "ENDPOINT"), schema.CategoryServiceUrl},
}

// Classify assigns a category to a key. Keys matching no rule default to
// Configuration; ambiguity is not an error.
func Classify(key string) schema.SecretCategory {
	upper := strings.ToUpper(key)
	for _, r := range categoryRules {
		if r.match(upper) {
			return r.cat
		}
	}
	return schema.CategoryConfiguration
}
