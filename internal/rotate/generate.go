package rotate

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	symbolChars  = "!@#$%^&*-_=+"

	apiKeyLength    = 32
	tokenLength     = 32
	jwtSecretLength = 64
	passwordLength  = 16
)

// Generator produces replacement material for one secret category.
type Generator func() (string, error)

// generators is the strategy table: category -> generator. Categories absent
// here cannot be rotated and report a per-secret failure.
var generators = map[schema.SecretCategory]Generator{
	schema.CategoryApiKey:    func() (string, error) { return randomString(alphanumeric, apiKeyLength) },
	schema.CategoryToken:     func() (string, error) { return randomString(alphanumeric, tokenLength) },
	schema.CategoryJwtSecret: func() (string, error) { return randomString(alphanumeric, jwtSecretLength) },
	schema.CategoryPassword:  generatePassword,
}

// GeneratorFor returns the generation strategy for a category, if one exists.
func GeneratorFor(cat schema.SecretCategory) (Generator, bool) {
	g, ok := generators[cat]
	return g, ok
}

// randomString returns a cryptographically secure random string of the given
// length drawn uniformly from the charset.
func randomString(charset string, length int) (string, error) {
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("secure random: %w", err)
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}

// generatePassword returns a 16-character password guaranteed to contain at
// least one lowercase, one uppercase, one digit, and one symbol. The
// remaining characters are uniformly random over all classes, and the final
// string is shuffled so the guaranteed characters hold no fixed positions.
func generatePassword() (string, error) {
	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := lowerChars + upperChars + digitChars + symbolChars

	out := make([]byte, 0, passwordLength)
	for _, class := range classes {
		c, err := randomString(class, 1)
		if err != nil {
			return "", err
		}
		out = append(out, c[0])
	}
	rest, err := randomString(all, passwordLength-len(classes))
	if err != nil {
		return "", err
	}
	out = append(out, rest...)

	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

// shuffle performs a Fisher-Yates shuffle with crypto/rand indices.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("secure random: %w", err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
