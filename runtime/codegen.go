package runtime

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"roomhub/errors"
)

// CodeLength is the size of a room code: 3 random bytes hex-encoded.
const CodeLength = 6

const maxCodeAttempts = 5

// CodeGenerator produces short collision-checked room codes from the
// uppercase hexadecimal alphabet. Codes are a join token, not a secret
// boundary; 16.7M possibilities keep the collision probability low.
type CodeGenerator struct {
	source io.Reader
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{source: rand.Reader}
}

// NewCodeGeneratorFromSource injects a deterministic byte source for tests.
func NewCodeGeneratorFromSource(source io.Reader) *CodeGenerator {
	return &CodeGenerator{source: source}
}

// Generate allocates a code absent from the registry at allocation time.
// Collisions are retried a bounded number of times before surfacing
// ErrCodeSpaceExhausted.
func (g *CodeGenerator) Generate(exists func(code string) bool) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		buf := make([]byte, CodeLength/2)
		if _, err := io.ReadFull(g.source, buf); err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if !exists(code) {
			return code, nil
		}
	}
	return "", errors.ErrCodeSpaceExhausted
}
