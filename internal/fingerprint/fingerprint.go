// Package fingerprint computes lexical features of attacker payloads and
// classifies scanning tools from their declared agent strings. Everything
// here is pure: same input, same output, no failure modes.
package fingerprint

import (
	"math"
	"slices"
	"strings"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// maxSampleTokens bounds the token sample stored in a fingerprint.
const maxSampleTokens = 10

// Compute returns the lexical fingerprint of a text payload.
func Compute(payload string) models.PayloadFingerprint {
	tokens := Tokenize(payload)

	sample := tokens
	if len(sample) > maxSampleTokens {
		sample = sample[:maxSampleTokens]
	}

	lower := strings.ToLower(payload)

	return models.PayloadFingerprint{
		Length:       len(payload),
		Entropy:      Entropy(payload),
		TokenCount:   len(tokens),
		Tokens:       sample,
		SpecialChars: specialChars(payload),
		Keywords: models.KeywordFlags{
			Union:  strings.Contains(lower, "union"),
			Select: strings.Contains(lower, "select"),
			Drop:   strings.Contains(lower, "drop"),
			Script: strings.Contains(lower, "<script"),
		},
	}
}

// Entropy returns the Shannon entropy in bits of the character-frequency
// distribution of s. Empty input has zero entropy. The sum runs over the
// runes in sorted order: map iteration order changes per loop, and a
// different float accumulation order shifts the result at the last bit,
// so the same payload would stop hashing to the same fingerprint.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}

	runes := make([]rune, 0, len(freq))
	for r := range freq {
		runes = append(runes, r)
	}
	slices.Sort(runes)

	var e float64
	for _, r := range runes {
		p := float64(freq[r]) / float64(total)
		e -= p * math.Log2(p)
	}
	return e
}

// Tokenize splits s on every character that is not an ASCII letter, digit,
// or underscore, dropping empty tokens.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	}
	return false
}

// specialChars counts characters outside [a-zA-Z0-9]. Unlike Tokenize,
// underscore counts as special here.
func specialChars(s string) int {
	n := 0
	for _, r := range s {
		if r == '_' || !isWordRune(r) {
			n++
		}
	}
	return n
}
