package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"unicode"
	"unicode/utf8"
)

const tokenBytes = 32

// NewToken returns an opaque, URL-safe bearer token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Initials derives the avatar text shown for a user: the first letters of
// the first two words, or the first two letters of a single word.
func Initials(name string) string {
	parts := strings.Fields(name)
	var out []rune
	switch len(parts) {
	case 0:
		return ""
	case 1:
		out = []rune(parts[0])
		out = out[:min(2, len(out))]
	default:
		r0, _ := utf8.DecodeRuneInString(parts[0])
		r1, _ := utf8.DecodeRuneInString(parts[1])
		out = []rune{r0, r1}
	}
	for i, r := range out {
		out[i] = unicode.ToUpper(r)
	}
	return string(out)
}
