package core

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

var randomAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomString returns a cryptographically random string of length n drawn
// from an unambiguous alphanumeric alphabet (no 0/O, 1/l/I).
func RandomString(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(randomAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		sb.WriteByte(randomAlphabet[idx.Int64()])
	}
	return sb.String()
}
