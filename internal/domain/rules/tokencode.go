package rules

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet excludes O, 0, I and 1 so codes survive being read aloud or
// retyped from a screenshot.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeRawLength = 16
	codeGroupSize = 4
)

func NewTokenCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))

	raw := make([]byte, codeRawLength)
	for i := range raw {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		raw[i] = codeAlphabet[n.Int64()]
	}

	var b strings.Builder
	for i := 0; i < codeRawLength; i += codeGroupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		b.Write(raw[i : i+codeGroupSize])
	}
	return b.String(), nil
}
