// Package id parses and validates user-supplied wallet identifiers.
package id

import (
	"regexp"
	"strings"

	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
)

// Address is a syntactically valid wallet address. Validation is a
// character-set and length check only; no on-chain or cryptographic
// verification happens here.
type Address string

func (a Address) String() string { return string(a) }

// Base58 alphabet without 0, I, O and l, which are excluded to avoid visual
// ambiguity. Solana addresses are 32-44 characters of this alphabet.
var addressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ParseAddress validates input against the wallet address pattern.
func ParseAddress(input string) (Address, error) {
	trimmed := strings.TrimSpace(input)
	if !addressPattern.MatchString(trimmed) {
		return "", boterr.New(boterr.CodeUsage, "address must be 32-44 base58 characters")
	}
	return Address(trimmed), nil
}

// IsAddress reports whether input matches the wallet address pattern.
func IsAddress(input string) bool {
	_, err := ParseAddress(input)
	return err == nil
}
