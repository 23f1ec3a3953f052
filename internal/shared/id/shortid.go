// Package id generates Stripe-style prefixed identifiers ("res_xK9mP2vL3nQa").
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	DefaultLength = 12
)

const (
	// PrefixTemp marks a client-side id that has not been confirmed by storage yet.
	PrefixTemp     = "tmp"
	PrefixResource = "res"
	PrefixFunnel   = "fnl"
)

// Generate returns a cryptographically random base62 string.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

func GenerateWithPrefix(prefix string, length int) (string, error) {
	s, err := Generate(length)
	if err != nil {
		return "", err
	}
	return prefix + "_" + s, nil
}

// MustGenerateWithPrefix panics if the system random source fails.
func MustGenerateWithPrefix(prefix string) string {
	s, err := GenerateWithPrefix(prefix, DefaultLength)
	if err != nil {
		panic(err)
	}
	return s
}

// NewTempID returns an id for an optimistic entry awaiting its server id.
func NewTempID() string {
	return MustGenerateWithPrefix(PrefixTemp)
}

func NewResourceID() (string, error) {
	return GenerateWithPrefix(PrefixResource, DefaultLength)
}

func NewFunnelID() (string, error) {
	return GenerateWithPrefix(PrefixFunnel, DefaultLength)
}

// IsTemp reports whether id was produced by NewTempID.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, PrefixTemp+"_")
}

// ParsePrefixedID splits "prefix_short" at the first underscore.
func ParsePrefixedID(prefixedID string) (prefix, shortID string, err error) {
	prefix, shortID, ok := strings.Cut(prefixedID, "_")
	if !ok {
		return "", "", fmt.Errorf("invalid prefixed ID format: %s", prefixedID)
	}
	return prefix, shortID, nil
}

// ValidatePrefix checks that prefixedID carries expectedPrefix and a non-empty body.
func ValidatePrefix(prefixedID, expectedPrefix string) error {
	prefix, shortID, err := ParsePrefixedID(prefixedID)
	if err != nil {
		return err
	}
	if prefix != expectedPrefix {
		return fmt.Errorf("invalid prefix: expected %s, got %s", expectedPrefix, prefix)
	}
	if shortID == "" {
		return fmt.Errorf("empty id after prefix %s", prefix)
	}
	return nil
}
