// Package solana provides helpers for the base58 ed25519 address space.
package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of a Solana public key.
const AddressLength = 32

// ValidateAddress checks that addr is a well-formed base58 public key.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(decoded) != AddressLength {
		return fmt.Errorf("address %q decodes to %d bytes, want %d", addr, len(decoded), AddressLength)
	}
	return nil
}

// IsOnCurve reports whether a 32-byte point lies on the ed25519 curve.
// Wallet addresses are on-curve; program derived addresses are not.
func IsOnCurve(point []byte) bool {
	if len(point) != AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// IsWalletAddress reports whether addr is a valid base58 public key on
// the curve. Program derived addresses and malformed strings return
// false.
func IsWalletAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return IsOnCurve(decoded)
}
