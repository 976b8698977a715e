package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Commitment derives the deposit commitment from a secret pair. The preimage
// is the raw 64-byte concatenation of nullifier and secret; ABI tuple
// encoding pads the operands and yields a different hash, so it must never be
// used anywhere in the stack.
func Commitment(nullifier, secret [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash(nullifier[:], secret[:])
}

// NewSecretPair draws a fresh (nullifier, secret) pair from crypto/rand.
func NewSecretPair() (nullifier, secret [32]byte, err error) {
	if _, err = rand.Read(nullifier[:]); err != nil {
		return
	}
	_, err = rand.Read(secret[:])
	return
}

// ParseHash32 decodes a 0x-prefixed 64-character hex string into a 32-byte
// value. Anything else is rejected.
func ParseHash32(s string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return out, fmt.Errorf("hash must be 0x-prefixed: %q", s)
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil {
		return out, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("hash must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// FormatHash32 renders a 32-byte value as a 0x-prefixed hex string.
func FormatHash32(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}
