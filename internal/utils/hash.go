package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// NameHash commits to a submitter's real name: keccak256 of the trimmed,
// whitespace-collapsed name. The name itself never leaves the relay.
func NameHash(name string) common.Hash {
	normalized := strings.Join(strings.Fields(name), " ")

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(normalized))

	var out common.Hash
	h.Sum(out[:0])
	return out
}

// ParseHash parses a 0x-prefixed 32-byte hex digest.
func ParseHash(s string) (common.Hash, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != 64 {
		return common.Hash{}, fmt.Errorf("expected 32 bytes of hex, got %d characters", len(raw))
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("not hex: %w", err)
	}
	return common.BytesToHash(b), nil
}
