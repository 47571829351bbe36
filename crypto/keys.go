package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressHRP is the bech32 human-readable part shared by every participant:
// donors, NGOs, beneficiaries, merchants, investors and module accounts.
const AddressHRP = "aid"

const addressLength = 20

// Format renders a raw identifier as an aid bech32 string.
func Format(addr [20]byte) string {
	conv, err := bech32.ConvertBits(addr[:], 8, 5, true)
	if err != nil {
		return "0x" + hex.EncodeToString(addr[:])
	}
	encoded, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		return "0x" + hex.EncodeToString(addr[:])
	}
	return encoded
}

// ParseAddress accepts either an aid bech32 address or a 0x-prefixed hex
// string and returns the raw identifier.
func ParseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return [20]byte{}, fmt.Errorf("address must not be empty")
	case strings.HasPrefix(trimmed, "0x"), strings.HasPrefix(trimmed, "0X"):
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return [20]byte{}, fmt.Errorf("invalid hex address: %w", err)
		}
		return toArray(raw)
	default:
		return decodeBech32(strings.ToLower(trimmed))
	}
}

func decodeBech32(value string) ([20]byte, error) {
	hrp, data, err := bech32.Decode(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid bech32 address: %w", err)
	}
	if hrp != AddressHRP {
		return [20]byte{}, fmt.Errorf("unexpected address prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid bech32 payload: %w", err)
	}
	return toArray(raw)
}

func toArray(raw []byte) ([20]byte, error) {
	var out [20]byte
	if len(raw) != addressLength {
		return out, fmt.Errorf("address must be %d bytes, got %d", addressLength, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// ModuleAddress derives the deterministic holding account of a ledger module
// from its name.
func ModuleAddress(name string) [20]byte {
	var out [20]byte
	digest := crypto.Keccak256([]byte("aidchain/module/" + strings.ToLower(strings.TrimSpace(name))))
	copy(out[:], digest[12:])
	return out
}
