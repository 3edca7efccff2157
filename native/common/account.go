package common

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"lanebridge/crypto"
)

// AccountParam is a 20-byte account in call parameters. It accepts bech32 or
// 0x-prefixed hex and renders as bech32.
type AccountParam [20]byte

func (a AccountParam) MarshalJSON() ([]byte, error) {
	return json.Marshal(crypto.AccountAddress(a).String())
}

func (a *AccountParam) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAccount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAccount decodes a bech32 or 0x-prefixed hex account.
func ParseAccount(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		decoded, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return out, fmt.Errorf("invalid hex account: %w", err)
		}
		if len(decoded) != len(out) {
			return out, fmt.Errorf("account must be 20 bytes, got %d", len(decoded))
		}
		copy(out[:], decoded)
		return out, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	return addr.Array(), nil
}

// HexBytes is a byte slice rendered as 0x-prefixed hex in JSON.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = decoded
	return nil
}
