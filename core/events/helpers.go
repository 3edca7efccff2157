package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"lanebridge/crypto"
)

func formatAccount(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.AccountAddress(addr).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

func formatResult(err string) string {
	if err == "" {
		return "ok"
	}
	return err
}
