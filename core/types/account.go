package types

import "math/big"

// Account holds the native balance and replay nonce of a local account.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
