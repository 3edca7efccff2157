package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrMissingSignature is returned when recovering the sender of an unsigned
// transaction.
var ErrMissingSignature = errors.New("transaction: missing signature")

// Transaction invokes a native module call. Params carry the call arguments
// in their JSON wire form.
type Transaction struct {
	ChainID uint64          `json:"chainId"`
	Nonce   uint64          `json:"nonce"`
	Module  string          `json:"module"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	// Root marks a call admitted through the authenticated operator path.
	// It is never part of the signed payload.
	Root bool `json:"-"`

	from []byte
}

// Hash returns the keccak256 digest of the signed payload.
func (tx *Transaction) Hash() ([]byte, error) {
	payload := struct {
		ChainID uint64
		Nonce   uint64
		Module  string
		Method  string
		Params  []byte
	}{tx.ChainID, tx.Nonce, tx.Module, tx.Method, []byte(tx.Params)}

	b, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the 20-byte signer of the transaction.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}
