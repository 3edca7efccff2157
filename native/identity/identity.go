// Package identity derives the local accounts that stand for senders on a
// remote chain. Derivation is pure: it never reads state, so the same inputs
// always authenticate the same local account.
package identity

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ChainID identifies a chain by four bytes.
type ChainID [4]byte

// SenderKind distinguishes the remote chain's root from ordinary accounts.
type SenderKind uint8

const (
	SenderRoot SenderKind = iota
	SenderAccount
)

// Sender is a logical sender on a remote chain.
type Sender struct {
	Kind    SenderKind
	Account []byte
}

// RootSender returns the remote chain's root sender.
func RootSender() Sender { return Sender{Kind: SenderRoot} }

// AccountSender returns the sender for a remote account.
func AccountSender(account []byte) Sender {
	return Sender{Kind: SenderAccount, Account: append([]byte(nil), account...)}
}

var (
	rootDomain    = []byte("bridge/derive/root")
	accountDomain = []byte("bridge/derive/account")
	kindDomain    = []byte("bridge/derive/kind/")
	moduleDomain  = []byte("module/")
)

var ErrInvalidChainID = errors.New("identity: invalid chain id")

// Derive maps a remote (chain, sender) pair to a local account. Every sender
// kind has its own domain tag and account bytes are length prefixed, so no
// two inputs share an encoding. Kinds other than root and account are tagged
// with their kind byte.
func Derive(chain ChainID, sender Sender) [20]byte {
	var buf []byte
	switch sender.Kind {
	case SenderRoot:
		buf = make([]byte, 0, len(rootDomain)+len(chain))
		buf = append(buf, rootDomain...)
		buf = append(buf, chain[:]...)
	case SenderAccount:
		buf = appendAccount(append([]byte(nil), accountDomain...), chain, sender.Account)
	default:
		tag := append(append([]byte(nil), kindDomain...), byte(sender.Kind))
		buf = appendAccount(tag, chain, sender.Account)
	}
	hash := ethcrypto.Keccak256(buf)
	var out [20]byte
	copy(out[:], hash[len(hash)-20:])
	return out
}

func appendAccount(buf []byte, chain ChainID, account []byte) []byte {
	buf = append(buf, chain[:]...)
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(account)))
	buf = append(buf, size[:]...)
	return append(buf, account...)
}

// ModuleAccount returns the custody account owned by a local module.
func ModuleAccount(id string) [20]byte {
	hash := ethcrypto.Keccak256(append(append([]byte(nil), moduleDomain...), id...))
	var out [20]byte
	copy(out[:], hash[len(hash)-20:])
	return out
}

// ParseChainID accepts four ASCII characters (e.g. "pang") or an 0x-prefixed
// 8 digit hex string.
func ParseChainID(raw string) (ChainID, error) {
	var id ChainID
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		decoded, err := hex.DecodeString(trimmed[2:])
		if err != nil || len(decoded) != len(id) {
			return id, fmt.Errorf("%w: %q", ErrInvalidChainID, raw)
		}
		copy(id[:], decoded)
		return id, nil
	}
	if len(trimmed) != len(id) {
		return id, fmt.Errorf("%w: %q", ErrInvalidChainID, raw)
	}
	copy(id[:], trimmed)
	return id, nil
}

func (c ChainID) String() string {
	for _, b := range c {
		if b < 0x20 || b > 0x7e {
			return "0x" + hex.EncodeToString(c[:])
		}
	}
	return string(c[:])
}
