package bridge

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// RemoteCallEncoder produces calldata for the backing contract on the
// bridged chain.
type RemoteCallEncoder interface {
	EncodeUnlock(token, recipient [20]byte, amount *big.Int) ([]byte, error)
	EncodeUnlockFailure(failureNonce uint64) ([]byte, error)
}

const backingContractABI = `[
	{"type":"function","name":"unlockFromRemote","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"handleUnlockFailureFromRemote","stateMutability":"nonpayable","inputs":[
		{"name":"messageNonce","type":"uint256"}],"outputs":[]}
]`

// ABIEncoder encodes calls with the backing contract's Solidity ABI.
type ABIEncoder struct {
	abi abi.ABI
}

func NewABIEncoder() (*ABIEncoder, error) {
	parsed, err := abi.JSON(strings.NewReader(backingContractABI))
	if err != nil {
		return nil, fmt.Errorf("bridge: parse backing abi: %w", err)
	}
	return &ABIEncoder{abi: parsed}, nil
}

func (a *ABIEncoder) EncodeUnlock(token, recipient [20]byte, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount out of range")
	}
	return a.abi.Pack("unlockFromRemote", gethcommon.Address(token), gethcommon.Address(recipient), amount)
}

func (a *ABIEncoder) EncodeUnlockFailure(failureNonce uint64) ([]byte, error) {
	return a.abi.Pack("handleUnlockFailureFromRemote", new(big.Int).SetUint64(failureNonce))
}

// RemotePayload is the lane payload delivered to the bridged chain.
type RemotePayload struct {
	SpecVersion uint32
	Weight      uint64
	GasLimit    uint64
	Call        []byte
}

// EncodePayload wraps calldata together with its dispatch parameters.
func EncodePayload(specVersion uint32, weight, gasLimit uint64, call []byte) ([]byte, error) {
	return rlp.EncodeToBytes(&RemotePayload{
		SpecVersion: specVersion,
		Weight:      weight,
		GasLimit:    gasLimit,
		Call:        call,
	})
}

// DecodePayload reverses EncodePayload.
func DecodePayload(data []byte) (*RemotePayload, error) {
	payload := new(RemotePayload)
	if err := rlp.DecodeBytes(data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
