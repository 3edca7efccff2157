package router

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// InstructionKind enumerates the instructions the router emits or forwards.
type InstructionKind uint8

const (
	WithdrawAsset InstructionKind = iota + 1
	BuyExecution
	DescendOrigin
	Transact
	RefundSurplus
	DepositAsset
	ClearOrigin
)

var instructionNames = map[InstructionKind]string{
	WithdrawAsset: "WithdrawAsset",
	BuyExecution:  "BuyExecution",
	DescendOrigin: "DescendOrigin",
	Transact:      "Transact",
	RefundSurplus: "RefundSurplus",
	DepositAsset:  "DepositAsset",
	ClearOrigin:   "ClearOrigin",
}

func (k InstructionKind) String() string {
	if name, ok := instructionNames[k]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(k)) + ")"
}

func (k InstructionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *InstructionKind) UnmarshalText(text []byte) error {
	for kind, name := range instructionNames {
		if strings.EqualFold(name, string(text)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("router: unknown instruction %q", text)
}

// Asset is a fungible amount of the asset identified by ID.
type Asset struct {
	ID     Location `json:"id"`
	Amount *big.Int `json:"amount"`
}

// Instruction is a single step of a cross-chain program. Fields not used by
// Kind are left zero.
type Instruction struct {
	Kind        InstructionKind `json:"kind"`
	Assets      []Asset         `json:"assets,omitempty"`
	WeightLimit uint64          `json:"weightLimit,omitempty"`
	Interior    []Junction      `json:"interior,omitempty"`
	Beneficiary Location        `json:"beneficiary"`
	Call        []byte          `json:"call,omitempty"`
}

// Message is an ordered program executed on the destination.
type Message []Instruction

// Hash returns the blake3 digest of the RLP-encoded message.
func (m Message) Hash() ([]byte, error) {
	enc, err := rlp.EncodeToBytes(m)
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(enc)
	return sum[:], nil
}
