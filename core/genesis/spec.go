// Package genesis loads the initial chain state description.
package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"lanebridge/config"
	"lanebridge/native/common"
	"lanebridge/native/router"
)

// Spec is the YAML genesis document.
type Spec struct {
	Balances []BalanceSpec     `yaml:"balances"`
	Bridge   BridgeSpec        `yaml:"bridge"`
	Router   RouterSpec        `yaml:"router"`
	Finality *CheckpointSpec   `yaml:"finality,omitempty"`
	Pauses   config.Pauses     `yaml:"pauses"`
	Inbound  map[string]uint64 `yaml:"inbound,omitempty"`

	balances []Balance
}

type BalanceSpec struct {
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

// Balance is a parsed allocation.
type Balance struct {
	Account [20]byte
	Amount  *big.Int
}

type BridgeSpec struct {
	// RemoteBackingAccount is the hex address of the backing contract on
	// the bridged chain. Empty leaves it unset.
	RemoteBackingAccount         string `yaml:"remoteBackingAccount"`
	SecureLimitedPeriod          uint64 `yaml:"secureLimitedPeriod"`
	SecurityLimitationRingAmount string `yaml:"securityLimitationRingAmount"`
}

type RouterSpec struct {
	Targets []config.RouterTarget `yaml:"targets"`
}

type CheckpointSpec struct {
	Hash   string `yaml:"hash"`
	Number uint64 `yaml:"number"`
}

// Load reads and validates a genesis document. Unknown fields are rejected.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a genesis document.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks amounts and addresses and caches the parsed balances.
func (s *Spec) Validate() error {
	seen := make(map[[20]byte]struct{}, len(s.Balances))
	parsed := make([]Balance, 0, len(s.Balances))
	for i, b := range s.Balances {
		addr, err := common.ParseAccount(b.Account)
		if err != nil {
			return fmt.Errorf("balances[%d].account: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("balances[%d]: duplicate account %s", i, b.Account)
		}
		seen[addr] = struct{}{}
		amount, err := ParseAmount(b.Amount)
		if err != nil {
			return fmt.Errorf("balances[%d].amount: %w", i, err)
		}
		parsed = append(parsed, Balance{Account: addr, Amount: amount})
	}
	sort.Slice(parsed, func(i, j int) bool {
		return bytes.Compare(parsed[i].Account[:], parsed[j].Account[:]) < 0
	})
	s.balances = parsed

	if s.Bridge.SecurityLimitationRingAmount != "" {
		if _, err := ParseAmount(s.Bridge.SecurityLimitationRingAmount); err != nil {
			return fmt.Errorf("bridge.securityLimitationRingAmount: %w", err)
		}
	}
	for i, target := range s.Router.Targets {
		if _, err := router.ParseLocation(target.Location); err != nil {
			return fmt.Errorf("router.targets[%d].location: %w", i, err)
		}
		if _, err := ParseAmount(target.Rate); err != nil {
			return fmt.Errorf("router.targets[%d].rate: %w", i, err)
		}
	}
	return nil
}

// SortedBalances returns the allocations ordered by account.
func (s *Spec) SortedBalances() []Balance {
	return s.balances
}

// ParseAmount parses a non-negative base-10 integer.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
