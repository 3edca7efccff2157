package config

import (
	"fmt"
	"math/big"
	"strings"
)

func parseAmount(field, raw string) error {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("%s: must not be negative", field)
	}
	return nil
}

func ValidateConfig(c *Config) error {
	if c.BlockIntervalMs <= 0 {
		return fmt.Errorf("blocks: interval must be positive")
	}
	if c.MaxBlockTxs <= 0 {
		return fmt.Errorf("blocks: max_txs <= 0")
	}
	if c.MempoolSize <= 0 {
		return fmt.Errorf("mempool: size <= 0")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "memory", "leveldb":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if c.Bridge.MaxReceivedNonces <= 0 {
		return fmt.Errorf("bridge: max_received_nonces must be positive")
	}
	if strings.TrimSpace(c.Bridge.ModuleID) == "" {
		return fmt.Errorf("bridge: module id required")
	}
	if c.Safeguard.CheckInterval == 0 {
		return fmt.Errorf("safeguard: check_interval must be positive")
	}
	if c.Router.MaxInstructions <= 0 {
		return fmt.Errorf("router: max_instructions must be positive")
	}
	if c.Router.UnitWeightPerSecond == 0 {
		return fmt.Errorf("router: unit_weight_per_second must be positive")
	}
	for i, target := range c.Router.Targets {
		if strings.TrimSpace(target.Location) == "" {
			return fmt.Errorf("router: target %d missing location", i)
		}
		if err := parseAmount(fmt.Sprintf("router: target %d rate", i), target.Rate); err != nil {
			return err
		}
	}
	if err := parseAmount("bank: existential_deposit", c.Bank.ExistentialDeposit); err != nil {
		return err
	}
	if err := parseAmount("bank: tx_fee", c.Bank.TxFee); err != nil {
		return err
	}
	if c.RPC.RateLimitPerSec < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limit must not be negative")
	}
	return nil
}
