package runtime

import (
	"encoding/hex"
	"fmt"
	"strings"

	"lanebridge/core/genesis"
	"lanebridge/native/common"
	"lanebridge/native/router"
)

// ApplyGenesis writes the initial state described by spec. It runs every
// setter under the root origin so the usual validation applies.
func (rt *Runtime) ApplyGenesis(spec *genesis.Spec) error {
	if spec == nil {
		return nil
	}
	root := common.RootOrigin()

	for _, alloc := range spec.SortedBalances() {
		if err := rt.bank.DepositCreating(alloc.Account, alloc.Amount); err != nil {
			return fmt.Errorf("genesis balance: %w", err)
		}
	}

	if raw := strings.TrimSpace(spec.Bridge.RemoteBackingAccount); raw != "" {
		account, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return fmt.Errorf("genesis bridge.remoteBackingAccount: %w", err)
		}
		if err := rt.bridge.SetRemoteBackingAccount(root, account); err != nil {
			return fmt.Errorf("genesis bridge.remoteBackingAccount: %w", err)
		}
	}
	if spec.Bridge.SecureLimitedPeriod > 0 {
		if err := rt.bridge.SetSecureLimitedPeriod(root, spec.Bridge.SecureLimitedPeriod); err != nil {
			return fmt.Errorf("genesis bridge.secureLimitedPeriod: %w", err)
		}
	}
	if spec.Bridge.SecurityLimitationRingAmount != "" {
		limit, err := genesis.ParseAmount(spec.Bridge.SecurityLimitationRingAmount)
		if err != nil {
			return err
		}
		if err := rt.bridge.SetSecurityLimitationRingAmount(root, limit); err != nil {
			return fmt.Errorf("genesis bridge.securityLimitationRingAmount: %w", err)
		}
	}

	for _, target := range spec.Router.Targets {
		loc, err := router.ParseLocation(target.Location)
		if err != nil {
			return err
		}
		rate, err := genesis.ParseAmount(target.Rate)
		if err != nil {
			return err
		}
		if err := rt.router.SetTargetXcmExecConfig(root, loc, rate); err != nil {
			return fmt.Errorf("genesis router target %s: %w", target.Location, err)
		}
	}

	if spec.Finality != nil {
		hash, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(spec.Finality.Hash), "0x"))
		if err != nil {
			return fmt.Errorf("genesis finality.hash: %w", err)
		}
		if err := rt.finality.NoteFinalized(hash, spec.Finality.Number); err != nil {
			return fmt.Errorf("genesis finality: %w", err)
		}
	}

	if err := rt.params.SetPauses(spec.Pauses); err != nil {
		return fmt.Errorf("genesis pauses: %w", err)
	}
	rt.journal.Drain()
	return nil
}
