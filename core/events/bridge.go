package events

import (
	"math/big"

	"lanebridge/core/types"
)

const (
	TypeBridgeTokenIssued                     = "bridge.token_issued"
	TypeBridgeTokenBurnAndRemoteUnlocked      = "bridge.token_burn_and_remote_unlocked"
	TypeBridgeTokenIssuedForFailure           = "bridge.token_issued_for_failure"
	TypeBridgeRemoteUnlockForFailure          = "bridge.remote_unlock_for_failure"
	TypeBridgeRemoteBackingAccountUpdated     = "bridge.remote_backing_account_updated"
	TypeBridgeSecureLimitedPeriodUpdated      = "bridge.secure_limited_period_updated"
	TypeBridgeSecurityLimitationAmountUpdated = "bridge.security_limitation_amount_updated"
)

// BridgeTokenIssued is emitted when value backed on the remote chain is minted
// locally.
type BridgeTokenIssued struct {
	Recipient [20]byte
	Amount    *big.Int
}

func (BridgeTokenIssued) EventType() string { return TypeBridgeTokenIssued }

func (e BridgeTokenIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeTokenIssued,
		Attributes: map[string]string{
			"recipient": formatAccount(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// BridgeTokenBurnAndRemoteUnlocked is emitted when local value is locked and
// an unlock request is sent to the remote chain.
type BridgeTokenBurnAndRemoteUnlocked struct {
	Lane      [4]byte
	Nonce     uint64
	Sender    [20]byte
	Recipient [20]byte
	Amount    *big.Int
	Fee       *big.Int
}

func (BridgeTokenBurnAndRemoteUnlocked) EventType() string {
	return TypeBridgeTokenBurnAndRemoteUnlocked
}

func (e BridgeTokenBurnAndRemoteUnlocked) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeTokenBurnAndRemoteUnlocked,
		Attributes: map[string]string{
			"lane":      formatHex(e.Lane[:]),
			"nonce":     formatUint(e.Nonce),
			"sender":    formatAccount(e.Sender),
			"recipient": formatHex(e.Recipient[:]),
			"amount":    formatAmount(e.Amount),
			"fee":       formatAmount(e.Fee),
		},
	}
}

// BridgeTokenIssuedForFailure is emitted when a failed remote unlock is
// refunded to the original owner.
type BridgeTokenIssuedForFailure struct {
	Lane   [4]byte
	Nonce  uint64
	Owner  [20]byte
	Amount *big.Int
}

func (BridgeTokenIssuedForFailure) EventType() string { return TypeBridgeTokenIssuedForFailure }

func (e BridgeTokenIssuedForFailure) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeTokenIssuedForFailure,
		Attributes: map[string]string{
			"lane":   formatHex(e.Lane[:]),
			"nonce":  formatUint(e.Nonce),
			"owner":  formatAccount(e.Owner),
			"amount": formatAmount(e.Amount),
		},
	}
}

// BridgeRemoteUnlockForFailure is emitted when a failure report for an
// inbound issue is sent back to the remote chain.
type BridgeRemoteUnlockForFailure struct {
	Lane         [4]byte
	FailureNonce uint64
	MessageNonce uint64
	Sender       [20]byte
	Fee          *big.Int
}

func (BridgeRemoteUnlockForFailure) EventType() string { return TypeBridgeRemoteUnlockForFailure }

func (e BridgeRemoteUnlockForFailure) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeRemoteUnlockForFailure,
		Attributes: map[string]string{
			"lane":         formatHex(e.Lane[:]),
			"failureNonce": formatUint(e.FailureNonce),
			"messageNonce": formatUint(e.MessageNonce),
			"sender":       formatAccount(e.Sender),
			"fee":          formatAmount(e.Fee),
		},
	}
}

type BridgeRemoteBackingAccountUpdated struct {
	Account []byte
}

func (BridgeRemoteBackingAccountUpdated) EventType() string {
	return TypeBridgeRemoteBackingAccountUpdated
}

func (e BridgeRemoteBackingAccountUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeBridgeRemoteBackingAccountUpdated,
		Attributes: map[string]string{"account": formatHex(e.Account)},
	}
}

type BridgeSecureLimitedPeriodUpdated struct {
	Period uint64
}

func (BridgeSecureLimitedPeriodUpdated) EventType() string {
	return TypeBridgeSecureLimitedPeriodUpdated
}

func (e BridgeSecureLimitedPeriodUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeBridgeSecureLimitedPeriodUpdated,
		Attributes: map[string]string{"period": formatUint(e.Period)},
	}
}

type BridgeSecurityLimitationAmountUpdated struct {
	Cap *big.Int
}

func (BridgeSecurityLimitationAmountUpdated) EventType() string {
	return TypeBridgeSecurityLimitationAmountUpdated
}

func (e BridgeSecurityLimitationAmountUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeBridgeSecurityLimitationAmountUpdated,
		Attributes: map[string]string{"cap": formatAmount(e.Cap)},
	}
}
