package bridge

import (
	"fmt"
	"math/big"

	"lanebridge/native/common"
)

const moduleName = "bridge"

type IssueFromRemoteCall struct {
	Engine             *Engine             `json:"-"`
	Value              *big.Int            `json:"value"`
	Recipient          common.AccountParam `json:"recipient"`
	BurnPrunedMessages []uint64            `json:"burnPrunedMessages"`
	MaxLockPrunedNonce uint64              `json:"maxLockPrunedNonce"`
}

func (IssueFromRemoteCall) Module() string { return moduleName }
func (IssueFromRemoteCall) Method() string { return "issue_from_remote" }

func (c IssueFromRemoteCall) Execute(ctx *common.CallContext) error {
	return c.Engine.IssueFromRemote(ctx.Origin, c.Value, [20]byte(c.Recipient), c.BurnPrunedMessages, c.MaxLockPrunedNonce)
}

type BurnAndRemoteUnlockCall struct {
	Engine      *Engine         `json:"-"`
	SpecVersion uint32          `json:"specVersion"`
	Weight      uint64          `json:"weight"`
	GasLimit    uint64          `json:"gasLimit"`
	Value       *big.Int        `json:"value"`
	Fee         *big.Int        `json:"fee"`
	Recipient   common.HexBytes `json:"recipient"`
}

func (BurnAndRemoteUnlockCall) Module() string { return moduleName }
func (BurnAndRemoteUnlockCall) Method() string { return "burn_and_remote_unlock" }

func (c BurnAndRemoteUnlockCall) Execute(ctx *common.CallContext) error {
	var recipient [20]byte
	if len(c.Recipient) != len(recipient) {
		return fmt.Errorf("%w: got %d", ErrInvalidRecipient, len(c.Recipient))
	}
	copy(recipient[:], c.Recipient)
	_, err := c.Engine.BurnAndRemoteUnlock(ctx.Origin, c.SpecVersion, c.Weight, c.GasLimit, c.Value, c.Fee, recipient)
	return err
}

type HandleIssuingFailureFromRemoteCall struct {
	Engine             *Engine  `json:"-"`
	FailureNonce       uint64   `json:"failureNonce"`
	BurnPrunedMessages []uint64 `json:"burnPrunedMessages"`
	MaxLockPrunedNonce uint64   `json:"maxLockPrunedNonce"`
}

func (HandleIssuingFailureFromRemoteCall) Module() string { return moduleName }
func (HandleIssuingFailureFromRemoteCall) Method() string {
	return "handle_issuing_failure_from_remote"
}

func (c HandleIssuingFailureFromRemoteCall) Execute(ctx *common.CallContext) error {
	return c.Engine.HandleIssuingFailureFromRemote(ctx.Origin, c.FailureNonce, c.BurnPrunedMessages, c.MaxLockPrunedNonce)
}

type RemoteUnlockFailureCall struct {
	Engine       *Engine  `json:"-"`
	SpecVersion  uint32   `json:"specVersion"`
	Weight       uint64   `json:"weight"`
	GasLimit     uint64   `json:"gasLimit"`
	FailureNonce uint64   `json:"failureNonce"`
	Fee          *big.Int `json:"fee"`
}

func (RemoteUnlockFailureCall) Module() string { return moduleName }
func (RemoteUnlockFailureCall) Method() string { return "remote_unlock_failure" }

func (c RemoteUnlockFailureCall) Execute(ctx *common.CallContext) error {
	_, err := c.Engine.RemoteUnlockFailure(ctx.Origin, c.SpecVersion, c.Weight, c.GasLimit, c.FailureNonce, c.Fee)
	return err
}

type SetRemoteBackingAccountCall struct {
	Engine  *Engine         `json:"-"`
	Account common.HexBytes `json:"account"`
}

func (SetRemoteBackingAccountCall) Module() string { return moduleName }
func (SetRemoteBackingAccountCall) Method() string { return "set_remote_backing_account" }

func (c SetRemoteBackingAccountCall) Execute(ctx *common.CallContext) error {
	return c.Engine.SetRemoteBackingAccount(ctx.Origin, c.Account)
}

type SetSecureLimitedPeriodCall struct {
	Engine *Engine `json:"-"`
	Period uint64  `json:"period"`
}

func (SetSecureLimitedPeriodCall) Module() string { return moduleName }
func (SetSecureLimitedPeriodCall) Method() string { return "set_secure_limited_period" }

func (c SetSecureLimitedPeriodCall) Execute(ctx *common.CallContext) error {
	return c.Engine.SetSecureLimitedPeriod(ctx.Origin, c.Period)
}

type SetSecurityLimitationRingAmountCall struct {
	Engine *Engine  `json:"-"`
	Limit  *big.Int `json:"limit"`
}

func (SetSecurityLimitationRingAmountCall) Module() string { return moduleName }
func (SetSecurityLimitationRingAmountCall) Method() string {
	return "set_security_limitation_ring_amount"
}

func (c SetSecurityLimitationRingAmountCall) Execute(ctx *common.CallContext) error {
	return c.Engine.SetSecurityLimitationRingAmount(ctx.Origin, c.Limit)
}
