// Package bridge implements the asset bridging state machine: value issued
// from the bridged chain, value locked here and unlocked there, and the two
// failure-compensation paths between them.
package bridge

import (
	"bytes"
	"fmt"
	"math/big"

	"lanebridge/core/events"
	"lanebridge/core/lane"
	"lanebridge/native/common"
	"lanebridge/native/identity"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Currency is the local fungible asset.
type Currency interface {
	FreeBalance(addr [20]byte) (*big.Int, error)
	DepositCreating(addr [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int, keepAlive bool) error
}

// MessageLane delivers payloads to the bridged chain.
type MessageLane interface {
	SendMessage(sender [20]byte, id lane.ID, payload []byte, fee *big.Int) (lane.SendResult, error)
	InboundLatestReceivedNonce(id lane.ID) (uint64, error)
}

// Config holds the static parameters of the bridge.
type Config struct {
	BridgedChainID    identity.ChainID
	Lane              lane.ID
	ModuleAccount     [20]byte
	MaxReceivedNonces int
	RemoteToken       [20]byte
}

type Engine struct {
	cfg      Config
	state    engineState
	currency Currency
	lane     MessageLane
	encoder  RemoteCallEncoder
	emitter  events.Emitter
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState)           { e.state = state }
func (e *Engine) SetCurrency(currency Currency)        { e.currency = currency }
func (e *Engine) SetLane(l MessageLane)                { e.lane = l }
func (e *Engine) SetEncoder(encoder RemoteCallEncoder) { e.encoder = encoder }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Config returns the static bridge parameters.
func (e *Engine) Config() Config { return e.cfg }

// ModuleAccount returns the custody account holding locked value.
func (e *Engine) ModuleAccount() [20]byte { return e.cfg.ModuleAccount }

func (e *Engine) store() (engineState, error) {
	if e.state == nil {
		return nil, fmt.Errorf("bridge: state not configured")
	}
	return e.state, nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) ready() error {
	if e.state == nil || e.currency == nil || e.lane == nil || e.encoder == nil {
		return fmt.Errorf("bridge: engine not fully configured")
	}
	return nil
}

// RemoteBackingAccount returns the configured backing account on the bridged
// chain.
func (e *Engine) RemoteBackingAccount() ([]byte, bool, error) {
	state, err := e.store()
	if err != nil {
		return nil, false, err
	}
	var account []byte
	ok, err := state.KVGet(remoteBackingKey, &account)
	if err != nil || !ok || len(account) == 0 {
		return nil, false, err
	}
	return account, true, nil
}

// authenticateBacking checks that the caller is the local account derived
// from the remote backing contract.
func (e *Engine) authenticateBacking(origin common.Origin) error {
	caller, err := common.EnsureSigned(origin)
	if err != nil {
		return err
	}
	backing, ok, err := e.RemoteBackingAccount()
	if err != nil {
		return err
	}
	if !ok {
		return ErrBackingAccountNone
	}
	expected := identity.Derive(e.cfg.BridgedChainID, identity.AccountSender(backing))
	if !bytes.Equal(caller[:], expected[:]) {
		return ErrBadOrigin
	}
	return nil
}

// IssueFromRemote mints value that the backing contract locked on the
// bridged chain and records the inbound nonce in the received window.
func (e *Engine) IssueFromRemote(origin common.Origin, value *big.Int, recipient [20]byte, burnPrunedMessages []uint64, maxLockPrunedNonce uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.authenticateBacking(origin); err != nil {
		return err
	}
	if value == nil || value.Sign() < 0 {
		return ErrInvalidAmount
	}
	limit, period, err := e.loadLimit()
	if err != nil {
		return err
	}
	next, err := admit(period, limit, value)
	if err != nil {
		return err
	}
	received, err := e.lane.InboundLatestReceivedNonce(e.cfg.Lane)
	if err != nil {
		return err
	}
	window, err := e.loadWindow()
	if err != nil {
		return err
	}
	if err := window.Insert(received); err != nil {
		return err
	}

	if period != 0 {
		if err := e.storeLimit(next); err != nil {
			return err
		}
	}
	if err := e.currency.DepositCreating(recipient, value); err != nil {
		return err
	}
	e.emit(events.BridgeTokenIssued{Recipient: recipient, Amount: new(big.Int).Set(value)})
	if err := e.storeWindow(window); err != nil {
		return err
	}
	return e.prune(burnPrunedMessages, maxLockPrunedNonce)
}

// BurnAndRemoteUnlock locks value plus fee in the module account and asks
// the backing contract to release value to recipient on the bridged chain.
func (e *Engine) BurnAndRemoteUnlock(origin common.Origin, specVersion uint32, weight, gasLimit uint64, value, fee *big.Int, recipient [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	caller, err := common.EnsureSigned(origin)
	if err != nil {
		return 0, err
	}
	if value == nil || value.Sign() < 0 || fee == nil || fee.Sign() < 0 {
		return 0, ErrInvalidAmount
	}
	total := new(big.Int).Add(value, fee)
	balance, err := e.currency.FreeBalance(caller)
	if err != nil {
		return 0, err
	}
	if balance.Cmp(total) <= 0 {
		return 0, ErrInsufficientBalance
	}
	if total.Sign() > 0 {
		if err := e.currency.Transfer(caller, e.cfg.ModuleAccount, total, true); err != nil {
			return 0, err
		}
	}
	call, err := e.encoder.EncodeUnlock(e.cfg.RemoteToken, recipient, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEvmEncodeFailed, err)
	}
	payload, err := EncodePayload(specVersion, weight, gasLimit, call)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEvmEncodeFailed, err)
	}
	sent, err := e.lane.SendMessage(e.cfg.ModuleAccount, e.cfg.Lane, payload, fee)
	if err != nil {
		return 0, err
	}
	if _, exists, err := e.getPending(e.cfg.Lane, sent.Nonce); err != nil {
		return 0, err
	} else if exists {
		return 0, ErrNonceDuplicated
	}
	if err := e.putPending(e.cfg.Lane, sent.Nonce, PendingTransfer{Owner: caller, Amount: new(big.Int).Set(value)}); err != nil {
		return 0, err
	}
	e.emit(events.BridgeTokenBurnAndRemoteUnlocked{
		Lane:      e.cfg.Lane,
		Nonce:     sent.Nonce,
		Sender:    caller,
		Recipient: recipient,
		Amount:    new(big.Int).Set(value),
		Fee:       new(big.Int).Set(fee),
	})
	return sent.Nonce, nil
}

// HandleIssuingFailureFromRemote refunds a locked transfer whose unlock
// failed on the bridged chain. Refunds are not counted by the limiter.
func (e *Engine) HandleIssuingFailureFromRemote(origin common.Origin, failureNonce uint64, burnPrunedMessages []uint64, maxLockPrunedNonce uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.authenticateBacking(origin); err != nil {
		return err
	}
	record, ok, err := e.takePending(e.cfg.Lane, failureNonce)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFailureInfoNE
	}
	if err := e.currency.DepositCreating(record.Owner, record.Amount); err != nil {
		return err
	}
	e.emit(events.BridgeTokenIssuedForFailure{
		Lane:   e.cfg.Lane,
		Nonce:  failureNonce,
		Owner:  record.Owner,
		Amount: new(big.Int).Set(record.Amount),
	})
	return e.prune(burnPrunedMessages, maxLockPrunedNonce)
}

// RemoteUnlockFailure reports to the bridged chain that the inbound message
// failureNonce was delivered but never issued here, so the backing contract
// can refund its sender.
func (e *Engine) RemoteUnlockFailure(origin common.Origin, specVersion uint32, weight, gasLimit uint64, failureNonce uint64, fee *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	caller, err := common.EnsureSigned(origin)
	if err != nil {
		return 0, err
	}
	if fee == nil || fee.Sign() < 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := e.currency.FreeBalance(caller)
	if err != nil {
		return 0, err
	}
	if balance.Cmp(fee) <= 0 {
		return 0, ErrInsufficientBalance
	}
	if fee.Sign() > 0 {
		if err := e.currency.Transfer(caller, e.cfg.ModuleAccount, fee, true); err != nil {
			return 0, err
		}
	}
	window, err := e.loadWindow()
	if err != nil {
		return 0, err
	}
	if window.Contains(failureNonce) {
		return 0, ErrMessageAlreadyIssued
	}
	received, err := e.lane.InboundLatestReceivedNonce(e.cfg.Lane)
	if err != nil {
		return 0, err
	}
	if failureNonce > received {
		return 0, ErrMessageNotDelivered
	}
	call, err := e.encoder.EncodeUnlockFailure(failureNonce)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEvmEncodeFailed, err)
	}
	payload, err := EncodePayload(specVersion, weight, gasLimit, call)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEvmEncodeFailed, err)
	}
	sent, err := e.lane.SendMessage(e.cfg.ModuleAccount, e.cfg.Lane, payload, fee)
	if err != nil {
		return 0, err
	}
	e.emit(events.BridgeRemoteUnlockForFailure{
		Lane:         e.cfg.Lane,
		FailureNonce: failureNonce,
		MessageNonce: sent.Nonce,
		Sender:       caller,
		Fee:          new(big.Int).Set(fee),
	})
	return sent.Nonce, nil
}

// SetRemoteBackingAccount replaces the backing account. An empty account
// unsets it. Root only.
func (e *Engine) SetRemoteBackingAccount(origin common.Origin, account []byte) error {
	if err := common.EnsureRoot(origin); err != nil {
		return err
	}
	state, err := e.store()
	if err != nil {
		return err
	}
	if len(account) == 0 {
		if err := state.KVDelete(remoteBackingKey); err != nil {
			return err
		}
	} else if err := state.KVPut(remoteBackingKey, account); err != nil {
		return err
	}
	e.emit(events.BridgeRemoteBackingAccountUpdated{Account: append([]byte(nil), account...)})
	return nil
}

// SetSecureLimitedPeriod sets the limiter period in blocks. Zero disables
// limiting. Root only.
func (e *Engine) SetSecureLimitedPeriod(origin common.Origin, period uint64) error {
	if err := common.EnsureRoot(origin); err != nil {
		return err
	}
	state, err := e.store()
	if err != nil {
		return err
	}
	if err := state.KVPut(limitPeriodKey, period); err != nil {
		return err
	}
	e.emit(events.BridgeSecureLimitedPeriodUpdated{Period: period})
	return nil
}

// SetSecurityLimitationRingAmount sets the per-period cap. Root only.
func (e *Engine) SetSecurityLimitationRingAmount(origin common.Origin, limit *big.Int) error {
	if err := common.EnsureRoot(origin); err != nil {
		return err
	}
	if limit == nil || limit.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, _, err := e.loadLimit()
	if err != nil {
		return err
	}
	current.Cap = new(big.Int).Set(limit)
	if err := e.storeLimit(current); err != nil {
		return err
	}
	e.emit(events.BridgeSecurityLimitationAmountUpdated{Cap: new(big.Int).Set(limit)})
	return nil
}
