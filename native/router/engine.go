// Package router forwards cross-chain programs on behalf of local accounts.
// The caller pays for remote execution up front; the router wraps the
// program so the destination withdraws that payment from this chain's
// sovereign account, buys execution and refunds the surplus to the caller.
package router

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"lanebridge/core/events"
	"lanebridge/native/common"
)

var (
	ErrTargetXcmExecNotConfig = errors.New("router: target execution fee not configured")
	ErrFailedPayXcmFee        = errors.New("router: failed to pay execution fee")
	ErrInvalidRate            = errors.New("router: rate must not be negative")
)

var targetIndexKey = []byte("router/targets")

func targetKey(target Location) []byte {
	return []byte("router/target/" + target.String())
}

// Currency moves the native asset between local accounts.
type Currency interface {
	Transfer(from, to [20]byte, amount *big.Int, keepAlive bool) error
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Config holds the static router parameters.
type Config struct {
	SelfParachain       uint32
	UnitWeightPerSecond uint64
	// MaxLocalWeight bounds the weight of the local fee payment. Zero means
	// no bound.
	MaxLocalWeight uint64
}

// ForwardResult describes a forwarded message.
type ForwardResult struct {
	Hash        []byte
	Weight      uint64
	LocalWeight uint64
	Amount      *big.Int
}

type Engine struct {
	cfg          Config
	state        engineState
	currency     Currency
	weigher      Weigher
	localWeigher Weigher
	sender       Sender
	emitter      events.Emitter
}

func NewEngine(cfg Config) *Engine {
	if cfg.UnitWeightPerSecond == 0 {
		cfg.UnitWeightPerSecond = 1
	}
	return &Engine{cfg: cfg, emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState)    { e.state = state }
func (e *Engine) SetCurrency(currency Currency) { e.currency = currency }
func (e *Engine) SetWeigher(w Weigher)          { e.weigher = w }
func (e *Engine) SetLocalWeigher(w Weigher)     { e.localWeigher = w }
func (e *Engine) SetSender(sender Sender)       { e.sender = sender }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Universal returns the interior of this chain's universal location.
func (e *Engine) Universal() []Junction {
	return []Junction{Parachain(e.cfg.SelfParachain)}
}

// SovereignAccount returns the local account controlled by target.
func SovereignAccount(target Location) [20]byte {
	enc, err := rlp.EncodeToBytes(target)
	if err != nil {
		panic(fmt.Sprintf("router: encode location: %v", err))
	}
	hash := ethcrypto.Keccak256(append([]byte("router/sovereign/"), enc...))
	var out [20]byte
	copy(out[:], hash[len(hash)-20:])
	return out
}

func (e *Engine) ready() error {
	if e.state == nil || e.currency == nil || e.weigher == nil || e.sender == nil {
		return fmt.Errorf("router: engine not fully configured")
	}
	return nil
}

// TargetRate returns the fee rate configured for target.
func (e *Engine) TargetRate(target Location) (*big.Int, bool, error) {
	if e.state == nil {
		return nil, false, fmt.Errorf("router: state not configured")
	}
	rate := new(big.Int)
	ok, err := e.state.KVGet(targetKey(target), rate)
	if err != nil || !ok {
		return nil, false, err
	}
	return rate, true, nil
}

// Targets lists every configured destination.
func (e *Engine) Targets() ([]string, error) {
	if e.state == nil {
		return nil, fmt.Errorf("router: state not configured")
	}
	var index []string
	if _, err := e.state.KVGet(targetIndexKey, &index); err != nil {
		return nil, err
	}
	return index, nil
}

// SetTargetXcmExecConfig sets the per-second execution fee rate charged for
// target. A zero rate removes the target. Root only.
func (e *Engine) SetTargetXcmExecConfig(origin common.Origin, target Location, rate *big.Int) error {
	if err := common.EnsureRoot(origin); err != nil {
		return err
	}
	if e.state == nil {
		return fmt.Errorf("router: state not configured")
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	index, err := e.Targets()
	if err != nil {
		return err
	}
	name := target.String()
	pos := -1
	for i, existing := range index {
		if existing == name {
			pos = i
			break
		}
	}
	if rate.Sign() == 0 {
		if err := e.state.KVDelete(targetKey(target)); err != nil {
			return err
		}
		if pos >= 0 {
			index = append(index[:pos], index[pos+1:]...)
		}
	} else {
		if err := e.state.KVPut(targetKey(target), rate); err != nil {
			return err
		}
		if pos < 0 {
			index = append(index, name)
		}
	}
	if err := e.state.KVPut(targetIndexKey, index); err != nil {
		return err
	}
	e.emitter.Emit(events.RouterTargetXcmExecConfigUpdated{Target: name, Rate: new(big.Int).Set(rate)})
	return nil
}

func feeAmount(rate *big.Int, weight, perSecond uint64) (*big.Int, error) {
	r, overflow := uint256.FromBig(rate)
	if overflow {
		return nil, ErrUnweighableMessage
	}
	amount, overflow := new(uint256.Int).MulDivOverflow(r, uint256.NewInt(weight), uint256.NewInt(perSecond))
	if overflow {
		return nil, ErrUnweighableMessage
	}
	return amount.ToBig(), nil
}

// Forward wraps message so the destination pays for its own execution out
// of this chain's sovereign account, charges the caller for that execution
// and sends the result to target.
func (e *Engine) Forward(origin common.Origin, target Location, message Message) (*ForwardResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := common.EnsureSigned(origin)
	if err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	rate, ok, err := e.TargetRate(target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTargetXcmExecNotConfig
	}

	feeAssetID, err := Reanchor(Here(), target, e.Universal())
	if err != nil {
		return nil, err
	}
	callerLocation := Location{Interior: []Junction{AccountKey20(caller)}}

	remote := make(Message, 0, len(message)+5)
	remote = append(remote,
		Instruction{Kind: WithdrawAsset},
		Instruction{Kind: BuyExecution},
		Instruction{Kind: DescendOrigin, Interior: []Junction{AccountKey20(caller)}},
	)
	remote = append(remote, message...)
	remote = append(remote,
		Instruction{Kind: RefundSurplus},
		Instruction{Kind: DepositAsset, Beneficiary: callerLocation},
	)
	weight, err := e.weigher.Weight(remote)
	if err != nil {
		return nil, ErrUnweighableMessage
	}
	amount, err := feeAmount(rate, weight, e.cfg.UnitWeightPerSecond)
	if err != nil {
		return nil, err
	}
	fee := Asset{ID: feeAssetID, Amount: amount}
	remote[0].Assets = []Asset{fee}
	remote[1].Assets = []Asset{fee}
	remote[1].WeightLimit = weight
	remote[len(remote)-1].Assets = []Asset{{ID: feeAssetID, Amount: new(big.Int)}}

	localWeight, err := e.payWeight(fee, target)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := e.currency.Transfer(caller, SovereignAccount(target), amount, false); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedPayXcmFee, err)
		}
	}

	hash, err := remote.Hash()
	if err != nil {
		return nil, err
	}
	if err := e.sender.Send(target, remote); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrXcmSendFailed, err)
	}
	e.emitter.Emit(events.RouterForwardTo{
		Origin:      caller,
		Target:      target.String(),
		MessageHash: hash,
		Weight:      weight,
		LocalWeight: localWeight,
		Amount:      new(big.Int).Set(amount),
	})
	return &ForwardResult{Hash: hash, Weight: weight, LocalWeight: localWeight, Amount: amount}, nil
}

// payWeight weighs the local program that moves fee into the sovereign
// account of target. The payment must fit MaxLocalWeight.
func (e *Engine) payWeight(fee Asset, target Location) (uint64, error) {
	if e.localWeigher == nil {
		return 0, nil
	}
	program := Message{
		{Kind: WithdrawAsset, Assets: []Asset{fee}},
		{Kind: DepositAsset, Assets: []Asset{fee}, Beneficiary: target},
	}
	weight, err := e.localWeigher.Weight(program)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFailedPayXcmFee, err)
	}
	if e.cfg.MaxLocalWeight > 0 && weight > e.cfg.MaxLocalWeight {
		return 0, fmt.Errorf("%w: local weight %d exceeds %d", ErrFailedPayXcmFee, weight, e.cfg.MaxLocalWeight)
	}
	return weight, nil
}
