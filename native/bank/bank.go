package bank

import (
	"errors"
	"fmt"
	"math/big"

	"lanebridge/core/events"
	"lanebridge/core/types"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrKeepAlive           = errors.New("bank: transfer would kill account")
	ErrExistentialDeposit  = errors.New("bank: amount below existential deposit")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
)

var totalIssuanceKey = []byte("bank/total-issuance")

type engineState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Engine implements the native currency. Accounts whose balance falls below
// the existential deposit are reaped and the dust is burned.
type Engine struct {
	state              engineState
	emitter            events.Emitter
	existentialDeposit *big.Int
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, existentialDeposit: big.NewInt(0)}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetExistentialDeposit(amount *big.Int) {
	if amount == nil || amount.Sign() < 0 {
		e.existentialDeposit = big.NewInt(0)
		return
	}
	e.existentialDeposit = new(big.Int).Set(amount)
}

func (e *Engine) ExistentialDeposit() *big.Int {
	return new(big.Int).Set(e.existentialDeposit)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) load(addr [20]byte) (*types.Account, error) {
	if e.state == nil {
		return nil, fmt.Errorf("bank: state not configured")
	}
	return e.state.GetAccount(addr[:])
}

// FreeBalance returns the spendable balance of addr.
func (e *Engine) FreeBalance(addr [20]byte) (*big.Int, error) {
	account, err := e.load(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// TotalIssuance returns the sum of all balances.
func (e *Engine) TotalIssuance() (*big.Int, error) {
	if e.state == nil {
		return nil, fmt.Errorf("bank: state not configured")
	}
	total := new(big.Int)
	if _, err := e.state.KVGet(totalIssuanceKey, total); err != nil {
		return nil, err
	}
	return total, nil
}

func (e *Engine) adjustIssuance(delta *big.Int) error {
	total, err := e.TotalIssuance()
	if err != nil {
		return err
	}
	total.Add(total, delta)
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return e.state.KVPut(totalIssuanceKey, total)
}

// DepositCreating mints amount into addr. A deposit that would create an
// account below the existential deposit is dropped without error.
func (e *Engine) DepositCreating(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	account, err := e.load(addr)
	if err != nil {
		return err
	}
	if account.Balance.Sign() == 0 && account.Nonce == 0 && amount.Cmp(e.existentialDeposit) < 0 {
		return nil
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := e.state.PutAccount(addr[:], account); err != nil {
		return err
	}
	return e.adjustIssuance(amount)
}

// Withdraw burns amount from addr, reaping the account if it falls below the
// existential deposit.
func (e *Engine) Withdraw(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	account, err := e.load(addr)
	if err != nil {
		return err
	}
	if account.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(account.Balance, amount)
	burned := new(big.Int).Set(amount)
	if remaining.Sign() > 0 && remaining.Cmp(e.existentialDeposit) < 0 {
		burned.Add(burned, remaining)
		remaining.SetInt64(0)
	}
	account.Balance = remaining
	if err := e.state.PutAccount(addr[:], account); err != nil {
		return err
	}
	return e.adjustIssuance(new(big.Int).Neg(burned))
}

// Transfer moves amount from one account to another. With keepAlive the
// sender must retain at least the existential deposit.
func (e *Engine) Transfer(from, to [20]byte, amount *big.Int, keepAlive bool) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	sender, err := e.load(from)
	if err != nil {
		return err
	}
	if sender.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(sender.Balance, amount)
	dust := big.NewInt(0)
	if remaining.Cmp(e.existentialDeposit) < 0 || remaining.Sign() == 0 {
		if keepAlive {
			return ErrKeepAlive
		}
		dust.Set(remaining)
		remaining.SetInt64(0)
	}
	if from == to {
		return nil
	}
	recipient, err := e.load(to)
	if err != nil {
		return err
	}
	if recipient.Balance.Sign() == 0 && recipient.Nonce == 0 && amount.Cmp(e.existentialDeposit) < 0 {
		return ErrExistentialDeposit
	}
	sender.Balance = remaining
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	if err := e.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	if err := e.state.PutAccount(to[:], recipient); err != nil {
		return err
	}
	if dust.Sign() > 0 {
		if err := e.adjustIssuance(new(big.Int).Neg(dust)); err != nil {
			return err
		}
	}
	e.emit(events.Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
