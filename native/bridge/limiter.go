package bridge

import "math/big"

// LimitState tracks value issued from the bridged chain during the current
// period. Used never exceeds Cap while limiting is enabled.
type LimitState struct {
	Used *big.Int
	Cap  *big.Int
}

func (l LimitState) normalise() LimitState {
	if l.Used == nil {
		l.Used = big.NewInt(0)
	}
	if l.Cap == nil {
		l.Cap = big.NewInt(0)
	}
	return l
}

// admit returns the state after issuing value. The input is left untouched
// on denial. A zero period disables limiting entirely.
func admit(period uint64, prev LimitState, value *big.Int) (LimitState, error) {
	prev = prev.normalise()
	if period == 0 {
		return prev, nil
	}
	used := new(big.Int).Add(prev.Used, value)
	if used.Cmp(prev.Cap) > 0 {
		return prev, ErrRingDailyLimited
	}
	return LimitState{Used: used, Cap: new(big.Int).Set(prev.Cap)}, nil
}

func (e *Engine) loadLimit() (LimitState, uint64, error) {
	state, err := e.store()
	if err != nil {
		return LimitState{}, 0, err
	}
	var limit LimitState
	if _, err := state.KVGet(limitStateKey, &limit); err != nil {
		return LimitState{}, 0, err
	}
	var period uint64
	if _, err := state.KVGet(limitPeriodKey, &period); err != nil {
		return LimitState{}, 0, err
	}
	return limit.normalise(), period, nil
}

func (e *Engine) storeLimit(limit LimitState) error {
	state, err := e.store()
	if err != nil {
		return err
	}
	limit = limit.normalise()
	return state.KVPut(limitStateKey, &limit)
}

// Limit returns the limiter state and the configured period.
func (e *Engine) Limit() (LimitState, uint64, error) {
	return e.loadLimit()
}

// OnInitialize resets the used amount at the start of every period.
func (e *Engine) OnInitialize(height uint64) error {
	limit, period, err := e.loadLimit()
	if err != nil {
		return err
	}
	if period == 0 || height%period != 0 {
		return nil
	}
	if limit.Used.Sign() == 0 {
		return nil
	}
	limit.Used = big.NewInt(0)
	return e.storeLimit(limit)
}
