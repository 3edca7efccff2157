package params

import (
	"bytes"
	"encoding/json"
	"fmt"

	"lanebridge/config"
	"lanebridge/native/common"
)

// KeyPauses stores the module pause configuration.
const KeyPauses = "params/pauses"

// StoreState captures the subset of state manager capabilities required by
// the parameter helpers.
type StoreState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Store provides typed accessors for root-controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

// SetState swaps the state backend.
func (s *Store) SetState(state StoreState) {
	if s != nil {
		s.state = state
	}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetPauses persists the supplied pause configuration. Values are marshalled
// as JSON so operators can read them back verbatim.
func (s *Store) SetPauses(pauses config.Pauses) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(pauses)
	if err != nil {
		return fmt.Errorf("params: encode pauses: %w", err)
	}
	return state.KVPut([]byte(KeyPauses), encoded)
}

// Pauses loads the persisted pause configuration. When unset, a zero-value
// configuration is returned.
func (s *Store) Pauses() (config.Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return config.Pauses{}, err
	}
	var raw []byte
	ok, err := state.KVGet([]byte(KeyPauses), &raw)
	if err != nil {
		return config.Pauses{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return config.Pauses{}, nil
	}
	var pauses config.Pauses
	if err := json.Unmarshal(raw, &pauses); err != nil {
		return config.Pauses{}, fmt.Errorf("params: decode pauses: %w", err)
	}
	return pauses, nil
}

// IsPaused implements common.PauseView. Read failures are treated as not
// paused so a corrupt entry cannot halt root recovery calls.
func (s *Store) IsPaused(module string) bool {
	pauses, err := s.Pauses()
	if err != nil {
		return false
	}
	return pauses.IsPaused(module)
}

var _ common.PauseView = (*Store)(nil)

// SetPausesCall replaces the pause configuration. Root only.
type SetPausesCall struct {
	Store  *Store        `json:"-"`
	Pauses config.Pauses `json:"pauses"`
}

func (SetPausesCall) Module() string { return "params" }
func (SetPausesCall) Method() string { return "set_pauses" }

func (c SetPausesCall) Execute(ctx *common.CallContext) error {
	if err := common.EnsureRoot(ctx.Origin); err != nil {
		return err
	}
	return c.Store.SetPauses(c.Pauses)
}
