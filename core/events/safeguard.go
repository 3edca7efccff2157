package events

import "lanebridge/core/types"

const (
	TypeSafeguardEmergency  = "safeguard.emergency"
	TypeSafeguardRecovery   = "safeguard.recovery"
	TypeSafeguardDispatched = "safeguard.dispatched"
)

// SafeguardEmergency is emitted when finality stops advancing.
type SafeguardEmergency struct {
	Height     uint64
	Checkpoint []byte
}

func (SafeguardEmergency) EventType() string { return TypeSafeguardEmergency }

func (e SafeguardEmergency) Event() *types.Event {
	return &types.Event{
		Type: TypeSafeguardEmergency,
		Attributes: map[string]string{
			"height":     formatUint(e.Height),
			"checkpoint": formatHex(e.Checkpoint),
		},
	}
}

// SafeguardRecovery is emitted when finality resumes during an emergency.
type SafeguardRecovery struct {
	Height     uint64
	Checkpoint []byte
}

func (SafeguardRecovery) EventType() string { return TypeSafeguardRecovery }

func (e SafeguardRecovery) Event() *types.Event {
	return &types.Event{
		Type: TypeSafeguardRecovery,
		Attributes: map[string]string{
			"height":     formatUint(e.Height),
			"checkpoint": formatHex(e.Checkpoint),
		},
	}
}

// SafeguardDispatched records a call executed through the emergency path.
type SafeguardDispatched struct {
	Caller [20]byte
	Module string
	Method string
	Error  string
}

func (SafeguardDispatched) EventType() string { return TypeSafeguardDispatched }

func (e SafeguardDispatched) Event() *types.Event {
	return &types.Event{
		Type: TypeSafeguardDispatched,
		Attributes: map[string]string{
			"caller": formatAccount(e.Caller),
			"module": e.Module,
			"method": e.Method,
			"result": formatResult(e.Error),
		},
	}
}
