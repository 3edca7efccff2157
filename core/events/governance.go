package events

import "lanebridge/core/types"

const (
	TypeRemoteCallDispatched = "remotegov.remote_call"
	TypeRescueCallDispatched = "remotegov.rescue_call"
)

// RemoteCallDispatched records the outcome of a call accepted from the
// remote chain's root.
type RemoteCallDispatched struct {
	Module string
	Method string
	Error  string
}

func (RemoteCallDispatched) EventType() string { return TypeRemoteCallDispatched }

func (e RemoteCallDispatched) Event() *types.Event {
	return &types.Event{
		Type: TypeRemoteCallDispatched,
		Attributes: map[string]string{
			"module": e.Module,
			"method": e.Method,
			"result": formatResult(e.Error),
		},
	}
}

// RescueCallDispatched records the outcome of a rescue dispatch.
type RescueCallDispatched struct {
	Rescuer [20]byte
	Module  string
	Method  string
	Error   string
}

func (RescueCallDispatched) EventType() string { return TypeRescueCallDispatched }

func (e RescueCallDispatched) Event() *types.Event {
	return &types.Event{
		Type: TypeRescueCallDispatched,
		Attributes: map[string]string{
			"rescuer": formatAccount(e.Rescuer),
			"module":  e.Module,
			"method":  e.Method,
			"result":  formatResult(e.Error),
		},
	}
}
