package safeguard

import "lanebridge/native/common"

// EmergencySafeguardCall wraps an inner call dispatched through the
// emergency path.
type EmergencySafeguardCall struct {
	Engine *Engine
	Inner  common.Call
}

func (EmergencySafeguardCall) Module() string { return "safeguard" }
func (EmergencySafeguardCall) Method() string { return "emergency_safeguard" }

// FeeExempt implements common.FeeExempt.
func (EmergencySafeguardCall) FeeExempt() bool { return true }

func (c EmergencySafeguardCall) Execute(ctx *common.CallContext) error {
	return c.Engine.EmergencySafeguard(ctx.Origin, c.Inner)
}
