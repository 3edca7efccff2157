package remotegov

import "lanebridge/native/common"

// AcceptRemoteCallCall wraps an inner call sent by the bridged chain's root.
type AcceptRemoteCallCall struct {
	Engine *Engine
	Inner  common.Call
}

func (AcceptRemoteCallCall) Module() string { return "remotegov" }
func (AcceptRemoteCallCall) Method() string { return "accept_remote_call" }

func (c AcceptRemoteCallCall) Execute(ctx *common.CallContext) error {
	return c.Engine.AcceptRemoteCall(ctx.Origin, c.Inner)
}

// RescueCallCall wraps an inner call issued by a rescuer.
type RescueCallCall struct {
	Engine *Engine
	Inner  common.Call
}

func (RescueCallCall) Module() string { return "remotegov" }
func (RescueCallCall) Method() string { return "rescue_call" }

func (c RescueCallCall) Execute(ctx *common.CallContext) error {
	return c.Engine.RescueCall(ctx.Origin, c.Inner)
}
