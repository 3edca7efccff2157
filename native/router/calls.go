package router

import (
	"math/big"

	"lanebridge/native/common"
)

type ForwardCall struct {
	Engine  *Engine `json:"-"`
	Target  string  `json:"target"`
	Message Message `json:"message"`
}

func (ForwardCall) Module() string { return "router" }
func (ForwardCall) Method() string { return "forward" }

func (c ForwardCall) Execute(ctx *common.CallContext) error {
	target, err := ParseLocation(c.Target)
	if err != nil {
		return err
	}
	_, err = c.Engine.Forward(ctx.Origin, target, c.Message)
	return err
}

type SetTargetXcmExecConfigCall struct {
	Engine *Engine  `json:"-"`
	Target string   `json:"target"`
	Rate   *big.Int `json:"rate"`
}

func (SetTargetXcmExecConfigCall) Module() string { return "router" }
func (SetTargetXcmExecConfigCall) Method() string { return "set_target_xcm_exec_config" }

func (c SetTargetXcmExecConfigCall) Execute(ctx *common.CallContext) error {
	if err := common.EnsureRoot(ctx.Origin); err != nil {
		return err
	}
	target, err := ParseLocation(c.Target)
	if err != nil {
		return err
	}
	return c.Engine.SetTargetXcmExecConfig(ctx.Origin, target, c.Rate)
}
