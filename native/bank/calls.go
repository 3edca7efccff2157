package bank

import (
	"math/big"

	"lanebridge/native/common"
)

// TransferCall moves funds between signed accounts. The sender is kept
// alive.
type TransferCall struct {
	Engine *Engine             `json:"-"`
	To     common.AccountParam `json:"to"`
	Amount *big.Int            `json:"amount"`
}

func (TransferCall) Module() string { return "bank" }
func (TransferCall) Method() string { return "transfer" }

func (c TransferCall) Execute(ctx *common.CallContext) error {
	from, err := common.EnsureSigned(ctx.Origin)
	if err != nil {
		return err
	}
	return c.Engine.Transfer(from, [20]byte(c.To), c.Amount, true)
}
