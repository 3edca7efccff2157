package router

import "errors"

var ErrUnweighableMessage = errors.New("router: message cannot be weighed")

// Weigher computes the execution weight of a message on a destination.
type Weigher interface {
	Weight(msg Message) (uint64, error)
}

// FixedWeigher charges a flat cost per instruction plus the declared weight
// of Transact instructions.
type FixedWeigher struct {
	UnitWeightCost  uint64
	MaxInstructions int
}

func (w FixedWeigher) Weight(msg Message) (uint64, error) {
	if w.MaxInstructions > 0 && len(msg) > w.MaxInstructions {
		return 0, ErrUnweighableMessage
	}
	var total uint64
	for _, instr := range msg {
		next := total + w.UnitWeightCost
		if instr.Kind == Transact {
			next += instr.WeightLimit
		}
		if next < total {
			return 0, ErrUnweighableMessage
		}
		total = next
	}
	return total, nil
}
