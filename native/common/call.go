package common

// CallContext carries the per-invocation environment of a call.
type CallContext struct {
	Origin Origin
	Height uint64
}

// Call is a dispatchable module operation.
type Call interface {
	Module() string
	Method() string
	Execute(ctx *CallContext) error
}

// FeeExempt is implemented by calls that must not be charged a transaction
// fee.
type FeeExempt interface {
	FeeExempt() bool
}

// IsFeeExempt reports whether call opts out of transaction fees.
func IsFeeExempt(call Call) bool {
	if exempt, ok := call.(FeeExempt); ok {
		return exempt.FeeExempt()
	}
	return false
}

// Dispatcher executes a call under the root origin inside a nested
// transaction. When the inner call fails its state changes and events are
// discarded and the error is returned to the caller.
type Dispatcher interface {
	DispatchPrivileged(call Call, bypassFilter bool) error
}
