package runtime

import (
	"context"
	"fmt"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lanebridge/core/events"
	"lanebridge/core/types"
	"lanebridge/native/common"
)

// ApplyTransaction executes tx against the current state. An error means the
// transaction is invalid and was not applied. A failed call still consumes
// the nonce and fee and is reported through the receipt.
func (rt *Runtime) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	_, span := rt.tracer.Start(ctx, "runtime.ApplyTransaction", trace.WithAttributes(
		attribute.String("module", tx.Module),
		attribute.String("method", tx.Method),
		attribute.Bool("root", tx.Root),
	))
	defer span.End()

	receipt, err := rt.applyTransaction(tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !receipt.Success {
		span.SetStatus(codes.Error, receipt.Error)
	}
	return receipt, nil
}

func (rt *Runtime) applyTransaction(tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("runtime: nil transaction")
	}
	if tx.ChainID != rt.chainID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChainIDMismatch, tx.ChainID, rt.chainID)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	call, err := rt.DecodeCall(tx.Module, tx.Method, tx.Params)
	if err != nil {
		return nil, err
	}

	receiptMark := rt.journal.Mark()
	origin := common.RootOrigin()
	if !tx.Root {
		from, err := tx.From()
		if err != nil {
			return nil, err
		}
		var signer [20]byte
		copy(signer[:], from)
		origin = common.SignedOrigin(signer)
		if err := rt.chargeSigner(signer, tx.Nonce, call); err != nil {
			rt.journal.Truncate(receiptMark)
			return nil, err
		}
	}

	execErr := rt.dispatch(origin, call, origin.Kind == common.OriginSigned)
	rt.metrics.RecordTransaction(call.Module(), call.Method(), execErr)

	receipt := &types.Receipt{
		TxHash:  hash,
		Module:  call.Module(),
		Method:  call.Method(),
		Success: execErr == nil,
	}
	if execErr != nil {
		receipt.Error = execErr.Error()
		rt.logger.Debug("call failed",
			"module", call.Module(),
			"method", call.Method(),
			"height", rt.height,
			"error", execErr)
	}
	for _, evt := range rt.journal.Since(receiptMark) {
		receipt.Events = append(receipt.Events, events.Convert(evt))
	}
	return receipt, nil
}

// chargeSigner checks and bumps the signer's nonce and withdraws the
// transaction fee. Nothing is written when it fails.
func (rt *Runtime) chargeSigner(signer [20]byte, nonce uint64, call common.Call) error {
	snap := rt.state.Snapshot()
	if err := rt.chargeSignerLocked(signer, nonce, call); err != nil {
		if revertErr := rt.state.RevertToSnapshot(snap); revertErr != nil {
			return fmt.Errorf("%v (revert failed: %w)", err, revertErr)
		}
		return err
	}
	return rt.state.DiscardSnapshot(snap)
}

func (rt *Runtime) chargeSignerLocked(signer [20]byte, nonce uint64, call common.Call) error {
	account, err := rt.state.GetAccount(signer[:])
	if err != nil {
		return err
	}
	if account.Nonce != nonce {
		return fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, nonce, account.Nonce)
	}
	if rt.txFee.Sign() > 0 && !common.IsFeeExempt(call) {
		if err := rt.bank.Withdraw(signer, rt.txFee); err != nil {
			return fmt.Errorf("%w: %v", ErrCannotPayFee, err)
		}
		account, err = rt.state.GetAccount(signer[:])
		if err != nil {
			return err
		}
	}
	account.Nonce++
	return rt.state.PutAccount(signer[:], account)
}

// dispatch runs call inside a nested transaction. On failure its state
// writes and events are discarded.
func (rt *Runtime) dispatch(origin common.Origin, call common.Call, filter bool) error {
	snap := rt.state.Snapshot()
	mark := rt.journal.Mark()
	err := rt.execute(origin, call, filter)
	if err != nil {
		rt.journal.Truncate(mark)
		if revertErr := rt.state.RevertToSnapshot(snap); revertErr != nil {
			return fmt.Errorf("%v (revert failed: %w)", err, revertErr)
		}
		return err
	}
	return rt.state.DiscardSnapshot(snap)
}

func (rt *Runtime) execute(origin common.Origin, call common.Call, filter bool) error {
	if call == nil {
		return fmt.Errorf("runtime: nil call")
	}
	if filter && rt.filter != nil {
		if err := rt.filter.Allow(call); err != nil {
			return err
		}
	}
	return call.Execute(&common.CallContext{Origin: origin, Height: rt.height})
}

// DispatchPrivileged implements common.Dispatcher.
func (rt *Runtime) DispatchPrivileged(call common.Call, bypassFilter bool) error {
	return rt.dispatch(common.RootOrigin(), call, !bypassFilter)
}

var _ common.Dispatcher = (*Runtime)(nil)

// BeginBlock runs the per-block hooks for height: the bridge limiter reset
// first, then the finality safeguard.
func (rt *Runtime) BeginBlock(ctx context.Context, height uint64) error {
	_, span := rt.tracer.Start(ctx, "runtime.BeginBlock", trace.WithAttributes(
		attribute.Int64("height", int64(height)),
	))
	defer span.End()

	rt.height = height
	if err := rt.bridge.OnInitialize(height); err != nil {
		span.RecordError(err)
		return fmt.Errorf("bridge on_initialize: %w", err)
	}
	before, err := rt.safeguard.Status()
	if err != nil {
		return err
	}
	if err := rt.safeguard.OnInitialize(height); err != nil {
		span.RecordError(err)
		return fmt.Errorf("safeguard on_initialize: %w", err)
	}
	after, err := rt.safeguard.Status()
	if err != nil {
		return err
	}
	if after.Emergency != before.Emergency {
		if after.Emergency {
			rt.logger.Warn("finality stalled, entering emergency", "height", height)
		} else {
			rt.logger.Info("finality resumed, leaving emergency", "height", height)
		}
	}
	rt.metrics.SetEmergency(after.Emergency)
	return nil
}

// Commit flushes the state at height and returns the new root.
func (rt *Runtime) Commit(height uint64) (gethcommon.Hash, error) {
	root, err := rt.state.Commit(height)
	if err != nil {
		return gethcommon.Hash{}, err
	}
	rt.publishBridgeState()
	rt.metrics.RecordBlock(height)
	return root, nil
}

// AbortBlock discards the block in progress: state returns to the committed
// root, events recorded since the last drain are dropped and the height goes
// back to height.
func (rt *Runtime) AbortBlock(root gethcommon.Hash, height uint64) error {
	rt.journal.Drain()
	rt.height = height
	if err := rt.state.Reset(root); err != nil {
		return fmt.Errorf("runtime: reset state to %x: %w", root, err)
	}
	return nil
}

func (rt *Runtime) publishBridgeState() {
	pending, err := rt.bridge.PendingTransfers()
	if err != nil {
		return
	}
	limit, _, err := rt.bridge.Limit()
	if err != nil {
		return
	}
	rt.metrics.SetBridgeState(len(pending), limit.Used, limit.Cap)
}

// DrainEvents returns and clears every event recorded since the last drain.
func (rt *Runtime) DrainEvents() []*types.Event {
	raw := rt.journal.Drain()
	out := make([]*types.Event, 0, len(raw))
	for _, evt := range raw {
		out = append(out, events.Convert(evt))
	}
	return out
}
