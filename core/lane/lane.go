// Package lane is the devnet message lane. It assigns outbound nonces,
// stores queued payloads and tracks the latest nonce received from the
// bridged chain. Delivery itself happens off-chain.
package lane

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"lanebridge/core/events"
	"lanebridge/native/common"
)

const MaxPayloadSize = 64 * 1024

var (
	ErrPayloadTooLarge = errors.New("lane: payload too large")
	ErrEmptyPayload    = errors.New("lane: empty payload")
	ErrNonceRegression = errors.New("lane: inbound nonce must not decrease")
	ErrInvalidLaneID   = errors.New("lane: invalid lane id")
)

// ID identifies a message lane.
type ID [4]byte

func (id ID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// ParseID decodes an 0x-prefixed 4 byte lane id.
func ParseID(raw string) (ID, error) {
	var id ID
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(id) {
		return id, fmt.Errorf("%w: %q", ErrInvalidLaneID, raw)
	}
	copy(id[:], decoded)
	return id, nil
}

// MessageID pairs a lane with a nonce.
type MessageID struct {
	Lane  ID
	Nonce uint64
}

// SendResult reports the nonce and dispatch weight assigned to a message.
type SendResult struct {
	Nonce  uint64
	Weight uint64
}

// OutboundMessage is a payload waiting for relay.
type OutboundMessage struct {
	Sender  [20]byte
	Payload []byte
	Fee     *big.Int
	Weight  uint64
}

type laneState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Transport is the state-backed lane implementation.
type Transport struct {
	state      laneState
	emitter    events.Emitter
	baseWeight uint64
	byteWeight uint64
}

func NewTransport(baseWeight, byteWeight uint64) *Transport {
	return &Transport{emitter: events.NoopEmitter{}, baseWeight: baseWeight, byteWeight: byteWeight}
}

func (t *Transport) SetState(state laneState) { t.state = state }

func (t *Transport) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

func outboundNextKey(lane ID) []byte {
	return []byte(fmt.Sprintf("lane/outbound/%x/next", lane[:]))
}

func outboundMessageKey(lane ID, nonce uint64) []byte {
	buf := []byte(fmt.Sprintf("lane/outbound/%x/msg/", lane[:]))
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], nonce)
	return append(buf, enc[:]...)
}

func inboundLatestKey(lane ID) []byte {
	return []byte(fmt.Sprintf("lane/inbound/%x/latest", lane[:]))
}

func (t *Transport) ensureState() error {
	if t.state == nil {
		return fmt.Errorf("lane: state not configured")
	}
	return nil
}

// MessageWeight returns the dispatch weight charged for a payload.
func (t *Transport) MessageWeight(payload []byte) uint64 {
	return t.baseWeight + uint64(len(payload))*t.byteWeight
}

// SendMessage queues payload on lane and returns the assigned nonce. Nonces
// start at zero and increase by one per message.
func (t *Transport) SendMessage(sender [20]byte, lane ID, payload []byte, fee *big.Int) (SendResult, error) {
	if err := t.ensureState(); err != nil {
		return SendResult{}, err
	}
	if len(payload) == 0 {
		return SendResult{}, ErrEmptyPayload
	}
	if len(payload) > MaxPayloadSize {
		return SendResult{}, ErrPayloadTooLarge
	}
	var next uint64
	if _, err := t.state.KVGet(outboundNextKey(lane), &next); err != nil {
		return SendResult{}, err
	}
	if fee == nil {
		fee = big.NewInt(0)
	}
	weight := t.MessageWeight(payload)
	msg := OutboundMessage{
		Sender:  sender,
		Payload: append([]byte(nil), payload...),
		Fee:     new(big.Int).Set(fee),
		Weight:  weight,
	}
	if err := t.state.KVPut(outboundMessageKey(lane, next), &msg); err != nil {
		return SendResult{}, err
	}
	if err := t.state.KVPut(outboundNextKey(lane), next+1); err != nil {
		return SendResult{}, err
	}
	t.emitter.Emit(events.LaneMessageSent{Lane: lane, Nonce: next, Weight: weight})
	return SendResult{Nonce: next, Weight: weight}, nil
}

// OutboundLatestGeneratedNonce returns the last nonce assigned on lane. The
// boolean is false when no message has been sent.
func (t *Transport) OutboundLatestGeneratedNonce(lane ID) (uint64, bool, error) {
	if err := t.ensureState(); err != nil {
		return 0, false, err
	}
	var next uint64
	ok, err := t.state.KVGet(outboundNextKey(lane), &next)
	if err != nil || !ok || next == 0 {
		return 0, false, err
	}
	return next - 1, true, nil
}

// OutboundMessage returns a queued payload.
func (t *Transport) OutboundMessage(lane ID, nonce uint64) (*OutboundMessage, bool, error) {
	if err := t.ensureState(); err != nil {
		return nil, false, err
	}
	msg := new(OutboundMessage)
	ok, err := t.state.KVGet(outboundMessageKey(lane, nonce), msg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return msg, true, nil
}

// InboundLatestReceivedNonce returns the latest nonce received on lane from
// the bridged chain.
func (t *Transport) InboundLatestReceivedNonce(lane ID) (uint64, error) {
	if err := t.ensureState(); err != nil {
		return 0, err
	}
	var latest uint64
	if _, err := t.state.KVGet(inboundLatestKey(lane), &latest); err != nil {
		return 0, err
	}
	return latest, nil
}

// NoteReceived advances the inbound counter. It never moves backwards.
func (t *Transport) NoteReceived(lane ID, nonce uint64) error {
	current, err := t.InboundLatestReceivedNonce(lane)
	if err != nil {
		return err
	}
	if nonce < current {
		return ErrNonceRegression
	}
	if err := t.state.KVPut(inboundLatestKey(lane), nonce); err != nil {
		return err
	}
	t.emitter.Emit(events.LaneReceived{Lane: lane, Nonce: nonce})
	return nil
}

// NoteReceivedCall lets the operator mirror relayer progress. Root only.
type NoteReceivedCall struct {
	Transport *Transport `json:"-"`
	Lane      string     `json:"lane"`
	Nonce     uint64     `json:"nonce"`
}

func (NoteReceivedCall) Module() string { return "lane" }
func (NoteReceivedCall) Method() string { return "note_received" }

func (c NoteReceivedCall) Execute(ctx *common.CallContext) error {
	if err := common.EnsureRoot(ctx.Origin); err != nil {
		return err
	}
	id, err := ParseID(c.Lane)
	if err != nil {
		return err
	}
	return c.Transport.NoteReceived(id, c.Nonce)
}
