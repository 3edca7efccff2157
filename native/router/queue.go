package router

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrXcmSendFailed = errors.New("router: send failed")

// Sender hands a message to the transport towards dest.
type Sender interface {
	Send(dest Location, msg Message) error
}

type queueState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Queue is the state-backed outbound transport used on devnets. Messages
// are kept per destination in send order.
type Queue struct {
	state    queueState
	maxDepth uint64
}

func NewQueue(maxDepth uint64) *Queue {
	return &Queue{maxDepth: maxDepth}
}

func (q *Queue) SetState(state queueState) { q.state = state }

func queueCountKey(dest Location) []byte {
	return []byte("router/queue/" + dest.String() + "/count")
}

func queueItemKey(dest Location, seq uint64) []byte {
	key := []byte("router/queue/" + dest.String() + "/item/")
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], seq)
	return append(key, enc[:]...)
}

// Send implements Sender.
func (q *Queue) Send(dest Location, msg Message) error {
	if q.state == nil {
		return fmt.Errorf("router: queue state not configured")
	}
	var count uint64
	if _, err := q.state.KVGet(queueCountKey(dest), &count); err != nil {
		return err
	}
	if q.maxDepth > 0 && count >= q.maxDepth {
		return fmt.Errorf("router: queue to %s full", dest)
	}
	if err := q.state.KVPut(queueItemKey(dest, count), msg); err != nil {
		return err
	}
	return q.state.KVPut(queueCountKey(dest), count+1)
}

// Messages returns every message queued towards dest.
func (q *Queue) Messages(dest Location) ([]Message, error) {
	if q.state == nil {
		return nil, fmt.Errorf("router: queue state not configured")
	}
	var count uint64
	if _, err := q.state.KVGet(queueCountKey(dest), &count); err != nil {
		return nil, err
	}
	out := make([]Message, 0, count)
	for i := uint64(0); i < count; i++ {
		var msg Message
		if _, err := q.state.KVGet(queueItemKey(dest, i), &msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
