package bridge

import (
	"encoding/binary"
	"fmt"

	"lanebridge/core/lane"
)

var (
	remoteBackingKey  = []byte("bridge/remote-backing")
	limitStateKey     = []byte("bridge/limit/state")
	limitPeriodKey    = []byte("bridge/limit/period")
	receivedNoncesKey = []byte("bridge/received-nonces")
)

func pendingKey(id lane.ID, nonce uint64) []byte {
	buf := []byte(fmt.Sprintf("bridge/pending/%x/", id[:]))
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], nonce)
	return append(buf, enc[:]...)
}

func pendingIndexKey(id lane.ID) []byte {
	return []byte(fmt.Sprintf("bridge/pending-index/%x", id[:]))
}
