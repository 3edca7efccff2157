package events

import (
	"math/big"
	"testing"
)

func TestJournalTruncateDropsLaterEvents(t *testing.T) {
	j := NewJournal()
	j.Emit(Transfer{Amount: big.NewInt(1)})
	mark := j.Mark()
	j.Emit(Transfer{Amount: big.NewInt(2)})
	j.Emit(BridgeTokenIssued{Amount: big.NewInt(3)})

	if got := len(j.Since(mark)); got != 2 {
		t.Fatalf("expected 2 events since mark, got %d", got)
	}
	j.Truncate(mark)
	drained := j.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 event after truncate, got %d", len(drained))
	}
	if evt := Convert(drained[0]); evt.Attributes["amount"] != "1" {
		t.Fatalf("unexpected event kept: %+v", evt)
	}
	if len(j.Drain()) != 0 {
		t.Fatalf("journal not reset after drain")
	}
}

func TestConvertRendersAttributes(t *testing.T) {
	evt := Convert(RemoteCallDispatched{Module: "bridge", Method: "set_secure_limited_period"})
	if evt.Type != TypeRemoteCallDispatched {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["result"] != "ok" {
		t.Fatalf("expected ok result, got %q", evt.Attributes["result"])
	}
}
