package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer x ,bad,=skip,team=bridge")
	if len(got) != 2 {
		t.Fatalf("unexpected headers: %v", got)
	}
	if got["authorization"] != "Bearer x" || got["team"] != "bridge" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lanebridged", Traces: true})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}
