package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"testing"
	"time"
)

func TestSource(t *testing.T) {
	if SourceClient.String() != "Client" {
		t.Errorf("expected Client, got %s", SourceClient)
	}
	if SourceServer.String() != "Server" {
		t.Errorf("expected Server, got %s", SourceServer)
	}
	var zero Source
	if zero != SourceClient {
		t.Errorf("zero Source should be Client")
	}
}

func TestStreamKey(t *testing.T) {
	k := StreamKey{
		Src: netip.MustParseAddrPort("10.0.0.2:51000"),
		Dst: netip.MustParseAddrPort("172.16.0.1:5555"),
	}
	if got := k.String(); got != "10.0.0.2:51000->172.16.0.1:5555" {
		t.Errorf("unexpected key string %q", got)
	}
	r := k.Reverse()
	if r.Src != k.Dst || r.Dst != k.Src {
		t.Errorf("Reverse did not swap endpoints: %v", r)
	}
	if r.Reverse() != k {
		t.Errorf("double Reverse should be identity")
	}
}

func TestDecodedMessageJSON(t *testing.T) {
	msg := DecodedMessage{
		Source:    SourceServer,
		Timestamp: "12:30:05",
		Time:      time.Date(2024, 1, 1, 12, 30, 5, 0, time.UTC),
		ID:        10,
		Name:      "HelloConnectMessage",
		Raw:       []byte{0x00, 0x29},
		Body:      map[string]any{"salt": "abc"},
	}
	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["source"] != "Server" {
		t.Errorf("expected source Server, got %v", back["source"])
	}
	if _, ok := back["Raw"]; ok {
		t.Errorf("raw bytes should not be serialized")
	}
	if back["name"] != "HelloConnectMessage" {
		t.Errorf("unexpected name %v", back["name"])
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrSourceFailed, "dofuswire: capture source failed"},
		{ErrSinkNotFound, "dofuswire: sink not found"},
		{ErrConfigInvalid, "dofuswire: invalid configuration"},
	}
	for _, tt := range tests {
		if tt.err.Error() != tt.message {
			t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
		}
	}

	wrapped := fmt.Errorf("sink %q: %w", "carrier-pigeon", ErrSinkNotFound)
	if !errors.Is(wrapped, ErrSinkNotFound) {
		t.Error("errors.Is failed for wrapped error")
	}
}
