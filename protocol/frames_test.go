package protocol

import (
	"errors"
	"testing"
)

func TestParseInboundReset(t *testing.T) {
	f, err := ParseInbound([]byte(`{"reset": true}`))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if f.Kind != KindReset {
		t.Fatalf("expected reset, got %q", f.Kind)
	}
}

func TestParseInboundStop(t *testing.T) {
	f, err := ParseInbound([]byte(`{"action": "stop"}`))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if f.Kind != KindStop {
		t.Fatalf("expected stop, got %q", f.Kind)
	}
}

func TestParseInboundMessage(t *testing.T) {
	f, err := ParseInbound([]byte(`{"message": "  how was my week?  "}`))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if f.Kind != KindMessage {
		t.Fatalf("expected message, got %q", f.Kind)
	}
	if f.Text != "how was my week?" {
		t.Fatalf("unexpected text: %q", f.Text)
	}
}

func TestParseInboundMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{}`,
		`{"message": ""}`,
		`{"message": "   "}`,
		`{"action": "dance"}`,
		`{"reset": false}`,
		`[1,2,3]`,
	}
	for _, raw := range cases {
		if _, err := ParseInbound([]byte(raw)); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("%s: expected ErrMalformedFrame, got %v", raw, err)
		}
	}
}
