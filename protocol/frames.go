// Package protocol defines the WebSocket frames exchanged between the
// browser and the chat handler.
package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// Inbound frame kinds.
const (
	KindReset   = "reset"
	KindStop    = "stop"
	KindMessage = "message"
)

var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Inbound is one classified client frame.
type Inbound struct {
	Kind string
	Text string // user message text, set when Kind == KindMessage
}

// inboundJSON mirrors the three wire shapes:
//
//	{"reset": true}
//	{"action": "stop"}
//	{"message": "<user text>"}
type inboundJSON struct {
	Reset   bool    `json:"reset"`
	Action  string  `json:"action"`
	Message *string `json:"message"`
}

// ParseInbound classifies a raw client frame. Unparseable payloads and
// frames matching none of the known shapes yield ErrMalformedFrame; the
// caller logs and drops them without closing the connection.
func ParseInbound(raw []byte) (Inbound, error) {
	var f inboundJSON
	if err := json.Unmarshal(raw, &f); err != nil {
		return Inbound{}, errors.Join(ErrMalformedFrame, err)
	}

	switch {
	case f.Reset:
		return Inbound{Kind: KindReset}, nil
	case f.Action == "stop":
		return Inbound{Kind: KindStop}, nil
	case f.Message != nil:
		text := strings.TrimSpace(*f.Message)
		if text == "" {
			return Inbound{}, ErrMalformedFrame
		}
		return Inbound{Kind: KindMessage, Text: text}, nil
	default:
		return Inbound{}, ErrMalformedFrame
	}
}
