package proto

import (
	"bytes"
	"encoding/json"
)

// FrameKind classifies an inbound transport frame.
type FrameKind int

const (
	// FrameChat is a plain chat string (a frame that is not structured JSON).
	FrameChat FrameKind = iota
	// FrameRegister is a userRecord registration request.
	FrameRegister
	// FrameIgnored is structured JSON the server does not act on.
	FrameIgnored
)

// RoomOptions carries room parameters supplied with a registration.
// Title/IsPublic/Topics only matter for the room's first member.
type RoomOptions struct {
	RoomID   string `json:"roomId"`
	Title    string `json:"title"`
	IsPublic bool   `json:"isPublic"`
	Topics   Topics `json:"topics"`
}

// Topics accepts both a single string and a string array on the wire.
type Topics []string

func (t *Topics) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = Topics{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = Topics(many)
	return nil
}

// Frame is the decoded form of one inbound frame.
type Frame struct {
	Kind     FrameKind
	Username string
	Room     RoomOptions
	Text     string
}

type registerWire struct {
	Type     string      `json:"type"`
	Username string      `json:"username"`
	Data     RoomOptions `json:"data"`
}

// DecodeFrame parses a raw frame. JSON objects of type "userRecord" become
// registrations, JSON strings and frames that fail to parse become chat
// text, and any other structured JSON is ignored. Decoding never fails:
// malformed input degrades to chat text rather than an error.
func DecodeFrame(data []byte) Frame {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{Kind: FrameChat, Text: string(data)}
	}

	switch trimmed[0] {
	case '{':
		var reg registerWire
		if err := json.Unmarshal(trimmed, &reg); err != nil {
			return Frame{Kind: FrameChat, Text: string(data)}
		}
		if reg.Type != "userRecord" {
			return Frame{Kind: FrameIgnored}
		}
		return Frame{Kind: FrameRegister, Username: reg.Username, Room: reg.Data}
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Frame{Kind: FrameChat, Text: string(data)}
		}
		return Frame{Kind: FrameChat, Text: text}
	default:
		if json.Valid(trimmed) {
			// Bare numbers, booleans, arrays: structured but meaningless here.
			return Frame{Kind: FrameIgnored}
		}
		return Frame{Kind: FrameChat, Text: string(data)}
	}
}
