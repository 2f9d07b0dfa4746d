package proto

import "encoding/json"

// Emit types and message types used on the wire.
const (
	EmitRoomData = "roomData"
	EmitMessage  = "message"

	MessageTypeChat          = "chat"
	MessageTypeSystemMessage = "systemMessage"
	MessageTypeSystemFailure = "systemFailure"

	SystemUsername = "system"
)

// UserInfo is one member entry inside a room snapshot.
type UserInfo struct {
	UsernameAndID string `json:"usernameAndId"`
	Username      string `json:"username"`
	Port          string `json:"port"`
	UserColor     string `json:"userColor"`
}

// RoomSnapshot is the payload of a roomData envelope.
type RoomSnapshot struct {
	Users             []UserInfo `json:"users"`
	CurrUsername      string     `json:"currUsername"`
	CurrUsernameAndID string     `json:"currUsernameAndId"`
	HostID            string     `json:"hostId"`
	Title             string     `json:"title"`
	IsPublic          bool       `json:"isPublic"`
	Topics            []string   `json:"topics"`
}

// WireError rides on systemFailure envelopes. Resolver is nil except for
// duplicate-username failures, where it maps occupied identities to true.
type WireError struct {
	Code     string          `json:"code"`
	Resolver map[string]bool `json:"resolver"`
}

type roomDataEnvelope struct {
	EmitType string       `json:"emitType"`
	Username string       `json:"username"`
	Data     RoomSnapshot `json:"data"`
	Time     string       `json:"time"`
}

type chatEnvelope struct {
	EmitType      string `json:"emitType"`
	MessageType   string `json:"messageType"`
	UsernameAndID string `json:"usernameAndId"`
	Username      string `json:"username"`
	Port          string `json:"port"`
	Time          string `json:"time"`
	Data          string `json:"data"`
	UserColor     string `json:"userColor"`
}

type systemEnvelope struct {
	EmitType    string     `json:"emitType"`
	MessageType string     `json:"messageType"`
	Username    string     `json:"username"`
	Data        string     `json:"data"`
	Time        string     `json:"time"`
	Error       *WireError `json:"error,omitempty"`
}

// EncodeRoomData serializes a room snapshot envelope.
func EncodeRoomData(snap RoomSnapshot, timestamp string) []byte {
	return mustMarshal(roomDataEnvelope{
		EmitType: EmitRoomData,
		Username: SystemUsername,
		Data:     snap,
		Time:     timestamp,
	})
}

// EncodeChat serializes a chat message envelope.
func EncodeChat(usernameAndID, username, port, color, text, timestamp string) []byte {
	return mustMarshal(chatEnvelope{
		EmitType:      EmitMessage,
		MessageType:   MessageTypeChat,
		UsernameAndID: usernameAndID,
		Username:      username,
		Port:          port,
		Time:          timestamp,
		Data:          text,
		UserColor:     color,
	})
}

// EncodeSystemNotice serializes a join/leave notice.
func EncodeSystemNotice(text, timestamp string) []byte {
	return mustMarshal(systemEnvelope{
		EmitType:    EmitMessage,
		MessageType: MessageTypeSystemMessage,
		Username:    SystemUsername,
		Data:        text,
		Time:        timestamp,
	})
}

// EncodeSystemFailure serializes an error envelope. resolver may be nil.
func EncodeSystemFailure(text, timestamp, code string, resolver map[string]bool) []byte {
	return mustMarshal(systemEnvelope{
		EmitType:    EmitMessage,
		MessageType: MessageTypeSystemFailure,
		Username:    SystemUsername,
		Data:        text,
		Time:        timestamp,
		Error:       &WireError{Code: code, Resolver: resolver},
	})
}

func mustMarshal(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// All envelope types are plain data, marshal cannot fail.
		panic(err)
	}
	return payload
}
