package core

import (
	"encoding/json"
	"sync"
	"testing"
)

// fakeConn records everything the coordinator pushes at it.
type fakeConn struct {
	id string

	mu         sync.Mutex
	sent       [][]byte
	shut       bool
	shutReason string
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) TransportID() string { return f.id }

func (f *fakeConn) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return true
}

func (f *fakeConn) Shut(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shut = true
	f.shutReason = reason
}

func (f *fakeConn) isShut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shut
}

func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// envelope is a loosely decoded outbound payload for assertions.
type envelope map[string]any

func (e envelope) emitType() string    { s, _ := e["emitType"].(string); return s }
func (e envelope) messageType() string { s, _ := e["messageType"].(string); return s }

func (e envelope) data() map[string]any {
	d, _ := e["data"].(map[string]any)
	return d
}

func (e envelope) errorCode() string {
	errObj, _ := e["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func (e envelope) resolver() map[string]any {
	errObj, _ := e["error"].(map[string]any)
	r, _ := errObj["resolver"].(map[string]any)
	return r
}

func (f *fakeConn) envelopes(t *testing.T) []envelope {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	decoded := make([]envelope, 0, len(f.sent))
	for _, payload := range f.sent {
		var e envelope
		if err := json.Unmarshal(payload, &e); err != nil {
			t.Fatalf("sent payload is not valid JSON: %v\n%s", err, payload)
		}
		decoded = append(decoded, e)
	}
	return decoded
}

// lastOfType returns the newest envelope matching emitType (and
// messageType when non-empty), or fails the test.
func (f *fakeConn) lastOfType(t *testing.T, emitType, messageType string) envelope {
	t.Helper()

	envs := f.envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].emitType() != emitType {
			continue
		}
		if messageType != "" && envs[i].messageType() != messageType {
			continue
		}
		return envs[i]
	}
	t.Fatalf("no envelope with emitType=%q messageType=%q among %d sent", emitType, messageType, len(envs))
	return nil
}

// fakeStats counts lifecycle notifications.
type fakeStats struct {
	mu sync.Mutex

	roomsOpened  int
	online       int
	offline      int
	roomsClosed  int
	lastUsers    int
	lastMessages int
}

func (s *fakeStats) RoomOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomsOpened++
}

func (s *fakeStats) ParticipantOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online++
}

func (s *fakeStats) ParticipantOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline++
}

func (s *fakeStats) RoomClosed(totalUsers, totalMessages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomsClosed++
	s.lastUsers = totalUsers
	s.lastMessages = totalMessages
}

func memberIDs(t *testing.T, snap envelope) []string {
	t.Helper()

	users, _ := snap.data()["users"].([]any)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		entry, _ := u.(map[string]any)
		id, _ := entry["usernameAndId"].(string)
		ids = append(ids, id)
	}
	return ids
}
