package core

// Conn is a live bidirectional transport handle as seen by the
// coordinator. The transport layer owns the connection lifetime; the
// coordinator only references it.
type Conn interface {
	// TransportID is an opaque per-connection identifier, stable for the
	// connection's lifetime (typically the remote TCP port).
	TransportID() string

	// Send enqueues a serialized envelope without blocking. Returns false
	// if the payload was dropped because the connection is slow or gone.
	Send(payload []byte) bool

	// Shut closes the connection unconditionally. Once shut, no further
	// frames from it are accepted.
	Shut(reason string)
}

// session holds the per-connection attributes the coordinator assigns at
// registration. Kept in a side table keyed by transport id so the
// transport object itself is never mutated.
type session struct {
	username      string
	usernameAndID string
	roomID        string
}

func (s *session) registered() bool {
	return s != nil && s.username != ""
}
