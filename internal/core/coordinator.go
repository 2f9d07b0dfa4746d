package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anochat/anochat-server/internal/proto"
)

// Stats is the narrow aggregator interface the coordinator reports room
// lifecycle events through. Implementations must be fire-and-forget: no
// call may block on I/O.
type Stats interface {
	RoomOpened()
	ParticipantOnline()
	ParticipantOffline()
	RoomClosed(totalUsers, totalMessages int)
}

type nopStats struct{}

func (nopStats) RoomOpened()         {}
func (nopStats) ParticipantOnline()  {}
func (nopStats) ParticipantOffline() {}
func (nopStats) RoomClosed(_, _ int) {}

const (
	dateFormat = "2006-01-02"
	timeFormat = "15:04:05"
)

// Coordinator turns a set of live connections into a consistent view of
// who is in which room. It is the only writer of the room and user
// registries; all mutations are serialized behind one mutex. Broadcast
// payloads are prepared under the lock but pushed after it is released,
// and pushes never block (slow receivers drop frames instead of stalling
// other connections).
type Coordinator struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	users    map[string]*UserRecord
	sessions map[string]*session // transport id → session attributes

	stats Stats
	log   *zerolog.Logger
	now   func() time.Time
}

// NewCoordinator builds a coordinator. stats may be nil for tests.
func NewCoordinator(stats Stats, logger *zerolog.Logger) *Coordinator {
	if stats == nil {
		stats = nopStats{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Coordinator{
		rooms:    make(map[string]*Room),
		users:    make(map[string]*UserRecord),
		sessions: make(map[string]*session),
		stats:    stats,
		log:      logger,
		now:      time.Now,
	}
}

// delivery is one prepared outbound push, flushed after the registry
// lock is released.
type delivery struct {
	conn    Conn
	payload []byte
}

func flush(out []delivery) {
	for _, d := range out {
		d.conn.Send(d.payload)
	}
}

// HandleFrame decodes and dispatches one inbound frame from conn. The
// returned error is connection-local and already handled (the sender was
// notified and, where the taxonomy demands it, shut); callers only need
// it for logging.
func (c *Coordinator) HandleFrame(conn Conn, data []byte) error {
	frame := proto.DecodeFrame(data)
	switch frame.Kind {
	case proto.FrameRegister:
		return c.Register(conn, frame.Username, frame.Room)
	case proto.FrameChat:
		return c.Relay(conn, frame.Text)
	default:
		// Structured JSON the server does not act on. Connections that
		// never registered have no business sending it.
		c.mu.Lock()
		reg := c.sessions[conn.TransportID()].registered()
		c.mu.Unlock()
		if !reg {
			c.failAndShut(conn, ErrCodeUnregistered, "no username detected, closing connection")
			return ErrUnregistered
		}
		return nil
	}
}

// Register admits conn into the room named by opts.RoomID under
// username. The first member of a new room becomes its host and fixes
// the room metadata; later joiners only extend the member list. A
// duplicate raw username within the target room is rejected without
// closing the connection so the client can retry with a disjoint name.
func (c *Coordinator) Register(conn Conn, username string, opts proto.RoomOptions) error {
	if username == "" || opts.RoomID == "" {
		c.failAndShut(conn, ErrCodeMissingUsername, "no username or room id provided")
		return ErrMissingUsername
	}

	tid := conn.TransportID()
	usernameAndID := username + "#" + tid

	c.mu.Lock()

	if c.sessions[tid].registered() {
		c.mu.Unlock()
		c.log.Warn().Str("transport_id", tid).Msg("register on already-registered connection ignored")
		return ErrAlreadyRegistered
	}

	room, roomExists := c.rooms[opts.RoomID]
	if roomExists {
		if occupied := c.occupiedNames(room); occupied[username] {
			resolver := make(map[string]bool, len(room.Members))
			for _, id := range room.Members {
				resolver[id] = true
			}
			payload := proto.EncodeSystemFailure(
				fmt.Sprintf("duplicate username %q in this room, please provide a unique username", username),
				c.now().Format(timeFormat),
				ErrCodeDuplicateUsername,
				resolver,
			)
			c.mu.Unlock()
			conn.Send(payload)
			return ErrDuplicateUsername
		}
		room.Members = append(room.Members, usernameAndID)
		room.TotalUsers++
	} else {
		room = &Room{
			Members:       []string{usernameAndID},
			Title:         opts.Title,
			Topics:        opts.Topics,
			IsPublic:      opts.IsPublic,
			HostID:        usernameAndID,
			HostUsername:  username,
			TotalUsers:    1,
			TotalMessages: 0,
		}
		c.rooms[opts.RoomID] = room
	}

	c.sessions[tid] = &session{
		username:      username,
		usernameAndID: usernameAndID,
		roomID:        opts.RoomID,
	}
	c.users[usernameAndID] = &UserRecord{
		Conn:          conn,
		UsernameAndID: usernameAndID,
		Username:      username,
		RoomID:        opts.RoomID,
		Port:          tid,
		Color:         colorFor(tid),
	}

	out := c.prepareSnapshot(room, username, usernameAndID)
	notice := proto.EncodeSystemNotice(username+" has entered the room!", c.now().Format(dateFormat))
	out = append(out, c.prepareRoomExcluding(room, notice, usernameAndID)...)
	isHost := room.HostID == usernameAndID

	c.mu.Unlock()

	if roomExists {
		c.stats.ParticipantOnline()
	} else {
		c.stats.RoomOpened()
		c.stats.ParticipantOnline()
	}

	c.log.Info().
		Str("user", usernameAndID).
		Str("room", opts.RoomID).
		Bool("host", isHost).
		Msg("user registered")

	flush(out)
	return nil
}

// Relay fans a chat message out to every member of the sender's room and
// bumps the room message counter in the same logical step.
func (c *Coordinator) Relay(conn Conn, text string) error {
	tid := conn.TransportID()

	c.mu.Lock()
	s := c.sessions[tid]
	if !s.registered() {
		c.mu.Unlock()
		c.failAndShut(conn, ErrCodeUnregistered, "no username detected, closing connection")
		return ErrUnregistered
	}

	rec, ok := c.users[s.usernameAndID]
	if !ok {
		c.mu.Unlock()
		c.log.Error().Str("user", s.usernameAndID).Msg("user record missing for registered session")
		c.failAndShut(conn, ErrCodeInternal, "cannot relay message for an unknown user")
		return ErrInternalInconsistency
	}

	room := c.rooms[s.roomID]
	if room == nil {
		// Narrow race with room teardown; nothing left to receive it.
		c.mu.Unlock()
		return nil
	}
	room.TotalMessages++

	payload := proto.EncodeChat(
		rec.UsernameAndID, rec.Username, rec.Port, rec.Color,
		text, c.now().Format(timeFormat),
	)
	out := c.prepareRoomExcluding(room, payload, "")
	c.mu.Unlock()

	flush(out)
	return nil
}

// Disconnect repairs room state after conn goes away. Safe to call more
// than once; repeated notifications for an already-removed connection
// are no-ops.
func (c *Coordinator) Disconnect(conn Conn) {
	tid := conn.TransportID()

	c.mu.Lock()
	s := c.sessions[tid]
	delete(c.sessions, tid)
	if !s.registered() {
		// Never completed registration, nothing to repair.
		c.mu.Unlock()
		return
	}

	room := c.rooms[s.roomID]
	if room == nil {
		// Room already cleaned up.
		delete(c.users, s.usernameAndID)
		c.mu.Unlock()
		c.stats.ParticipantOffline()
		return
	}

	if len(room.Members) <= 1 {
		// Last member out: the room and all its secondary effects must
		// disappear completely. No broadcast, no one remains to receive it.
		totalUsers, totalMessages := room.TotalUsers, room.TotalMessages
		delete(c.rooms, s.roomID)
		delete(c.users, s.usernameAndID)
		c.mu.Unlock()

		c.stats.ParticipantOffline()
		c.stats.RoomClosed(totalUsers, totalMessages)
		c.log.Info().
			Str("room", s.roomID).
			Int("total_users", totalUsers).
			Int("total_messages", totalMessages).
			Msg("room closed")
		return
	}

	room.removeMember(s.usernameAndID)
	if s.usernameAndID == room.HostID || room.HostID == "" {
		room.HostID, room.HostUsername = "", ""
		if next, ok := c.users[room.Members[0]]; ok {
			room.HostID, room.HostUsername = next.UsernameAndID, next.Username
		}
	}
	delete(c.users, s.usernameAndID)

	var out []delivery
	if remaining, ok := c.users[room.Members[0]]; ok {
		out = c.prepareSnapshot(room, remaining.Username, remaining.UsernameAndID)
	}
	notice := proto.EncodeSystemNotice(s.username+" has left the room.", c.now().Format(dateFormat))
	out = append(out, c.prepareRoomExcluding(room, notice, "")...)
	c.mu.Unlock()

	c.stats.ParticipantOffline()
	c.log.Info().Str("user", s.usernameAndID).Str("room", s.roomID).Msg("user disconnected")

	flush(out)
}

// Registered reports whether conn has completed registration.
func (c *Coordinator) Registered(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[conn.TransportID()].registered()
}

// PublicRooms returns the lounge view of every public room, membership
// arrays stripped down to a count.
func (c *Coordinator) PublicRooms() map[string]RoomListing {
	c.mu.Lock()
	defer c.mu.Unlock()

	listings := make(map[string]RoomListing)
	for id, room := range c.rooms {
		if !room.IsPublic {
			continue
		}
		listings[id] = RoomListing{
			Title:         room.Title,
			Topics:        room.Topics,
			IsPublic:      room.IsPublic,
			HostID:        room.HostID,
			HostUsername:  room.HostUsername,
			TotalUsers:    room.TotalUsers,
			TotalMessages: room.TotalMessages,
			AnonUserCount: len(room.Members),
		}
	}
	return listings
}

// occupiedNames maps the raw usernames currently present in room.
func (c *Coordinator) occupiedNames(room *Room) map[string]bool {
	names := make(map[string]bool, len(room.Members))
	for _, id := range room.Members {
		if rec, ok := c.users[id]; ok {
			names[rec.Username] = true
		}
	}
	return names
}

// prepareSnapshot builds the full room snapshot and addresses it to every
// member. currUsername/currUsernameAndID tag the subject of the snapshot
// (the joiner, or a remaining member after a departure). Callers must
// hold c.mu.
func (c *Coordinator) prepareSnapshot(room *Room, currUsername, currUsernameAndID string) []delivery {
	users := make([]proto.UserInfo, 0, len(room.Members))
	for _, id := range room.Members {
		rec, ok := c.users[id]
		if !ok {
			c.log.Error().Str("user", id).Msg("room member missing from user registry")
			continue
		}
		users = append(users, proto.UserInfo{
			UsernameAndID: rec.UsernameAndID,
			Username:      rec.Username,
			Port:          rec.Port,
			UserColor:     rec.Color,
		})
	}

	payload := proto.EncodeRoomData(proto.RoomSnapshot{
		Users:             users,
		CurrUsername:      currUsername,
		CurrUsernameAndID: currUsernameAndID,
		HostID:            room.HostID,
		Title:             room.Title,
		IsPublic:          room.IsPublic,
		Topics:            room.Topics,
	}, c.now().Format(dateFormat))

	return c.prepareRoomExcluding(room, payload, "")
}

// prepareRoomExcluding addresses payload to every member of room except
// excluded (no exclusion when excluded is empty). Members missing from
// the user registry are silently skipped; that is a narrow race between
// removal and broadcast, never a fault. Callers must hold c.mu.
func (c *Coordinator) prepareRoomExcluding(room *Room, payload []byte, excluded string) []delivery {
	out := make([]delivery, 0, len(room.Members))
	for _, id := range room.Members {
		if id == excluded {
			continue
		}
		rec, ok := c.users[id]
		if !ok {
			continue
		}
		out = append(out, delivery{conn: rec.Conn, payload: payload})
	}
	return out
}

func (c *Coordinator) failAndShut(conn Conn, code, msg string) {
	conn.Send(proto.EncodeSystemFailure(msg, c.now().Format(timeFormat), code, nil))
	conn.Shut(msg)
}
