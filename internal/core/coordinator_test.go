package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/anochat/anochat-server/internal/proto"
)

func TestFirstRegistrationCreatesRoomWithHost(t *testing.T) {
	stats := &fakeStats{}
	coord := NewCoordinator(stats, nil)

	alice := newFakeConn("4001")
	coord.Register(alice, "alice", proto.RoomOptions{
		RoomID:   "r1",
		Title:    "t",
		IsPublic: true,
		Topics:   proto.Topics{"secrets"},
	})

	snap := alice.lastOfType(t, "roomData", "")
	if got := snap.data()["hostId"]; got != "alice#4001" {
		t.Fatalf("hostId = %v, want alice#4001", got)
	}
	if got := snap.data()["currUsernameAndId"]; got != "alice#4001" {
		t.Fatalf("currUsernameAndId = %v, want alice#4001", got)
	}
	if ids := memberIDs(t, snap); len(ids) != 1 || ids[0] != "alice#4001" {
		t.Fatalf("members = %v, want [alice#4001]", ids)
	}
	if got := snap.data()["title"]; got != "t" {
		t.Fatalf("title = %v, want t", got)
	}

	if stats.roomsOpened != 1 || stats.online != 1 {
		t.Fatalf("stats = %+v, want roomsOpened=1 online=1", stats)
	}

	listings := coord.PublicRooms()
	if listing, ok := listings["r1"]; !ok || listing.AnonUserCount != 1 || listing.HostID != "alice#4001" {
		t.Fatalf("public rooms = %+v", listings)
	}
}

func TestHostIDAlwaysAMemberAfterEveryMutation(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	conns := make([]*fakeConn, 0, 5)
	for i := 0; i < 5; i++ {
		conn := newFakeConn(fmt.Sprintf("500%d", i))
		coord.Register(conn, fmt.Sprintf("user%d", i), proto.RoomOptions{RoomID: "r1", IsPublic: true})
		conns = append(conns, conn)
		assertHostIsMember(t, coord, "r1")
	}

	// Remove in an arbitrary order, checking the invariant each step.
	for _, i := range []int{0, 2, 4, 1} {
		coord.Disconnect(conns[i])
		assertHostIsMember(t, coord, "r1")
	}
}

func assertHostIsMember(t *testing.T, coord *Coordinator, roomID string) {
	t.Helper()

	coord.mu.Lock()
	defer coord.mu.Unlock()

	room, ok := coord.rooms[roomID]
	if !ok {
		t.Fatalf("room %s missing", roomID)
	}
	if room.HostID == "" {
		t.Fatalf("room %s has no host with %d members", roomID, len(room.Members))
	}
	for _, id := range room.Members {
		if id == room.HostID {
			return
		}
	}
	t.Fatalf("hostId %s not in members %v", room.HostID, room.Members)
}

func TestDuplicateUsernameRejectedWithoutClosing(t *testing.T) {
	stats := &fakeStats{}
	coord := NewCoordinator(stats, nil)

	alice := newFakeConn("4001")
	coord.Register(alice, "alice", proto.RoomOptions{RoomID: "r1", IsPublic: true})

	intruder := newFakeConn("4002")
	if err := coord.Register(intruder, "alice", proto.RoomOptions{RoomID: "r1"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("err = %v, want ErrDuplicateUsername", err)
	}

	failure := intruder.lastOfType(t, "message", "systemFailure")
	if failure.errorCode() != ErrCodeDuplicateUsername {
		t.Fatalf("error code = %q, want %q", failure.errorCode(), ErrCodeDuplicateUsername)
	}
	if resolver := failure.resolver(); resolver["alice#4001"] != true {
		t.Fatalf("resolver = %v, want alice#4001 occupied", resolver)
	}
	if intruder.isShut() {
		t.Fatal("duplicate username must not close the connection")
	}
	if stats.online != 1 {
		t.Fatalf("online = %d, failed registration must not count", stats.online)
	}

	// Registry untouched: room still has one member, record for the
	// intruder absent.
	if listing := coord.PublicRooms()["r1"]; listing.AnonUserCount != 1 || listing.TotalUsers != 1 {
		t.Fatalf("room mutated by failed registration: %+v", listing)
	}

	// Retry with a disjoint name on the same connection succeeds.
	coord.Register(intruder, "bob", proto.RoomOptions{RoomID: "r1"})
	snap := intruder.lastOfType(t, "roomData", "")
	if ids := memberIDs(t, snap); len(ids) != 2 || ids[1] != "bob#4002" {
		t.Fatalf("members = %v, want [alice#4001 bob#4002]", ids)
	}
	if got := snap.data()["hostId"]; got != "alice#4001" {
		t.Fatalf("host changed on join: %v", got)
	}
}

func TestSameUsernameAllowedInDifferentRooms(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	coord.Register(newFakeConn("4001"), "alice", proto.RoomOptions{RoomID: "r1", IsPublic: true})

	second := newFakeConn("4002")
	coord.Register(second, "alice", proto.RoomOptions{RoomID: "r2", IsPublic: true})

	snap := second.lastOfType(t, "roomData", "")
	if got := snap.data()["hostId"]; got != "alice#4002" {
		t.Fatalf("hostId = %v, want alice#4002", got)
	}
}

func TestMissingUsernameClosesConnection(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	conn := newFakeConn("4001")
	if err := coord.Register(conn, "", proto.RoomOptions{RoomID: "r1"}); !errors.Is(err, ErrMissingUsername) {
		t.Fatalf("err = %v, want ErrMissingUsername", err)
	}

	failure := conn.lastOfType(t, "message", "systemFailure")
	if failure.errorCode() != ErrCodeMissingUsername {
		t.Fatalf("error code = %q, want %q", failure.errorCode(), ErrCodeMissingUsername)
	}
	if !conn.isShut() {
		t.Fatal("missing username must close the connection")
	}
	if len(coord.PublicRooms()) != 0 {
		t.Fatal("no room may be created by a failed registration")
	}
}

func TestRelayRequiresRegistration(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	conn := newFakeConn("4001")
	if err := coord.Relay(conn, "hi"); !errors.Is(err, ErrUnregistered) {
		t.Fatalf("err = %v, want ErrUnregistered", err)
	}

	failure := conn.lastOfType(t, "message", "systemFailure")
	if failure.errorCode() != ErrCodeUnregistered {
		t.Fatalf("error code = %q, want %q", failure.errorCode(), ErrCodeUnregistered)
	}
	if !conn.isShut() {
		t.Fatal("unregistered relay must close the connection")
	}
}

func TestRelayReachesOnlySendersRoom(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	alice := newFakeConn("4001")
	bob := newFakeConn("4002")
	carol := newFakeConn("4003")
	coord.Register(alice, "alice", proto.RoomOptions{RoomID: "r1", IsPublic: true})
	coord.Register(bob, "bob", proto.RoomOptions{RoomID: "r1"})
	coord.Register(carol, "carol", proto.RoomOptions{RoomID: "r2", IsPublic: true})

	carolBefore := carol.sentCount()
	coord.Relay(alice, "room one only")

	for _, conn := range []*fakeConn{alice, bob} {
		chat := conn.lastOfType(t, "message", "chat")
		if chat["data"] != "room one only" || chat["usernameAndId"] != "alice#4001" {
			t.Fatalf("unexpected chat envelope: %v", chat)
		}
	}
	if carol.sentCount() != carolBefore {
		t.Fatal("message leaked into another room")
	}
}

func TestJoinNoticeExcludesJoiner(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	alice := newFakeConn("4001")
	coord.Register(alice, "alice", proto.RoomOptions{RoomID: "r1", IsPublic: true})

	bob := newFakeConn("4002")
	coord.Register(bob, "bob", proto.RoomOptions{RoomID: "r1"})

	notice := alice.lastOfType(t, "message", "systemMessage")
	if notice["data"] != "bob has entered the room!" {
		t.Fatalf("notice = %v", notice["data"])
	}
	for _, e := range bob.envelopes(t) {
		if e.messageType() == "systemMessage" {
			t.Fatalf("joiner received own join notice: %v", e)
		}
	}
}

func TestHostReelectionOnHostDisconnect(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	connA := newFakeConn("4001")
	connB := newFakeConn("4002")
	connC := newFakeConn("4003")
	coord.Register(connA, "a", proto.RoomOptions{RoomID: "r1", IsPublic: true})
	coord.Register(connB, "b", proto.RoomOptions{RoomID: "r1"})
	coord.Register(connC, "c", proto.RoomOptions{RoomID: "r1"})

	// Non-host leaving does not move the host.
	coord.Disconnect(connC)
	snap := connB.lastOfType(t, "roomData", "")
	if got := snap.data()["hostId"]; got != "a#4001" {
		t.Fatalf("hostId = %v after non-host left, want a#4001", got)
	}

	// Host leaving promotes members[0] post-removal.
	coord.Disconnect(connA)
	snap = connB.lastOfType(t, "roomData", "")
	if got := snap.data()["hostId"]; got != "b#4002" {
		t.Fatalf("hostId = %v after host left, want b#4002", got)
	}
	notice := connB.lastOfType(t, "message", "systemMessage")
	if notice["data"] != "a has left the room." {
		t.Fatalf("leave notice = %v", notice["data"])
	}
}

func TestLastDisconnectPurgesRoomAndReportsOnce(t *testing.T) {
	stats := &fakeStats{}
	coord := NewCoordinator(stats, nil)

	alice := newFakeConn("4001")
	bob := newFakeConn("4002")
	coord.Register(alice, "alice", proto.RoomOptions{RoomID: "r1", IsPublic: true})
	coord.Register(bob, "bob", proto.RoomOptions{RoomID: "r1"})
	coord.Relay(alice, "one")
	coord.Relay(bob, "two")
	coord.Relay(alice, "three")

	coord.Disconnect(alice)
	bobBefore := bob.sentCount()
	coord.Disconnect(bob)

	if len(coord.PublicRooms()) != 0 {
		t.Fatal("room must be absent after last member leaves")
	}
	if bob.sentCount() != bobBefore {
		t.Fatal("no broadcast may be attempted for an emptied room")
	}
	if stats.roomsClosed != 1 {
		t.Fatalf("roomsClosed = %d, want 1", stats.roomsClosed)
	}
	if stats.lastUsers != 2 || stats.lastMessages != 3 {
		t.Fatalf("final counters = (%d users, %d messages), want (2, 3)", stats.lastUsers, stats.lastMessages)
	}

	// Repeated disconnects are no-ops: no duplicate stats, no panics.
	coord.Disconnect(bob)
	coord.Disconnect(alice)
	if stats.roomsClosed != 1 || stats.offline != 2 {
		t.Fatalf("repeated disconnects mutated stats: %+v", stats)
	}
}

func TestDisconnectBeforeRegistrationIsNoop(t *testing.T) {
	stats := &fakeStats{}
	coord := NewCoordinator(stats, nil)

	coord.Disconnect(newFakeConn("4001"))

	if stats.offline != 0 || stats.roomsClosed != 0 {
		t.Fatalf("unregistered disconnect touched stats: %+v", stats)
	}
}

func TestRoomMetadataFixedByFirstMember(t *testing.T) {
	coord := NewCoordinator(nil, nil)

	coord.Register(newFakeConn("4001"), "alice", proto.RoomOptions{
		RoomID: "r1", Title: "original", IsPublic: true, Topics: proto.Topics{"a"},
	})

	bob := newFakeConn("4002")
	coord.Register(bob, "bob", proto.RoomOptions{
		RoomID: "r1", Title: "hijacked", IsPublic: false, Topics: proto.Topics{"b"},
	})

	snap := bob.lastOfType(t, "roomData", "")
	if got := snap.data()["title"]; got != "original" {
		t.Fatalf("title = %v, later joiners must not change metadata", got)
	}
	if got := snap.data()["isPublic"]; got != true {
		t.Fatalf("isPublic = %v, want true", got)
	}
}

// Full walkthrough: create, duplicate rejection with resolver, retry,
// host handoff, leave notice scoped to the survivor.
func TestRoomLifecycleScenario(t *testing.T) {
	stats := &fakeStats{}
	coord := NewCoordinator(stats, nil)

	connA := newFakeConn("50001")
	coord.Register(connA, "alice", proto.RoomOptions{RoomID: "r1", Title: "t", IsPublic: true})

	snap := connA.lastOfType(t, "roomData", "")
	if ids := memberIDs(t, snap); len(ids) != 1 || ids[0] != "alice#50001" {
		t.Fatalf("members = %v", ids)
	}
	if got := snap.data()["hostId"]; got != "alice#50001" {
		t.Fatalf("hostId = %v", got)
	}

	connB := newFakeConn("50002")
	coord.Register(connB, "alice", proto.RoomOptions{RoomID: "r1"})
	failure := connB.lastOfType(t, "message", "systemFailure")
	if failure.errorCode() != ErrCodeDuplicateUsername || failure.resolver()["alice#50001"] != true {
		t.Fatalf("unexpected duplicate failure: %v", failure)
	}

	coord.Register(connB, "bob", proto.RoomOptions{RoomID: "r1"})
	snap = connB.lastOfType(t, "roomData", "")
	if ids := memberIDs(t, snap); len(ids) != 2 {
		t.Fatalf("members = %v", ids)
	}
	if got := snap.data()["hostId"]; got != "alice#50001" {
		t.Fatalf("host changed: %v", got)
	}

	aBefore := connA.sentCount()
	coord.Disconnect(connA)
	if connA.sentCount() != aBefore {
		t.Fatal("departed connection must not receive broadcasts")
	}

	snap = connB.lastOfType(t, "roomData", "")
	if got := snap.data()["hostId"]; got != "bob#50002" {
		t.Fatalf("hostId = %v, want bob#50002", got)
	}
	notice := connB.lastOfType(t, "message", "systemMessage")
	if notice["data"] != "alice has left the room." {
		t.Fatalf("leave notice = %v", notice["data"])
	}
}
