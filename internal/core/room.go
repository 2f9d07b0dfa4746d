package core

// Room is the live state of one chat room. Rooms exist only while they
// have members: the coordinator creates a room on its first registration
// and deletes it when the last member leaves.
type Room struct {
	// Members holds usernameAndId keys in join order. Index 0 is the
	// host-eligible fallback after the host disconnects.
	Members []string

	// Title, Topics and IsPublic are set by the first member and never
	// changed by later joiners.
	Title    string
	Topics   []string
	IsPublic bool

	// HostID is the usernameAndId of the current host, "" if none.
	HostID       string
	HostUsername string

	// Monotonic counters, reported to the stats aggregator when the room
	// closes.
	TotalUsers    int
	TotalMessages int
}

func (r *Room) removeMember(usernameAndID string) {
	for i, id := range r.Members {
		if id == usernameAndID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// UserRecord mirrors one live, registered connection.
type UserRecord struct {
	Conn          Conn
	UsernameAndID string
	Username      string
	RoomID        string
	Port          string
	Color         string
}

// RoomListing is the read-only view of a room served by the lounge API.
// The membership array is stripped; only the count is exposed.
type RoomListing struct {
	Title         string   `json:"roomTitle"`
	Topics        []string `json:"roomTopics"`
	IsPublic      bool     `json:"isPublic"`
	HostID        string   `json:"hostId"`
	HostUsername  string   `json:"hostUsername"`
	TotalUsers    int      `json:"totalUsers"`
	TotalMessages int      `json:"totalMessages"`
	AnonUserCount int      `json:"anonUsersCount"`
}
