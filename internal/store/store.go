package store

import (
	"context"
	"time"
)

// Snapshot is the aggregate stats document. activeRooms and
// shadowsOnline are live counts and do not survive a restart; totalUsers
// and secretsShared only ever grow.
type Snapshot struct {
	ActiveRooms   int       `json:"activeRooms"`
	ShadowsOnline int       `json:"shadowsOnline"`
	TotalUsers    int       `json:"totalUsers"`
	SecretsShared int       `json:"secretsShared"`
	UpdatedAt     time.Time `json:"updatedAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StatsStore persists the aggregate stats document. Implementations hold
// exactly one document; Load on an empty store returns a fresh snapshot,
// not an error.
type StatsStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}
