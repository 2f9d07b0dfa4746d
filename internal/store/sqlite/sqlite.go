package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anochat/anochat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS stats (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	active_rooms   INTEGER NOT NULL DEFAULT 0,
	shadows_online INTEGER NOT NULL DEFAULT 0,
	total_users    INTEGER NOT NULL DEFAULT 0,
	secrets_shared INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL,
	created_at     DATETIME NOT NULL
);
`

// StatsStore implements store.StatsStore on a single-row SQLite table.
type StatsStore struct {
	db *sql.DB
}

// New opens (and if needed creates) the stats database at dbPath.
func New(dbPath string) (*StatsStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &StatsStore{db: db}, nil
}

// Close closes the database connection.
func (s *StatsStore) Close() error {
	return s.db.Close()
}

// Load reads the stats document. A missing row yields a fresh zero
// snapshot with CreatedAt set to now.
func (s *StatsStore) Load(ctx context.Context) (*store.Snapshot, error) {
	query := `
		SELECT active_rooms, shadows_online, total_users, secrets_shared, updated_at, created_at
		FROM stats WHERE id = 1
	`
	var snap store.Snapshot
	err := s.db.QueryRowContext(ctx, query).Scan(
		&snap.ActiveRooms,
		&snap.ShadowsOnline,
		&snap.TotalUsers,
		&snap.SecretsShared,
		&snap.UpdatedAt,
		&snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now().UTC()
		return &store.Snapshot{UpdatedAt: now, CreatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &snap, nil
}

// Save upserts the stats document.
func (s *StatsStore) Save(ctx context.Context, snap *store.Snapshot) error {
	query := `
		INSERT INTO stats (id, active_rooms, shadows_online, total_users, secrets_shared, updated_at, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_rooms   = excluded.active_rooms,
			shadows_online = excluded.shadows_online,
			total_users    = excluded.total_users,
			secrets_shared = excluded.secrets_shared,
			updated_at     = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		snap.ActiveRooms,
		snap.ShadowsOnline,
		snap.TotalUsers,
		snap.SecretsShared,
		snap.UpdatedAt,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}
