// Package stats maintains the rolling aggregate counters fed by room
// lifecycle events and persists them with a debounce: bursts of updates
// coalesce into one write after a quiet period. The coordinator never
// blocks on persistence.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anochat/anochat-server/internal/store"
)

// DefaultFlushInterval is the debounce quiet period before a write.
const DefaultFlushInterval = 30 * time.Second

const saveTimeout = 5 * time.Second

// Aggregator keeps the in-memory stats snapshot and schedules debounced
// writes through a StatsStore. Every update resets (not queues) the
// flush timer. Store failures are logged and swallowed; the snapshot
// stays dirty and the next update retries the write.
type Aggregator struct {
	st      store.StatsStore
	log     *zerolog.Logger
	metrics *Metrics
	after   time.Duration
	now     func() time.Time

	mu    sync.Mutex
	snap  store.Snapshot
	timer *time.Timer
}

// New loads the persisted snapshot and applies the startup correction:
// live counts (active rooms, shadows online) cannot survive a restart,
// so non-zero values are reset with an immediate write.
func New(ctx context.Context, st store.StatsStore, after time.Duration, metrics *Metrics, logger *zerolog.Logger) (*Aggregator, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if after <= 0 {
		after = DefaultFlushInterval
	}

	snap, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{
		st:      st,
		log:     logger,
		metrics: metrics,
		after:   after,
		now:     time.Now,
		snap:    *snap,
	}

	if a.snap.ActiveRooms != 0 || a.snap.ShadowsOnline != 0 {
		logger.Info().
			Int("active_rooms", a.snap.ActiveRooms).
			Int("shadows_online", a.snap.ShadowsOnline).
			Msg("resetting live counts left over from previous run")
		a.snap.ActiveRooms = 0
		a.snap.ShadowsOnline = 0
		a.snap.UpdatedAt = a.now().UTC()
		if err := a.FlushNow(ctx); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// RoomOpened records a room becoming active.
func (a *Aggregator) RoomOpened() {
	a.update(func(s *store.Snapshot) {
		s.ActiveRooms++
	})
	if a.metrics != nil {
		a.metrics.RoomsOpened.Inc()
		a.metrics.ActiveRooms.Inc()
	}
}

// ParticipantOnline records a participant coming online.
func (a *Aggregator) ParticipantOnline() {
	a.update(func(s *store.Snapshot) {
		s.ShadowsOnline++
	})
	if a.metrics != nil {
		a.metrics.UsersSeen.Inc()
		a.metrics.ShadowsOnline.Inc()
	}
}

// ParticipantOffline records a participant going offline.
func (a *Aggregator) ParticipantOffline() {
	a.update(func(s *store.Snapshot) {
		if s.ShadowsOnline > 0 {
			s.ShadowsOnline--
		}
	})
	if a.metrics != nil {
		a.metrics.ShadowsOnline.Dec()
	}
}

// RoomClosed folds a closed room's final counters into the rolling
// totals and drops the active-room count.
func (a *Aggregator) RoomClosed(totalUsers, totalMessages int) {
	a.update(func(s *store.Snapshot) {
		if s.ActiveRooms > 0 {
			s.ActiveRooms--
		}
		s.TotalUsers += totalUsers
		s.SecretsShared += totalMessages
	})
	if a.metrics != nil {
		a.metrics.RoomsClosed.Inc()
		a.metrics.ActiveRooms.Dec()
		a.metrics.SecretsShared.Add(float64(totalMessages))
	}
}

// Current returns a copy of the in-memory snapshot.
func (a *Aggregator) Current() store.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// FlushNow writes the snapshot immediately, bypassing the debounce. Used
// for the startup corrective reset and the shutdown path.
func (a *Aggregator) FlushNow(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	snap := a.snap
	a.mu.Unlock()

	return a.st.Save(ctx, &snap)
}

// Close flushes any pending state and stops the debounce timer.
func (a *Aggregator) Close(ctx context.Context) error {
	return a.FlushNow(ctx)
}

func (a *Aggregator) update(mutate func(*store.Snapshot)) {
	a.mu.Lock()
	mutate(&a.snap)
	a.snap.UpdatedAt = a.now().UTC()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.after, a.flush)
	a.mu.Unlock()
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	a.timer = nil
	snap := a.snap
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := a.st.Save(ctx, &snap); err != nil {
		// Swallowed on purpose: stats persistence must never surface to
		// chat participants. The next debounce tick retries.
		a.log.Warn().Err(err).Msg("stats flush failed")
	}
}

