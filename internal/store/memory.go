package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"songbuzz/internal/game"
)

// Memory is the in-process store. One mutex per store serializes writes;
// every subscriber owns a capacity-1 channel so a burst of writes coalesces
// to the newest snapshot instead of blocking the writer or dropping the
// subscriber.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
	log   *zap.Logger
}

type memoryRoom struct {
	room    game.Room
	version int64
	subs    map[chan Snapshot]struct{}
}

func NewMemory(log *zap.Logger) *Memory {
	return &Memory{
		rooms: make(map[string]*memoryRoom),
		log:   log,
	}
}

func (m *Memory) Create(_ context.Context, r game.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[r.ID]; ok {
		return ErrAlreadyExists
	}
	m.rooms[r.ID] = &memoryRoom{
		room: r.Clone(),
		subs: make(map[chan Snapshot]struct{}),
	}
	return nil
}

func (m *Memory) Get(_ context.Context, roomID string) (game.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return game.Room{}, ErrNotFound
	}
	return entry.room.Clone(), nil
}

func (m *Memory) Update(_ context.Context, roomID string, apply func(*game.Room) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	next := entry.room.Clone()
	if err := apply(&next); err != nil {
		return err
	}
	entry.room = next
	entry.version++
	m.broadcastLocked(entry)
	return nil
}

func (m *Memory) ClaimBuzzer(_ context.Context, roomID string, claim game.BuzzClaim) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}
	next := entry.room.Clone()
	if !claimAllowed(&next, &claim) {
		return false, nil
	}
	next.Buzzer = &claim
	entry.room = next
	entry.version++
	m.broadcastLocked(entry)
	return true, nil
}

func (m *Memory) Subscribe(_ context.Context, roomID string) (<-chan Snapshot, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan Snapshot, 1)
	ch <- Snapshot{Version: entry.version, Room: entry.room.Clone()}
	entry.subs[ch] = struct{}{}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// Delete may have closed the channel already; only close it
			// while it is still registered.
			if e, ok := m.rooms[roomID]; ok {
				if _, live := e.subs[ch]; live {
					delete(e.subs, ch)
					close(ch)
				}
			}
		})
	}
	return ch, stop, nil
}

func (m *Memory) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	for ch := range entry.subs {
		delete(entry.subs, ch)
		close(ch)
	}
	delete(m.rooms, roomID)
	return nil
}

// broadcastLocked pushes the latest snapshot to every subscriber, replacing
// any stale pending snapshot. Caller holds m.mu.
func (m *Memory) broadcastLocked(entry *memoryRoom) {
	snap := Snapshot{Version: entry.version, Room: entry.room.Clone()}
	for ch := range entry.subs {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop the stale snapshot it never consumed.
			if m.log != nil {
				m.log.Debug("coalescing snapshot for slow subscriber",
					zap.String("room", entry.room.ID),
					zap.Int64("version", entry.version))
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
