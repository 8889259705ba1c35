package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songbuzz/internal/game"
	"songbuzz/internal/round"
)

func newTestRoom(state game.State, playerIDs ...string) game.Room {
	r := game.NewRoom("room-1", "host-1", 5, round.ModeLyrics, 1000)
	r.State = state
	for i, id := range playerIDs {
		r.Players[id] = game.Player{Name: "team " + id, JoinedAt: int64(i)}
	}
	return r
}

func recvSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby)))
	assert.True(t, errors.Is(m.Create(ctx, newTestRoom(game.StateLobby)), ErrAlreadyExists))

	r, err := m.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, game.StateLobby, r.State)

	_, err = m.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryUpdateFailureWritesNothing(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	boom := errors.New("boom")
	err := m.Update(ctx, "room-1", func(r *game.Room) error {
		r.State = game.StatePlaying
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	r, err := m.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, game.StateLobby, r.State)
}

func TestMemoryGetReturnsCopies(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	r1, err := m.Get(ctx, "room-1")
	require.NoError(t, err)
	r1.Players["intruder"] = game.Player{Name: "intruder"}

	r2, err := m.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, r2.Players, 1)
}

func TestClaimBuzzerExclusivity(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StatePlaying, "a", "b", "c")))

	const claimants = 32
	players := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := m.ClaimBuzzer(ctx, "room-1", game.BuzzClaim{
				PlayerID:  players[i%len(players)],
				Timestamp: int64(i),
			})
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one concurrent claim must win")

	r, err := m.Get(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, r.Buzzer)
}

func TestClaimBuzzerPredicate(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected outside playing state", func(t *testing.T) {
		m := NewMemory(nil)
		require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))
		won, err := m.ClaimBuzzer(ctx, "room-1", game.BuzzClaim{PlayerID: "a"})
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("rejected for locked player", func(t *testing.T) {
		m := NewMemory(nil)
		r := newTestRoom(game.StatePlaying, "a")
		r.LockedTeams["a"] = true
		require.NoError(t, m.Create(ctx, r))
		won, err := m.ClaimBuzzer(ctx, "room-1", game.BuzzClaim{PlayerID: "a"})
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("rejected for unknown player", func(t *testing.T) {
		m := NewMemory(nil)
		require.NoError(t, m.Create(ctx, newTestRoom(game.StatePlaying, "a")))
		won, err := m.ClaimBuzzer(ctx, "room-1", game.BuzzClaim{PlayerID: "ghost"})
		require.NoError(t, err)
		assert.False(t, won)
	})

	t.Run("denormalizes team name from roster", func(t *testing.T) {
		m := NewMemory(nil)
		require.NoError(t, m.Create(ctx, newTestRoom(game.StatePlaying, "a")))
		won, err := m.ClaimBuzzer(ctx, "room-1", game.BuzzClaim{PlayerID: "a"})
		require.NoError(t, err)
		require.True(t, won)

		r, err := m.Get(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, "team a", r.Buzzer.TeamName)
	})
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	ch, stop, err := m.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer stop()

	first := recvSnapshot(t, ch)
	assert.Equal(t, int64(0), first.Version)
	assert.Equal(t, game.StateLobby, first.Room.State)

	require.NoError(t, m.Update(ctx, "room-1", func(r *game.Room) error {
		r.State = game.StatePlaying
		return nil
	}))

	next := recvSnapshot(t, ch)
	assert.Equal(t, int64(1), next.Version)
	assert.Equal(t, game.StatePlaying, next.Room.State)
}

func TestSubscribeCoalescesToNewest(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	ch, stop, err := m.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer stop()

	// Nobody reads while several writes land; the pending snapshot must be
	// replaced, not queued.
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Update(ctx, "room-1", func(r *game.Room) error {
			r.RoundIndex++
			return nil
		}))
	}

	var last Snapshot
	for {
		snap := recvSnapshot(t, ch)
		if snap.Version >= 5 {
			last = snap
			break
		}
		assert.Less(t, snap.Version, int64(5))
	}
	assert.Equal(t, 5, last.Room.RoundIndex)
}

func TestSubscribeMonotonic(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	ch, stop, err := m.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_ = m.Update(ctx, "room-1", func(r *game.Room) error {
				r.RoundIndex++
				return nil
			})
		}
	}()

	last := int64(-1)
	for {
		snap := recvSnapshot(t, ch)
		require.Greater(t, snap.Version, last)
		last = snap.Version
		if snap.Version == 20 {
			break
		}
	}
	<-done
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	_, stop, err := m.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	stop()
	stop() // must not panic

	// Writes after unsubscribe must not block or panic either.
	require.NoError(t, m.Update(ctx, "room-1", func(r *game.Room) error {
		r.RoundIndex++
		return nil
	}))
}

func TestDeleteClosesSubscribers(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newTestRoom(game.StateLobby, "a")))

	ch, stop, err := m.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer stop()

	recvSnapshot(t, ch) // initial
	require.NoError(t, m.Delete(ctx, "room-1"))

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after delete")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after delete")
	}

	assert.NoError(t, m.Delete(ctx, "room-1"), "double delete is a no-op")
}
