// Package store holds a room's canonical state and fans out change
// notifications. Implementations must make ClaimBuzzer a genuinely atomic
// conditional write: read-check-then-write as two calls lets two claimants
// both observe an empty slot and the second silently overwrite the first.
package store

import (
	"context"
	"errors"

	"songbuzz/internal/game"
)

var (
	ErrNotFound      = errors.New("room not found")
	ErrAlreadyExists = errors.New("room already exists")
)

// Snapshot is a full copy of a room's state at a monotonically increasing
// version. Subscribers always receive whole snapshots, never diffs.
type Snapshot struct {
	Version int64     `json:"version"`
	Room    game.Room `json:"room"`
}

type Store interface {
	// Create registers a new room. Fails if the id is taken.
	Create(ctx context.Context, r game.Room) error

	// Get returns a copy of the room's current state.
	Get(ctx context.Context, roomID string) (game.Room, error)

	// Update applies the mutator atomically. If the mutator returns an
	// error, nothing is written; a multi-field transition either lands
	// whole or not at all.
	Update(ctx context.Context, roomID string, apply func(*game.Room) error) error

	// ClaimBuzzer atomically installs the claim iff the room is playing,
	// the buzzer slot is empty, the claimant is a player, and the claimant
	// is not locked out. Exactly one of any set of concurrent callers wins.
	ClaimBuzzer(ctx context.Context, roomID string, claim game.BuzzClaim) (bool, error)

	// Subscribe returns a channel of snapshots for the room, starting with
	// the current state. Rapid writes may coalesce, but delivery is
	// monotonic per subscriber. The returned stop function is idempotent
	// and closes the channel.
	Subscribe(ctx context.Context, roomID string) (<-chan Snapshot, func(), error)

	// Delete discards the room. Deleting an unknown room is a no-op.
	Delete(ctx context.Context, roomID string) error
}

// claimAllowed is the shared claim predicate. It also denormalizes the team
// name from the roster when the caller did not send one.
func claimAllowed(r *game.Room, claim *game.BuzzClaim) bool {
	if r.State != game.StatePlaying || r.Buzzer != nil {
		return false
	}
	p, ok := r.Players[claim.PlayerID]
	if !ok || r.LockedTeams[claim.PlayerID] {
		return false
	}
	if claim.TeamName == "" {
		claim.TeamName = p.Name
	}
	return true
}
