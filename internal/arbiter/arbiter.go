// Package arbiter enforces exclusive first-claim semantics on a room's
// buzzer slot and settles claims once the host rules on the answer.
package arbiter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"songbuzz/internal/game"
	"songbuzz/internal/store"
)

// Arbiter mediates the one genuinely contended resource in the system. All
// winner selection happens inside the store's atomic conditional write;
// this package never does a separate read-check-then-write.
type Arbiter struct {
	store  store.Store
	points int
	log    *zap.Logger
}

func New(st store.Store, points int, log *zap.Logger) *Arbiter {
	return &Arbiter{store: st, points: points, log: log}
}

// Claim attempts to take the buzzer. Exactly one of any set of concurrent
// callers observes true; everyone else observes false with no state change.
func (a *Arbiter) Claim(ctx context.Context, roomID, playerID, teamName string) (bool, error) {
	claim := game.BuzzClaim{
		PlayerID:  playerID,
		TeamName:  teamName,
		Timestamp: time.Now().UnixMilli(),
	}
	won, err := a.store.ClaimBuzzer(ctx, roomID, claim)
	if err != nil {
		return false, err
	}
	if won && a.log != nil {
		a.log.Info("buzzer claimed",
			zap.String("room", roomID),
			zap.String("player", playerID))
	}
	return won, nil
}

// Resolve settles the current claim: correct awards the fixed point value,
// wrong locks the claimant out until the next round. Both clear the slot.
func (a *Arbiter) Resolve(ctx context.Context, roomID string, correct bool) error {
	return a.store.Update(ctx, roomID, func(r *game.Room) error {
		return game.ResolveClaim(r, correct, a.points)
	})
}

// ClearRoundLocks empties the buzzer and lockout set; called only on round
// transitions.
func (a *Arbiter) ClearRoundLocks(ctx context.Context, roomID string) error {
	return a.store.Update(ctx, roomID, func(r *game.Room) error {
		game.ClearRoundLocks(r)
		return nil
	})
}
