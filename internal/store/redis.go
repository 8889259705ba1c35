package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"songbuzz/internal/game"
)

const maxTxRetries = 16

// errClaimLost aborts a claim transaction without writing.
var errClaimLost = errors.New("claim lost")

// Redis stores each room as a JSON snapshot under one key and publishes the
// whole snapshot on a matching channel after every write. Atomicity comes
// from optimistic WATCH transactions: a concurrent write invalidates the
// transaction and the losing claimant re-reads an occupied buzzer slot.
type Redis struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedis(rdb *redis.Client, log *zap.Logger) *Redis {
	return &Redis{rdb: rdb, log: log}
}

func roomKey(roomID string) string     { return "songbuzz:room:" + roomID }
func roomChannel(roomID string) string { return "songbuzz:room:" + roomID + ":changes" }

func (s *Redis) Create(ctx context.Context, r game.Room) error {
	data, err := json.Marshal(Snapshot{Version: 0, Room: r})
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, roomKey(r.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, roomID string) (game.Room, error) {
	snap, err := s.get(ctx, s.rdb, roomID)
	if err != nil {
		return game.Room{}, err
	}
	return snap.Room, nil
}

func (s *Redis) get(ctx context.Context, c redis.Cmdable, roomID string) (Snapshot, error) {
	data, err := c.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get room: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode room: %w", err)
	}
	return snap, nil
}

func (s *Redis) Update(ctx context.Context, roomID string, apply func(*game.Room) error) error {
	_, err := s.transact(ctx, roomID, apply)
	return err
}

func (s *Redis) ClaimBuzzer(ctx context.Context, roomID string, claim game.BuzzClaim) (bool, error) {
	_, err := s.transact(ctx, roomID, func(r *game.Room) error {
		c := claim
		if !claimAllowed(r, &c) {
			return errClaimLost
		}
		r.Buzzer = &c
		return nil
	})
	if errors.Is(err, errClaimLost) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// transact runs read-modify-write under WATCH, retrying on contention, and
// publishes the committed snapshot.
func (s *Redis) transact(ctx context.Context, roomID string, apply func(*game.Room) error) (Snapshot, error) {
	var committed Snapshot
	txn := func(tx *redis.Tx) error {
		snap, err := s.get(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := apply(&snap.Room); err != nil {
			return err
		}
		snap.Version++
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode room: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(roomID), data, 0)
			return nil
		})
		if err == nil {
			committed = snap
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txn, roomKey(roomID))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		s.publish(ctx, roomID, committed)
		return committed, nil
	}
	return Snapshot{}, fmt.Errorf("room %s: too much write contention", roomID)
}

func (s *Redis) publish(ctx context.Context, roomID string, snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, roomChannel(roomID), data).Err(); err != nil && s.log != nil {
		s.log.Warn("publish room change", zap.String("room", roomID), zap.Error(err))
	}
}

func (s *Redis) Subscribe(ctx context.Context, roomID string) (<-chan Snapshot, func(), error) {
	// The subscription must be live before the initial read. A write
	// landing between the two is then delivered as a duplicate rather
	// than missed entirely, and the version guard below drops it.
	pubsub := s.rdb.Subscribe(ctx, roomChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe room: %w", err)
	}

	initial, err := s.get(ctx, s.rdb, roomID)
	if err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Snapshot, 1)
	out <- initial

	done := make(chan struct{})
	go func() {
		defer close(out)
		last := initial.Version
		for {
			select {
			case <-done:
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					if s.log != nil {
						s.log.Warn("bad room change payload", zap.String("room", roomID), zap.Error(err))
					}
					continue
				}
				// Publishes can land out of commit order; never deliver a
				// snapshot older than one already delivered.
				if snap.Version <= last {
					continue
				}
				last = snap.Version
				select {
				case out <- snap:
				default:
					select {
					case <-out:
					default:
					}
					select {
					case out <- snap:
					default:
					}
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, stop, nil
}

func (s *Redis) Delete(ctx context.Context, roomID string) error {
	if err := s.rdb.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
