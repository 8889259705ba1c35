// Package hub is the registry actor mapping room ids to their coordinators.
package hub

import (
	"context"

	"go.uber.org/zap"

	"songbuzz/internal/arbiter"
	"songbuzz/internal/round"
	"songbuzz/internal/session"
	"songbuzz/internal/song"
	"songbuzz/internal/store"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	HostID      string
	TotalRounds int
	Mode        round.Mode
	Reply       chan CreateReply
}

type CreateReply struct {
	Session *session.Session
	Err     error
}

type GetRoom struct {
	RoomID string
	Reply  chan *session.Session
}

type RemoveRoom struct{ RoomID string }

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Deps are the shared collaborators every new session is wired with.
type Deps struct {
	Store     store.Store
	Arbiter   *arbiter.Arbiter
	Generator *round.Generator
	Catalog   *song.Catalog
	Log       *zap.Logger
}

type Hub struct {
	inbox    chan HubMsg
	deps     Deps
	sessions map[string]*session.Session
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		deps:     deps,
		sessions: make(map[string]*session.Session),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Create spins up a coordinator for a fresh room.
func (h *Hub) Create(ctx context.Context, hostID string, totalRounds int, mode round.Mode) (*session.Session, error) {
	reply := make(chan CreateReply, 1)
	select {
	case h.inbox <- CreateRoom{HostID: hostID, TotalRounds: totalRounds, Mode: mode, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.Session, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the coordinator for a room, or nil if unknown.
func (h *Hub) Get(ctx context.Context, roomID string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	select {
	case h.inbox <- GetRoom{RoomID: roomID, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				sess, err := session.New(h.ctx, session.Config{
					HostID:      msg.HostID,
					TotalRounds: msg.TotalRounds,
					Mode:        msg.Mode,
					Store:       h.deps.Store,
					Arbiter:     h.deps.Arbiter,
					Generator:   h.deps.Generator,
					Catalog:     h.deps.Catalog,
					Log:         h.deps.Log,
				})
				if err != nil {
					msg.Reply <- CreateReply{Err: err}
					break
				}
				h.sessions[sess.RoomID()] = sess
				msg.Reply <- CreateReply{Session: sess}

			case GetRoom:
				msg.Reply <- h.sessions[msg.RoomID] // may be nil

			case RemoveRoom:
				if sess := h.sessions[msg.RoomID]; sess != nil {
					sess.Inbox() <- session.Shutdown{}
				}
				delete(h.sessions, msg.RoomID)

			case ShutdownHub:
				for id, sess := range h.sessions {
					sess.Inbox() <- session.Shutdown{}
					delete(h.sessions, id)
				}
				h.cancel()
				return
			}
		}
	}
}
