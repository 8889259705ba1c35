// Package session runs one coordinator per room: a single-writer actor that
// owns the room's state machine and round progression. All host actions and
// joins pass through its inbox, so no two writes to state or roundIndex can
// ever interleave.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"songbuzz/internal/arbiter"
	"songbuzz/internal/game"
	"songbuzz/internal/round"
	"songbuzz/internal/song"
	"songbuzz/internal/store"
)

var (
	ErrClosed          = errors.New("session closed")
	ErrNoPlayableSongs = errors.New("no playable songs left in catalog")
	ErrUnknownAction   = errors.New("unknown host action")
)

// Action is a host-initiated command name as it appears on the wire.
type Action string

const (
	ActionStartGame   Action = "start_game"
	ActionReveal      Action = "reveal"
	ActionNext        Action = "next"
	ActionRestart     Action = "restart"
	ActionMarkCorrect Action = "mark_correct"
	ActionMarkWrong   Action = "mark_wrong"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionStartGame, ActionReveal, ActionNext, ActionRestart,
		ActionMarkCorrect, ActionMarkWrong:
		return Action(s), nil
	default:
		return "", ErrUnknownAction
	}
}

type Msg interface{ isSessionMsg() }

type Join struct {
	Name  string
	Reply chan JoinReply
}

func (Join) isSessionMsg() {}

type JoinReply struct {
	PlayerID string
	Err      error
}

type HostAction struct {
	Action Action
	Reply  chan error
}

func (HostAction) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// Config carries everything a coordinator needs for one room's lifetime.
type Config struct {
	RoomID      string
	HostID      string
	TotalRounds int
	Mode        round.Mode
	Store       store.Store
	Arbiter     *arbiter.Arbiter
	Generator   *round.Generator
	Catalog     *song.Catalog
	Log         *zap.Logger
}

type Session struct {
	inbox  chan Msg
	roomID string
	cfg    Config
	queue  []song.Song // remaining song candidates for the running game
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// New creates the room in the store and starts the coordinator loop.
func New(parent context.Context, cfg Config) (*Session, error) {
	roomID := cfg.RoomID
	if roomID == "" {
		roomID = uuid.NewString()
	}
	r := game.NewRoom(roomID, cfg.HostID, cfg.TotalRounds, cfg.Mode, time.Now().UnixMilli())
	if err := cfg.Store.Create(parent, r); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		inbox:  make(chan Msg, 64),
		roomID: roomID,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		log:    log.With(zap.String("room", roomID)),
	}
	go s.loop()
	return s, nil
}

func (s *Session) RoomID() string    { return s.roomID }
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Join registers a player and returns its generated id.
func (s *Session) Join(ctx context.Context, name string) (string, error) {
	reply := make(chan JoinReply, 1)
	select {
	case s.inbox <- Join{Name: name, Reply: reply}:
	case <-s.ctx.Done():
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-reply:
		return r.PlayerID, r.Err
	case <-s.ctx.Done():
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Act runs one host action and reports its outcome synchronously.
func (s *Session) Act(ctx context.Context, action Action) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- HostAction{Action: action, Reply: reply}:
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				id, err := s.handleJoin(msg.Name)
				msg.Reply <- JoinReply{PlayerID: id, Err: err}

			case HostAction:
				msg.Reply <- s.handleAction(msg.Action)

			case Shutdown:
				if err := s.cfg.Store.Delete(s.ctx, s.roomID); err != nil {
					s.log.Warn("delete room on shutdown", zap.Error(err))
				}
				s.cancel()
				return
			}
		}
	}
}

func (s *Session) handleJoin(name string) (string, error) {
	name, err := game.ValidateName(name)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = s.cfg.Store.Update(s.ctx, s.roomID, func(r *game.Room) error {
		r.Players[id] = game.Player{
			Name:     name,
			JoinedAt: time.Now().UnixMilli(),
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Info("player joined", zap.String("player", id), zap.String("name", name))
	return id, nil
}

func (s *Session) handleAction(action Action) error {
	switch action {
	case ActionStartGame:
		return s.startGame()
	case ActionReveal:
		return s.apply(game.Command{Type: game.CmdReveal})
	case ActionNext:
		return s.next()
	case ActionRestart:
		s.queue = nil
		return s.apply(game.Command{Type: game.CmdRestart})
	case ActionMarkCorrect:
		return s.cfg.Arbiter.Resolve(s.ctx, s.roomID, true)
	case ActionMarkWrong:
		return s.cfg.Arbiter.Resolve(s.ctx, s.roomID, false)
	default:
		return ErrUnknownAction
	}
}

func (s *Session) startGame() error {
	r, err := s.cfg.Store.Get(s.ctx, s.roomID)
	if err != nil {
		return err
	}
	if r.State == game.StatePlaying {
		return nil // duplicate press
	}
	if r.State != game.StateLobby {
		return game.ErrInvalidTransition
	}
	if len(r.Players) == 0 {
		return game.ErrNoPlayers
	}

	// Draw the whole usable catalog so generation failures can be skipped
	// without running short before totalRounds is reached.
	s.queue = s.cfg.Catalog.Pick(s.cfg.Catalog.Len())
	content := s.nextPlayable()
	if content == nil {
		s.queue = nil
		return ErrNoPlayableSongs
	}
	return s.apply(game.Command{Type: game.CmdStartGame, Round: content})
}

func (s *Session) next() error {
	r, err := s.cfg.Store.Get(s.ctx, s.roomID)
	if err != nil {
		return err
	}
	var content *round.Content
	if r.State == game.StateResult && r.RoundIndex+1 < r.TotalRounds {
		// A nil here finishes the game early: every remaining song failed
		// generation.
		content = s.nextPlayable()
	}
	return s.apply(game.Command{Type: game.CmdNext, Round: content})
}

// nextPlayable pops songs off the queue until one generates a valid round.
func (s *Session) nextPlayable() *round.Content {
	for len(s.queue) > 0 {
		candidate := s.queue[0]
		s.queue = s.queue[1:]
		content, err := s.cfg.Generator.Generate(candidate, s.cfg.Mode)
		if err != nil {
			s.log.Debug("skipping song",
				zap.String("song", candidate.Name),
				zap.Error(err))
			continue
		}
		return &content
	}
	return nil
}

func (s *Session) apply(cmd game.Command) error {
	err := s.cfg.Store.Update(s.ctx, s.roomID, func(r *game.Room) error {
		next, err := game.Apply(*r, cmd)
		if err != nil {
			return err
		}
		*r = next
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("room transition", zap.String("command", string(cmd.Type)))
	return nil
}
