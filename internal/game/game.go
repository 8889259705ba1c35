// Package game is the pure domain model: room state, players, the buzzer
// claim, and the state machine that moves a room through
// lobby -> playing -> result -> ... -> finished. It does no I/O.
package game

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"songbuzz/internal/round"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoPlayers         = errors.New("cannot start with no players")
	ErrNoRound           = errors.New("no round content for transition")
	ErrNoClaim           = errors.New("no buzzer claim to resolve")
	ErrUnknownClaimant   = errors.New("claimant is not in the room")
	ErrEmptyName         = errors.New("player name must not be empty")
	ErrNameTooLong       = errors.New("player name too long")
)

// MaxNameLength caps a team name at what fits on a phone screen.
const MaxNameLength = 15

type State string

const (
	StateLobby    State = "lobby"
	StatePlaying  State = "playing"
	StateResult   State = "result"
	StateFinished State = "finished"
)

type Player struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	JoinedAt int64  `json:"joinedAt"`
}

// BuzzClaim is the exclusive "buzzed first" slot. TeamName is a copy of the
// player's name at claim time so displays never race a rename or a leave.
type BuzzClaim struct {
	PlayerID  string `json:"playerId"`
	TeamName  string `json:"teamName"`
	Timestamp int64  `json:"timestamp"`
}

// Room is one game session's canonical shared state.
type Room struct {
	ID           string            `json:"id"`
	HostID       string            `json:"hostId,omitempty"`
	CreatedAt    int64             `json:"createdAt"`
	State        State             `json:"state"`
	Players      map[string]Player `json:"players"`
	RoundIndex   int               `json:"roundIndex"`
	TotalRounds  int               `json:"totalRounds"`
	Mode         round.Mode        `json:"mode"`
	CurrentRound *round.Content    `json:"currentRound,omitempty"`
	Buzzer       *BuzzClaim        `json:"buzzer,omitempty"`
	LockedTeams  map[string]bool   `json:"lockedTeams,omitempty"`
}

// NewRoom returns a fresh lobby with no players and an empty buzzer.
func NewRoom(id, hostID string, totalRounds int, mode round.Mode, createdAt int64) Room {
	return Room{
		ID:          id,
		HostID:      hostID,
		CreatedAt:   createdAt,
		State:       StateLobby,
		Players:     map[string]Player{},
		TotalRounds: totalRounds,
		Mode:        mode,
		LockedTeams: map[string]bool{},
	}
}

// Clone deep-copies the room so callers can hand out snapshots without
// sharing map or pointer state.
func (r Room) Clone() Room {
	c := r
	c.Players = make(map[string]Player, len(r.Players))
	for id, p := range r.Players {
		c.Players[id] = p
	}
	c.LockedTeams = make(map[string]bool, len(r.LockedTeams))
	for id := range r.LockedTeams {
		c.LockedTeams[id] = true
	}
	if r.Buzzer != nil {
		b := *r.Buzzer
		c.Buzzer = &b
	}
	if r.CurrentRound != nil {
		cr := *r.CurrentRound
		c.CurrentRound = &cr
	}
	return c
}

type CommandType string

const (
	CmdStartGame CommandType = "StartGame"
	CmdReveal    CommandType = "Reveal"
	CmdNext      CommandType = "Next"
	CmdRestart   CommandType = "Restart"
)

// Command is a host-initiated transition. Round carries freshly generated
// content for StartGame and Next; a Next with a nil Round finishes the game.
type Command struct {
	Type  CommandType
	Round *round.Content
}

// Apply runs one transition against a snapshot and returns the new state.
// Repeating a transition the room has already made is a no-op; transitions
// that make no sense from the current state return ErrInvalidTransition.
// The input room is never mutated.
func Apply(r Room, cmd Command) (Room, error) {
	next := r.Clone()

	switch cmd.Type {
	case CmdStartGame:
		if r.State == StatePlaying {
			return next, nil
		}
		if r.State != StateLobby {
			return r, ErrInvalidTransition
		}
		if len(r.Players) == 0 {
			return r, ErrNoPlayers
		}
		if cmd.Round == nil {
			return r, ErrNoRound
		}
		next.State = StatePlaying
		next.RoundIndex = 0
		next.CurrentRound = cmd.Round
		clearRoundState(&next)
		return next, nil

	case CmdReveal:
		if r.State == StateResult {
			return next, nil
		}
		if r.State != StatePlaying {
			return r, ErrInvalidTransition
		}
		// Only the state flips: the host reviews the answer with the
		// current buzzer still on display.
		next.State = StateResult
		return next, nil

	case CmdNext:
		// A duplicate Next after the room already advanced or finished is
		// treated as the same idempotent press.
		if r.State == StatePlaying || r.State == StateFinished {
			return next, nil
		}
		if r.State != StateResult {
			return r, ErrInvalidTransition
		}
		if cmd.Round == nil || r.RoundIndex+1 >= r.TotalRounds {
			next.State = StateFinished
			clearRoundState(&next)
			return next, nil
		}
		next.State = StatePlaying
		next.RoundIndex = r.RoundIndex + 1
		next.CurrentRound = cmd.Round
		clearRoundState(&next)
		return next, nil

	case CmdRestart:
		if r.State == StateLobby {
			return next, nil
		}
		if r.State != StateFinished {
			return r, ErrInvalidTransition
		}
		// Play-again keeps the party: same roster, scores back to zero.
		next.State = StateLobby
		next.RoundIndex = 0
		next.CurrentRound = nil
		clearRoundState(&next)
		for id, p := range next.Players {
			p.Score = 0
			next.Players[id] = p
		}
		return next, nil

	default:
		return r, ErrInvalidTransition
	}
}

// ResolveClaim settles the current buzz: a correct answer scores, a wrong
// one locks the team out for the rest of the round. Either way the buzzer
// slot opens again.
func ResolveClaim(r *Room, correct bool, points int) error {
	if r.State != StatePlaying && r.State != StateResult {
		return ErrInvalidTransition
	}
	if r.Buzzer == nil {
		return ErrNoClaim
	}
	claimant := r.Buzzer.PlayerID
	if correct {
		p, ok := r.Players[claimant]
		if !ok {
			return ErrUnknownClaimant
		}
		p.Score += points
		r.Players[claimant] = p
	} else {
		r.LockedTeams[claimant] = true
	}
	r.Buzzer = nil
	return nil
}

// ClearRoundLocks empties the buzzer and the lockout set. Runs only at
// round transitions.
func ClearRoundLocks(r *Room) {
	clearRoundState(r)
}

func clearRoundState(r *Room) {
	r.Buzzer = nil
	r.LockedTeams = map[string]bool{}
}

// ValidateName trims a display name and enforces the 1-15 character rule.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Scoreboard returns players ordered for display: score descending, then
// join time, then id for a stable tiebreak.
func Scoreboard(r Room) []Player {
	players := make([]Player, 0, len(r.Players))
	for id, p := range r.Players {
		p.ID = id
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].ID < players[j].ID
	})
	return players
}
