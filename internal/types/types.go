// Package types defines the wire messages shared by the WebSocket stream
// and its clients.
//
// Server -> client:
//
//	room_snapshot: full room state at a monotonically increasing version;
//	               clients replace their mirror wholesale on every message.
//	buzz_result:   reply to a buzz, won=true for the single winner.
//	error:         a malformed or rejected client message.
//
// Client -> server:
//
//	buzz: { player_id, team_name? } claims the buzzer for this round.
package types

import "songbuzz/internal/game"

type ClientMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
}

type ServerMessage struct {
	Type    string     `json:"type"` // "room_snapshot" | "buzz_result" | "error"
	Version int64      `json:"version,omitempty"`
	Room    *game.Room `json:"room,omitempty"`
	Won     *bool      `json:"won,omitempty"`
	Error   string     `json:"error,omitempty"`
}
