// Package ws serves the room snapshot stream over WebSocket and accepts
// in-stream buzz claims (HTTP round-trip latency loses buzzer races).
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"songbuzz/internal/arbiter"
	"songbuzz/internal/store"
	"songbuzz/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 60 * time.Second
)

type Deps struct {
	Store   store.Store
	Arbiter *arbiter.Arbiter
	Log     *zap.Logger
}

func Handler(deps Deps) http.HandlerFunc {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			http.Error(w, "missing room", http.StatusBadRequest)
			return
		}

		snapshots, stop, err := deps.Store.Subscribe(r.Context(), roomID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "subscribe failed", http.StatusInternalServerError)
			return
		}
		defer stop()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Writer: mirror every snapshot to the client.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range snapshots {
				msg := types.ServerMessage{Type: "room_snapshot", Version: snap.Version, Room: &snap.Room}
				if err := writeJSON(writeCtx, conn, msg); err != nil {
					return
				}
			}
			// Store closed the stream: the room is gone.
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// Reader: the only mutating message a client may send is a buzz.
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}

			switch cm.Type {
			case "buzz":
				won, err := deps.Arbiter.Claim(r.Context(), roomID, cm.PlayerID, cm.TeamName)
				if err != nil {
					log.Warn("buzz failed", zap.String("room", roomID), zap.Error(err))
					_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: "error", Error: "buzz failed"})
					continue
				}
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: "buzz_result", Won: &won})
			default:
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown type"})
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
