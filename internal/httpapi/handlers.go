package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"songbuzz/internal/arbiter"
	"songbuzz/internal/game"
	"songbuzz/internal/handoff"
	"songbuzz/internal/hub"
	"songbuzz/internal/round"
	"songbuzz/internal/session"
	"songbuzz/internal/store"
)

const qrSize = 320 // mobile-friendly

type Deps struct {
	Hub           *hub.Hub
	Store         store.Store
	Arbiter       *arbiter.Arbiter
	BaseURL       string // board URL that join/host links are derived from
	DefaultRounds int
	Log           *zap.Logger
}

type api struct {
	deps Deps
	log  *zap.Logger
}

type createRoomRequest struct {
	HostID      string `json:"host_id"`
	TotalRounds int    `json:"total_rounds"`
	Mode        string `json:"mode"`
}

type createRoomResponse struct {
	RoomID  string `json:"room_id"`
	JoinURL string `json:"join_url"`
	HostURL string `json:"host_url"`
}

func (a *api) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	rounds := req.TotalRounds
	if rounds == 0 {
		rounds = a.deps.DefaultRounds
	}
	if rounds < 1 {
		writeError(w, http.StatusBadRequest, "total_rounds must be at least 1")
		return
	}
	mode := round.ModeLyrics
	if req.Mode != "" {
		var err error
		if mode, err = round.ParseMode(req.Mode); err != nil {
			writeError(w, http.StatusBadRequest, "mode must be lyrics or song")
			return
		}
	}

	sess, err := a.deps.Hub.Create(r.Context(), req.HostID, rounds, mode)
	if err != nil {
		a.log.Error("create room", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	roomID := sess.RoomID()
	writeJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:  roomID,
		JoinURL: a.modeURL("join", roomID),
		HostURL: a.modeURL("host", roomID),
	})
}

func (a *api) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	room, err := a.deps.Store.Get(r.Context(), roomID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *api) scoreboard(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	room, err := a.deps.Store.Get(r.Context(), roomID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	type entry struct {
		PlayerID string `json:"player_id"`
		Name     string `json:"name"`
		Score    int    `json:"score"`
	}
	board := []entry{}
	for _, p := range game.Scoreboard(room) {
		board = append(board, entry{PlayerID: p.ID, Name: p.Name, Score: p.Score})
	}
	writeJSON(w, http.StatusOK, board)
}

type joinRequest struct {
	Name string `json:"name"`
}

func (a *api) join(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	playerID, err := sess.Join(r.Context(), req.Name)
	if err != nil {
		a.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"player_id": playerID})
}

type buzzRequest struct {
	PlayerID string `json:"player_id"`
	TeamName string `json:"team_name"`
}

func (a *api) buzz(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	var req buzzRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "missing player_id")
		return
	}
	won, err := a.deps.Arbiter.Claim(r.Context(), roomID, req.PlayerID, req.TeamName)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"won": won})
}

func (a *api) hostAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	action, err := session.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if err := sess.Act(r.Context(), action); err != nil {
		a.writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handoffURL returns the host-answer link for the current round, for the
// board to render as text or QR.
func (a *api) handoffURL(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	room, err := a.deps.Store.Get(r.Context(), roomID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	if room.CurrentRound == nil {
		writeError(w, http.StatusConflict, "no active round")
		return
	}
	u, err := handoff.Encode(a.deps.BaseURL, handoff.Payload{
		Question: strings.Join(room.CurrentRound.QuestionLines, " / "),
		Answer:   room.CurrentRound.AnswerLine,
		SongName: room.CurrentRound.SongName,
	})
	if err != nil {
		a.log.Error("encode handoff", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build handoff url")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// joinQR serves a PNG QR code of the room's join URL.
func (a *api) joinQR(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, err := a.deps.Store.Get(r.Context(), roomID); err != nil {
		a.writeStoreError(w, err)
		return
	}
	png, err := qrcode.Encode(a.modeURL("join", roomID), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (a *api) removeRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	a.deps.Hub.Inbox() <- hub.RemoveRoom{RoomID: roomID}
	w.WriteHeader(http.StatusNoContent)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	roomID := chi.URLParam(r, "roomID")
	sess, err := a.deps.Hub.Get(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hub unavailable")
		return nil, false
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return nil, false
	}
	return sess, true
}

func (a *api) modeURL(mode, roomID string) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("room", roomID)
	return fmt.Sprintf("%s?%s", a.deps.BaseURL, q.Encode())
}

// writeActionError maps domain errors to statuses: validation problems are
// the caller's fault, invalid transitions are conflicts.
func (a *api) writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrEmptyName),
		errors.Is(err, game.ErrNameTooLong),
		errors.Is(err, game.ErrNoPlayers):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrNoClaim),
		errors.Is(err, session.ErrNoPlayableSongs):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusNotFound, "room not found")
	default:
		a.log.Error("host action", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *api) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	a.log.Error("store access", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
