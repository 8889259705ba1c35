package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"songbuzz/internal/ws"
)

func SetupRoutes(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	a := &api{deps: deps, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/rooms", a.createRoom)
	r.Route("/rooms/{roomID}", func(r chi.Router) {
		r.Get("/", a.getRoom)
		r.Delete("/", a.removeRoom)
		r.Get("/scoreboard", a.scoreboard)
		r.Post("/join", a.join)
		r.Post("/buzz", a.buzz)
		r.Post("/actions/{action}", a.hostAction)
		r.Get("/handoff", a.handoffURL)
		r.Get("/qr", a.joinQR)
	})
	r.Get("/ws", ws.Handler(ws.Deps{Store: deps.Store, Arbiter: deps.Arbiter, Log: log}))
	r.Get("/healthz", healthz)
	return r
}
