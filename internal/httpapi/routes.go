package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"matchmaker-backend/internal/events"
	"matchmaker-backend/internal/hub"
	"matchmaker-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, bus *events.Bus) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/queue", Enqueue(h))
		r.Delete("/queue/{partyID}", Dequeue(h))
		r.Get("/matches/{matchID}", GetMatch(h))
		r.Post("/matches/{matchID}/ready", SubmitReady(h))
		r.Post("/matches/{matchID}/veto", CastVote(h))
		r.Post("/matches/{matchID}/finish", FinishMatch(h))
	})
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(bus))
	return r
}
