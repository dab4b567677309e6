package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/LeventeLantos/turn-relay/internal/metrics"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.HTTPMiddleware)

	r.Get("/v1/health", h.Health)

	r.Get("/v1/scheduler/status", h.SchedulerStatus)
	r.Post("/v1/scheduler/start", h.SchedulerStart)
	r.Post("/v1/scheduler/stop", h.SchedulerStop)

	r.Get("/v1/turns", h.ListTurns)
	r.Post("/v1/turns/{id}/resubmit", h.ResubmitTurn)

	r.Post("/v1/commands/roll-here", h.RollHere)

	r.Post("/v1/pairings", h.IssuePairingCode)
	r.Post("/v1/pairings/connect", h.ConnectPairing)
	r.Delete("/v1/pairings/{id}", h.DisconnectPairing)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("turn-relay"))
	})

	return r
}
