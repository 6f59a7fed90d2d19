package routers

import (
	"github.com/go-chi/chi/v5"

	"foosball/internal/invitations"
	matchManager "foosball/internal/match_management"
)

func MatchRoutes(r *chi.Mux, mm *matchManager.MatchManager, inv *invitations.Service) {
	r.Route("/api/v1/match", func(r chi.Router) {
		r.Post("/create", mm.CreateHandler)
		r.Post("/invite", mm.InviteHandler)
		r.Post("/assign", mm.AssignHandler)
		r.Post("/remove", mm.RemoveHandler)
		r.Post("/start", mm.StartHandler)
		r.Post("/goal", mm.GoalHandler)
		r.Post("/swap", mm.SwapHandler)
		r.Post("/complete", mm.CompleteHandler)
		r.Delete("/lobby/{matchId}", mm.LobbyDeleteHandler)
		r.Get("/{matchId}", mm.GetHandler)
		r.Get("/{matchId}/token", mm.TokenHandler)
		r.HandleFunc("/ws", mm.WsHandler)

		r.Options("/create", mm.CreateHandler)
		r.Options("/invite", mm.InviteHandler)
		r.Options("/assign", mm.AssignHandler)
		r.Options("/remove", mm.RemoveHandler)
		r.Options("/start", mm.StartHandler)
		r.Options("/goal", mm.GoalHandler)
		r.Options("/swap", mm.SwapHandler)
		r.Options("/complete", mm.CompleteHandler)
	})

	r.Route("/api/v1/invitations", func(r chi.Router) {
		r.Get("/pending", inv.PendingHandler)
		r.Post("/accept", inv.AcceptHandler)
		r.Post("/decline", inv.DeclineHandler)

		r.Options("/accept", inv.AcceptHandler)
		r.Options("/decline", inv.DeclineHandler)
	})
}
