package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "matches_created_total",
		Help:      "Total number of match lobbies created",
	})

	MatchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "matches_started_total",
		Help:      "Total number of matches that went live",
	})

	MatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "matches_completed_total",
		Help:      "Total number of matches that reached the completed state",
	})

	GoalsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "goals_total",
		Help:      "Total goals registered, by team colour",
	}, []string{"team"})

	SettlementsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "settlements_applied_total",
		Help:      "Settlement batches committed by the completion trigger",
	})

	SettlementsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "settlements_skipped_total",
		Help:      "Duplicate settlement deliveries dropped by the idempotency guard",
	})

	LobbiesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foosball",
		Name:      "lobbies_expired_total",
		Help:      "Lobbies disposed of by the inactivity sweep",
	})
)

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
