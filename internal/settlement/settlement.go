// Package settlement owns post-match rating settlement. The trigger consumes
// the store's change stream and is the single writer of eloChanges and user
// profile stats; client-side completion writes never touch profiles.
package settlement

import (
	"foosball/internal/elo"
	"foosball/internal/models"
)

// Batch is the multi-document commit produced by one settled match.
type Batch struct {
	MatchID    string
	EloChanges map[string]int
	Profiles   []models.ProfileDelta
}

// Evaluate decides whether an observed match update is the completion
// transition and, if so, builds the settlement batch. It is edge-triggered:
// only the single update that moves status to completed with no eloChanges
// yet recorded produces a batch. All other updates, including duplicate
// deliveries after a successful settlement, return false.
func Evaluate(before, after *models.Match, ratings map[string]int) (*Batch, bool) {
	if before == nil || after == nil {
		return nil, false
	}
	if before.Status == models.StatusCompleted || after.Status != models.StatusCompleted {
		return nil, false
	}
	if len(after.EloChanges) > 0 {
		return nil, false
	}

	changes := elo.Settlement(after.RedTeam, after.BlueTeam, ratings)

	redWon := after.RedTeam.Score > after.BlueTeam.Score

	profiles := make([]models.ProfileDelta, 0, len(changes))
	for _, uid := range after.RedTeam.Players() {
		profiles = append(profiles, models.ProfileDelta{UID: uid, Elo: changes[uid], Won: redWon})
	}
	for _, uid := range after.BlueTeam.Players() {
		profiles = append(profiles, models.ProfileDelta{UID: uid, Elo: changes[uid], Won: !redWon})
	}

	return &Batch{
		MatchID:    after.ID,
		EloChanges: changes,
		Profiles:   profiles,
	}, true
}
