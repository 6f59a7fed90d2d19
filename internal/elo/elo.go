package elo

import (
	"math"

	"foosball/internal/models"
)

const (
	// KFactor is the maximum rating swing a single match can produce.
	KFactor = 32.0

	// ScaleC is the rating-scale constant in the expected-score formula.
	ScaleC = 400.0

	// DefaultRating is substituted for any player without a stored rating.
	DefaultRating = 1000
)

// ExpectedScore calculates the expected result for a player/team rated
// ratingA against ratingB.
// Formula: 1 / (1 + 10^((Rb - Ra) / C))
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/ScaleC))
}

// TeamRating is the arithmetic mean rating of a team's occupied slots.
// Unknown players rate as DefaultRating; so does a fully empty team.
func TeamRating(team models.Team, ratings map[string]int) float64 {
	players := team.Players()
	if len(players) == 0 {
		return DefaultRating
	}

	total := 0.0
	for _, uid := range players {
		r, ok := ratings[uid]
		if !ok || r == 0 {
			r = DefaultRating
		}
		total += float64(r)
	}
	return total / float64(len(players))
}

// Settlement computes the signed rating delta for every player on either
// team. The winner is the team with the strictly higher score; every player
// on a team receives the identical team delta, round(K * (actual - expected)).
// Malformed input degrades to defaults rather than erroring.
func Settlement(red, blue models.Team, ratings map[string]int) map[string]int {
	redRating := TeamRating(red, ratings)
	blueRating := TeamRating(blue, ratings)

	redWon := red.Score > blue.Score

	redActual, blueActual := 0.0, 1.0
	if redWon {
		redActual, blueActual = 1.0, 0.0
	}

	redDelta := int(math.Round(KFactor * (redActual - ExpectedScore(redRating, blueRating))))
	blueDelta := int(math.Round(KFactor * (blueActual - ExpectedScore(blueRating, redRating))))

	changes := make(map[string]int)
	for _, uid := range red.Players() {
		changes[uid] = redDelta
	}
	for _, uid := range blue.Players() {
		changes[uid] = blueDelta
	}
	return changes
}
