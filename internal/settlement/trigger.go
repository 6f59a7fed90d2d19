package settlement

import (
	"go.uber.org/zap"

	"foosball/internal/metrics"
	"foosball/internal/models"
	"foosball/internal/store"
)

// Trigger reacts to every committed match update and settles completions
// exactly once. Delivery is at-least-once; idempotency comes from the
// Evaluate guards plus the store's in-transaction eloChanges re-check.
type Trigger struct {
	store  *store.Store
	logger *zap.Logger
}

func NewTrigger(st *store.Store, logger *zap.Logger) *Trigger {
	return &Trigger{store: st, logger: logger}
}

// Run consumes the change stream until the subscription is closed.
func (t *Trigger) Run() {
	updates, unsubscribe := t.store.SubscribeMatchUpdates()
	defer unsubscribe()

	for update := range updates {
		t.Handle(update)
	}
}

// Handle processes one update event. Safe to call with any update,
// including deletes and replays.
func (t *Trigger) Handle(update models.MatchUpdate) {
	after := update.After
	if after == nil || after.Status != models.StatusCompleted {
		return
	}

	ratings := t.store.Ratings(after.Participants)

	batch, ok := Evaluate(update.Before, after, ratings)
	if !ok {
		return
	}

	applied, err := t.store.ApplySettlement(batch.MatchID, batch.EloChanges, batch.Profiles)
	if err != nil {
		t.logger.Error("settlement commit failed",
			zap.String("matchId", batch.MatchID), zap.Error(err))
		return
	}
	if !applied {
		// Another delivery settled first.
		metrics.SettlementsSkipped.Inc()
		t.logger.Info("settlement already applied, skipping",
			zap.String("matchId", batch.MatchID))
		return
	}

	metrics.SettlementsApplied.Inc()
	t.logger.Info("match settled",
		zap.String("matchId", batch.MatchID),
		zap.Any("eloChanges", batch.EloChanges))
}
