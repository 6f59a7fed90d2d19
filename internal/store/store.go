package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"foosball/internal/elo"
	"foosball/internal/models"
)

const (
	MatchKeyPrefix        = "match:"
	UserKeyPrefix         = "user:"
	RelationshipKeyPrefix = "relationship:"
	InvitationKeyPrefix   = "invitation:"
	PendingInvPrefix      = "invitations:pending:"

	// MatchUpdatesChannel carries before/after snapshots for every committed
	// match write. Clients and the settlement trigger consume it.
	MatchUpdatesChannel = "match:updates"

	maxTxRetries = 10
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrInvitationNotFound = errors.New("invitation not found")

	// errNoChange aborts a watch transaction when a mutation declined to write.
	errNoChange = errors.New("no change")
)

// Store is the document store for match, user, relationship and invitation
// records. Match documents are JSON blobs updated under optimistic WATCH
// transactions; user profiles are hashes so settlement can use HINCRBY.
type Store struct {
	ctx    context.Context
	rdb    *redis.Client
	logger *zap.Logger
}

func New(rdb *redis.Client, logger *zap.Logger) *Store {
	return &Store{
		ctx:    context.Background(),
		rdb:    rdb,
		logger: logger,
	}
}

func MatchKey(id string) string      { return MatchKeyPrefix + id }
func UserKey(uid string) string      { return UserKeyPrefix + uid }
func InvitationKey(id string) string { return InvitationKeyPrefix + id }

// RelationshipID keys the undirected pair by the sorted uids, so both
// initiation orders resolve to the same record.
func RelationshipID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}

// --- Matches ---

func (s *Store) CreateMatch(m *models.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}
	if err := s.rdb.Set(s.ctx, MatchKey(m.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	s.publishUpdate(m.ID, nil, m)
	return nil
}

func (s *Store) GetMatch(id string) (*models.Match, error) {
	raw, err := s.rdb.Get(s.ctx, MatchKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	var m models.Match
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	return &m, nil
}

// UpdateMatch applies mutate to the current document and commits the result
// as one atomic write. mutate returns false to decline the write (a silent
// guard rejection); in that case no update is published and no error is
// returned. Concurrent writers are handled by WATCH retry, so each committed
// update is a consistent read-modify-write against the latest document.
func (s *Store) UpdateMatch(id string, mutate func(m *models.Match) (bool, error)) (*models.Match, error) {
	key := MatchKey(id)

	var before, after *models.Match

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(s.ctx, key).Result()
		if err == redis.Nil {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}

		before = &models.Match{}
		if err := json.Unmarshal([]byte(raw), before); err != nil {
			return fmt.Errorf("failed to decode match: %w", err)
		}

		working := &models.Match{}
		if err := json.Unmarshal([]byte(raw), working); err != nil {
			return fmt.Errorf("failed to decode match: %w", err)
		}

		changed, err := mutate(working)
		if err != nil {
			return err
		}
		if !changed {
			after = working
			return errNoChange
		}

		data, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("failed to encode match: %w", err)
		}

		_, err = tx.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(s.ctx, key, data, 0)
			return nil
		})
		after = working
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(s.ctx, txn, key)
		if err == errNoChange {
			return after, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publishUpdate(id, before, after)
		return after, nil
	}
	return nil, fmt.Errorf("match update contention on %s: %w", id, redis.TxFailedErr)
}

// DeleteLobby removes a match only while it is still in the lobby phase.
// Deleting a missing or already-started match is a harmless no-op, so any
// number of observers may issue the cleanup redundantly.
func (s *Store) DeleteLobby(id string) (bool, error) {
	key := MatchKey(id)

	var before *models.Match
	deleted := false

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(s.ctx, key).Result()
		if err == redis.Nil {
			return errNoChange
		}
		if err != nil {
			return err
		}

		before = &models.Match{}
		if err := json.Unmarshal([]byte(raw), before); err != nil {
			return fmt.Errorf("failed to decode match: %w", err)
		}
		if before.Status != models.StatusLobby {
			return errNoChange
		}

		_, err = tx.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(s.ctx, key)
			return nil
		})
		deleted = err == nil
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(s.ctx, txn, key)
		if err == errNoChange {
			return false, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return false, err
		}
		if deleted {
			s.publishUpdate(id, before, nil)
		}
		return deleted, nil
	}
	return false, fmt.Errorf("lobby delete contention on %s: %w", id, redis.TxFailedErr)
}

// LobbyMatches returns every match currently in the lobby phase.
func (s *Store) LobbyMatches() ([]*models.Match, error) {
	keys, err := s.rdb.Keys(s.ctx, MatchKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan matches: %w", err)
	}

	var lobbies []*models.Match
	for _, key := range keys {
		raw, err := s.rdb.Get(s.ctx, key).Result()
		if err != nil {
			continue
		}
		var m models.Match
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.logger.Warn("skipping undecodable match document", zap.String("key", key), zap.Error(err))
			continue
		}
		if m.Status == models.StatusLobby {
			lobbies = append(lobbies, &m)
		}
	}
	return lobbies, nil
}

// --- Change stream ---

func (s *Store) publishUpdate(matchID string, before, after *models.Match) {
	payload, err := json.Marshal(models.MatchUpdate{MatchID: matchID, Before: before, After: after})
	if err != nil {
		s.logger.Error("failed to marshal match update", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(s.ctx, MatchUpdatesChannel, payload).Err(); err != nil {
		s.logger.Error("failed to publish match update", zap.String("matchId", matchID), zap.Error(err))
	}
}

// SubscribeMatchUpdates returns a channel of committed match updates plus an
// unsubscribe function. Callers must invoke unsubscribe when done; it stops
// delivery and releases the underlying pub/sub connection.
func (s *Store) SubscribeMatchUpdates() (<-chan models.MatchUpdate, func()) {
	pubsub := s.rdb.Subscribe(s.ctx, MatchUpdatesChannel)
	out := make(chan models.MatchUpdate)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var update models.MatchUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				s.logger.Warn("failed to parse match update", zap.Error(err))
				continue
			}
			out <- update
		}
	}()

	return out, func() { pubsub.Close() }
}

// --- Users ---

// GetUser loads a player's profile. A missing profile resolves to a default
// one at the base rating rather than an error.
func (s *Store) GetUser(uid string) (*models.User, error) {
	data, err := s.rdb.HGetAll(s.ctx, UserKey(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(data) == 0 {
		return &models.User{UID: uid, Elo: elo.DefaultRating}, nil
	}

	u := &models.User{UID: uid, Username: data["username"]}
	u.Elo = atoiDefault(data["elo"], elo.DefaultRating)
	u.MatchesPlayed = atoiDefault(data["matchesPlayed"], 0)
	u.Wins = atoiDefault(data["wins"], 0)
	u.Losses = atoiDefault(data["losses"], 0)
	if ts, ok := data["createdAt"]; ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			u.CreatedAt = parsed
		}
	}
	return u, nil
}

func (s *Store) PutUser(u *models.User) error {
	err := s.rdb.HSet(s.ctx, UserKey(u.UID), map[string]interface{}{
		"username":      u.Username,
		"elo":           u.Elo,
		"matchesPlayed": u.MatchesPlayed,
		"wins":          u.Wins,
		"losses":        u.Losses,
		"createdAt":     u.CreatedAt.Format(time.RFC3339),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to put user: %w", err)
	}
	return nil
}

// Ratings resolves the current rating for each uid, defaulting for players
// without a stored profile.
func (s *Store) Ratings(uids []string) map[string]int {
	ratings := make(map[string]int, len(uids))
	for _, uid := range uids {
		raw, err := s.rdb.HGet(s.ctx, UserKey(uid), "elo").Result()
		if err != nil {
			ratings[uid] = elo.DefaultRating
			continue
		}
		ratings[uid] = atoiDefault(raw, elo.DefaultRating)
	}
	return ratings
}

// --- Relationships ---

// GetRelationship loads the trust record for a pair, in either order.
// Returns nil without error when no record exists.
func (s *Store) GetRelationship(a, b string) (*models.Relationship, error) {
	raw, err := s.rdb.Get(s.ctx, RelationshipKeyPrefix+RelationshipID(a, b)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}

	var rel models.Relationship
	if err := json.Unmarshal([]byte(raw), &rel); err != nil {
		return nil, fmt.Errorf("failed to decode relationship: %w", err)
	}
	return &rel, nil
}

func (s *Store) PutRelationship(rel *models.Relationship) error {
	if rel.ID == "" {
		rel.ID = RelationshipID(rel.Users[0], rel.Users[1])
	}
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to encode relationship: %w", err)
	}
	if err := s.rdb.Set(s.ctx, RelationshipKeyPrefix+rel.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to put relationship: %w", err)
	}
	return nil
}

// --- Invitations ---

// AddPendingInvitation records an untrusted invite as one atomic commit:
// the invitee joins the match's pendingInvitations, the invitation document
// is created, and the invitee's pending index gains the id.
func (s *Store) AddPendingInvitation(inv *models.Invitation) error {
	matchKey := MatchKey(inv.MatchID)

	var before, after *models.Match

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(s.ctx, matchKey).Result()
		if err == redis.Nil {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}

		before = &models.Match{}
		if err := json.Unmarshal([]byte(raw), before); err != nil {
			return fmt.Errorf("failed to decode match: %w", err)
		}

		working := &models.Match{}
		json.Unmarshal([]byte(raw), working)

		if working.Status == models.StatusCompleted {
			return errNoChange
		}
		working.PendingInvitations = appendUnique(working.PendingInvitations, inv.InviteeUID)
		if working.Status == models.StatusLobby {
			working.LastActivityAt = time.Now().UTC()
		}

		matchData, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("failed to encode match: %w", err)
		}
		invData, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("failed to encode invitation: %w", err)
		}

		_, err = tx.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(s.ctx, matchKey, matchData, 0)
			pipe.Set(s.ctx, InvitationKey(inv.ID), invData, 0)
			pipe.SAdd(s.ctx, PendingInvPrefix+inv.InviteeUID, inv.ID)
			return nil
		})
		after = working
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(s.ctx, txn, matchKey)
		if err == errNoChange {
			return nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return err
		}
		s.publishUpdate(inv.MatchID, before, after)
		return nil
	}
	return fmt.Errorf("invitation contention on %s: %w", inv.MatchID, redis.TxFailedErr)
}

func (s *Store) GetInvitation(id string) (*models.Invitation, error) {
	raw, err := s.rdb.Get(s.ctx, InvitationKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	var inv models.Invitation
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invitation: %w", err)
	}
	return &inv, nil
}

// PendingInvitationsFor lists the open invitations addressed to a player.
func (s *Store) PendingInvitationsFor(inviteeUID string) ([]*models.Invitation, error) {
	ids, err := s.rdb.SMembers(s.ctx, PendingInvPrefix+inviteeUID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}

	var pending []*models.Invitation
	for _, id := range ids {
		inv, err := s.GetInvitation(id)
		if err != nil {
			continue
		}
		if inv.Status == models.InvitationPending {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

// RespondInvitation settles a pending invitation in one atomic commit. On
// accept the invitee joins participants and leaves pendingInvitations; on
// decline only the pending entry is removed. Responding to an already
// settled invitation is a no-op.
func (s *Store) RespondInvitation(invitationID string, accept bool) error {
	inv, err := s.GetInvitation(invitationID)
	if err != nil {
		return err
	}
	if inv.Status != models.InvitationPending {
		return nil
	}

	matchKey := MatchKey(inv.MatchID)
	invKey := InvitationKey(inv.ID)

	var before, after *models.Match

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(s.ctx, matchKey).Result()
		if err == redis.Nil {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}

		before = &models.Match{}
		if err := json.Unmarshal([]byte(raw), before); err != nil {
			return fmt.Errorf("failed to decode match: %w", err)
		}

		working := &models.Match{}
		json.Unmarshal([]byte(raw), working)

		working.PendingInvitations = removeValue(working.PendingInvitations, inv.InviteeUID)
		if accept {
			working.Participants = appendUnique(working.Participants, inv.InviteeUID)
		}
		if working.Status == models.StatusLobby {
			working.LastActivityAt = time.Now().UTC()
		}

		now := time.Now().UTC()
		settled := *inv
		settled.RespondedAt = &now
		settled.Status = models.InvitationDeclined
		if accept {
			settled.Status = models.InvitationAccepted
		}

		matchData, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("failed to encode match: %w", err)
		}
		invData, err := json.Marshal(&settled)
		if err != nil {
			return fmt.Errorf("failed to encode invitation: %w", err)
		}

		_, err = tx.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(s.ctx, matchKey, matchData, 0)
			pipe.Set(s.ctx, invKey, invData, 0)
			pipe.SRem(s.ctx, PendingInvPrefix+inv.InviteeUID, inv.ID)
			return nil
		})
		after = working
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(s.ctx, txn, matchKey, invKey)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return err
		}
		s.publishUpdate(inv.MatchID, before, after)
		return nil
	}
	return fmt.Errorf("invitation response contention on %s: %w", inv.ID, redis.TxFailedErr)
}

// --- Settlement ---

// ApplySettlement commits a settlement batch: the eloChanges map lands on
// the match document and every participant's profile counters are
// incremented, all-or-nothing. The write is guarded inside the transaction:
// if eloChanges is already populated the batch is dropped and (false, nil)
// is returned, which makes duplicate deliveries a successful no-op.
func (s *Store) ApplySettlement(matchID string, eloChanges map[string]int, deltas []models.ProfileDelta) (bool, error) {
	matchKey := MatchKey(matchID)

	var before, after *models.Match

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(s.ctx, matchKey).Result()
		if err == redis.Nil {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}

		before = &models.Match{}
		if err := json.Unmarshal([]byte(raw), before); err != nil {
			return fmt.Errorf("failed to decode match: %w", err)
		}
		if len(before.EloChanges) > 0 {
			return errNoChange
		}

		working := &models.Match{}
		json.Unmarshal([]byte(raw), working)
		working.EloChanges = eloChanges

		matchData, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("failed to encode match: %w", err)
		}

		_, err = tx.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(s.ctx, matchKey, matchData, 0)
			for _, d := range deltas {
				key := UserKey(d.UID)
				// Missing profiles settle from the base rating, not zero.
				pipe.HSetNX(s.ctx, key, "elo", elo.DefaultRating)
				pipe.HIncrBy(s.ctx, key, "elo", int64(d.Elo))
				pipe.HIncrBy(s.ctx, key, "matchesPlayed", 1)
				if d.Won {
					pipe.HIncrBy(s.ctx, key, "wins", 1)
				} else {
					pipe.HIncrBy(s.ctx, key, "losses", 1)
				}
			}
			return nil
		})
		after = working
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(s.ctx, txn, matchKey)
		if err == errNoChange {
			return false, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return false, err
		}
		s.publishUpdate(matchID, before, after)
		return true, nil
	}
	return false, fmt.Errorf("settlement contention on %s: %w", matchID, redis.TxFailedErr)
}

// --- helpers ---

func atoiDefault(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func removeValue(values []string, v string) []string {
	out := values[:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
