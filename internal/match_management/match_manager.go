package match_management

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"foosball/internal/metrics"
	"foosball/internal/models"
	"foosball/internal/store"
	"foosball/internal/utils"
)

const (
	// WinScore and WinLead define the win condition: first to 10, two clear.
	WinScore = 10
	WinLead  = 2

	// DefaultLobbyTimeout is how long a lobby survives without activity.
	DefaultLobbyTimeout = 30 * time.Second
)

// MatchManager owns the match lifecycle: lobby assembly, live scoring, the
// completion request and lobby expiry. Every mutation is one atomic document
// update through the store, so concurrent clients never see partial writes.
type MatchManager struct {
	ctx          context.Context
	store        *store.Store
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	jwtSecret    []byte
	lobbyTimeout time.Duration

	// Live websocket subscribers per match
	mu          sync.Mutex
	subscribers map[string]map[*websocket.Conn]bool
}

func NewMatchManager(secret []byte, st *store.Store, logger *zap.Logger) *MatchManager {
	return &MatchManager{
		ctx:    context.Background(),
		store:  st,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		jwtSecret:    secret,
		lobbyTimeout: DefaultLobbyTimeout,
		subscribers:  make(map[string]map[*websocket.Conn]bool),
	}
}

// SetLobbyTimeout overrides the expiry window.
func (mm *MatchManager) SetLobbyTimeout(d time.Duration) {
	mm.lobbyTimeout = d
}

// --- Lifecycle operations ---

// CreateMatch allocates a new lobby with the creator as sole participant and
// returns it together with the creator's websocket token.
func (mm *MatchManager) CreateMatch(creatorUID string) (*models.Match, string, error) {
	now := time.Now().UTC()
	m := &models.Match{
		ID:             uuid.New().String(),
		Status:         models.StatusLobby,
		Participants:   []string{creatorUID},
		RedTeam:        models.Team{},
		BlueTeam:       models.Team{},
		Events:         []models.MatchEvent{},
		CreatedBy:      creatorUID,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := mm.store.CreateMatch(m); err != nil {
		return nil, "", err
	}

	token, err := utils.GenerateMatchToken(m.ID, creatorUID, mm.jwtSecret)
	if err != nil {
		return nil, "", err
	}

	metrics.MatchesCreated.Inc()
	mm.logger.Info("match created", zap.String("matchId", m.ID), zap.String("createdBy", creatorUID))
	return m, token, nil
}

// GetMatch loads a match document.
func (mm *MatchManager) GetMatch(matchID string) (*models.Match, error) {
	return mm.store.GetMatch(matchID)
}

// InvitePlayer adds a player to the lobby. If the invitee trusts the
// inviter they join participants directly; otherwise a pending invitation
// is recorded for the invitee to accept or decline.
func (mm *MatchManager) InvitePlayer(matchID, playerUID, inviterUID string) error {
	rel, err := mm.store.GetRelationship(inviterUID, playerUID)
	if err != nil {
		return err
	}

	trusted := rel != nil && rel.Trusts[playerUID]
	if trusted {
		_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
			if m.Status == models.StatusCompleted {
				return false, nil
			}
			m.Participants = appendUnique(m.Participants, playerUID)
			if m.Status == models.StatusLobby {
				m.LastActivityAt = time.Now().UTC()
			}
			return true, nil
		})
		return err
	}

	inv := &models.Invitation{
		ID:         uuid.New().String(),
		MatchID:    matchID,
		InviterUID: inviterUID,
		InviteeUID: playerUID,
		Status:     models.InvitationPending,
		CreatedAt:  time.Now().UTC(),
	}
	return mm.store.AddPendingInvitation(inv)
}

// AssignToTeam moves a player into a team slot. Clearing the player's old
// slot and writing the new one happen in the same document update, which is
// what keeps a player in at most one slot under concurrent assignment.
func (mm *MatchManager) AssignToTeam(matchID, playerUID, team, role string) error {
	_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
		if m.Status == models.StatusCompleted {
			return false, nil
		}
		if !m.HasParticipant(playerUID) {
			return false, nil
		}

		m.RedTeam.ClearPlayer(playerUID)
		m.BlueTeam.ClearPlayer(playerUID)
		m.Team(team).SetSlot(role, &playerUID)

		if m.Status == models.StatusLobby {
			m.LastActivityAt = time.Now().UTC()
		}
		return true, nil
	})
	return err
}

// RemoveFromTeam empties one slot. Lobby phase only.
func (mm *MatchManager) RemoveFromTeam(matchID, team, role string) error {
	_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
		if m.Status != models.StatusLobby {
			return false, nil
		}
		m.Team(team).SetSlot(role, nil)
		m.LastActivityAt = time.Now().UTC()
		return true, nil
	})
	return err
}

// StartMatch transitions lobby -> live. Only the creator may start, and
// both teams need at least one occupied slot; asymmetric shapes (1v2, 2v1)
// are legal.
func (mm *MatchManager) StartMatch(matchID, callerUID string) error {
	started := false
	_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
		if m.Status != models.StatusLobby {
			return false, nil
		}
		if m.CreatedBy != callerUID {
			return false, nil
		}
		if len(m.RedTeam.Players()) == 0 || len(m.BlueTeam.Players()) == 0 {
			return false, nil
		}

		now := time.Now().UTC()
		m.Status = models.StatusLive
		m.StartedAt = &now
		started = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if started {
		metrics.MatchesStarted.Inc()
		mm.logger.Info("match started", zap.String("matchId", matchID))
	}
	return nil
}

// AddGoal registers a goal for a team. Ignored unless the match is live.
// The win condition is evaluated against the post-increment score pair, and
// on a win the final scores captured at increment time are passed to
// CompleteMatch explicitly, so a racing second goal cannot complete the
// match with stale or inconsistent scores.
func (mm *MatchManager) AddGoal(matchID, team string) error {
	var finalRed, finalBlue int
	scored, won := false, false

	_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
		scored, won = false, false
		if m.Status != models.StatusLive {
			return false, nil
		}
		scored = true

		scoring := m.Team(team)
		scoring.Score++
		m.Events = append(m.Events, models.MatchEvent{
			Type: models.EventGoal,
			Team: team,
			Time: time.Now().UTC(),
		})

		other := m.BlueTeam.Score
		if team == models.TeamBlue {
			other = m.RedTeam.Score
		}
		won = scoring.Score >= WinScore && scoring.Score-other >= WinLead
		finalRed = m.RedTeam.Score
		finalBlue = m.BlueTeam.Score
		return true, nil
	})
	if err != nil {
		return err
	}

	if scored {
		metrics.GoalsScored.WithLabelValues(team).Inc()
	}

	if won {
		return mm.CompleteMatch(matchID, &finalRed, &finalBlue)
	}
	return nil
}

// SwapRoles exchanges a team's attacker and defender, empty slots included.
func (mm *MatchManager) SwapRoles(matchID, team string) error {
	_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
		if m.Status == models.StatusCompleted {
			return false, nil
		}

		side := m.Team(team)
		side.Attacker, side.Defender = side.Defender, side.Attacker
		m.Events = append(m.Events, models.MatchEvent{
			Type: models.EventSwap,
			Team: team,
			Time: time.Now().UTC(),
		})
		if m.Status == models.StatusLobby {
			m.LastActivityAt = time.Now().UTC()
		}
		return true, nil
	})
	return err
}

// CompleteMatch requests the completed transition. This client-side path is
// advisory: it writes status, endedAt and the authoritative final scores
// when provided, but never eloChanges or profiles - the settlement trigger
// is the single writer for those. Completing an already completed match is
// a silent no-op.
func (mm *MatchManager) CompleteMatch(matchID string, finalRedScore, finalBlueScore *int) error {
	completed := false
	_, err := mm.store.UpdateMatch(matchID, func(m *models.Match) (bool, error) {
		if m.Status == models.StatusCompleted {
			return false, nil
		}

		if finalRedScore != nil {
			m.RedTeam.Score = *finalRedScore
		}
		if finalBlueScore != nil {
			m.BlueTeam.Score = *finalBlueScore
		}

		now := time.Now().UTC()
		m.Status = models.StatusCompleted
		m.EndedAt = &now
		completed = true
		return true, nil
	})
	if err != nil {
		return err
	}
	if completed {
		metrics.MatchesCompleted.Inc()
		mm.logger.Info("match completed", zap.String("matchId", matchID))
	}
	return nil
}

// DisposeLobby deletes an idle lobby. Safe to call redundantly from any
// observer; deleting a missing or already-live match does nothing.
func (mm *MatchManager) DisposeLobby(matchID string) (bool, error) {
	return mm.store.DeleteLobby(matchID)
}

// MatchToken issues a websocket token for a participant.
func (mm *MatchManager) MatchToken(matchID, userID string) (string, error) {
	m, err := mm.store.GetMatch(matchID)
	if err != nil {
		return "", err
	}
	if !m.HasParticipant(userID) {
		return "", store.ErrMatchNotFound
	}
	return utils.GenerateMatchToken(matchID, userID, mm.jwtSecret)
}

// --- Background loops ---

// StartUpdateFanout consumes the store's change stream and pushes each
// post-update snapshot to the match's websocket subscribers. Runs until the
// stream closes.
func (mm *MatchManager) StartUpdateFanout() {
	updates, unsubscribe := mm.store.SubscribeMatchUpdates()
	defer unsubscribe()

	for update := range updates {
		mm.broadcast(update)
	}
}

func (mm *MatchManager) broadcast(update models.MatchUpdate) {
	mm.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(mm.subscribers[update.MatchID]))
	for conn := range mm.subscribers[update.MatchID] {
		conns = append(conns, conn)
	}
	mm.mu.Unlock()

	var payload interface{}
	if update.After == nil {
		payload = map[string]interface{}{"type": "match_deleted", "matchId": update.MatchID}
	} else {
		payload = map[string]interface{}{"type": "match_update", "match": update.After}
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			mm.logger.Warn("dropping dead subscriber", zap.String("matchId", update.MatchID), zap.Error(err))
			mm.unsubscribeConn(update.MatchID, conn)
			conn.Close()
		}
	}
}

// StartLobbyExpiryLoop sweeps lobby matches once a second and disposes of
// any with no activity inside the timeout window. The delete is
// conditional, so a lobby that went live between read and delete survives.
func (mm *MatchManager) StartLobbyExpiryLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		mm.SweepExpiredLobbies(time.Now().UTC())
	}
}

// SweepExpiredLobbies runs one expiry pass and returns how many lobbies
// were disposed.
func (mm *MatchManager) SweepExpiredLobbies(now time.Time) int {
	lobbies, err := mm.store.LobbyMatches()
	if err != nil {
		mm.logger.Error("lobby sweep failed", zap.Error(err))
		return 0
	}

	expired := 0
	for _, lobby := range lobbies {
		remaining := mm.lobbyTimeout - now.Sub(lobby.LastActivityAt)
		if remaining > 0 {
			continue
		}
		deleted, err := mm.store.DeleteLobby(lobby.ID)
		if err != nil {
			mm.logger.Error("failed to dispose expired lobby", zap.String("matchId", lobby.ID), zap.Error(err))
			continue
		}
		if deleted {
			expired++
			metrics.LobbiesExpired.Inc()
			mm.logger.Info("lobby expired", zap.String("matchId", lobby.ID))
		}
	}
	return expired
}

// --- Subscriber registry ---

func (mm *MatchManager) subscribeConn(matchID string, conn *websocket.Conn) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.subscribers[matchID] == nil {
		mm.subscribers[matchID] = make(map[*websocket.Conn]bool)
	}
	mm.subscribers[matchID][conn] = true
}

func (mm *MatchManager) unsubscribeConn(matchID string, conn *websocket.Conn) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	delete(mm.subscribers[matchID], conn)
	if len(mm.subscribers[matchID]) == 0 {
		delete(mm.subscribers, matchID)
	}
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
