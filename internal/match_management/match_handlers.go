package match_management

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"foosball/internal/models"
	"foosball/internal/store"
	"foosball/internal/utils"
)

// --- Create Handler ---
func (mm *MatchManager) CreateHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CreateMatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	m, token, err := mm.CreateMatch(req.UserID)
	if err != nil {
		mm.logger.Error("create match failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to create match"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, models.CreateMatchResp{OK: true, MatchID: m.ID, Token: token})
}

// --- Get Handler ---
func (mm *MatchManager) GetHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	matchID := chi.URLParam(r, "matchId")
	m, err := mm.GetMatch(matchID)
	if errors.Is(err, store.ErrMatchNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "match not found"})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to load match"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(m)
}

// --- Invite Handler ---
func (mm *MatchManager) InviteHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.InviteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MatchID == "" || req.PlayerUID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.InvitePlayer(req.MatchID, req.PlayerUID, req.InviterUID); err != nil {
		mm.writeOpError(w, err, "failed to invite player")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "invited"})
}

// --- Assign Handler ---
func (mm *MatchManager) AssignHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AssignReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validTeam(req.Team) || !validRole(req.Role) {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.AssignToTeam(req.MatchID, req.PlayerUID, req.Team, req.Role); err != nil {
		mm.writeOpError(w, err, "failed to assign player")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "assigned"})
}

// --- Remove Handler ---
func (mm *MatchManager) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.RemoveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validTeam(req.Team) || !validRole(req.Role) {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.RemoveFromTeam(req.MatchID, req.Team, req.Role); err != nil {
		mm.writeOpError(w, err, "failed to clear slot")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "removed"})
}

// --- Start Handler ---
func (mm *MatchManager) StartHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.StartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MatchID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.StartMatch(req.MatchID, req.UserID); err != nil {
		mm.writeOpError(w, err, "failed to start match")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "started"})
}

// --- Goal Handler ---
func (mm *MatchManager) GoalHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.GoalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validTeam(req.Team) {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.AddGoal(req.MatchID, req.Team); err != nil {
		mm.writeOpError(w, err, "failed to register goal")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "goal"})
}

// --- Swap Handler ---
func (mm *MatchManager) SwapHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SwapReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validTeam(req.Team) {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.SwapRoles(req.MatchID, req.Team); err != nil {
		mm.writeOpError(w, err, "failed to swap roles")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "swapped"})
}

// --- Complete Handler ---
func (mm *MatchManager) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CompleteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MatchID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := mm.CompleteMatch(req.MatchID, req.FinalRedScore, req.FinalBlueScore); err != nil {
		mm.writeOpError(w, err, "failed to complete match")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: "completed"})
}

// --- Lobby Delete Handler ---
func (mm *MatchManager) LobbyDeleteHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	matchID := chi.URLParam(r, "matchId")
	deleted, err := mm.DisposeLobby(matchID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to dispose lobby"})
		return
	}

	info := "already gone"
	if deleted {
		info = "disposed"
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: info})
}

// --- Token Handler ---
func (mm *MatchManager) TokenHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	matchID := chi.URLParam(r, "matchId")
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "userId required"})
		return
	}

	token, err := mm.MatchToken(matchID, userID)
	if errors.Is(err, store.ErrMatchNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "match not found"})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to issue token"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.TokenResp{OK: true, Token: token})
}

// --- WebSocket Handler ---
// Subscribes the caller to live snapshots of one match. The connection is
// the subscription: closing it (or navigating away) is the unsubscribe and
// releases the registry entry, so no orphaned listeners survive teardown.
func (mm *MatchManager) WsHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}

	matchID, userID, err := utils.ParseMatchToken(tokenString, mm.jwtSecret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	m, err := mm.GetMatch(matchID)
	if errors.Is(err, store.ErrMatchNotFound) {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load match", http.StatusInternalServerError)
		return
	}

	conn, err := mm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		mm.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	mm.subscribeConn(matchID, conn)
	mm.logger.Info("subscriber connected",
		zap.String("matchId", matchID), zap.String("userId", userID))

	// Initial snapshot so the client doesn't wait for the next mutation.
	if err := conn.WriteJSON(map[string]interface{}{"type": "match_update", "match": m}); err != nil {
		mm.unsubscribeConn(matchID, conn)
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.NextReader(); err != nil {
			mm.unsubscribeConn(matchID, conn)
			conn.Close()
			mm.logger.Info("subscriber disconnected",
				zap.String("matchId", matchID), zap.String("userId", userID))
			break
		}
	}
}

func (mm *MatchManager) writeOpError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, store.ErrMatchNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "match not found"})
		return
	}
	mm.logger.Error(fallback, zap.Error(err))
	utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: fallback})
}

func validTeam(team string) bool {
	return team == models.TeamRed || team == models.TeamBlue
}

func validRole(role string) bool {
	return role == models.RoleAttacker || role == models.RoleDefender
}
