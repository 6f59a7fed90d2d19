package match_management

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foosball/internal/models"
)

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestCreateHandler(t *testing.T) {
	mm, _ := setupTestManager(t)

	w := postJSON(t, mm.CreateHandler, models.CreateMatchReq{UserID: "alice"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.CreateMatchResp
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.MatchID)
	assert.NotEmpty(t, resp.Token)

	m, err := mm.GetMatch(resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLobby, m.Status)
}

func TestCreateHandler_InvalidBody(t *testing.T) {
	mm, _ := setupTestManager(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	mm.CreateHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateHandler_MethodNotAllowed(t *testing.T) {
	mm, _ := setupTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	mm.CreateHandler(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func getWithMatchID(t *testing.T, handler http.HandlerFunc, matchID, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/"+matchID+query, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("matchId", matchID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestGetHandler(t *testing.T) {
	mm, _ := setupTestManager(t)
	m, _, _ := mm.CreateMatch("alice")

	w := getWithMatchID(t, mm.GetHandler, m.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var got models.Match
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, []string{"alice"}, got.Participants)
}

func TestGetHandler_NotFound(t *testing.T) {
	mm, _ := setupTestManager(t)

	w := getWithMatchID(t, mm.GetHandler, "missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignHandler_InvalidTeam(t *testing.T) {
	mm, _ := setupTestManager(t)
	m, _, _ := mm.CreateMatch("alice")

	w := postJSON(t, mm.AssignHandler, models.AssignReq{
		MatchID:   m.ID,
		PlayerUID: "alice",
		Team:      "green",
		Role:      models.RoleAttacker,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	mm, st := setupTestManager(t)

	w := postJSON(t, mm.CreateHandler, models.CreateMatchReq{UserID: "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	var created models.CreateMatchResp
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	matchID := created.MatchID

	addParticipants(t, st, matchID, "bob")

	assignments := []models.AssignReq{
		{MatchID: matchID, PlayerUID: "alice", Team: models.TeamRed, Role: models.RoleAttacker},
		{MatchID: matchID, PlayerUID: "bob", Team: models.TeamBlue, Role: models.RoleDefender},
	}
	for _, assign := range assignments {
		w = postJSON(t, mm.AssignHandler, assign)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = postJSON(t, mm.StartHandler, models.StartReq{MatchID: matchID, UserID: "alice"})
	require.Equal(t, http.StatusOK, w.Code)

	// Red runs away with it 10-0.
	for i := 0; i < 10; i++ {
		w = postJSON(t, mm.GoalHandler, models.GoalReq{MatchID: matchID, Team: models.TeamRed})
		require.Equal(t, http.StatusOK, w.Code)
	}

	m, err := mm.GetMatch(matchID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, m.Status)
	assert.Equal(t, 10, m.RedTeam.Score)
	assert.Equal(t, 0, m.BlueTeam.Score)
	assert.NotNil(t, m.EndedAt)
}

func TestCompleteHandler_NotFound(t *testing.T) {
	mm, _ := setupTestManager(t)

	w := postJSON(t, mm.CompleteHandler, models.CompleteReq{MatchID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenHandler_MissingUserID(t *testing.T) {
	mm, _ := setupTestManager(t)
	m, _, _ := mm.CreateMatch("alice")

	w := getWithMatchID(t, mm.TokenHandler, m.ID, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenHandler(t *testing.T) {
	mm, _ := setupTestManager(t)
	m, _, _ := mm.CreateMatch("alice")

	w := getWithMatchID(t, mm.TokenHandler, m.ID, "?userId=alice")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.TokenResp
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.Token)
}
