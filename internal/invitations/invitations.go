// Package invitations handles the invitee side of lobby invitations:
// listing the inbox and settling an invitation. The terminal effect on the
// match document (participant union, pending removal) is committed in the
// same batch as the invitation status change.
package invitations

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"foosball/internal/models"
	"foosball/internal/store"
	"foosball/internal/utils"
)

type Service struct {
	store  *store.Store
	logger *zap.Logger
}

func NewService(st *store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// PendingFor lists the open invitations addressed to a player.
func (s *Service) PendingFor(inviteeUID string) ([]*models.Invitation, error) {
	return s.store.PendingInvitationsFor(inviteeUID)
}

// Accept joins the invitee to the match and settles the invitation.
func (s *Service) Accept(invitationID string) error {
	if err := s.store.RespondInvitation(invitationID, true); err != nil {
		return err
	}
	s.logger.Info("invitation accepted", zap.String("invitationId", invitationID))
	return nil
}

// Decline settles the invitation without touching participants.
func (s *Service) Decline(invitationID string) error {
	if err := s.store.RespondInvitation(invitationID, false); err != nil {
		return err
	}
	s.logger.Info("invitation declined", zap.String("invitationId", invitationID))
	return nil
}

// --- Pending Handler ---
func (s *Service) PendingHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "userId required"})
		return
	}

	pending, err := s.PendingFor(userID)
	if err != nil {
		s.logger.Error("failed to list invitations", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to list invitations"})
		return
	}
	if pending == nil {
		pending = []*models.Invitation{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pending)
}

// --- Accept Handler ---
func (s *Service) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	s.respondHandler(w, r, true)
}

// --- Decline Handler ---
func (s *Service) DeclineHandler(w http.ResponseWriter, r *http.Request) {
	s.respondHandler(w, r, false)
}

func (s *Service) respondHandler(w http.ResponseWriter, r *http.Request, accept bool) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.InvitationActionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvitationID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	var err error
	if accept {
		err = s.Accept(req.InvitationID)
	} else {
		err = s.Decline(req.InvitationID)
	}

	if errors.Is(err, store.ErrInvitationNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "invitation not found"})
		return
	}
	if errors.Is(err, store.ErrMatchNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{OK: false, Info: "match not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to respond to invitation", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "failed to respond"})
		return
	}

	info := "declined"
	if accept {
		info = "accepted"
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: info})
}
