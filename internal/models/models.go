package models

import (
	"time"
)

// Match status values. Transitions are strictly lobby -> live -> completed.
const (
	StatusLobby     = "lobby"
	StatusLive      = "live"
	StatusCompleted = "completed"
)

// Team colours and slot roles.
const (
	TeamRed  = "red"
	TeamBlue = "blue"

	RoleAttacker = "attacker"
	RoleDefender = "defender"
)

// Match event types.
const (
	EventGoal = "goal"
	EventSwap = "swap"
)

// Invitation status values.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

// Team is one side of the table. A nil slot is empty.
type Team struct {
	Attacker *string `json:"attacker"`
	Defender *string `json:"defender"`
	Score    int     `json:"score"`
}

// Players returns the uids occupying the team's slots.
func (t Team) Players() []string {
	players := make([]string, 0, 2)
	if t.Attacker != nil {
		players = append(players, *t.Attacker)
	}
	if t.Defender != nil {
		players = append(players, *t.Defender)
	}
	return players
}

// Occupies reports whether uid sits in either slot.
func (t Team) Occupies(uid string) bool {
	return (t.Attacker != nil && *t.Attacker == uid) ||
		(t.Defender != nil && *t.Defender == uid)
}

// Slot returns the slot contents for a role.
func (t Team) Slot(role string) *string {
	if role == RoleAttacker {
		return t.Attacker
	}
	return t.Defender
}

// SetSlot writes a slot for a role. A nil uid clears it.
func (t *Team) SetSlot(role string, uid *string) {
	if role == RoleAttacker {
		t.Attacker = uid
		return
	}
	t.Defender = uid
}

// ClearPlayer empties any slot holding uid.
func (t *Team) ClearPlayer(uid string) {
	if t.Attacker != nil && *t.Attacker == uid {
		t.Attacker = nil
	}
	if t.Defender != nil && *t.Defender == uid {
		t.Defender = nil
	}
}

// MatchEvent is an activity-feed entry. Not authoritative for score.
type MatchEvent struct {
	Type string    `json:"type"`
	Team string    `json:"team,omitempty"`
	Time time.Time `json:"time"`
}

// Match is the central document. One JSON blob per match in the store.
type Match struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	Participants       []string       `json:"participants"`
	PendingInvitations []string       `json:"pendingInvitations,omitempty"`
	RedTeam            Team           `json:"redTeam"`
	BlueTeam           Team           `json:"blueTeam"`
	Events             []MatchEvent   `json:"events"`
	EloChanges         map[string]int `json:"eloChanges,omitempty"`
	CreatedBy          string         `json:"createdBy"`
	CreatedAt          time.Time      `json:"createdAt"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	EndedAt            *time.Time     `json:"endedAt,omitempty"`
	LastActivityAt     time.Time      `json:"lastActivityAt"`
}

// Team returns the team for a colour.
func (m *Match) Team(color string) *Team {
	if color == TeamRed {
		return &m.RedTeam
	}
	return &m.BlueTeam
}

// HasParticipant reports whether uid is part of the match.
func (m *Match) HasParticipant(uid string) bool {
	for _, p := range m.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// Elapsed is the play time derived from startedAt.
func (m *Match) Elapsed(now time.Time) time.Duration {
	if m.StartedAt == nil {
		return 0
	}
	end := now
	if m.EndedAt != nil {
		end = *m.EndedAt
	}
	return end.Sub(*m.StartedAt)
}

// User is a player's aggregate profile. Counts only ever increase.
type User struct {
	UID           string    `json:"uid"`
	Username      string    `json:"username"`
	Elo           int       `json:"elo"`
	MatchesPlayed int       `json:"matchesPlayed"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Relationship is an undirected trust/friendship record between two players,
// keyed by the sorted pair of their uids.
type Relationship struct {
	ID        string          `json:"id"`
	Users     [2]string       `json:"users"`
	Status    string          `json:"status"`
	SenderID  string          `json:"senderId"`
	Trusts    map[string]bool `json:"trusts"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Invitation is an ephemeral request to join a match lobby.
type Invitation struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"matchId"`
	InviterUID  string     `json:"inviterUid"`
	InviteeUID  string     `json:"inviteeUid"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// MatchUpdate is one committed change to a match document, delivered on the
// change stream with the pre- and post-update snapshots. After is nil for a
// delete, Before is nil for a create.
type MatchUpdate struct {
	MatchID string `json:"matchId"`
	Before  *Match `json:"before"`
	After   *Match `json:"after"`
}

// ProfileDelta is one player's share of a settlement batch.
type ProfileDelta struct {
	UID string
	Elo int
	Won bool
}
