package models

// Resp is the generic JSON envelope for mutation endpoints.
type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}

type CreateMatchReq struct {
	UserID string `json:"userId"`
}

type CreateMatchResp struct {
	OK      bool   `json:"ok"`
	MatchID string `json:"matchId"`
	Token   string `json:"token"`
}

type InviteReq struct {
	MatchID    string `json:"matchId"`
	PlayerUID  string `json:"playerUid"`
	InviterUID string `json:"inviterUid"`
}

type AssignReq struct {
	MatchID   string `json:"matchId"`
	PlayerUID string `json:"playerUid"`
	Team      string `json:"team"`
	Role      string `json:"role"`
}

type RemoveReq struct {
	MatchID string `json:"matchId"`
	Team    string `json:"team"`
	Role    string `json:"role"`
}

type StartReq struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

type GoalReq struct {
	MatchID string `json:"matchId"`
	Team    string `json:"team"`
}

type SwapReq struct {
	MatchID string `json:"matchId"`
	Team    string `json:"team"`
}

type CompleteReq struct {
	MatchID        string `json:"matchId"`
	FinalRedScore  *int   `json:"finalRedScore,omitempty"`
	FinalBlueScore *int   `json:"finalBlueScore,omitempty"`
}

type InvitationActionReq struct {
	InvitationID string `json:"invitationId"`
}

type TokenResp struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
}
