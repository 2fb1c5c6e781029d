package types

import "time"

type MemberPayload struct {
	ID     string   `json:"id"`
	Rating *float64 `json:"rating,omitempty"`
}

type EnqueueRequest struct {
	Members []MemberPayload `json:"members"`
	Mode    string          `json:"mode"`
}

type EnqueueResponse struct {
	PartyID string `json:"party_id"`
}

type ReadyRequest struct {
	PlayerID string `json:"player_id"`
	// Accept defaults to true; false is an explicit decline.
	Accept *bool `json:"accept,omitempty"`
}

type VoteRequest struct {
	PlayerID string `json:"player_id"`
	MapID    string `json:"map_id"`
}

type FinishRequest struct {
	PlayerID string `json:"player_id"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ConnectPayload struct {
	Address  string    `json:"address"`
	Password string    `json:"password"`
	MapID    string    `json:"map_id"`
	IssuedAt time.Time `json:"issued_at"`
}

type MatchView struct {
	MatchID   string          `json:"match_id"`
	Version   int             `json:"version"`
	Phase     string          `json:"phase"`
	Mode      string          `json:"mode"`
	TeamA     []string        `json:"team_a"`
	TeamB     []string        `json:"team_b"`
	PickedMap string          `json:"picked_map,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Connect   *ConnectPayload `json:"connect,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
