package model

import "time"

// GameKind tells sessions (one-off partidas) and campaigns apart. Both share the same shape.
type GameKind string

const (
	GameKindSession  GameKind = "session"
	GameKindCampaign GameKind = "campaign"
)

type Game struct {
	ID               int64     `json:"id"`
	Kind             GameKind  `json:"kind"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	OwnerID          int64     `json:"owner_id"`
	Master           string    `json:"master"`
	ParticipantCount int       `json:"participant_count"`
	Players          []*Player `json:"players,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GameInput is the writable part of a game, used for create and full update.
type GameInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type Player struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}
