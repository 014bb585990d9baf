package model

import "time"

type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "PENDING"
	JoinRequestStatusAccepted JoinRequestStatus = "ACCEPTED"
)

type JoinRequest struct {
	ID          int64             `json:"id"`
	Kind        GameKind          `json:"kind"`
	RequesterID int64             `json:"requester_id"`
	TargetID    int64             `json:"target_id"`
	Accepted    bool              `json:"accepted"`
	Status      JoinRequestStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	AcceptedAt  *time.Time        `json:"accepted_at,omitempty"`
}
