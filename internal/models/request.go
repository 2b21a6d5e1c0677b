package models

import "time"

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
	RequestCancelled  RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestFailed || s == RequestCancelled
}

// AsyncRequest tracks one long-running operation submitted to the task queue.
type AsyncRequest struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Status       RequestStatus          `json:"status"`
	Progress     int                    `json:"progress"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}
