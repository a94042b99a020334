package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Request mutation event types published through the outbox. Subscribers
// treat any of them as "the request table changed".
const (
	EventRequestCreated   = "request.created"
	EventRequestUpdated   = "request.updated"
	EventRequestCancelled = "request.cancelled"
	EventRequestFulfilled = "request.fulfilled"
	EventRequestExpired   = "request.expired"
)

// OutboxEvent is a pending change-feed notification, written in the same
// transaction as the row it describes.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// ChangeNotification is the wire shape delivered to feed subscribers.
type ChangeNotification struct {
	EventType string          `json:"event_type"`
	RequestID uuid.UUID       `json:"request_id"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}
