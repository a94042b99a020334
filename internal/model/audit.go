package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records who changed a request and how. Blood requests are
// safety-relevant, so every mutation leaves a trail.
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id" db:"actor_id"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Action     string          `json:"action" db:"action"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
