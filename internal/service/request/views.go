package request

import (
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
)

// ActiveRequests derives the discovery view from the latest snapshot:
// non-terminal, non-expired requests in fetch order.
func (s *Service) ActiveRequests() []*model.EmergencyRequest {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*model.EmergencyRequest, 0, len(s.snapshot))
	for _, req := range s.snapshot {
		if req.IsActive(now) {
			active = append(active, req)
		}
	}
	return active
}

// RequestsForUser derives the "my requests" view, every status included:
// requesters need to see their cancelled and fulfilled history too.
func (s *Service) RequestsForUser(userID uuid.UUID) []*model.EmergencyRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []*model.EmergencyRequest
	for _, req := range s.snapshot {
		if req.RequesterID != nil && *req.RequesterID == userID {
			mine = append(mine, req)
		}
	}
	return mine
}

// Snapshot returns the raw rows behind the derived views.
func (s *Service) Snapshot() []*model.EmergencyRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.EmergencyRequest, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}
