// Package fallback keeps discovery views alive when Postgres is
// unreachable or empty: an in-memory request store with the same filter,
// ordering and transition semantics as the live repository. Nothing here
// survives a restart; that is the accepted trade (availability over
// durability) for a public-facing discovery surface.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
)

type Store struct {
	mu       sync.RWMutex
	requests []*model.EmergencyRequest
}

var _ repository.RequestRepository = (*Store)(nil)

func NewStore() *Store {
	return &Store{requests: seedRequests()}
}

func (s *Store) Create(ctx context.Context, req *model.EmergencyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.requests = append([]*model.EmergencyRequest{&cp}, s.requests...)
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := s.find(id)
	if req == nil {
		return nil, apperrors.NotFound("request", nil)
	}
	cp := *req
	return &cp, nil
}

// List applies the same predicates as the live query: status-set and
// urgency-set membership, exact blood-type and requester matches, ordered
// by priority score then recency.
func (s *Store) List(ctx context.Context, filters *model.RequestFilters) ([]*model.EmergencyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*model.EmergencyRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if !matches(req, filters) {
			continue
		}
		cp := *req
		matched = append(matched, &cp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].PriorityScore != matched[j].PriorityScore {
			return matched[i].PriorityScore > matched[j].PriorityScore
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = model.DefaultFetchLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) Update(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.find(req.ID)
	if cur == nil {
		return nil, apperrors.NotFound("request", nil)
	}
	if err := eligible(cur, "update"); err != nil {
		return nil, err
	}

	cur.PatientName = req.PatientName
	cur.PatientAge = req.PatientAge
	cur.UnitsNeeded = req.UnitsNeeded
	cur.Urgency = req.Urgency
	cur.PriorityScore = req.PriorityScore
	cur.HospitalName = req.HospitalName
	cur.HospitalAddress = req.HospitalAddress
	cur.ContactName = req.ContactName
	cur.ContactPhone = req.ContactPhone
	cur.UpdatedAt = req.UpdatedAt

	cp := *cur
	return &cp, nil
}

func (s *Store) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.EmergencyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.find(id)
	if cur == nil {
		return nil, apperrors.NotFound("request", nil)
	}
	if err := eligible(cur, "cancel"); err != nil {
		return nil, err
	}

	cur.Status = model.RequestStatusCancelled
	cur.CancelReason = reason
	cur.UpdatedAt = time.Now()

	cp := *cur
	return &cp, nil
}

// Fulfill mirrors the live path's guarded increment, serialized by the
// store mutex instead of a row lock.
func (s *Store) Fulfill(ctx context.Context, id uuid.UUID, units int) (*model.EmergencyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.find(id)
	if cur == nil {
		return nil, apperrors.NotFound("request", nil)
	}
	if err := eligible(cur, "fulfill"); err != nil {
		return nil, err
	}

	now := time.Now()
	total := cur.FulfilledUnits + units
	if total >= cur.UnitsNeeded {
		cur.FulfilledUnits = cur.UnitsNeeded
		cur.Status = model.RequestStatusFulfilled
		cur.FulfilledAt = &now
	} else {
		cur.FulfilledUnits = total
		cur.Status = model.RequestStatusPartiallyFulfilled
	}
	cur.UpdatedAt = now

	cp := *cur
	return &cp, nil
}

func (s *Store) SetMatchProgress(ctx context.Context, id uuid.UUID, status model.RequestStatus, matchedDonors int) error {
	if status != model.RequestStatusMatching && status != model.RequestStatusDonorsFound {
		return fmt.Errorf("invalid match progress status: %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.find(id)
	if cur == nil {
		return apperrors.NotFound("request", nil)
	}
	if cur.Status != model.RequestStatusPending && cur.Status != model.RequestStatusMatching {
		return apperrors.Conflict(fmt.Sprintf("cannot match a %s request", cur.Status), nil)
	}

	cur.Status = status
	cur.MatchedDonorsCount = matchedDonors
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, req := range s.requests {
		if req.Status.IsTerminal() || !req.IsExpired(now) {
			continue
		}
		req.Status = model.RequestStatusExpired
		req.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *Store) find(id uuid.UUID) *model.EmergencyRequest {
	for _, req := range s.requests {
		if req.ID == id {
			return req
		}
	}
	return nil
}

func eligible(req *model.EmergencyRequest, op string) error {
	if req.Status.IsTerminal() {
		return apperrors.Conflict(fmt.Sprintf("cannot %s a %s request", op, req.Status), nil)
	}
	if req.IsExpired(time.Now()) {
		return apperrors.Conflict(fmt.Sprintf("cannot %s an expired request", op), nil)
	}
	return nil
}

func matches(req *model.EmergencyRequest, filters *model.RequestFilters) bool {
	if len(filters.Statuses) > 0 && !containsStatus(filters.Statuses, req.Status) {
		return false
	}
	if len(filters.Urgencies) > 0 && !containsUrgency(filters.Urgencies, req.Urgency) {
		return false
	}
	if filters.BloodType != nil && req.BloodType != *filters.BloodType {
		return false
	}
	if filters.RequesterID != nil {
		if req.RequesterID == nil || *req.RequesterID != *filters.RequesterID {
			return false
		}
	}
	return true
}

func containsStatus(set []model.RequestStatus, s model.RequestStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsUrgency(set []model.Urgency, u model.Urgency) bool {
	for _, v := range set {
		if v == u {
			return true
		}
	}
	return false
}
