// Package request implements the emergency request lifecycle with a
// dual-backend strategy: Postgres when reachable, an in-memory fallback
// store otherwise. Reads decide which backend is live; writes follow.
package request

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/internal/repository/fallback"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/metrics"
	"github.com/raktaseva/blood-api/pkg/validator"
)

// Mode names the backend currently serving requests.
type Mode int

const (
	ModeLive Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	if m == ModeFallback {
		return "fallback"
	}
	return "live"
}

// FetchResult carries a page of requests plus the backend that produced
// it, so callers can surface degraded-mode banners.
type FetchResult struct {
	Requests []*model.EmergencyRequest `json:"requests"`
	Mode     Mode                      `json:"-"`
	Degraded bool                      `json:"degraded"`
}

type Service struct {
	live      repository.RequestRepository
	fallback  *fallback.Store
	outbox    repository.OutboxRepository
	audit     repository.AuditRepository
	hospitals repository.HospitalRepository
	validate  *validator.Validator
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	mode     Mode
	snapshot []*model.EmergencyRequest
}

func NewService(
	live repository.RequestRepository,
	fb *fallback.Store,
	outbox repository.OutboxRepository,
	audit repository.AuditRepository,
	hospitals repository.HospitalRepository,
	validate *validator.Validator,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		live:      live,
		fallback:  fb,
		outbox:    outbox,
		audit:     audit,
		hospitals: hospitals,
		validate:  validate,
		logger:    log,
		metrics:   m,
		mode:      ModeLive,
	}
}

// Mode reports the backend that served the most recent fetch.
func (s *Service) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Fetch lists requests from the live backend, dropping to the fallback
// store when the query errors or comes back empty. A later fetch that
// succeeds with rows flips the service back to live. Fetch itself never
// fails; degradation is reported, not raised.
func (s *Service) Fetch(ctx context.Context, filters *model.RequestFilters) *FetchResult {
	if filters == nil {
		filters = &model.RequestFilters{}
	}

	requests, err := s.live.List(ctx, filters)
	switch {
	case err != nil:
		s.logger.Error(err, "live fetch failed, engaging fallback")
		s.metrics.FallbackEngaged.WithLabelValues("error").Inc()
		return s.fetchFallback(ctx, filters)
	case len(requests) == 0:
		s.metrics.FallbackEngaged.WithLabelValues("empty").Inc()
		return s.fetchFallback(ctx, filters)
	}

	s.mu.Lock()
	if s.mode == ModeFallback {
		s.logger.Info("live backend recovered, leaving fallback mode")
	}
	s.mode = ModeLive
	s.snapshot = requests
	s.mu.Unlock()

	return &FetchResult{Requests: requests, Mode: ModeLive}
}

func (s *Service) fetchFallback(ctx context.Context, filters *model.RequestFilters) *FetchResult {
	requests, err := s.fallback.List(ctx, filters)
	if err != nil {
		// The in-memory store has no failure modes today; guard anyway.
		s.logger.Error(err, "fallback fetch failed")
		requests = nil
	}

	s.mu.Lock()
	s.mode = ModeFallback
	s.snapshot = requests
	s.mu.Unlock()

	return &FetchResult{Requests: requests, Mode: ModeFallback, Degraded: true}
}

// Get reads a single request from the active backend.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error) {
	return s.activeRepo().Get(ctx, id)
}

// Create validates the input, stamps server-derived fields and persists
// the request on the active backend. The new row is prepended to the
// local snapshot so discovery views include it before the next fetch.
func (s *Service) Create(ctx context.Context, sess *model.Session, input *model.CreateRequestInput) (*model.EmergencyRequest, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	now := time.Now()
	req := &model.EmergencyRequest{
		ID:              uuid.New(),
		RequesterID:     input.RequesterID,
		PatientName:     input.PatientName,
		PatientAge:      input.PatientAge,
		PatientGender:   input.PatientGender,
		BloodType:       input.BloodType,
		UnitsNeeded:     input.UnitsNeeded,
		BloodComponent:  input.BloodComponent,
		Urgency:         input.Urgency,
		PriorityScore:   input.Urgency.PriorityScore(),
		HospitalID:      input.HospitalID,
		HospitalName:    input.HospitalName,
		HospitalAddress: input.HospitalAddress,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		ContactName:     input.ContactName,
		ContactPhone:    input.ContactPhone,
		ContactRelation: input.ContactRelation,
		Status:          model.RequestStatusPending,
		NeededBy:        input.NeededBy,
		ExpiresAt:       now.Add(model.DefaultRequestTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.BloodComponent == "" {
		req.BloodComponent = model.BloodComponentWholeBlood
	}
	if input.ExpiresAt != nil && input.ExpiresAt.After(now) {
		req.ExpiresAt = *input.ExpiresAt
	}
	if sess != nil {
		id := sess.UserID
		req.RequesterID = &id
	}

	s.resolveHospital(ctx, req)

	if err := s.activeRepo().Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.mu.Lock()
	s.snapshot = append([]*model.EmergencyRequest{req}, s.snapshot...)
	s.mu.Unlock()

	s.metrics.RequestsCreated.WithLabelValues(string(req.Urgency)).Inc()
	s.emitChange(ctx, model.EventRequestCreated, req, nil)
	s.recordAudit(ctx, sess, "create", req.ID, req)

	s.logger.Info("emergency request created",
		"request_id", req.ID.String(),
		"urgency", string(req.Urgency),
		"blood_type", string(req.BloodType))
	return req, nil
}

// resolveHospital fills location fields from the registered hospital
// record when the request is anchored to one. Resolution failures leave
// the caller-supplied fields in place.
func (s *Service) resolveHospital(ctx context.Context, req *model.EmergencyRequest) {
	if req.HospitalID == nil || s.hospitals == nil {
		return
	}
	hospital, err := s.hospitals.Get(ctx, *req.HospitalID)
	if err != nil {
		s.logger.Warn("failed to resolve hospital, keeping submitted fields",
			"hospital_id", req.HospitalID.String())
		return
	}
	req.HospitalName = hospital.Name
	req.HospitalAddress = hospital.Address
	lat, lng := hospital.Latitude, hospital.Longitude
	req.Latitude = &lat
	req.Longitude = &lng
}

// Update applies the whitelisted patch to the stored row and reconciles
// the snapshot from the row the repository returns, never from the
// caller's copy.
func (s *Service) Update(ctx context.Context, sess *model.Session, id uuid.UUID, input *model.UpdateRequestInput) (*model.EmergencyRequest, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Urgency != nil && !input.Urgency.IsValid() {
		return nil, apperrors.Validation("urgency", "is invalid")
	}

	repo := s.activeRepo()
	cur, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patched := *cur
	applyPatch(&patched, input)
	patched.UpdatedAt = time.Now()

	updated, err := repo.Update(ctx, &patched)
	if err != nil {
		return nil, err
	}

	s.reconcile(updated)
	s.emitChange(ctx, model.EventRequestUpdated, updated, cur)
	s.recordAudit(ctx, sess, "update", id, input)
	return updated, nil
}

// Cancel moves a non-terminal request to cancelled. Terminal and expired
// requests are rejected by the repository guard.
func (s *Service) Cancel(ctx context.Context, sess *model.Session, id uuid.UUID, reason *string) (*model.EmergencyRequest, error) {
	updated, err := s.activeRepo().Cancel(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.reconcile(updated)
	s.metrics.RequestsCancelled.Inc()
	s.emitChange(ctx, model.EventRequestCancelled, updated, nil)
	s.recordAudit(ctx, sess, "cancel", id, reason)

	s.logger.Info("emergency request cancelled", "request_id", id.String())
	return updated, nil
}

// Fulfill records donated units through the repository's guarded
// increment, so concurrent donations never overwrite each other.
func (s *Service) Fulfill(ctx context.Context, sess *model.Session, id uuid.UUID, input *model.FulfillRequestInput) (*model.EmergencyRequest, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	updated, err := s.activeRepo().Fulfill(ctx, id, input.Units)
	if err != nil {
		return nil, err
	}

	s.reconcile(updated)

	eventType := model.EventRequestUpdated
	if updated.Status == model.RequestStatusFulfilled {
		eventType = model.EventRequestFulfilled
		s.metrics.RequestsFulfilled.Inc()
	}
	s.emitChange(ctx, eventType, updated, nil)
	s.recordAudit(ctx, sess, "fulfill", id, input)

	s.logger.Info("units recorded against request",
		"request_id", id.String(),
		"fulfilled_units", updated.FulfilledUnits,
		"status", string(updated.Status))
	return updated, nil
}

func (s *Service) validateCreate(input *model.CreateRequestInput) error {
	if err := s.validate.Struct(input); err != nil {
		return err
	}
	if !input.BloodType.IsValid() {
		return apperrors.Validation("blood_type", "is invalid")
	}
	if !input.Urgency.IsValid() {
		return apperrors.Validation("urgency", "is invalid")
	}
	return nil
}

func (s *Service) activeRepo() repository.RequestRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mode == ModeFallback {
		return s.fallback
	}
	return s.live
}

// reconcile replaces the snapshot entry with the authoritative row the
// repository returned, keeping derived views consistent between fetches.
func (s *Service) reconcile(updated *model.EmergencyRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, req := range s.snapshot {
		if req.ID == updated.ID {
			s.snapshot[i] = updated
			return
		}
	}
	s.snapshot = append([]*model.EmergencyRequest{updated}, s.snapshot...)
}

// emitChange queues a change-feed notification through the outbox. A
// failed enqueue costs subscribers one refresh hint, not the mutation,
// so it is logged and swallowed.
func (s *Service) emitChange(ctx context.Context, eventType string, updated, previous *model.EmergencyRequest) {
	if s.outbox == nil {
		return
	}

	notif := model.ChangeNotification{
		EventType: eventType,
		RequestID: updated.ID,
	}
	if raw, err := json.Marshal(updated); err == nil {
		notif.New = raw
	}
	if previous != nil {
		if raw, err := json.Marshal(previous); err == nil {
			notif.Old = raw
		}
	}

	payload, err := json.Marshal(notif)
	if err != nil {
		s.logger.Error(err, "failed to marshal change notification")
		return
	}

	event := &model.OutboxEvent{EventType: eventType, Payload: payload}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to enqueue change event",
			"event_type", eventType,
			"request_id", updated.ID.String())
	}
}

func (s *Service) recordAudit(ctx context.Context, sess *model.Session, action string, entityID uuid.UUID, changes interface{}) {
	if s.audit == nil {
		return
	}

	log := &model.AuditLog{
		EntityType: "emergency_request",
		EntityID:   entityID,
		Action:     action,
	}
	if sess != nil {
		id := sess.UserID
		log.ActorID = &id
	}
	if changes != nil {
		if raw, err := json.Marshal(changes); err == nil {
			log.Changes = raw
		}
	}

	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Error(err, "failed to write audit log", "action", action)
	}
}

func applyPatch(req *model.EmergencyRequest, input *model.UpdateRequestInput) {
	if input.PatientName != nil {
		req.PatientName = *input.PatientName
	}
	if input.PatientAge != nil {
		req.PatientAge = input.PatientAge
	}
	if input.UnitsNeeded != nil {
		req.UnitsNeeded = *input.UnitsNeeded
	}
	if input.Urgency != nil {
		req.Urgency = *input.Urgency
		req.PriorityScore = input.Urgency.PriorityScore()
	}
	if input.HospitalName != nil {
		req.HospitalName = *input.HospitalName
	}
	if input.HospitalAddress != nil {
		req.HospitalAddress = *input.HospitalAddress
	}
	if input.ContactName != nil {
		req.ContactName = *input.ContactName
	}
	if input.ContactPhone != nil {
		req.ContactPhone = *input.ContactPhone
	}
}
