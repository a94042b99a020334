package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/internal/repository/fallback"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/metrics"
	"github.com/raktaseva/blood-api/pkg/validator"
)

// Prometheus collectors register globally, so the test binary builds the
// metrics set once.
var testMetrics = metrics.New("raktaseva_test")

// stubRepo is a controllable stand-in for the live Postgres repository.
type stubRepo struct {
	listFn    func(ctx context.Context, filters *model.RequestFilters) ([]*model.EmergencyRequest, error)
	getFn     func(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error)
	createFn  func(ctx context.Context, req *model.EmergencyRequest) error
	updateFn  func(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, error)
	cancelFn  func(ctx context.Context, id uuid.UUID, reason *string) (*model.EmergencyRequest, error)
	fulfillFn func(ctx context.Context, id uuid.UUID, units int) (*model.EmergencyRequest, error)
}

var _ repository.RequestRepository = (*stubRepo)(nil)

func (s *stubRepo) List(ctx context.Context, filters *model.RequestFilters) ([]*model.EmergencyRequest, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filters)
	}
	return nil, nil
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, apperrors.NotFound("request", nil)
}

func (s *stubRepo) Create(ctx context.Context, req *model.EmergencyRequest) error {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return nil
}

func (s *stubRepo) Update(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, req)
	}
	cp := *req
	return &cp, nil
}

func (s *stubRepo) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.EmergencyRequest, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, id, reason)
	}
	return nil, apperrors.NotFound("request", nil)
}

func (s *stubRepo) Fulfill(ctx context.Context, id uuid.UUID, units int) (*model.EmergencyRequest, error) {
	if s.fulfillFn != nil {
		return s.fulfillFn(ctx, id, units)
	}
	return nil, apperrors.NotFound("request", nil)
}

func (s *stubRepo) SetMatchProgress(ctx context.Context, id uuid.UUID, status model.RequestStatus, matchedDonors int) error {
	return nil
}

func (s *stubRepo) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeOutbox struct {
	events []*model.OutboxEvent
}

func (f *fakeOutbox) Create(ctx context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutbox) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeAudit struct {
	logs []*model.AuditLog
}

func (f *fakeAudit) Create(ctx context.Context, log *model.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeAudit) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error) {
	return f.logs, nil
}

func newTestService(live repository.RequestRepository) (*Service, *fakeOutbox, *fakeAudit) {
	outbox := &fakeOutbox{}
	audit := &fakeAudit{}
	svc := NewService(live, fallback.NewStore(), outbox, audit, nil,
		validator.New(), logger.New(nil), testMetrics)
	return svc, outbox, audit
}

func sampleRow(urgency model.Urgency) *model.EmergencyRequest {
	now := time.Now()
	return &model.EmergencyRequest{
		ID:            uuid.New(),
		PatientName:   "Live Patient",
		BloodType:     model.BloodTypeAPos,
		UnitsNeeded:   2,
		Urgency:       urgency,
		PriorityScore: urgency.PriorityScore(),
		Status:        model.RequestStatusPending,
		ExpiresAt:     now.Add(model.DefaultRequestTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sampleInput() *model.CreateRequestInput {
	return &model.CreateRequestInput{
		PatientName:     "Kancha Lama",
		BloodType:       model.BloodTypeBPos,
		UnitsNeeded:     2,
		Urgency:         model.UrgencyCritical,
		HospitalName:    "Bir Hospital",
		HospitalAddress: "Mahaboudha, Kathmandu",
		ContactName:     "Mingma Lama",
		ContactPhone:    "+977-980-9999999",
		ContactRelation: "Brother",
	}
}

func TestFetchLiveSuccess(t *testing.T) {
	row := sampleRow(model.UrgencyCritical)
	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			return []*model.EmergencyRequest{row}, nil
		},
	})

	result := svc.Fetch(context.Background(), nil)
	assert.Equal(t, ModeLive, result.Mode)
	assert.False(t, result.Degraded)
	require.Len(t, result.Requests, 1)
	assert.Equal(t, row.ID, result.Requests[0].ID)
	assert.Equal(t, ModeLive, svc.Mode())
}

func TestFetchFallsBackOnError(t *testing.T) {
	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			return nil, errors.New("connection refused")
		},
	})

	result := svc.Fetch(context.Background(), nil)
	assert.Equal(t, ModeFallback, result.Mode)
	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Requests, "fallback must serve seed data")
	assert.Equal(t, ModeFallback, svc.Mode())
}

func TestFetchFallsBackOnEmpty(t *testing.T) {
	svc, _, _ := newTestService(&stubRepo{})

	result := svc.Fetch(context.Background(), nil)
	assert.Equal(t, ModeFallback, result.Mode)
	assert.NotEmpty(t, result.Requests)
}

func TestFetchRecoversToLive(t *testing.T) {
	row := sampleRow(model.UrgencyUrgent)
	broken := true
	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			if broken {
				return nil, errors.New("connection refused")
			}
			return []*model.EmergencyRequest{row}, nil
		},
	})

	svc.Fetch(context.Background(), nil)
	require.Equal(t, ModeFallback, svc.Mode())

	broken = false
	result := svc.Fetch(context.Background(), nil)
	assert.Equal(t, ModeLive, result.Mode)
	assert.Equal(t, ModeLive, svc.Mode())
}

func TestCreateStampsServerFields(t *testing.T) {
	var stored *model.EmergencyRequest
	svc, outbox, audit := newTestService(&stubRepo{
		createFn: func(ctx context.Context, req *model.EmergencyRequest) error {
			stored = req
			return nil
		},
	})

	before := time.Now()
	req, err := svc.Create(context.Background(), nil, sampleInput())
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, model.RequestStatusPending, req.Status)
	assert.Equal(t, 75, req.PriorityScore)
	assert.Equal(t, model.BloodComponentWholeBlood, req.BloodComponent)
	assert.Equal(t, 0, req.FulfilledUnits)
	assert.Nil(t, req.RequesterID)
	assert.WithinDuration(t, before.Add(model.DefaultRequestTTL), req.ExpiresAt, 5*time.Second)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, model.EventRequestCreated, outbox.events[0].EventType)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "create", audit.logs[0].Action)
	assert.Nil(t, audit.logs[0].ActorID)
}

func TestCreateWithSessionSetsRequester(t *testing.T) {
	svc, _, _ := newTestService(&stubRepo{})
	sess := &model.Session{UserID: uuid.New(), Role: model.RoleDonor}

	req, err := svc.Create(context.Background(), sess, sampleInput())
	require.NoError(t, err)
	require.NotNil(t, req.RequesterID)
	assert.Equal(t, sess.UserID, *req.RequesterID)

	mine := svc.RequestsForUser(sess.UserID)
	require.Len(t, mine, 1)
	assert.Equal(t, req.ID, mine[0].ID)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, outbox, _ := newTestService(&stubRepo{})

	input := sampleInput()
	input.UnitsNeeded = 0
	_, err := svc.Create(context.Background(), nil, input)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	input = sampleInput()
	input.BloodType = "C+"
	_, err = svc.Create(context.Background(), nil, input)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	input = sampleInput()
	input.Urgency = "severe"
	_, err = svc.Create(context.Background(), nil, input)
	require.Error(t, err)

	assert.Empty(t, outbox.events, "rejected input must not emit events")
}

func TestCreatePrependsToActiveView(t *testing.T) {
	row := sampleRow(model.UrgencyNormal)
	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			return []*model.EmergencyRequest{row}, nil
		},
	})

	svc.Fetch(context.Background(), nil)
	req, err := svc.Create(context.Background(), nil, sampleInput())
	require.NoError(t, err)

	active := svc.ActiveRequests()
	require.Len(t, active, 2)
	assert.Equal(t, req.ID, active[0].ID, "new request must lead the view before the next fetch")
}

func TestUpdateReconcilesFromRepository(t *testing.T) {
	row := sampleRow(model.UrgencyNormal)
	svc, outbox, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			cp := *row
			return []*model.EmergencyRequest{&cp}, nil
		},
		getFn: func(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error) {
			cp := *row
			return &cp, nil
		},
		updateFn: func(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, error) {
			cp := *req
			return &cp, nil
		},
	})

	svc.Fetch(context.Background(), nil)

	urgency := model.UrgencyLifeThreatening
	updated, err := svc.Update(context.Background(), nil, row.ID, &model.UpdateRequestInput{
		Urgency: &urgency,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.PriorityScore)

	snapshot := svc.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, model.UrgencyLifeThreatening, snapshot[0].Urgency)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, model.EventRequestUpdated, outbox.events[0].EventType)
}

func TestUpdateRejectsInvalidUrgency(t *testing.T) {
	svc, _, _ := newTestService(&stubRepo{})

	bad := model.Urgency("panic")
	_, err := svc.Update(context.Background(), nil, uuid.New(), &model.UpdateRequestInput{
		Urgency: &bad,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestMutationsRouteToFallbackWhenDegraded(t *testing.T) {
	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			return nil, errors.New("connection refused")
		},
	})

	svc.Fetch(context.Background(), nil)
	require.Equal(t, ModeFallback, svc.Mode())

	req, err := svc.Create(context.Background(), nil, sampleInput())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)

	updated, err := svc.Fulfill(context.Background(), nil, req.ID, &model.FulfillRequestInput{Units: 2})
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusFulfilled, updated.Status)

	// Terminal request: cancel must be rejected with a conflict.
	_, err = svc.Cancel(context.Background(), nil, req.ID, nil)
	require.Error(t, err)
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.ErrConflict, ae.Code)
}

func TestFulfillEmitsFulfilledEvent(t *testing.T) {
	row := sampleRow(model.UrgencyCritical)
	svc, outbox, _ := newTestService(&stubRepo{
		fulfillFn: func(ctx context.Context, id uuid.UUID, units int) (*model.EmergencyRequest, error) {
			cp := *row
			cp.FulfilledUnits = cp.UnitsNeeded
			cp.Status = model.RequestStatusFulfilled
			return &cp, nil
		},
	})

	_, err := svc.Fulfill(context.Background(), nil, row.ID, &model.FulfillRequestInput{Units: 2})
	require.NoError(t, err)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, model.EventRequestFulfilled, outbox.events[0].EventType)
}

func TestActiveRequestsExcludesExpiredAndTerminal(t *testing.T) {
	now := time.Now()
	expired := sampleRow(model.UrgencyUrgent)
	expired.ExpiresAt = now.Add(-time.Minute)
	cancelled := sampleRow(model.UrgencyUrgent)
	cancelled.Status = model.RequestStatusCancelled
	open := sampleRow(model.UrgencyUrgent)

	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			return []*model.EmergencyRequest{expired, cancelled, open}, nil
		},
	})

	svc.Fetch(context.Background(), nil)
	active := svc.ActiveRequests()
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
}
