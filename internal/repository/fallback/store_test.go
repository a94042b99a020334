package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktaseva/blood-api/internal/model"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
)

func newRequest(urgency model.Urgency, status model.RequestStatus) *model.EmergencyRequest {
	now := time.Now()
	return &model.EmergencyRequest{
		ID:             uuid.New(),
		PatientName:    "Test Patient",
		BloodType:      model.BloodTypeOPos,
		UnitsNeeded:    3,
		BloodComponent: model.BloodComponentWholeBlood,
		Urgency:        urgency,
		PriorityScore:  urgency.PriorityScore(),
		HospitalName:   "Test Hospital",
		ContactName:    "Contact",
		ContactPhone:   "+977-980-0000000",
		Status:         status,
		ExpiresAt:      now.Add(model.DefaultRequestTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStoreSeedsCoverUrgencies(t *testing.T) {
	store := NewStore()

	all, err := store.List(context.Background(), &model.RequestFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, all)

	seen := map[model.Urgency]bool{}
	for _, req := range all {
		seen[req.Urgency] = true
		assert.Equal(t, req.Urgency.PriorityScore(), req.PriorityScore)
	}
	for _, u := range []model.Urgency{
		model.UrgencyNormal, model.UrgencyUrgent,
		model.UrgencyCritical, model.UrgencyLifeThreatening,
	} {
		assert.True(t, seen[u], "missing urgency %s in seed data", u)
	}
}

func TestStoreListOrdering(t *testing.T) {
	store := NewStore()

	all, err := store.List(context.Background(), &model.RequestFilters{})
	require.NoError(t, err)

	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.PriorityScore == cur.PriorityScore {
			assert.False(t, cur.CreatedAt.After(prev.CreatedAt),
				"newer request sorted below older at equal priority")
		} else {
			assert.Greater(t, prev.PriorityScore, cur.PriorityScore)
		}
	}
}

func TestStoreListFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	critical, err := store.List(ctx, &model.RequestFilters{
		Urgencies: []model.Urgency{model.UrgencyCritical},
	})
	require.NoError(t, err)
	require.NotEmpty(t, critical)
	for _, req := range critical {
		assert.Equal(t, model.UrgencyCritical, req.Urgency)
	}

	active, err := store.List(ctx, &model.RequestFilters{Statuses: model.ActiveStatuses})
	require.NoError(t, err)
	for _, req := range active {
		assert.False(t, req.Status.IsTerminal())
	}

	bt := model.BloodTypeONeg
	oneg, err := store.List(ctx, &model.RequestFilters{BloodType: &bt})
	require.NoError(t, err)
	for _, req := range oneg {
		assert.Equal(t, model.BloodTypeONeg, req.BloodType)
	}

	limited, err := store.List(ctx, &model.RequestFilters{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStoreCreatePrepends(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	req := newRequest(model.UrgencyNormal, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, req))

	got, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.PatientName, got.PatientName)

	// Returned value is a copy; mutating it must not leak into the store.
	got.PatientName = "changed"
	again, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Patient", again.PatientName)
}

func TestStoreFulfillPartialThenComplete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	req := newRequest(model.UrgencyCritical, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, req))

	got, err := store.Fulfill(ctx, req.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FulfilledUnits)
	assert.Equal(t, model.RequestStatusPartiallyFulfilled, got.Status)
	assert.Nil(t, got.FulfilledAt)

	got, err = store.Fulfill(ctx, req.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FulfilledUnits)
	assert.Equal(t, model.RequestStatusFulfilled, got.Status)
	require.NotNil(t, got.FulfilledAt)

	// Terminal now: further donations are rejected.
	_, err = store.Fulfill(ctx, req.ID, 1)
	require.Error(t, err)
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.ErrConflict, ae.Code)
}

func TestStoreFulfillClampsOvershoot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	req := newRequest(model.UrgencyUrgent, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, req))

	got, err := store.Fulfill(ctx, req.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, req.UnitsNeeded, got.FulfilledUnits)
	assert.Equal(t, model.RequestStatusFulfilled, got.Status)
}

func TestStoreCancelGuards(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	req := newRequest(model.UrgencyNormal, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, req))

	reason := "found donor privately"
	got, err := store.Cancel(ctx, req.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, reason, *got.CancelReason)

	// Cancelling twice is a conflict, not a silent no-op.
	_, err = store.Cancel(ctx, req.ID, nil)
	require.Error(t, err)

	_, err = store.Cancel(ctx, uuid.New(), nil)
	require.Error(t, err)
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.ErrNotFound, ae.Code)
}

func TestStoreUpdateWhitelist(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	req := newRequest(model.UrgencyNormal, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, req))

	patch := *req
	patch.Urgency = model.UrgencyCritical
	patch.PriorityScore = model.UrgencyCritical.PriorityScore()
	patch.UnitsNeeded = 5
	patch.Status = model.RequestStatusFulfilled // must not pass through
	patch.FulfilledUnits = 99                   // must not pass through
	patch.UpdatedAt = time.Now()

	got, err := store.Update(ctx, &patch)
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyCritical, got.Urgency)
	assert.Equal(t, 75, got.PriorityScore)
	assert.Equal(t, 5, got.UnitsNeeded)
	assert.Equal(t, model.RequestStatusPending, got.Status)
	assert.Equal(t, 0, got.FulfilledUnits)
}

func TestStoreMarkExpired(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	stale := newRequest(model.UrgencyUrgent, model.RequestStatusPending)
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, stale))

	fresh := newRequest(model.UrgencyUrgent, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, fresh))

	n, err := store.MarkExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusExpired, got.Status)

	got, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, got.Status)
}

func TestStoreSetMatchProgress(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	req := newRequest(model.UrgencyCritical, model.RequestStatusPending)
	require.NoError(t, store.Create(ctx, req))

	require.NoError(t, store.SetMatchProgress(ctx, req.ID, model.RequestStatusMatching, 0))
	require.NoError(t, store.SetMatchProgress(ctx, req.ID, model.RequestStatusDonorsFound, 4))

	got, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusDonorsFound, got.Status)
	assert.Equal(t, 4, got.MatchedDonorsCount)

	// donors_found is not a valid source state for another match pass.
	err = store.SetMatchProgress(ctx, req.ID, model.RequestStatusMatching, 0)
	require.Error(t, err)

	err = store.SetMatchProgress(ctx, req.ID, model.RequestStatusFulfilled, 0)
	require.Error(t, err)
}
