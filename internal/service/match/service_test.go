package match

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository/fallback"
	"github.com/raktaseva/blood-api/pkg/logger"
)

func TestCompatibleDonorTypes(t *testing.T) {
	tests := []struct {
		recipient model.BloodType
		donors    []model.BloodType
	}{
		{model.BloodTypeONeg, []model.BloodType{model.BloodTypeONeg}},
		{model.BloodTypeOPos, []model.BloodType{model.BloodTypeOPos, model.BloodTypeONeg}},
		{model.BloodTypeANeg, []model.BloodType{model.BloodTypeANeg, model.BloodTypeONeg}},
		{model.BloodTypeABPos, []model.BloodType{
			model.BloodTypeAPos, model.BloodTypeANeg, model.BloodTypeBPos, model.BloodTypeBNeg,
			model.BloodTypeABPos, model.BloodTypeABNeg, model.BloodTypeOPos, model.BloodTypeONeg,
		}},
	}

	for _, tt := range tests {
		assert.ElementsMatch(t, tt.donors, CompatibleDonorTypes(tt.recipient),
			"recipient %s", tt.recipient)
	}

	assert.Nil(t, CompatibleDonorTypes(model.BloodType("C+")))
}

func TestEveryRecipientAcceptsOwnTypeAndONeg(t *testing.T) {
	for recipient := range compatibleDonors {
		donors := CompatibleDonorTypes(recipient)
		assert.Contains(t, donors, recipient, "recipient %s must accept own type", recipient)
		assert.Contains(t, donors, model.BloodTypeONeg, "recipient %s must accept O-", recipient)
	}
}

// fakeDonorRepo serves a fixed candidate list.
type fakeDonorRepo struct {
	matches []*model.DonorMatch
	gotLat  *float64
	gotLng  *float64
}

func (f *fakeDonorRepo) Create(ctx context.Context, donor *model.Donor) error { return nil }
func (f *fakeDonorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	return nil, nil
}
func (f *fakeDonorRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	return nil, nil
}
func (f *fakeDonorRepo) Update(ctx context.Context, donor *model.Donor) error { return nil }
func (f *fakeDonorRepo) List(ctx context.Context, filters *model.DonorFilters) ([]*model.Donor, error) {
	return nil, nil
}
func (f *fakeDonorRepo) FindCompatible(ctx context.Context, bloodTypes []model.BloodType, lat, lng *float64, limit int) ([]*model.DonorMatch, error) {
	f.gotLat, f.gotLng = lat, lng
	return f.matches, nil
}
func (f *fakeDonorRepo) RecordDonation(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func availableDonor(bt model.BloodType) *model.DonorMatch {
	return &model.DonorMatch{Donor: model.Donor{
		ID:          uuid.New(),
		FullName:    "Available Donor",
		Email:       "donor@example.org",
		BloodType:   bt,
		IsAvailable: true,
	}}
}

func seedRequest(t *testing.T, store *fallback.Store, bt model.BloodType) uuid.UUID {
	t.Helper()

	now := time.Now()
	req := &model.EmergencyRequest{
		ID:            uuid.New(),
		PatientName:   "Match Patient",
		BloodType:     bt,
		UnitsNeeded:   2,
		Urgency:       model.UrgencyCritical,
		PriorityScore: model.UrgencyCritical.PriorityScore(),
		Status:        model.RequestStatusPending,
		ExpiresAt:     now.Add(model.DefaultRequestTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Create(context.Background(), req))
	return req.ID
}

func TestMatchRequestFindsDonors(t *testing.T) {
	store := fallback.NewStore()
	id := seedRequest(t, store, model.BloodTypeAPos)

	donors := &fakeDonorRepo{matches: []*model.DonorMatch{
		availableDonor(model.BloodTypeONeg),
		availableDonor(model.BloodTypeAPos),
	}}
	svc := NewService(store, donors, logger.New(nil))

	matches, err := svc.MatchRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	req, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusDonorsFound, req.Status)
	assert.Equal(t, 2, req.MatchedDonorsCount)
}

func TestMatchRequestFiltersIneligibleDonors(t *testing.T) {
	store := fallback.NewStore()
	id := seedRequest(t, store, model.BloodTypeBPos)

	unavailable := availableDonor(model.BloodTypeBPos)
	unavailable.Donor.IsAvailable = false

	recent := availableDonor(model.BloodTypeONeg)
	lastWeek := time.Now().Add(-7 * 24 * time.Hour)
	recent.Donor.LastDonationAt = &lastWeek

	eligible := availableDonor(model.BloodTypeBPos)

	donors := &fakeDonorRepo{matches: []*model.DonorMatch{unavailable, recent, eligible}}
	svc := NewService(store, donors, logger.New(nil))

	matches, err := svc.MatchRequest(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, eligible.Donor.ID, matches[0].Donor.ID)
}

func TestMatchRequestNoDonorsStaysMatching(t *testing.T) {
	store := fallback.NewStore()
	id := seedRequest(t, store, model.BloodTypeONeg)

	svc := NewService(store, &fakeDonorRepo{}, logger.New(nil))

	matches, err := svc.MatchRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, matches)

	req, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusMatching, req.Status)
}

func TestMatchRequestPassesCoordinates(t *testing.T) {
	store := fallback.NewStore()

	now := time.Now()
	lat, lng := 27.7172, 85.3240
	req := &model.EmergencyRequest{
		ID:            uuid.New(),
		PatientName:   "Located Patient",
		BloodType:     model.BloodTypeOPos,
		UnitsNeeded:   1,
		Urgency:       model.UrgencyUrgent,
		PriorityScore: model.UrgencyUrgent.PriorityScore(),
		Latitude:      &lat,
		Longitude:     &lng,
		Status:        model.RequestStatusPending,
		ExpiresAt:     now.Add(model.DefaultRequestTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Create(context.Background(), req))

	donors := &fakeDonorRepo{matches: []*model.DonorMatch{availableDonor(model.BloodTypeONeg)}}
	svc := NewService(store, donors, logger.New(nil))

	_, err := svc.MatchRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, donors.gotLat)
	assert.InDelta(t, lat, *donors.gotLat, 0.0001)
}
