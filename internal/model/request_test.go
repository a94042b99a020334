package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUrgencyPriorityScore(t *testing.T) {
	tests := []struct {
		urgency Urgency
		score   int
	}{
		{UrgencyNormal, 25},
		{UrgencyUrgent, 50},
		{UrgencyCritical, 75},
		{UrgencyLifeThreatening, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.score, tt.urgency.PriorityScore(), "urgency %s", tt.urgency)
	}

	assert.Equal(t, 0, Urgency("bogus").PriorityScore())
	assert.False(t, Urgency("bogus").IsValid())
}

func TestRequestStatusIsTerminal(t *testing.T) {
	terminal := []RequestStatus{RequestStatusFulfilled, RequestStatusCancelled, RequestStatusExpired}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "status %s", s)
	}

	open := []RequestStatus{
		RequestStatusPending, RequestStatusMatching,
		RequestStatusDonorsFound, RequestStatusPartiallyFulfilled,
	}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), "status %s", s)
	}
}

func TestBloodTypeIsValid(t *testing.T) {
	for _, bt := range []BloodType{
		BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
		BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg,
	} {
		assert.True(t, bt.IsValid(), "blood type %s", bt)
	}
	assert.False(t, BloodType("C+").IsValid())
	assert.False(t, BloodType("").IsValid())
}

func TestRequestIsActive(t *testing.T) {
	now := time.Now()
	req := &EmergencyRequest{
		Status:    RequestStatusPending,
		ExpiresAt: now.Add(time.Hour),
	}

	assert.True(t, req.IsActive(now))

	req.Status = RequestStatusPartiallyFulfilled
	assert.True(t, req.IsActive(now))

	req.Status = RequestStatusCancelled
	assert.False(t, req.IsActive(now))

	// A request past its deadline is inactive even if no sweep has
	// stamped the stored status yet.
	req.Status = RequestStatusPending
	req.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, req.IsExpired(now))
	assert.False(t, req.IsActive(now))
}
