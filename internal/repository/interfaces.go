package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
)

// All repository interfaces in one file
type (
	// RequestRepository handles emergency blood request persistence.
	RequestRepository interface {
		Create(ctx context.Context, req *model.EmergencyRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error)
		List(ctx context.Context, filters *model.RequestFilters) ([]*model.EmergencyRequest, error)
		Update(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, error)
		Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.EmergencyRequest, error)
		// Fulfill performs the guarded server-side increment: the stored
		// fulfilled_units is bumped atomically, never recomputed from a
		// client-cached copy.
		Fulfill(ctx context.Context, id uuid.UUID, units int) (*model.EmergencyRequest, error)
		SetMatchProgress(ctx context.Context, id uuid.UUID, status model.RequestStatus, matchedDonors int) error
		MarkExpired(ctx context.Context, now time.Time) (int64, error)
	}

	DonorRepository interface {
		Create(ctx context.Context, donor *model.Donor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Donor, error)
		GetByUser(ctx context.Context, userID uuid.UUID) (*model.Donor, error)
		Update(ctx context.Context, donor *model.Donor) error
		List(ctx context.Context, filters *model.DonorFilters) ([]*model.Donor, error)
		// FindCompatible returns available donors whose blood type can serve
		// the given recipient types, nearest-first when coordinates are set.
		FindCompatible(ctx context.Context, bloodTypes []model.BloodType, lat, lng *float64, limit int) ([]*model.DonorMatch, error)
		RecordDonation(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	HospitalRepository interface {
		Create(ctx context.Context, hospital *model.Hospital) error
		Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error)
		List(ctx context.Context, filters *model.HospitalFilters) ([]*model.Hospital, error)
		GetInventory(ctx context.Context, hospitalID uuid.UUID) ([]*model.InventoryItem, error)
		UpsertInventory(ctx context.Context, item *model.InventoryItem) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		Update(ctx context.Context, n *model.Notification) error
		ListForRequest(ctx context.Context, requestID uuid.UUID) ([]*model.Notification, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error)
	}
)
