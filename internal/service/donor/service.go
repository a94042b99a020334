// Package donor manages donor registration and profiles. A donor is a
// user account plus a donor profile row; registration creates both.
package donor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/security"
	"github.com/raktaseva/blood-api/pkg/validator"
)

type Service struct {
	donors   repository.DonorRepository
	users    repository.UserRepository
	hasher   security.PasswordHasher
	validate *validator.Validator
	logger   *logger.Logger
}

func NewService(
	donors repository.DonorRepository,
	users repository.UserRepository,
	hasher security.PasswordHasher,
	validate *validator.Validator,
	log *logger.Logger,
) *Service {
	return &Service{
		donors:   donors,
		users:    users,
		hasher:   hasher,
		validate: validate,
		logger:   log,
	}
}

// Register creates the user account and donor profile together. Email
// collisions surface as a conflict rather than a bare driver error.
func (s *Service) Register(ctx context.Context, input *model.RegisterDonorRequest) (*model.Donor, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.BloodType.IsValid() {
		return nil, apperrors.Validation("blood_type", "is invalid")
	}

	if existing, err := s.users.GetByEmail(ctx, input.Email); err == nil && existing != nil {
		return nil, apperrors.Conflict("email already registered", nil)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New(),
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		Phone:        &input.Phone,
		Role:         model.RoleDonor,
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	donor := &model.Donor{
		ID:          uuid.New(),
		UserID:      user.ID,
		FullName:    input.FullName,
		Email:       input.Email,
		Phone:       input.Phone,
		BloodType:   input.BloodType,
		City:        input.City,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.donors.Create(ctx, donor); err != nil {
		return nil, err
	}

	s.logger.Info("donor registered",
		"donor_id", donor.ID.String(),
		"blood_type", string(donor.BloodType),
		"city", donor.City)
	return donor, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	return s.donors.Get(ctx, id)
}

func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	return s.donors.GetByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, filters *model.DonorFilters) ([]*model.Donor, error) {
	if filters == nil {
		filters = &model.DonorFilters{}
	}
	return s.donors.List(ctx, filters)
}

// Update patches the donor's own profile fields.
func (s *Service) Update(ctx context.Context, sess *model.Session, donorID uuid.UUID, input *model.UpdateDonorRequest) (*model.Donor, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	donor, err := s.donors.Get(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if sess != nil && !sess.CanModerate() && donor.UserID != sess.UserID {
		return nil, apperrors.Forbidden("cannot update another donor's profile")
	}

	if input.Phone != nil {
		donor.Phone = *input.Phone
	}
	if input.City != nil {
		donor.City = *input.City
	}
	if input.Latitude != nil {
		donor.Latitude = input.Latitude
	}
	if input.Longitude != nil {
		donor.Longitude = input.Longitude
	}
	if input.IsAvailable != nil {
		donor.IsAvailable = *input.IsAvailable
	}
	donor.UpdatedAt = time.Now()

	if err := s.donors.Update(ctx, donor); err != nil {
		return nil, err
	}
	return donor, nil
}

// RecordDonation stamps a completed donation, restarting the cooldown
// window.
func (s *Service) RecordDonation(ctx context.Context, donorID uuid.UUID) error {
	if err := s.donors.RecordDonation(ctx, donorID, time.Now()); err != nil {
		return err
	}
	s.logger.Info("donation recorded", "donor_id", donorID.String())
	return nil
}
