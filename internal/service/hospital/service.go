// Package hospital manages the facility registry and per-hospital blood
// inventory. Reads are cached; the registry changes rarely but is on the
// hot path of every hospital-anchored request.
package hospital

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/validator"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

type Service struct {
	repo     repository.HospitalRepository
	validate *validator.Validator
	cache    *cache.Cache
	logger   *logger.Logger
}

func NewService(repo repository.HospitalRepository, validate *validator.Validator, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		cache:    cache.New(cacheTTL, cacheCleanup),
		logger:   log,
	}
}

func (s *Service) Create(ctx context.Context, input *model.CreateHospitalRequest) (*model.Hospital, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	now := time.Now()
	hospital := &model.Hospital{
		ID:           uuid.New(),
		Name:         input.Name,
		Type:         input.Type,
		Address:      input.Address,
		City:         input.City,
		Phone:        input.Phone,
		Email:        input.Email,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		OpenAllHours: input.OpenAllHours,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, hospital); err != nil {
		return nil, err
	}

	s.cache.Flush()
	s.logger.Info("hospital registered", "hospital_id", hospital.ID.String(), "name", hospital.Name)
	return hospital, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	key := "hospital:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Hospital), nil
	}

	hospital, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, hospital, cache.DefaultExpiration)
	return hospital, nil
}

func (s *Service) List(ctx context.Context, filters *model.HospitalFilters) ([]*model.Hospital, error) {
	if filters == nil {
		filters = &model.HospitalFilters{}
	}

	key := listCacheKey(filters)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]*model.Hospital), nil
	}

	hospitals, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, hospitals, cache.DefaultExpiration)
	return hospitals, nil
}

func (s *Service) GetInventory(ctx context.Context, hospitalID uuid.UUID) ([]*model.InventoryItem, error) {
	return s.repo.GetInventory(ctx, hospitalID)
}

// UpdateInventory replaces the stock level for one blood type and drops
// cached lists, since blood-type filters depend on inventory.
func (s *Service) UpdateInventory(ctx context.Context, hospitalID uuid.UUID, bloodType model.BloodType, units int) (*model.InventoryItem, error) {
	if !bloodType.IsValid() {
		return nil, fmt.Errorf("invalid blood type: %s", bloodType)
	}
	if units < 0 {
		return nil, fmt.Errorf("units cannot be negative")
	}

	item := &model.InventoryItem{
		ID:         uuid.New(),
		HospitalID: hospitalID,
		BloodType:  bloodType,
		Units:      units,
		UpdatedAt:  time.Now(),
	}
	if err := s.repo.UpsertInventory(ctx, item); err != nil {
		return nil, err
	}

	s.cache.Flush()
	return item, nil
}

func listCacheKey(filters *model.HospitalFilters) string {
	bt := ""
	if filters.BloodType != nil {
		bt = string(*filters.BloodType)
	}
	verified := ""
	if filters.Verified != nil {
		verified = fmt.Sprintf("%t", *filters.Verified)
	}
	return fmt.Sprintf("hospitals:%s:%s:%s:%s", filters.Type, filters.City, bt, verified)
}
