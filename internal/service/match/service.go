// Package match pairs open emergency requests with compatible,
// available donors.
package match

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/pkg/logger"
)

// compatibleDonors maps a recipient blood type to the donor types that
// can safely serve it (whole blood ABO/Rh rules).
var compatibleDonors = map[model.BloodType][]model.BloodType{
	model.BloodTypeAPos: {model.BloodTypeAPos, model.BloodTypeANeg, model.BloodTypeOPos, model.BloodTypeONeg},
	model.BloodTypeANeg: {model.BloodTypeANeg, model.BloodTypeONeg},
	model.BloodTypeBPos: {model.BloodTypeBPos, model.BloodTypeBNeg, model.BloodTypeOPos, model.BloodTypeONeg},
	model.BloodTypeBNeg: {model.BloodTypeBNeg, model.BloodTypeONeg},
	model.BloodTypeABPos: {
		model.BloodTypeAPos, model.BloodTypeANeg, model.BloodTypeBPos, model.BloodTypeBNeg,
		model.BloodTypeABPos, model.BloodTypeABNeg, model.BloodTypeOPos, model.BloodTypeONeg,
	},
	model.BloodTypeABNeg: {model.BloodTypeABNeg, model.BloodTypeANeg, model.BloodTypeBNeg, model.BloodTypeONeg},
	model.BloodTypeOPos:  {model.BloodTypeOPos, model.BloodTypeONeg},
	model.BloodTypeONeg:  {model.BloodTypeONeg},
}

// CompatibleDonorTypes returns the donor blood types that can serve the
// given recipient type. Unknown types yield nil.
func CompatibleDonorTypes(recipient model.BloodType) []model.BloodType {
	return compatibleDonors[recipient]
}

const defaultMatchLimit = 20

type Service struct {
	requests repository.RequestRepository
	donors   repository.DonorRepository
	logger   *logger.Logger
	limit    int
}

func NewService(requests repository.RequestRepository, donors repository.DonorRepository, log *logger.Logger) *Service {
	return &Service{
		requests: requests,
		donors:   donors,
		logger:   log,
		limit:    defaultMatchLimit,
	}
}

// MatchRequest finds compatible donors for a pending request and records
// the match progress on the request row. The request moves to matching
// while the search runs and to donors_found once candidates exist; a
// search with no candidates leaves it in matching for the next sweep.
func (s *Service) MatchRequest(ctx context.Context, requestID uuid.UUID) ([]*model.DonorMatch, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.requests.SetMatchProgress(ctx, requestID, model.RequestStatusMatching, 0); err != nil {
		return nil, err
	}

	matches, err := s.findDonors(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		s.logger.Info("no compatible donors found",
			"request_id", requestID.String(),
			"blood_type", string(req.BloodType))
		return nil, nil
	}

	if err := s.requests.SetMatchProgress(ctx, requestID, model.RequestStatusDonorsFound, len(matches)); err != nil {
		return nil, err
	}

	s.logger.Info("donors matched to request",
		"request_id", requestID.String(),
		"matched", len(matches))
	return matches, nil
}

func (s *Service) findDonors(ctx context.Context, req *model.EmergencyRequest) ([]*model.DonorMatch, error) {
	types := CompatibleDonorTypes(req.BloodType)
	if len(types) == 0 {
		return nil, nil
	}

	matches, err := s.donors.FindCompatible(ctx, types, req.Latitude, req.Longitude, s.limit)
	if err != nil {
		return nil, err
	}

	// The repository filters on availability and cooldown, but both can
	// shift between the query and now; re-check in memory.
	now := time.Now()
	eligible := matches[:0]
	for _, m := range matches {
		if m.Donor.CanDonate(now) {
			eligible = append(eligible, m)
		}
	}
	return eligible, nil
}
