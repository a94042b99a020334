package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/raktaseva/blood-api/internal/model"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
)

func (r *donorRepository) Create(ctx context.Context, donor *model.Donor) error {
	query := `
		INSERT INTO donors (
			id, user_id, full_name, email, phone, blood_type, city,
			latitude, longitude, is_available, last_donation_at, donation_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		donor.ID,
		donor.UserID,
		donor.FullName,
		donor.Email,
		donor.Phone,
		donor.BloodType,
		donor.City,
		donor.Latitude,
		donor.Longitude,
		donor.IsAvailable,
		donor.LastDonationAt,
		donor.DonationCount,
		donor.CreatedAt,
		donor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create donor: %w", err)
	}
	return nil
}

func (r *donorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	var donor model.Donor
	err := r.db.GetContext(ctx, &donor, `SELECT * FROM donors WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("donor", err)
		}
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	return &donor, nil
}

func (r *donorRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	var donor model.Donor
	err := r.db.GetContext(ctx, &donor, `SELECT * FROM donors WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("donor", err)
		}
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	return &donor, nil
}

func (r *donorRepository) Update(ctx context.Context, donor *model.Donor) error {
	query := `
		UPDATE donors
		SET phone = $1, city = $2, latitude = $3, longitude = $4,
			is_available = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		donor.Phone,
		donor.City,
		donor.Latitude,
		donor.Longitude,
		donor.IsAvailable,
		donor.UpdatedAt,
		donor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update donor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("donor", nil)
	}
	return nil
}

func (r *donorRepository) List(ctx context.Context, filters *model.DonorFilters) ([]*model.Donor, error) {
	query := `SELECT * FROM donors WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if len(filters.BloodTypes) > 0 {
		bts := make([]string, len(filters.BloodTypes))
		for i, bt := range filters.BloodTypes {
			bts[i] = string(bt)
		}
		query += fmt.Sprintf(" AND blood_type = ANY($%d)", argCount)
		args = append(args, pq.Array(bts))
		argCount++
	}

	if filters.City != "" {
		query += fmt.Sprintf(" AND city = $%d", argCount)
		args = append(args, filters.City)
		argCount++
	}

	if filters.Available != nil {
		query += fmt.Sprintf(" AND is_available = $%d", argCount)
		args = append(args, *filters.Available)
		argCount++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = model.DefaultFetchLimit
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var donors []*model.Donor
	if err := r.db.SelectContext(ctx, &donors, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	return donors, nil
}

type donorMatchRow struct {
	model.Donor
	DistanceKm sql.NullFloat64 `db:"distance_km"`
}

// FindCompatible looks up available, cooldown-cleared donors of the given
// blood types. With coordinates the great-circle distance is computed in
// SQL and rows come back nearest first.
func (r *donorRepository) FindCompatible(ctx context.Context, bloodTypes []model.BloodType, lat, lng *float64, limit int) ([]*model.DonorMatch, error) {
	bts := make([]string, len(bloodTypes))
	for i, bt := range bloodTypes {
		bts[i] = string(bt)
	}
	if limit <= 0 {
		limit = model.DefaultFetchLimit
	}

	var rows []donorMatchRow
	var err error

	if lat != nil && lng != nil {
		query := `
			SELECT d.*,
				6371 * acos(
					LEAST(1.0,
						cos(radians($2)) * cos(radians(d.latitude)) *
						cos(radians(d.longitude) - radians($3)) +
						sin(radians($2)) * sin(radians(d.latitude))
					)
				) AS distance_km
			FROM donors d
			WHERE d.blood_type = ANY($1)
			AND d.is_available = TRUE
			AND (d.last_donation_at IS NULL OR d.last_donation_at <= NOW() - INTERVAL '90 days')
			AND d.latitude IS NOT NULL
			AND d.longitude IS NOT NULL
			ORDER BY distance_km ASC
			LIMIT $4
		`
		err = r.db.SelectContext(ctx, &rows, query, pq.Array(bts), *lat, *lng, limit)
	} else {
		query := `
			SELECT d.*, NULL::float8 AS distance_km
			FROM donors d
			WHERE d.blood_type = ANY($1)
			AND d.is_available = TRUE
			AND (d.last_donation_at IS NULL OR d.last_donation_at <= NOW() - INTERVAL '90 days')
			ORDER BY d.last_donation_at ASC NULLS FIRST
			LIMIT $2
		`
		err = r.db.SelectContext(ctx, &rows, query, pq.Array(bts), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find compatible donors: %w", err)
	}

	matches := make([]*model.DonorMatch, 0, len(rows))
	for i := range rows {
		m := &model.DonorMatch{Donor: rows[i].Donor}
		if rows[i].DistanceKm.Valid {
			d := rows[i].DistanceKm.Float64
			m.DistanceKm = &d
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (r *donorRepository) RecordDonation(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE donors
		SET last_donation_at = $1, donation_count = donation_count + 1, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to record donation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("donor", nil)
	}
	return nil
}
