package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
)

func (r *hospitalRepository) Create(ctx context.Context, hospital *model.Hospital) error {
	query := `
		INSERT INTO hospitals (
			id, name, type, address, city, phone, email,
			latitude, longitude, is_verified, open_all_hours,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		hospital.ID,
		hospital.Name,
		hospital.Type,
		hospital.Address,
		hospital.City,
		hospital.Phone,
		hospital.Email,
		hospital.Latitude,
		hospital.Longitude,
		hospital.IsVerified,
		hospital.OpenAllHours,
		hospital.CreatedAt,
		hospital.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hospital: %w", err)
	}
	return nil
}

func (r *hospitalRepository) Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	var hospital model.Hospital
	err := r.db.GetContext(ctx, &hospital, `SELECT * FROM hospitals WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("hospital", err)
		}
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return &hospital, nil
}

func (r *hospitalRepository) List(ctx context.Context, filters *model.HospitalFilters) ([]*model.Hospital, error) {
	query := `SELECT h.* FROM hospitals h WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.Type != "" {
		query += fmt.Sprintf(" AND h.type = $%d", argCount)
		args = append(args, filters.Type)
		argCount++
	}

	if filters.City != "" {
		query += fmt.Sprintf(" AND h.city = $%d", argCount)
		args = append(args, filters.City)
		argCount++
	}

	if filters.Verified != nil {
		query += fmt.Sprintf(" AND h.is_verified = $%d", argCount)
		args = append(args, *filters.Verified)
		argCount++
	}

	if filters.BloodType != nil {
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM hospital_inventory i
			WHERE i.hospital_id = h.id AND i.blood_type = $%d AND i.units > 0
		)`, argCount)
		args = append(args, *filters.BloodType)
		argCount++
	}

	query += " ORDER BY h.name ASC"

	var hospitals []*model.Hospital
	if err := r.db.SelectContext(ctx, &hospitals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	return hospitals, nil
}

func (r *hospitalRepository) GetInventory(ctx context.Context, hospitalID uuid.UUID) ([]*model.InventoryItem, error) {
	query := `
		SELECT * FROM hospital_inventory
		WHERE hospital_id = $1
		ORDER BY blood_type ASC
	`
	var items []*model.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, hospitalID); err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return items, nil
}

func (r *hospitalRepository) UpsertInventory(ctx context.Context, item *model.InventoryItem) error {
	query := `
		INSERT INTO hospital_inventory (id, hospital_id, blood_type, units, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hospital_id, blood_type)
		DO UPDATE SET units = EXCLUDED.units, updated_at = EXCLUDED.updated_at
	`
	item.UpdatedAt = time.Now()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.HospitalID,
		item.BloodType,
		item.Units,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory: %w", err)
	}
	return nil
}
