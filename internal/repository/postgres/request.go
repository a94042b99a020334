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

const requestColumns = `
	r.id, r.requester_id, u.full_name AS requester_name, u.email AS requester_email,
	r.patient_name, r.patient_age, r.patient_gender,
	r.blood_type, r.units_needed, r.blood_component,
	r.urgency, r.priority_score,
	r.hospital_id, r.hospital_name, r.hospital_address, r.latitude, r.longitude,
	r.contact_name, r.contact_phone, r.contact_relation,
	r.status, r.matched_donors_count, r.fulfilled_units, r.is_verified, r.cancel_reason,
	r.needed_by, r.expires_at, r.fulfilled_at, r.created_at, r.updated_at`

func (r *requestRepository) Create(ctx context.Context, req *model.EmergencyRequest) error {
	query := `
		INSERT INTO emergency_requests (
			id, requester_id, patient_name, patient_age, patient_gender,
			blood_type, units_needed, blood_component, urgency, priority_score,
			hospital_id, hospital_name, hospital_address, latitude, longitude,
			contact_name, contact_phone, contact_relation,
			status, matched_donors_count, fulfilled_units, is_verified,
			needed_by, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.PatientName,
		req.PatientAge,
		req.PatientGender,
		req.BloodType,
		req.UnitsNeeded,
		req.BloodComponent,
		req.Urgency,
		req.PriorityScore,
		req.HospitalID,
		req.HospitalName,
		req.HospitalAddress,
		req.Latitude,
		req.Longitude,
		req.ContactName,
		req.ContactPhone,
		req.ContactRelation,
		req.Status,
		req.MatchedDonorsCount,
		req.FulfilledUnits,
		req.IsVerified,
		req.NeededBy,
		req.ExpiresAt,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *requestRepository) Get(ctx context.Context, id uuid.UUID) (*model.EmergencyRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM emergency_requests r
		LEFT JOIN users u ON u.id = r.requester_id
		WHERE r.id = $1
	`, requestColumns)

	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("request", err)
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return row.toModel(), nil
}

func (r *requestRepository) List(ctx context.Context, filters *model.RequestFilters) ([]*model.EmergencyRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM emergency_requests r
		LEFT JOIN users u ON u.id = r.requester_id
		WHERE 1=1
	`, requestColumns)

	args := []interface{}{}
	argCount := 1

	if len(filters.Statuses) > 0 {
		query += fmt.Sprintf(" AND r.status = ANY($%d)", argCount)
		args = append(args, pq.Array(statusStrings(filters.Statuses)))
		argCount++
	}

	if len(filters.Urgencies) > 0 {
		query += fmt.Sprintf(" AND r.urgency = ANY($%d)", argCount)
		args = append(args, pq.Array(urgencyStrings(filters.Urgencies)))
		argCount++
	}

	if filters.BloodType != nil {
		query += fmt.Sprintf(" AND r.blood_type = $%d", argCount)
		args = append(args, *filters.BloodType)
		argCount++
	}

	if filters.RequesterID != nil {
		query += fmt.Sprintf(" AND r.requester_id = $%d", argCount)
		args = append(args, *filters.RequesterID)
		argCount++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = model.DefaultFetchLimit
	}

	query += fmt.Sprintf(" ORDER BY r.priority_score DESC, r.created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	requests := make([]*model.EmergencyRequest, 0, len(rows))
	for i := range rows {
		requests = append(requests, rows[i].toModel())
	}
	return requests, nil
}

// Update writes only the caller-mutable whitelist columns and returns the
// authoritative row for snapshot reconciliation.
func (r *requestRepository) Update(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, error) {
	query := `
		UPDATE emergency_requests
		SET patient_name = $1, patient_age = $2, units_needed = $3,
			urgency = $4, priority_score = $5,
			hospital_name = $6, hospital_address = $7,
			contact_name = $8, contact_phone = $9,
			updated_at = $10
		WHERE id = $11
		AND status NOT IN ('fulfilled', 'cancelled', 'expired')
	`
	result, err := r.db.ExecContext(ctx, query,
		req.PatientName,
		req.PatientAge,
		req.UnitsNeeded,
		req.Urgency,
		req.PriorityScore,
		req.HospitalName,
		req.HospitalAddress,
		req.ContactName,
		req.ContactPhone,
		req.UpdatedAt,
		req.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, r.rejectionReason(ctx, req.ID, "update")
	}

	return r.Get(ctx, req.ID)
}

func (r *requestRepository) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.EmergencyRequest, error) {
	query := `
		UPDATE emergency_requests
		SET status = 'cancelled', cancel_reason = $1, updated_at = $2
		WHERE id = $3
		AND status NOT IN ('fulfilled', 'cancelled', 'expired')
	`
	result, err := r.db.ExecContext(ctx, query, reason, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, r.rejectionReason(ctx, id, "cancel")
	}

	return r.Get(ctx, id)
}

// Fulfill bumps fulfilled_units in a single guarded UPDATE so concurrent
// fulfillments cannot undercount or overshoot. The stored counter is
// clamped at units_needed; crossing it stamps fulfilled/fulfilled_at.
func (r *requestRepository) Fulfill(ctx context.Context, id uuid.UUID, units int) (*model.EmergencyRequest, error) {
	query := `
		UPDATE emergency_requests
		SET fulfilled_units = LEAST(fulfilled_units + $1, units_needed),
			status = CASE
				WHEN fulfilled_units + $1 >= units_needed THEN 'fulfilled'
				ELSE 'partially_fulfilled'
			END,
			fulfilled_at = CASE
				WHEN fulfilled_units + $1 >= units_needed THEN NOW()
				ELSE fulfilled_at
			END,
			updated_at = NOW()
		WHERE id = $2
		AND status NOT IN ('fulfilled', 'cancelled', 'expired')
		AND expires_at > NOW()
	`
	result, err := r.db.ExecContext(ctx, query, units, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fulfill request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, r.rejectionReason(ctx, id, "fulfill")
	}

	return r.Get(ctx, id)
}

func (r *requestRepository) SetMatchProgress(ctx context.Context, id uuid.UUID, status model.RequestStatus, matchedDonors int) error {
	if status != model.RequestStatusMatching && status != model.RequestStatusDonorsFound {
		return fmt.Errorf("invalid match progress status: %s", status)
	}

	query := `
		UPDATE emergency_requests
		SET status = $1, matched_donors_count = $2, updated_at = NOW()
		WHERE id = $3
		AND status IN ('pending', 'matching')
	`
	result, err := r.db.ExecContext(ctx, query, status, matchedDonors, id)
	if err != nil {
		return fmt.Errorf("failed to set match progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return r.rejectionReason(ctx, id, "match")
	}
	return nil
}

func (r *requestRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE emergency_requests
		SET status = 'expired', updated_at = $1
		WHERE expires_at <= $1
		AND status NOT IN ('fulfilled', 'cancelled', 'expired')
	`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired requests: %w", err)
	}
	return result.RowsAffected()
}

// rejectionReason explains why a guarded mutation matched no row.
func (r *requestRepository) rejectionReason(ctx context.Context, id uuid.UUID, op string) error {
	req, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		return apperrors.Conflict(fmt.Sprintf("cannot %s a %s request", op, req.Status), nil)
	}
	if req.IsExpired(time.Now()) {
		return apperrors.Conflict(fmt.Sprintf("cannot %s an expired request", op), nil)
	}
	return apperrors.Conflict(fmt.Sprintf("request not eligible for %s", op), nil)
}

func statusStrings(statuses []model.RequestStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func urgencyStrings(urgencies []model.Urgency) []string {
	out := make([]string, len(urgencies))
	for i, u := range urgencies {
		out[i] = string(u)
	}
	return out
}
