package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
)

// requestRow is the raw join shape coming back from Postgres: the request
// columns plus the requester identity joined from users, which may be
// absent for anonymous requests.
type requestRow struct {
	ID                 uuid.UUID       `db:"id"`
	RequesterID        *uuid.UUID      `db:"requester_id"`
	RequesterName      sql.NullString  `db:"requester_name"`
	RequesterEmail     sql.NullString  `db:"requester_email"`
	PatientName        string          `db:"patient_name"`
	PatientAge         sql.NullInt32   `db:"patient_age"`
	PatientGender      sql.NullString  `db:"patient_gender"`
	BloodType          string          `db:"blood_type"`
	UnitsNeeded        int             `db:"units_needed"`
	BloodComponent     string          `db:"blood_component"`
	Urgency            string          `db:"urgency"`
	PriorityScore      int             `db:"priority_score"`
	HospitalID         *uuid.UUID      `db:"hospital_id"`
	HospitalName       string          `db:"hospital_name"`
	HospitalAddress    string          `db:"hospital_address"`
	Latitude           sql.NullFloat64 `db:"latitude"`
	Longitude          sql.NullFloat64 `db:"longitude"`
	ContactName        string          `db:"contact_name"`
	ContactPhone       string          `db:"contact_phone"`
	ContactRelation    string          `db:"contact_relation"`
	Status             string          `db:"status"`
	MatchedDonorsCount int             `db:"matched_donors_count"`
	FulfilledUnits     int             `db:"fulfilled_units"`
	IsVerified         bool            `db:"is_verified"`
	CancelReason       sql.NullString  `db:"cancel_reason"`
	NeededBy           sql.NullTime    `db:"needed_by"`
	ExpiresAt          time.Time       `db:"expires_at"`
	FulfilledAt        sql.NullTime    `db:"fulfilled_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// toModel converts a raw row into the client model. It is total: every
// nullable column becomes a nil pointer, never a zero-value stand-in, and
// no validation happens here.
func (row *requestRow) toModel() *model.EmergencyRequest {
	req := &model.EmergencyRequest{
		ID:                 row.ID,
		RequesterID:        row.RequesterID,
		PatientName:        row.PatientName,
		BloodType:          model.BloodType(row.BloodType),
		UnitsNeeded:        row.UnitsNeeded,
		BloodComponent:     row.BloodComponent,
		Urgency:            model.Urgency(row.Urgency),
		PriorityScore:      row.PriorityScore,
		HospitalID:         row.HospitalID,
		HospitalName:       row.HospitalName,
		HospitalAddress:    row.HospitalAddress,
		ContactName:        row.ContactName,
		ContactPhone:       row.ContactPhone,
		ContactRelation:    row.ContactRelation,
		Status:             model.RequestStatus(row.Status),
		MatchedDonorsCount: row.MatchedDonorsCount,
		FulfilledUnits:     row.FulfilledUnits,
		IsVerified:         row.IsVerified,
		ExpiresAt:          row.ExpiresAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}

	if row.RequesterName.Valid {
		req.RequesterName = &row.RequesterName.String
	}
	if row.RequesterEmail.Valid {
		req.RequesterEmail = &row.RequesterEmail.String
	}
	if row.PatientAge.Valid {
		age := int(row.PatientAge.Int32)
		req.PatientAge = &age
	}
	if row.PatientGender.Valid {
		req.PatientGender = &row.PatientGender.String
	}
	if row.Latitude.Valid {
		req.Latitude = &row.Latitude.Float64
	}
	if row.Longitude.Valid {
		req.Longitude = &row.Longitude.Float64
	}
	if row.CancelReason.Valid {
		req.CancelReason = &row.CancelReason.String
	}
	if row.NeededBy.Valid {
		t := row.NeededBy.Time
		req.NeededBy = &t
	}
	if row.FulfilledAt.Valid {
		t := row.FulfilledAt.Time
		req.FulfilledAt = &t
	}

	return req
}
