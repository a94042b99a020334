package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRequestTTL is applied when a request is created without an
// explicit expiry deadline.
const DefaultRequestTTL = 72 * time.Hour

type RequestStatus string

const (
	RequestStatusPending            RequestStatus = "pending"
	RequestStatusMatching           RequestStatus = "matching"
	RequestStatusDonorsFound        RequestStatus = "donors_found"
	RequestStatusPartiallyFulfilled RequestStatus = "partially_fulfilled"
	RequestStatusFulfilled          RequestStatus = "fulfilled"
	RequestStatusCancelled          RequestStatus = "cancelled"
	RequestStatusExpired            RequestStatus = "expired"
)

// IsTerminal reports whether no further transition may leave the status.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusFulfilled, RequestStatusCancelled, RequestStatusExpired:
		return true
	}
	return false
}

// ActiveStatuses are the statuses shown on discovery dashboards.
var ActiveStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusMatching,
	RequestStatusDonorsFound,
	RequestStatusPartiallyFulfilled,
}

type Urgency string

const (
	UrgencyNormal          Urgency = "normal"
	UrgencyUrgent          Urgency = "urgent"
	UrgencyCritical        Urgency = "critical"
	UrgencyLifeThreatening Urgency = "life_threatening"
)

var urgencyScores = map[Urgency]int{
	UrgencyNormal:          25,
	UrgencyUrgent:          50,
	UrgencyCritical:        75,
	UrgencyLifeThreatening: 100,
}

// PriorityScore maps urgency to its sort weight. It is the only source of
// priority_score values; the column is never mutated independently.
func (u Urgency) PriorityScore() int {
	return urgencyScores[u]
}

func (u Urgency) IsValid() bool {
	_, ok := urgencyScores[u]
	return ok
}

type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

var bloodTypes = map[BloodType]struct{}{
	BloodTypeAPos: {}, BloodTypeANeg: {},
	BloodTypeBPos: {}, BloodTypeBNeg: {},
	BloodTypeABPos: {}, BloodTypeABNeg: {},
	BloodTypeOPos: {}, BloodTypeONeg: {},
}

func (b BloodType) IsValid() bool {
	_, ok := bloodTypes[b]
	return ok
}

const BloodComponentWholeBlood = "whole_blood"

// EmergencyRequest is a plea for blood units at a hospital. Requests may be
// anonymous, so the requester block is nullable throughout.
type EmergencyRequest struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	RequesterID    *uuid.UUID `db:"requester_id" json:"requester_id,omitempty"`
	RequesterName  *string    `db:"requester_name" json:"requester_name,omitempty"`
	RequesterEmail *string    `db:"requester_email" json:"requester_email,omitempty"`

	PatientName   string  `db:"patient_name" json:"patient_name"`
	PatientAge    *int    `db:"patient_age" json:"patient_age,omitempty"`
	PatientGender *string `db:"patient_gender" json:"patient_gender,omitempty"`

	BloodType      BloodType `db:"blood_type" json:"blood_type"`
	UnitsNeeded    int       `db:"units_needed" json:"units_needed"`
	BloodComponent string    `db:"blood_component" json:"blood_component"`

	Urgency       Urgency `db:"urgency" json:"urgency"`
	PriorityScore int     `db:"priority_score" json:"priority_score"`

	HospitalID      *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	HospitalName    string     `db:"hospital_name" json:"hospital_name"`
	HospitalAddress string     `db:"hospital_address" json:"hospital_address"`
	Latitude        *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64   `db:"longitude" json:"longitude,omitempty"`

	ContactName     string `db:"contact_name" json:"contact_name"`
	ContactPhone    string `db:"contact_phone" json:"contact_phone"`
	ContactRelation string `db:"contact_relation" json:"contact_relation"`

	Status             RequestStatus `db:"status" json:"status"`
	MatchedDonorsCount int           `db:"matched_donors_count" json:"matched_donors_count"`
	FulfilledUnits     int           `db:"fulfilled_units" json:"fulfilled_units"`
	IsVerified         bool          `db:"is_verified" json:"is_verified"`
	CancelReason       *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`

	NeededBy    *time.Time `db:"needed_by" json:"needed_by,omitempty"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	FulfilledAt *time.Time `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsExpired evaluates the expiry deadline lazily; there is no guarantee a
// sweep has stamped the stored status yet.
func (r *EmergencyRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsActive reports whether the request should appear on discovery views.
func (r *EmergencyRequest) IsActive(now time.Time) bool {
	if r.IsExpired(now) {
		return false
	}
	switch r.Status {
	case RequestStatusPending, RequestStatusMatching,
		RequestStatusDonorsFound, RequestStatusPartiallyFulfilled:
		return true
	}
	return false
}

type CreateRequestInput struct {
	RequesterID     *uuid.UUID `json:"requester_id" validate:"omitempty"`
	PatientName     string     `json:"patient_name" validate:"required,max=200"`
	PatientAge      *int       `json:"patient_age" validate:"omitempty,gte=0,lte=130"`
	PatientGender   *string    `json:"patient_gender"`
	BloodType       BloodType  `json:"blood_type" validate:"required"`
	UnitsNeeded     int        `json:"units_needed" validate:"required,min=1,max=10"`
	BloodComponent  string     `json:"blood_component"`
	Urgency         Urgency    `json:"urgency" validate:"required"`
	HospitalID      *uuid.UUID `json:"hospital_id"`
	HospitalName    string     `json:"hospital_name" validate:"required,max=200"`
	HospitalAddress string     `json:"hospital_address" validate:"required,max=500"`
	Latitude        *float64   `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64   `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ContactName     string     `json:"contact_name" validate:"required,max=200"`
	ContactPhone    string     `json:"contact_phone" validate:"required,max=30"`
	ContactRelation string     `json:"contact_relation" validate:"required,max=100"`
	NeededBy        *time.Time `json:"needed_by"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

// UpdateRequestInput is the whitelist of caller-mutable fields. Everything
// else (status, fulfillment progress, verification) moves only through the
// dedicated cancel/fulfill/verify paths.
type UpdateRequestInput struct {
	PatientName     *string  `json:"patient_name" validate:"omitempty,max=200"`
	PatientAge      *int     `json:"patient_age" validate:"omitempty,gte=0,lte=130"`
	UnitsNeeded     *int     `json:"units_needed" validate:"omitempty,min=1,max=10"`
	Urgency         *Urgency `json:"urgency"`
	HospitalName    *string  `json:"hospital_name" validate:"omitempty,max=200"`
	HospitalAddress *string  `json:"hospital_address" validate:"omitempty,max=500"`
	ContactName     *string  `json:"contact_name" validate:"omitempty,max=200"`
	ContactPhone    *string  `json:"contact_phone" validate:"omitempty,max=30"`
}

type FulfillRequestInput struct {
	Units int `json:"units" validate:"required,min=1,max=10"`
}

type RequestFilters struct {
	Statuses    []RequestStatus `form:"status"`
	Urgencies   []Urgency       `form:"urgency"`
	BloodType   *BloodType      `form:"blood_type"`
	RequesterID *uuid.UUID      `form:"requester_id"`
	Limit       int             `form:"limit"`
}

// DefaultFetchLimit caps list queries when the caller supplies none.
const DefaultFetchLimit = 50
