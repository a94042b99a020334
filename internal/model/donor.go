package model

import (
	"time"

	"github.com/google/uuid"
)

// Donors must wait this long between whole blood donations.
const DonationCooldown = 90 * 24 * time.Hour

// Donor is a registered blood donor profile, linked to the owning user.
type Donor struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	FullName       string     `db:"full_name" json:"full_name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	BloodType      BloodType  `db:"blood_type" json:"blood_type"`
	City           string     `db:"city" json:"city"`
	Latitude       *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64   `db:"longitude" json:"longitude,omitempty"`
	IsAvailable    bool       `db:"is_available" json:"is_available"`
	LastDonationAt *time.Time `db:"last_donation_at" json:"last_donation_at,omitempty"`
	DonationCount  int        `db:"donation_count" json:"donation_count"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// CanDonate checks the availability flag and the cooldown window.
func (d *Donor) CanDonate(now time.Time) bool {
	if !d.IsAvailable {
		return false
	}
	if d.LastDonationAt != nil && now.Sub(*d.LastDonationAt) < DonationCooldown {
		return false
	}
	return true
}

type RegisterDonorRequest struct {
	FullName  string    `json:"full_name" validate:"required,max=200"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone" validate:"required,max=30"`
	Password  string    `json:"password" validate:"required,min=8"`
	BloodType BloodType `json:"blood_type" validate:"required"`
	City      string    `json:"city" validate:"required,max=100"`
	Latitude  *float64  `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64  `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

type UpdateDonorRequest struct {
	Phone       *string  `json:"phone" validate:"omitempty,max=30"`
	City        *string  `json:"city" validate:"omitempty,max=100"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	IsAvailable *bool    `json:"is_available"`
}

type DonorFilters struct {
	BloodTypes []BloodType
	City       string
	Available  *bool
	Limit      int
}

// DonorMatch is a donor paired with the distance to the requesting
// hospital, nearest first when coordinates were supplied.
type DonorMatch struct {
	Donor      Donor    `json:"donor"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}
