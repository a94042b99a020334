package model

import (
	"time"

	"github.com/google/uuid"
)

type HospitalType string

const (
	HospitalTypeHospital  HospitalType = "hospital"
	HospitalTypeBloodBank HospitalType = "blood_bank"
	HospitalTypeClinic    HospitalType = "clinic"
)

// Hospital is a care facility or blood bank that can anchor a request and
// hold a per-blood-type stock ledger.
type Hospital struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Type         HospitalType `db:"type" json:"type"`
	Address      string       `db:"address" json:"address"`
	City         string       `db:"city" json:"city"`
	Phone        string       `db:"phone" json:"phone"`
	Email        *string      `db:"email" json:"email,omitempty"`
	Latitude     float64      `db:"latitude" json:"latitude"`
	Longitude    float64      `db:"longitude" json:"longitude"`
	IsVerified   bool         `db:"is_verified" json:"is_verified"`
	OpenAllHours bool         `db:"open_all_hours" json:"open_all_hours"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// InventoryItem tracks how many units of one blood type a hospital holds.
type InventoryItem struct {
	ID         uuid.UUID `db:"id" json:"id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	BloodType  BloodType `db:"blood_type" json:"blood_type"`
	Units      int       `db:"units" json:"units"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type CreateHospitalRequest struct {
	Name         string       `json:"name" validate:"required,max=200"`
	Type         HospitalType `json:"type" validate:"required,oneof=hospital blood_bank clinic"`
	Address      string       `json:"address" validate:"required,max=500"`
	City         string       `json:"city" validate:"required,max=100"`
	Phone        string       `json:"phone" validate:"required,max=30"`
	Email        *string      `json:"email" validate:"omitempty,email"`
	Latitude     float64      `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64      `json:"longitude" validate:"gte=-180,lte=180"`
	OpenAllHours bool         `json:"open_all_hours"`
}

type HospitalFilters struct {
	Type      HospitalType
	City      string
	BloodType *BloodType
	Verified  *bool
}
