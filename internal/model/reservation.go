package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a soft stock hold.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Terminal reports whether the reservation can no longer change state.
func (s ReservationStatus) Terminal() bool { return s != ReservationActive }

// Reservation is a soft hold on available stock: quantity promised to an order
// but not yet physically issued. Creating one moves quantity from available to
// reserved on the balance row; the reserved portion is released either by the
// physical issue (via the ledger engine) or by cancel/expiry.
type Reservation struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReservationNumber string    `gorm:"uniqueIndex;not null"`

	WarehouseID uuid.UUID `gorm:"type:uuid;not null;index:idx_reservation_wh_product,priority:1"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index:idx_reservation_wh_product,priority:2"`

	ReservedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	FulfilledQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	Status ReservationStatus `gorm:"not null;index"`

	ReferenceType string `gorm:"not null;index:idx_reservation_ref,priority:1"`
	ReferenceID   string `gorm:"not null;index:idx_reservation_ref,priority:2"`

	ExpiryDate time.Time `gorm:"not null;index"`
	CreatedBy  uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Reservation) TableName() string { return "reservations" }

// RemainingQuantity is computed, never stored: reserved minus fulfilled.
func (r *Reservation) RemainingQuantity() decimal.Decimal {
	return r.ReservedQuantity.Sub(r.FulfilledQuantity)
}

// Expired reports whether the reservation is ACTIVE past its expiry date and
// therefore eligible for the background sweep.
func (r *Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiryDate)
}
