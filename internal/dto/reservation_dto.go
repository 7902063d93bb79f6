package dto

import (
	"github.com/shopspring/decimal"
)

// ReserveRequest soft-allocates available stock to a business document.
type ReserveRequest struct {
	WarehouseID   string          `json:"warehouse_id" validate:"required,uuid"`
	ProductID     string          `json:"product_id" validate:"required,uuid"`
	Quantity      decimal.Decimal `json:"quantity" validate:"required"`
	ReferenceType string          `json:"reference_type" validate:"required"`
	ReferenceID   string          `json:"reference_id" validate:"required"`
	ExpiryDate    string          `json:"expiry_date" validate:"required"` // RFC 3339
}

// FulfillRequest advances the fulfilled counter of a reservation.
type FulfillRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// ReservationResponse is the external view of a reservation.
type ReservationResponse struct {
	ID                string          `json:"id"`
	ReservationNumber string          `json:"reservation_number"`
	WarehouseID       string          `json:"warehouse_id"`
	ProductID         string          `json:"product_id"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	FulfilledQuantity decimal.Decimal `json:"fulfilled_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Status            string          `json:"status"`
	ReferenceType     string          `json:"reference_type"`
	ReferenceID       string          `json:"reference_id"`
	ExpiryDate        string          `json:"expiry_date"`
	CreatedAt         string          `json:"created_at"`
}
