package dto

import (
	"github.com/shopspring/decimal"
)

// BalanceResponse is the external view of one (warehouse, product) stock row.
type BalanceResponse struct {
	WarehouseID        string           `json:"warehouse_id"`
	ProductID          string           `json:"product_id"`
	Quantity           decimal.Decimal  `json:"quantity"`
	AvailableQuantity  decimal.Decimal  `json:"available_quantity"`
	ReservedQuantity   decimal.Decimal  `json:"reserved_quantity"`
	QuarantineQuantity decimal.Decimal  `json:"quarantine_quantity"`
	DamagedQuantity    decimal.Decimal  `json:"damaged_quantity"`
	UnitOfMeasure      string           `json:"unit_of_measure"`
	ReorderPoint       *decimal.Decimal `json:"reorder_point,omitempty"`
	LastMovementDate   *string          `json:"last_movement_date,omitempty"`
}

// BalanceListResponse is a paginated balance listing.
type BalanceListResponse struct {
	Data  []BalanceResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
