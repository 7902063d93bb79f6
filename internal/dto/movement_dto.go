package dto

import (
	"github.com/shopspring/decimal"
)

// ReceiptRequest records inbound stock.
type ReceiptRequest struct {
	WarehouseID     string           `json:"warehouse_id" validate:"required,uuid"`
	ProductID       string           `json:"product_id" validate:"required,uuid"`
	Quantity        decimal.Decimal  `json:"quantity" validate:"required"`
	UnitOfMeasure   string           `json:"unit_of_measure"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	ReferenceType   string           `json:"reference_type"`
	ReferenceID     string           `json:"reference_id"`
	MovementDate    string           `json:"movement_date"` // RFC 3339, optional
	RequireApproval bool             `json:"require_approval"`
}

// IssueRequest records outbound stock. With reservation_id set, the issue is
// the physical release of a prior reservation.
type IssueRequest struct {
	WarehouseID     string          `json:"warehouse_id" validate:"required,uuid"`
	ProductID       string          `json:"product_id" validate:"required,uuid"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required"`
	ReservationID   *string         `json:"reservation_id" validate:"omitempty,uuid"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id"`
	MovementDate    string          `json:"movement_date"`
	RequireApproval bool            `json:"require_approval"`
}

// TransferRequest moves stock between warehouses as one all-or-nothing unit.
type TransferRequest struct {
	FromWarehouseID string          `json:"from_warehouse_id" validate:"required,uuid"`
	ToWarehouseID   string          `json:"to_warehouse_id" validate:"required,uuid"`
	ProductID       string          `json:"product_id" validate:"required,uuid"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id"`
	MovementDate    string          `json:"movement_date"`
	RequireApproval bool            `json:"require_approval"`
}

// AdjustmentRequest corrects a balance by a signed quantity; reason mandatory.
type AdjustmentRequest struct {
	WarehouseID     string          `json:"warehouse_id" validate:"required,uuid"`
	ProductID       string          `json:"product_id" validate:"required,uuid"`
	SignedQuantity  decimal.Decimal `json:"signed_quantity" validate:"required"`
	Reason          string          `json:"reason" validate:"required"`
	MovementDate    string          `json:"movement_date"`
	RequireApproval bool            `json:"require_approval"`
}

// StateChangeRequest carries the optional reason for reject/cancel.
type StateChangeRequest struct {
	Reason string `json:"reason"`
}

// MovementResponse is the external view of a movement record.
type MovementResponse struct {
	ID              string           `json:"id"`
	ReferenceNumber string           `json:"reference_number"`
	WarehouseID     string           `json:"warehouse_id"`
	ProductID       string           `json:"product_id"`
	Type            string           `json:"type"`
	Status          string           `json:"status"`
	Quantity        decimal.Decimal  `json:"quantity"`
	SignedQuantity  decimal.Decimal  `json:"signed_quantity"`
	UnitOfMeasure   string           `json:"unit_of_measure"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	FromWarehouseID *string          `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   *string          `json:"to_warehouse_id,omitempty"`
	ReferenceType   string           `json:"reference_type,omitempty"`
	ReferenceID     string           `json:"reference_id,omitempty"`
	ReservationID   *string          `json:"reservation_id,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	MovementDate    string           `json:"movement_date"`
	CompletedAt     *string          `json:"completed_at,omitempty"`
	CreatedBy       string           `json:"created_by"`
	ApprovedBy      *string          `json:"approved_by,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

// MovementListResponse is a paginated movement listing.
type MovementListResponse struct {
	Data  []MovementResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// HistoryResponse is one page of the reconciliation history stream plus the
// cursor to resume from.
type HistoryResponse struct {
	Data   []MovementResponse `json:"data"`
	Cursor string             `json:"cursor,omitempty"`
}
