package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementReceipt     MovementType = "RECEIPT"
	MovementIssue       MovementType = "ISSUE"
	MovementTransfer    MovementType = "TRANSFER"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementReservation MovementType = "RESERVATION_FULFILLMENT"
)

// MovementStatus is the lifecycle state of a movement.
//
//	PENDING → {APPROVED → COMPLETED} | CANCELLED | REJECTED
//
// COMPLETED, CANCELLED and REJECTED are terminal. The balance effect is applied
// exactly once, in the same transaction that sets COMPLETED.
type MovementStatus string

const (
	MovementPending   MovementStatus = "PENDING"
	MovementApproved  MovementStatus = "APPROVED"
	MovementCompleted MovementStatus = "COMPLETED"
	MovementCancelled MovementStatus = "CANCELLED"
	MovementRejected  MovementStatus = "REJECTED"
)

// CanTransitionTo encodes the movement state machine.
func (s MovementStatus) CanTransitionTo(next MovementStatus) bool {
	switch s {
	case MovementPending:
		return next == MovementApproved || next == MovementCancelled || next == MovementRejected
	case MovementApproved:
		return next == MovementCompleted || next == MovementCancelled
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s MovementStatus) Terminal() bool {
	return s == MovementCompleted || s == MovementCancelled || s == MovementRejected
}

// Movement is one append-only ledger record: a receipt, issue, transfer,
// adjustment or reservation fulfillment. Quantity is always a positive
// magnitude; the sign of the balance effect follows from the type (adjustments
// carry the sign in SignedQuantity). Immutable once COMPLETED except for
// administrative cancellation metadata.
type Movement struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReferenceNumber string    `gorm:"uniqueIndex;not null"`

	WarehouseID uuid.UUID    `gorm:"type:uuid;not null;index:idx_movement_wh_product,priority:1"`
	ProductID   uuid.UUID    `gorm:"type:uuid;not null;index:idx_movement_wh_product,priority:2"`
	Type        MovementType `gorm:"not null;index"`

	Quantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	// SignedQuantity is set for adjustments only: the direction of the
	// correction. For all other types it mirrors the effect magnitude.
	SignedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitOfMeasure  string          `gorm:"not null"`
	UnitCost       *decimal.Decimal `gorm:"type:decimal(18,4)"`

	Status MovementStatus `gorm:"not null;index"`

	// Transfer legs. FromWarehouseID == WarehouseID for transfers; the debit
	// side is the indexed pair so per-pair history stays queryable.
	FromWarehouseID *uuid.UUID `gorm:"type:uuid"`
	ToWarehouseID   *uuid.UUID `gorm:"type:uuid"`

	// Link back to the originating business document (production order,
	// sales order, ...). Traceability only — no FK into other modules.
	ReferenceType string     `gorm:"index:idx_movement_ref,priority:1"`
	ReferenceID   string     `gorm:"index:idx_movement_ref,priority:2"`
	ReservationID *uuid.UUID `gorm:"type:uuid;index"`

	Reason       string
	MovementDate time.Time `gorm:"not null;index:idx_movement_date"`
	CompletedAt  *time.Time

	CreatedBy    uuid.UUID  `gorm:"type:uuid;not null"`
	ApprovedBy   *uuid.UUID `gorm:"type:uuid"`
	CancelledBy  *uuid.UUID `gorm:"type:uuid"`
	CancelReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Movement) TableName() string { return "movements" }

// EffectOnQuantity returns the signed delta this movement applies to the total
// quantity of its (warehouse, product) balance row once completed. Used by the
// reconciliation replay; must stay in lockstep with the ledger engine.
func (m *Movement) EffectOnQuantity() decimal.Decimal {
	switch m.Type {
	case MovementReceipt:
		return m.Quantity
	case MovementIssue, MovementReservation:
		return m.Quantity.Neg()
	case MovementAdjustment:
		return m.SignedQuantity
	case MovementTransfer:
		// Debit side; the credit side is reconstructed per warehouse.
		return m.Quantity.Neg()
	default:
		return decimal.Zero
	}
}
