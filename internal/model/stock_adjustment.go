package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockAdjustment is the audit record produced alongside every ADJUSTMENT
// movement: before/after snapshots of the balance row plus the mandatory
// reason. Append-only.
type StockAdjustment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MovementID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	WarehouseID uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index"`

	QuantityBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Delta          decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	Reason    string    `gorm:"not null"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

func (StockAdjustment) TableName() string { return "stock_adjustments" }
