package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBalance is the maintained current-state row for one (warehouse, product)
// pair — the single source of truth for stock reads. It is mutated exclusively
// by the ledger engine, inside the same transaction that completes a movement.
//
// Invariant (checked after every mutation):
//
//	Quantity == Available + Reserved + Quarantine + Damaged, all components >= 0
type StockBalance struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_balance_wh_product,priority:1"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_balance_wh_product,priority:2"`

	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AvailableQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuarantineQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DamagedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	UnitOfMeasure    string           `gorm:"not null"`
	ReorderPoint     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	LastMovementDate *time.Time

	// Version is bumped on every balance write; useful for change detection
	// and as a tiebreaker when auditing concurrent histories.
	Version   int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StockBalance) TableName() string { return "stock_balances" }

// CheckInvariant verifies the accounting identity of the row. A false return
// after a mutation means the transaction must be aborted with
// ErrConsistencyViolation — never silently corrected.
func (b *StockBalance) CheckInvariant() bool {
	components := b.AvailableQuantity.
		Add(b.ReservedQuantity).
		Add(b.QuarantineQuantity).
		Add(b.DamagedQuantity)
	if !b.Quantity.Equal(components) {
		return false
	}
	for _, q := range []decimal.Decimal{
		b.AvailableQuantity, b.ReservedQuantity, b.QuarantineQuantity, b.DamagedQuantity,
	} {
		if q.IsNegative() {
			return false
		}
	}
	return true
}

// BelowReorderPoint reports whether available stock has dropped under the
// configured reorder threshold (no threshold configured — never below).
func (b *StockBalance) BelowReorderPoint() bool {
	return b.ReorderPoint != nil && b.AvailableQuantity.LessThan(*b.ReorderPoint)
}
