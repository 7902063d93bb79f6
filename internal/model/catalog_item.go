package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemKind is the typed variant of what a catalog entry identifies. The ledger
// resolves all three kinds through the same catalog lookup instead of passing
// untyped itemType strings around.
type ItemKind string

const (
	ItemRawMaterial ItemKind = "RAW_MATERIAL"
	ItemProduct     ItemKind = "PRODUCT"
	ItemComponent   ItemKind = "COMPONENT"
)

// ItemLifecycle is an explicit state instead of a deleted_at sentinel.
type ItemLifecycle string

const (
	ItemActive   ItemLifecycle = "ACTIVE"
	ItemArchived ItemLifecycle = "ARCHIVED"
)

// CatalogItem carries the static identity and cost data the ledger
// denormalizes onto movement records. Owned by the catalog module; the ledger
// only reads it.
type CatalogItem struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind ItemKind  `gorm:"not null;index"`

	Code          string          `gorm:"uniqueIndex;not null"`
	Name          string          `gorm:"index;not null"`
	UnitOfMeasure string          `gorm:"not null"`
	StandardCost  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	Lifecycle ItemLifecycle `gorm:"not null;default:'ACTIVE'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CatalogItem) TableName() string { return "catalog_items" }
