package model

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is reference data for existence validation. CRUD over warehouses
// lives in another module; the ledger only checks that ids resolve.
type Warehouse struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code      string        `gorm:"uniqueIndex;not null"`
	Name      string        `gorm:"not null"`
	Lifecycle ItemLifecycle `gorm:"not null;default:'ACTIVE'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Warehouse) TableName() string { return "warehouses" }

// Location is a storage position inside a warehouse. Codes repeat across
// warehouses, so uniqueness is composite.
type Location struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WarehouseID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_location_wh_code,priority:1"`
	Code        string        `gorm:"not null;uniqueIndex:idx_location_wh_code,priority:2"`
	Lifecycle   ItemLifecycle `gorm:"not null;default:'ACTIVE'"`
	CreatedAt   time.Time
}

func (Location) TableName() string { return "locations" }
