package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WarehouseRepository answers existence questions for the ledger. Warehouse
// CRUD lives in another module.
type WarehouseRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	LocationExists(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error)
	Create(ctx context.Context, w *model.Warehouse) error // seed tooling only
}

type warehouseRepo struct{ db *gorm.DB }

func NewWarehouseRepository(db *gorm.DB) WarehouseRepository { return &warehouseRepo{db: db} }

func (r *warehouseRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Warehouse{}).
		Where("id = ? AND lifecycle = ?", id, model.ItemActive).
		Count(&count).Error
	return count > 0, err
}

func (r *warehouseRepo) LocationExists(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Location{}).
		Where("id = ? AND warehouse_id = ? AND lifecycle = ?", locationID, warehouseID, model.ItemActive).
		Count(&count).Error
	return count > 0, err
}

func (r *warehouseRepo) Create(ctx context.Context, w *model.Warehouse) error {
	return r.db.WithContext(ctx).Create(w).Error
}
