package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockAdjustmentRepository is append-only: adjustment audit records are never
// updated or deleted.
type StockAdjustmentRepository interface {
	CreateTx(tx *gorm.DB, a *model.StockAdjustment) error
	ListForPair(ctx context.Context, warehouseID, productID uuid.UUID, limit int) ([]model.StockAdjustment, error)
}

type adjustmentRepo struct{ db *gorm.DB }

func NewStockAdjustmentRepository(db *gorm.DB) StockAdjustmentRepository {
	return &adjustmentRepo{db: db}
}

func (r *adjustmentRepo) CreateTx(tx *gorm.DB, a *model.StockAdjustment) error {
	return tx.Create(a).Error
}

func (r *adjustmentRepo) ListForPair(ctx context.Context, warehouseID, productID uuid.UUID, limit int) ([]model.StockAdjustment, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var adjustments []model.StockAdjustment
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&adjustments).Error
	return adjustments, err
}
