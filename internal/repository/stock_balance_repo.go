package repository

import (
	"context"
	"errors"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceDelta is the signed effect one movement applies to a balance row.
// Components not touched by the movement stay zero. The repository applies the
// whole delta as a single guarded UPDATE so the availability check and the
// write are one atomic statement — never a read in one round trip and a write
// in another.
type BalanceDelta struct {
	Quantity   decimal.Decimal
	Available  decimal.Decimal
	Reserved   decimal.Decimal
	Quarantine decimal.Decimal
	Damaged    decimal.Decimal
}

// BalanceFilter narrows balance listings.
type BalanceFilter struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
	Page        int
	Limit       int
}

type StockBalanceRepository interface {
	// GetForUpdateTx loads the row under SELECT ... FOR UPDATE, serializing
	// all mutations on the same (warehouse, product) pair for the duration of
	// the transaction. Returns model.ErrNotFound if the pair has no row yet.
	GetForUpdateTx(tx *gorm.DB, warehouseID, productID uuid.UUID) (*model.StockBalance, error)
	// CreateTx inserts a fresh zeroed row (lazy creation on first receipt).
	CreateTx(tx *gorm.DB, b *model.StockBalance) error
	// ApplyDeltaTx applies the delta with non-negativity guards in the WHERE
	// clause. Zero rows affected means a guard rejected the write — reported
	// as model.ErrInsufficientStock.
	ApplyDeltaTx(tx *gorm.DB, id uuid.UUID, d BalanceDelta) error

	Get(ctx context.Context, warehouseID, productID uuid.UUID) (*model.StockBalance, error)
	List(ctx context.Context, filter BalanceFilter) ([]model.StockBalance, int64, error)
	ListBelowReorderPoint(ctx context.Context, warehouseID *uuid.UUID) ([]model.StockBalance, error)
}

type stockBalanceRepo struct{ db *gorm.DB }

func NewStockBalanceRepository(db *gorm.DB) StockBalanceRepository {
	return &stockBalanceRepo{db: db}
}

func (r *stockBalanceRepo) GetForUpdateTx(tx *gorm.DB, warehouseID, productID uuid.UUID) (*model.StockBalance, error) {
	var b model.StockBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *stockBalanceRepo) CreateTx(tx *gorm.DB, b *model.StockBalance) error {
	return tx.Create(b).Error
}

func (r *stockBalanceRepo) ApplyDeltaTx(tx *gorm.DB, id uuid.UUID, d BalanceDelta) error {
	now := time.Now()
	res := tx.Model(&model.StockBalance{}).
		Where("id = ?", id).
		Where("available_quantity + ? >= 0", d.Available).
		Where("reserved_quantity + ? >= 0", d.Reserved).
		Where("quarantine_quantity + ? >= 0", d.Quarantine).
		Where("damaged_quantity + ? >= 0", d.Damaged).
		Where("quantity + ? >= 0", d.Quantity).
		Updates(map[string]interface{}{
			"quantity":            gorm.Expr("quantity + ?", d.Quantity),
			"available_quantity":  gorm.Expr("available_quantity + ?", d.Available),
			"reserved_quantity":   gorm.Expr("reserved_quantity + ?", d.Reserved),
			"quarantine_quantity": gorm.Expr("quarantine_quantity + ?", d.Quarantine),
			"damaged_quantity":    gorm.Expr("damaged_quantity + ?", d.Damaged),
			"version":             gorm.Expr("version + 1"),
			"last_movement_date":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrInsufficientStock
	}
	return nil
}

func (r *stockBalanceRepo) Get(ctx context.Context, warehouseID, productID uuid.UUID) (*model.StockBalance, error) {
	var b model.StockBalance
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *stockBalanceRepo) List(ctx context.Context, filter BalanceFilter) ([]model.StockBalance, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockBalance{})
	if filter.WarehouseID != nil {
		q = q.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var balances []model.StockBalance
	err := q.Order("warehouse_id, product_id").
		Offset((page - 1) * limit).Limit(limit).
		Find(&balances).Error
	return balances, total, err
}

func (r *stockBalanceRepo) ListBelowReorderPoint(ctx context.Context, warehouseID *uuid.UUID) ([]model.StockBalance, error) {
	q := r.db.WithContext(ctx).
		Where("reorder_point IS NOT NULL AND available_quantity < reorder_point")
	if warehouseID != nil {
		q = q.Where("warehouse_id = ?", *warehouseID)
	}
	var balances []model.StockBalance
	// Largest deficit first — that is the order purchasing wants them in.
	err := q.Order("(reorder_point - available_quantity) DESC").Find(&balances).Error
	return balances, err
}
