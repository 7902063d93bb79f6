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

// MovementFilter narrows movement listings.
type MovementFilter struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
	Type        model.MovementType
	Status      model.MovementStatus
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}

// HistoryPageRequest is one keyset fetch of the completed-movement history:
// strictly after (AfterDate, AfterID) in (movement_date, id) order. Restartable
// — a caller can resume from any previously returned position.
type HistoryPageRequest struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
	From        *time.Time
	To          *time.Time
	AfterDate   *time.Time
	AfterID     *uuid.UUID
	Limit       int
}

type MovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.Movement) error
	// FindByIDForUpdateTx locks the movement row for a state transition.
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Movement, error)
	UpdateTx(tx *gorm.DB, m *model.Movement) error

	FindByID(ctx context.Context, id uuid.UUID) (*model.Movement, error)
	List(ctx context.Context, filter MovementFilter) ([]model.Movement, int64, error)
	// HistoryPage backs the lazy reconciliation iterator.
	HistoryPage(ctx context.Context, req HistoryPageRequest) ([]model.Movement, error)
	// CompletedForPair returns every COMPLETED movement touching the pair
	// (including transfer credit legs), ordered by completion time, for
	// balance reconstruction.
	CompletedForPair(ctx context.Context, warehouseID, productID uuid.UUID) ([]model.Movement, error)
	// SummaryByType aggregates completed movements per type.
	SummaryByType(ctx context.Context, warehouseID, productID *uuid.UUID, from, to *time.Time) ([]TypeSummary, error)
}

// TypeSummary is one row of the per-type movement aggregate.
type TypeSummary struct {
	Type          model.MovementType
	Count         int64
	TotalQuantity decimal.Decimal
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository { return &movementRepo{db: db} }

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.Movement) error {
	return tx.Create(m).Error
}

func (r *movementRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Movement, error) {
	var m model.Movement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *movementRepo) UpdateTx(tx *gorm.DB, m *model.Movement) error {
	return tx.Save(m).Error
}

func (r *movementRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Movement, error) {
	var m model.Movement
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *movementRepo) List(ctx context.Context, filter MovementFilter) ([]model.Movement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Movement{})
	if filter.WarehouseID != nil {
		q = q.Where("warehouse_id = ? OR to_warehouse_id = ?", *filter.WarehouseID, *filter.WarehouseID)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("movement_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("movement_date < ?", *filter.To)
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

	var movements []model.Movement
	err := q.Order("movement_date DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&movements).Error
	return movements, total, err
}

func (r *movementRepo) HistoryPage(ctx context.Context, req HistoryPageRequest) ([]model.Movement, error) {
	q := r.db.WithContext(ctx).Model(&model.Movement{}).
		Where("status = ?", model.MovementCompleted)
	if req.WarehouseID != nil {
		q = q.Where("warehouse_id = ? OR to_warehouse_id = ?", *req.WarehouseID, *req.WarehouseID)
	}
	if req.ProductID != nil {
		q = q.Where("product_id = ?", *req.ProductID)
	}
	if req.From != nil {
		q = q.Where("movement_date >= ?", *req.From)
	}
	if req.To != nil {
		q = q.Where("movement_date < ?", *req.To)
	}
	if req.AfterDate != nil && req.AfterID != nil {
		// Keyset: strictly after the cursor in (movement_date, id) order.
		q = q.Where("(movement_date, id) > (?, ?)", *req.AfterDate, *req.AfterID)
	}

	limit := req.Limit
	if limit < 1 || limit > 1000 {
		limit = 200
	}

	var movements []model.Movement
	err := q.Order("movement_date ASC, id ASC").Limit(limit).Find(&movements).Error
	return movements, err
}

func (r *movementRepo) SummaryByType(ctx context.Context, warehouseID, productID *uuid.UUID, from, to *time.Time) ([]TypeSummary, error) {
	q := r.db.WithContext(ctx).Model(&model.Movement{}).
		Select("type, COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS total_quantity").
		Where("status = ?", model.MovementCompleted)
	if warehouseID != nil {
		q = q.Where("warehouse_id = ? OR to_warehouse_id = ?", *warehouseID, *warehouseID)
	}
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	if from != nil {
		q = q.Where("movement_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("movement_date < ?", *to)
	}
	var rows []TypeSummary
	err := q.Group("type").Order("type").Scan(&rows).Error
	return rows, err
}

func (r *movementRepo) CompletedForPair(ctx context.Context, warehouseID, productID uuid.UUID) ([]model.Movement, error) {
	var movements []model.Movement
	err := r.db.WithContext(ctx).
		Where("status = ?", model.MovementCompleted).
		Where("product_id = ?", productID).
		Where("warehouse_id = ? OR to_warehouse_id = ?", warehouseID, warehouseID).
		Order("completed_at ASC, id ASC").
		Find(&movements).Error
	return movements, err
}
