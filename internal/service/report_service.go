package service

import (
	"context"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementSummaryRow aggregates completed movements of one type.
type MovementSummaryRow struct {
	Type          model.MovementType `json:"type"`
	Count         int64              `json:"count"`
	TotalQuantity decimal.Decimal    `json:"total_quantity"`
}

// ReconciliationResult compares the stored balance row against the quantity
// reconstructed by replaying the completed movement log in completion order.
type ReconciliationResult struct {
	WarehouseID        uuid.UUID       `json:"warehouse_id"`
	ProductID          uuid.UUID       `json:"product_id"`
	StoredQuantity     decimal.Decimal `json:"stored_quantity"`
	ReplayedQuantity   decimal.Decimal `json:"replayed_quantity"`
	CompletedMovements int             `json:"completed_movements"`
	Consistent         bool            `json:"consistent"`
}

// ReportService is the read-only statistics/reporting view over the movement
// store and balance table. It never mutates and tolerates slightly stale
// aggregates; writers are never blocked by it.
type ReportService interface {
	MovementSummary(ctx context.Context, warehouseID, productID *uuid.UUID, from, to *time.Time) ([]MovementSummaryRow, error)
	Reconcile(ctx context.Context, warehouseID, productID uuid.UUID) (*ReconciliationResult, error)
	Balances(ctx context.Context, filter repository.BalanceFilter) ([]model.StockBalance, int64, error)
	BelowReorderPoint(ctx context.Context, warehouseID *uuid.UUID) ([]model.StockBalance, error)
}

type reportService struct {
	balances  repository.StockBalanceRepository
	movements repository.MovementRepository
}

func NewReportService(balances repository.StockBalanceRepository, movements repository.MovementRepository) ReportService {
	return &reportService{balances: balances, movements: movements}
}

func (s *reportService) MovementSummary(ctx context.Context, warehouseID, productID *uuid.UUID, from, to *time.Time) ([]MovementSummaryRow, error) {
	aggregates, err := s.movements.SummaryByType(ctx, warehouseID, productID, from, to)
	if err != nil {
		return nil, err
	}
	rows := make([]MovementSummaryRow, 0, len(aggregates))
	for _, a := range aggregates {
		rows = append(rows, MovementSummaryRow{Type: a.Type, Count: a.Count, TotalQuantity: a.TotalQuantity})
	}
	return rows, nil
}

func (s *reportService) Reconcile(ctx context.Context, warehouseID, productID uuid.UUID) (*ReconciliationResult, error) {
	stored, err := s.balances.Get(ctx, warehouseID, productID)
	if err != nil {
		return nil, err
	}
	completed, err := s.movements.CompletedForPair(ctx, warehouseID, productID)
	if err != nil {
		return nil, err
	}

	replayed := decimal.Zero
	for i := range completed {
		m := &completed[i]
		if m.Type == model.MovementTransfer && m.ToWarehouseID != nil && *m.ToWarehouseID == warehouseID {
			// Credit leg of an inbound transfer.
			replayed = replayed.Add(m.Quantity)
			continue
		}
		replayed = replayed.Add(m.EffectOnQuantity())
	}

	return &ReconciliationResult{
		WarehouseID:        warehouseID,
		ProductID:          productID,
		StoredQuantity:     stored.Quantity,
		ReplayedQuantity:   replayed,
		CompletedMovements: len(completed),
		Consistent:         stored.Quantity.Equal(replayed),
	}, nil
}

func (s *reportService) Balances(ctx context.Context, filter repository.BalanceFilter) ([]model.StockBalance, int64, error) {
	return s.balances.List(ctx, filter)
}

func (s *reportService) BelowReorderPoint(ctx context.Context, warehouseID *uuid.UUID) ([]model.StockBalance, error) {
	return s.balances.ListBelowReorderPoint(ctx, warehouseID)
}
