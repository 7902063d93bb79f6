package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementOpts carries the optional parts of a movement request.
type MovementOpts struct {
	UnitCost      *decimal.Decimal
	ReferenceType string
	ReferenceID   string
	MovementDate  time.Time // zero value → now
	// RequireApproval defers the balance effect: the movement is persisted
	// PENDING and only mutates stock when Complete is called after Approve.
	RequireApproval bool
	// ReservationID turns an issue into a reservation fulfillment: the
	// physical release of previously reserved quantity.
	ReservationID *uuid.UUID
}

// LowStockAlert is handed to the notifier when a completed movement drives a
// balance under its reorder point.
type LowStockAlert struct {
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ReorderPoint      decimal.Decimal `json:"reorder_point"`
	UnitOfMeasure     string          `json:"unit_of_measure"`
}

// LowStockNotifier decouples the ledger from the async alert pipeline.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, alert LowStockAlert)
}

// LedgerService is the movement processing engine: it validates requested
// movements, applies their balance effect atomically and appends the movement
// record. It is the only writer of stock_balances and movements.
type LedgerService interface {
	RecordReceipt(ctx context.Context, actorID, warehouseID, productID uuid.UUID, quantity decimal.Decimal, unit string, opts MovementOpts) (*model.Movement, error)
	RecordIssue(ctx context.Context, actorID, warehouseID, productID uuid.UUID, quantity decimal.Decimal, opts MovementOpts) (*model.Movement, error)
	RecordTransfer(ctx context.Context, actorID, fromWarehouseID, toWarehouseID, productID uuid.UUID, quantity decimal.Decimal, opts MovementOpts) (*model.Movement, error)
	RecordAdjustment(ctx context.Context, actorID, warehouseID, productID uuid.UUID, signedQuantity decimal.Decimal, reason string, opts MovementOpts) (*model.Movement, error)

	Approve(ctx context.Context, movementID, actorID uuid.UUID) (*model.Movement, error)
	Reject(ctx context.Context, movementID, actorID uuid.UUID, reason string) (*model.Movement, error)
	Complete(ctx context.Context, movementID, actorID uuid.UUID) (*model.Movement, error)
	Cancel(ctx context.Context, movementID, actorID uuid.UUID, reason string) (*model.Movement, error)

	GetMovement(ctx context.Context, id uuid.UUID) (*model.Movement, error)
	ListMovements(ctx context.Context, filter repository.MovementFilter) ([]model.Movement, int64, error)
	History(filter HistoryFilter) *MovementIterator
}

type ledgerService struct {
	tx           repository.TxManager
	balances     repository.StockBalanceRepository
	movements    repository.MovementRepository
	reservations repository.ReservationRepository
	adjustments  repository.StockAdjustmentRepository
	catalog      repository.CatalogRepository
	warehouses   repository.WarehouseRepository
	numbering    NumberingService
	notifier     LowStockNotifier // optional
	now          func() time.Time
}

func NewLedgerService(
	tx repository.TxManager,
	balances repository.StockBalanceRepository,
	movements repository.MovementRepository,
	reservations repository.ReservationRepository,
	adjustments repository.StockAdjustmentRepository,
	catalog repository.CatalogRepository,
	warehouses repository.WarehouseRepository,
	numbering NumberingService,
	notifier LowStockNotifier,
) LedgerService {
	return &ledgerService{
		tx:           tx,
		balances:     balances,
		movements:    movements,
		reservations: reservations,
		adjustments:  adjustments,
		catalog:      catalog,
		warehouses:   warehouses,
		numbering:    numbering,
		notifier:     notifier,
		now:          time.Now,
	}
}

// ── Record operations ────────────────────────────────────────────────────────

func (s *ledgerService) RecordReceipt(ctx context.Context, actorID, warehouseID, productID uuid.UUID, quantity decimal.Decimal, unit string, opts MovementOpts) (*model.Movement, error) {
	if !quantity.IsPositive() {
		return nil, model.ErrInvalidQuantity
	}
	item, err := s.validateTarget(ctx, warehouseID, productID)
	if err != nil {
		return nil, err
	}
	if unit == "" {
		unit = item.UnitOfMeasure
	}

	m := s.newMovement(model.MovementReceipt, actorID, warehouseID, productID, quantity, quantity, unit, item, opts)
	return s.submit(ctx, m, PrefixReceipt, opts.RequireApproval)
}

func (s *ledgerService) RecordIssue(ctx context.Context, actorID, warehouseID, productID uuid.UUID, quantity decimal.Decimal, opts MovementOpts) (*model.Movement, error) {
	if !quantity.IsPositive() {
		return nil, model.ErrInvalidQuantity
	}
	item, err := s.validateTarget(ctx, warehouseID, productID)
	if err != nil {
		return nil, err
	}

	typ := model.MovementIssue
	if opts.ReservationID != nil {
		typ = model.MovementReservation
	}
	m := s.newMovement(typ, actorID, warehouseID, productID, quantity, quantity.Neg(), item.UnitOfMeasure, item, opts)
	m.ReservationID = opts.ReservationID

	prefix := PrefixIssue
	if typ == model.MovementReservation {
		prefix = PrefixFulfillment
	}
	return s.submit(ctx, m, prefix, opts.RequireApproval)
}

func (s *ledgerService) RecordTransfer(ctx context.Context, actorID, fromWarehouseID, toWarehouseID, productID uuid.UUID, quantity decimal.Decimal, opts MovementOpts) (*model.Movement, error) {
	if !quantity.IsPositive() {
		return nil, model.ErrInvalidQuantity
	}
	if fromWarehouseID == toWarehouseID {
		return nil, fmt.Errorf("%w: transfer source and destination are the same warehouse", model.ErrUnknownWarehouse)
	}
	item, err := s.validateTarget(ctx, fromWarehouseID, productID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWarehouse(ctx, toWarehouseID); err != nil {
		return nil, err
	}

	m := s.newMovement(model.MovementTransfer, actorID, fromWarehouseID, productID, quantity, quantity.Neg(), item.UnitOfMeasure, item, opts)
	from, to := fromWarehouseID, toWarehouseID
	m.FromWarehouseID = &from
	m.ToWarehouseID = &to
	return s.submit(ctx, m, PrefixTransfer, opts.RequireApproval)
}

func (s *ledgerService) RecordAdjustment(ctx context.Context, actorID, warehouseID, productID uuid.UUID, signedQuantity decimal.Decimal, reason string, opts MovementOpts) (*model.Movement, error) {
	if signedQuantity.IsZero() {
		return nil, model.ErrInvalidQuantity
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustment requires a reason", model.ErrInvalidQuantity)
	}
	item, err := s.validateTarget(ctx, warehouseID, productID)
	if err != nil {
		return nil, err
	}

	m := s.newMovement(model.MovementAdjustment, actorID, warehouseID, productID, signedQuantity.Abs(), signedQuantity, item.UnitOfMeasure, item, opts)
	m.Reason = reason
	return s.submit(ctx, m, PrefixAdjustment, opts.RequireApproval)
}

// ── State machine operations ─────────────────────────────────────────────────

func (s *ledgerService) Approve(ctx context.Context, movementID, actorID uuid.UUID) (*model.Movement, error) {
	return s.transition(ctx, movementID, model.MovementApproved, func(m *model.Movement) {
		m.ApprovedBy = &actorID
	})
}

func (s *ledgerService) Reject(ctx context.Context, movementID, actorID uuid.UUID, reason string) (*model.Movement, error) {
	return s.transition(ctx, movementID, model.MovementRejected, func(m *model.Movement) {
		m.CancelledBy = &actorID
		m.CancelReason = reason
	})
}

// Cancel reverses no balance effect: mutation happens only at completion, so a
// PENDING or APPROVED movement has not touched stock yet. Once COMPLETED,
// reversal requires a compensating movement, never retroactive mutation.
func (s *ledgerService) Cancel(ctx context.Context, movementID, actorID uuid.UUID, reason string) (*model.Movement, error) {
	return s.transition(ctx, movementID, model.MovementCancelled, func(m *model.Movement) {
		m.CancelledBy = &actorID
		m.CancelReason = reason
	})
}

func (s *ledgerService) transition(ctx context.Context, movementID uuid.UUID, next model.MovementStatus, mutate func(*model.Movement)) (*model.Movement, error) {
	var result *model.Movement
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		m, err := s.movements.FindByIDForUpdateTx(tx, movementID)
		if err != nil {
			return err
		}
		if !m.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s → %s", model.ErrIllegalStateTransition, m.Status, next)
		}
		m.Status = next
		mutate(m)
		if err := s.movements.UpdateTx(tx, m); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete applies the movement's balance effect and marks it COMPLETED in one
// atomic step — the central correctness property of the engine.
func (s *ledgerService) Complete(ctx context.Context, movementID, actorID uuid.UUID) (*model.Movement, error) {
	var result *model.Movement
	var touched []model.StockBalance
	err := withRetry(ctx, func() error {
		touched = touched[:0]
		return s.tx.Do(ctx, func(tx *gorm.DB) error {
			m, err := s.movements.FindByIDForUpdateTx(tx, movementID)
			if err != nil {
				return err
			}
			if !m.Status.CanTransitionTo(model.MovementCompleted) {
				return fmt.Errorf("%w: %s → %s", model.ErrIllegalStateTransition, m.Status, model.MovementCompleted)
			}
			after, err := s.applyEffect(tx, m)
			if err != nil {
				return err
			}
			now := s.now()
			m.Status = model.MovementCompleted
			m.CompletedAt = &now
			if err := s.movements.UpdateTx(tx, m); err != nil {
				return err
			}
			result = m
			touched = after
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.raiseLowStockAlerts(ctx, touched)
	return result, nil
}

// ── Internals ────────────────────────────────────────────────────────────────

func (s *ledgerService) newMovement(typ model.MovementType, actorID, warehouseID, productID uuid.UUID, quantity, signed decimal.Decimal, unit string, item *model.CatalogItem, opts MovementOpts) *model.Movement {
	date := opts.MovementDate
	if date.IsZero() {
		date = s.now()
	}
	cost := opts.UnitCost
	if cost == nil && item != nil {
		c := item.StandardCost
		cost = &c
	}
	return &model.Movement{
		ID:             uuid.New(),
		WarehouseID:    warehouseID,
		ProductID:      productID,
		Type:           typ,
		Quantity:       quantity,
		SignedQuantity: signed,
		UnitOfMeasure:  unit,
		UnitCost:       cost,
		Status:         model.MovementPending,
		ReferenceType:  opts.ReferenceType,
		ReferenceID:    opts.ReferenceID,
		MovementDate:   date,
		CreatedBy:      actorID,
	}
}

// submit persists the movement. In the immediate path the reference number,
// the balance effect and the COMPLETED record are one transaction; with
// RequireApproval the movement is stored PENDING with no stock effect.
func (s *ledgerService) submit(ctx context.Context, m *model.Movement, prefix string, pending bool) (*model.Movement, error) {
	var touched []model.StockBalance
	err := withRetry(ctx, func() error {
		touched = touched[:0]
		return s.tx.Do(ctx, func(tx *gorm.DB) error {
			ref, err := s.numbering.NextTx(tx, prefix)
			if err != nil {
				return err
			}
			m.ReferenceNumber = ref

			if pending {
				return s.movements.CreateTx(tx, m)
			}

			after, err := s.applyEffect(tx, m)
			if err != nil {
				return err
			}
			now := s.now()
			m.Status = model.MovementCompleted
			m.CompletedAt = &now
			if err := s.movements.CreateTx(tx, m); err != nil {
				return err
			}
			touched = after
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("reference", m.ReferenceNumber).
		Str("type", string(m.Type)).
		Str("status", string(m.Status)).
		Str("warehouse_id", m.WarehouseID.String()).
		Str("product_id", m.ProductID.String()).
		Str("quantity", m.Quantity.String()).
		Msg("movement recorded")

	s.raiseLowStockAlerts(ctx, touched)
	return m, nil
}

// applyEffect mutates the balance row(s) for a movement about to become
// COMPLETED. Caller holds the movement lock; this takes the balance row locks.
// Returns the post-mutation state of every touched row for alerting.
func (s *ledgerService) applyEffect(tx *gorm.DB, m *model.Movement) ([]model.StockBalance, error) {
	switch m.Type {
	case model.MovementReceipt:
		return s.applyReceipt(tx, m)
	case model.MovementIssue:
		return s.applyIssue(tx, m)
	case model.MovementReservation:
		return s.applyFulfillment(tx, m)
	case model.MovementTransfer:
		return s.applyTransfer(tx, m)
	case model.MovementAdjustment:
		return s.applyAdjustment(tx, m)
	default:
		return nil, fmt.Errorf("unsupported movement type %q", m.Type)
	}
}

func (s *ledgerService) applyReceipt(tx *gorm.DB, m *model.Movement) ([]model.StockBalance, error) {
	b, err := s.lockOrCreateBalance(tx, m.WarehouseID, m.ProductID, m.UnitOfMeasure)
	if err != nil {
		return nil, err
	}
	delta := repository.BalanceDelta{Quantity: m.Quantity, Available: m.Quantity}
	return s.applyAndVerify(tx, b, delta)
}

func (s *ledgerService) applyIssue(tx *gorm.DB, m *model.Movement) ([]model.StockBalance, error) {
	b, err := s.balances.GetForUpdateTx(tx, m.WarehouseID, m.ProductID)
	if errors.Is(err, model.ErrNotFound) {
		// No balance row means nothing was ever received here.
		return nil, model.ErrInsufficientStock
	}
	if err != nil {
		return nil, err
	}
	if b.AvailableQuantity.LessThan(m.Quantity) {
		return nil, model.ErrInsufficientStock
	}
	delta := repository.BalanceDelta{Quantity: m.Quantity.Neg(), Available: m.Quantity.Neg()}
	return s.applyAndVerify(tx, b, delta)
}

// applyFulfillment releases previously reserved quantity as a physical issue:
// total and reserved drop together, available is untouched. The linked
// reservation advances its fulfilled quantity in the same transaction.
func (s *ledgerService) applyFulfillment(tx *gorm.DB, m *model.Movement) ([]model.StockBalance, error) {
	if m.ReservationID == nil {
		return nil, fmt.Errorf("%w: fulfillment movement without reservation", model.ErrIllegalStateTransition)
	}
	res, err := s.reservations.FindByIDForUpdateTx(tx, *m.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationActive {
		return nil, fmt.Errorf("%w: reservation is %s", model.ErrIllegalStateTransition, res.Status)
	}
	if res.WarehouseID != m.WarehouseID || res.ProductID != m.ProductID {
		return nil, fmt.Errorf("%w: reservation targets a different stock row", model.ErrIllegalStateTransition)
	}
	if m.Quantity.GreaterThan(res.RemainingQuantity()) {
		return nil, fmt.Errorf("%w: quantity exceeds remaining reservation", model.ErrInvalidQuantity)
	}

	b, err := s.balances.GetForUpdateTx(tx, m.WarehouseID, m.ProductID)
	if err != nil {
		return nil, err
	}
	if b.ReservedQuantity.LessThan(m.Quantity) {
		return nil, model.ErrConsistencyViolation
	}
	delta := repository.BalanceDelta{Quantity: m.Quantity.Neg(), Reserved: m.Quantity.Neg()}
	after, err := s.applyAndVerify(tx, b, delta)
	if err != nil {
		return nil, err
	}

	res.FulfilledQuantity = res.FulfilledQuantity.Add(m.Quantity)
	if res.RemainingQuantity().IsZero() {
		res.Status = model.ReservationFulfilled
	}
	if err := s.reservations.UpdateTx(tx, res); err != nil {
		return nil, err
	}
	return after, nil
}

func (s *ledgerService) applyTransfer(tx *gorm.DB, m *model.Movement) ([]model.StockBalance, error) {
	if m.FromWarehouseID == nil || m.ToWarehouseID == nil {
		return nil, fmt.Errorf("%w: transfer without both warehouses", model.ErrIllegalStateTransition)
	}
	from, to := *m.FromWarehouseID, *m.ToWarehouseID

	// Deterministic lock order across warehouses prevents AB/BA deadlocks
	// between opposing transfers on the same product.
	lockFirst, lockSecond := from, to
	if to.String() < from.String() {
		lockFirst, lockSecond = to, from
	}

	rows := make(map[uuid.UUID]*model.StockBalance, 2)
	for _, wh := range []uuid.UUID{lockFirst, lockSecond} {
		b, err := s.lockOrCreateBalance(tx, wh, m.ProductID, m.UnitOfMeasure)
		if err != nil {
			return nil, err
		}
		rows[wh] = b
	}

	src := rows[from]
	if src.AvailableQuantity.LessThan(m.Quantity) {
		return nil, model.ErrInsufficientStock
	}

	debit := repository.BalanceDelta{Quantity: m.Quantity.Neg(), Available: m.Quantity.Neg()}
	afterSrc, err := s.applyAndVerify(tx, src, debit)
	if err != nil {
		return nil, err
	}
	credit := repository.BalanceDelta{Quantity: m.Quantity, Available: m.Quantity}
	afterDst, err := s.applyAndVerify(tx, rows[to], credit)
	if err != nil {
		return nil, err
	}
	return append(afterSrc, afterDst...), nil
}

func (s *ledgerService) applyAdjustment(tx *gorm.DB, m *model.Movement) ([]model.StockBalance, error) {
	b, err := s.lockOrCreateBalance(tx, m.WarehouseID, m.ProductID, m.UnitOfMeasure)
	if err != nil {
		return nil, err
	}
	if m.SignedQuantity.IsNegative() && b.AvailableQuantity.LessThan(m.SignedQuantity.Neg()) {
		return nil, model.ErrInsufficientStock
	}
	before := b.Quantity

	delta := repository.BalanceDelta{Quantity: m.SignedQuantity, Available: m.SignedQuantity}
	after, err := s.applyAndVerify(tx, b, delta)
	if err != nil {
		return nil, err
	}

	audit := &model.StockAdjustment{
		ID:             uuid.New(),
		MovementID:     m.ID,
		WarehouseID:    m.WarehouseID,
		ProductID:      m.ProductID,
		QuantityBefore: before,
		QuantityAfter:  before.Add(m.SignedQuantity),
		Delta:          m.SignedQuantity,
		Reason:         m.Reason,
		CreatedBy:      m.CreatedBy,
	}
	if err := s.adjustments.CreateTx(tx, audit); err != nil {
		return nil, err
	}
	return after, nil
}

// applyAndVerify writes the delta and re-reads the row under the held lock to
// verify the accounting identity. A violated invariant aborts the transaction.
func (s *ledgerService) applyAndVerify(tx *gorm.DB, b *model.StockBalance, d repository.BalanceDelta) ([]model.StockBalance, error) {
	if err := s.balances.ApplyDeltaTx(tx, b.ID, d); err != nil {
		return nil, err
	}
	after, err := s.balances.GetForUpdateTx(tx, b.WarehouseID, b.ProductID)
	if err != nil {
		return nil, err
	}
	if !after.CheckInvariant() {
		log.Error().
			Str("warehouse_id", b.WarehouseID.String()).
			Str("product_id", b.ProductID.String()).
			Str("quantity", after.Quantity.String()).
			Msg("balance invariant violated, aborting transaction")
		return nil, model.ErrConsistencyViolation
	}
	return []model.StockBalance{*after}, nil
}

func (s *ledgerService) lockOrCreateBalance(tx *gorm.DB, warehouseID, productID uuid.UUID, unit string) (*model.StockBalance, error) {
	b, err := s.balances.GetForUpdateTx(tx, warehouseID, productID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	// Lazy creation on first receipt. A concurrent insert loses on the unique
	// index and the whole transaction retries.
	fresh := &model.StockBalance{
		ID:            uuid.New(),
		WarehouseID:   warehouseID,
		ProductID:     productID,
		UnitOfMeasure: unit,
	}
	if err := s.balances.CreateTx(tx, fresh); err != nil {
		return nil, err
	}
	return s.balances.GetForUpdateTx(tx, warehouseID, productID)
}

func (s *ledgerService) validateTarget(ctx context.Context, warehouseID, productID uuid.UUID) (*model.CatalogItem, error) {
	if err := s.requireWarehouse(ctx, warehouseID); err != nil {
		return nil, err
	}
	return s.catalog.Resolve(ctx, productID)
}

func (s *ledgerService) requireWarehouse(ctx context.Context, id uuid.UUID) error {
	ok, err := s.warehouses.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUnknownWarehouse
	}
	return nil
}

func (s *ledgerService) raiseLowStockAlerts(ctx context.Context, balances []model.StockBalance) {
	if s.notifier == nil {
		return
	}
	for i := range balances {
		b := &balances[i]
		if !b.BelowReorderPoint() {
			continue
		}
		s.notifier.NotifyLowStock(ctx, LowStockAlert{
			WarehouseID:       b.WarehouseID,
			ProductID:         b.ProductID,
			AvailableQuantity: b.AvailableQuantity,
			ReorderPoint:      *b.ReorderPoint,
			UnitOfMeasure:     b.UnitOfMeasure,
		})
	}
}

func (s *ledgerService) GetMovement(ctx context.Context, id uuid.UUID) (*model.Movement, error) {
	return s.movements.FindByID(ctx, id)
}

func (s *ledgerService) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]model.Movement, int64, error) {
	return s.movements.List(ctx, filter)
}

func (s *ledgerService) History(filter HistoryFilter) *MovementIterator {
	return newMovementIterator(s.movements, filter)
}
