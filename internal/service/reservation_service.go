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

// ReservationService is the reservation manager: it tracks soft-allocated
// stock and owns reservation rows, but every quantity effect on a balance row
// goes through the same guarded-delta primitive the ledger engine uses —
// reservations never write balances directly.
type ReservationService interface {
	Reserve(ctx context.Context, actorID, warehouseID, productID uuid.UUID, quantity decimal.Decimal, referenceType, referenceID string, expiry time.Time) (*model.Reservation, error)
	Fulfill(ctx context.Context, reservationID uuid.UUID, quantity decimal.Decimal) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error)
	// ExpireDue sweeps ACTIVE reservations past their expiry date, returning
	// each one's remaining quantity to available stock. Returns how many were
	// expired this pass.
	ExpireDue(ctx context.Context, now time.Time) (int, error)

	Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListByReference(ctx context.Context, referenceType, referenceID string) ([]model.Reservation, error)
}

type reservationService struct {
	tx           repository.TxManager
	balances     repository.StockBalanceRepository
	reservations repository.ReservationRepository
	warehouses   repository.WarehouseRepository
	catalog      repository.CatalogRepository
	numbering    NumberingService
	now          func() time.Time
}

func NewReservationService(
	tx repository.TxManager,
	balances repository.StockBalanceRepository,
	reservations repository.ReservationRepository,
	warehouses repository.WarehouseRepository,
	catalog repository.CatalogRepository,
	numbering NumberingService,
) ReservationService {
	return &reservationService{
		tx:           tx,
		balances:     balances,
		reservations: reservations,
		warehouses:   warehouses,
		catalog:      catalog,
		numbering:    numbering,
		now:          time.Now,
	}
}

func (s *reservationService) Reserve(ctx context.Context, actorID, warehouseID, productID uuid.UUID, quantity decimal.Decimal, referenceType, referenceID string, expiry time.Time) (*model.Reservation, error) {
	if !quantity.IsPositive() {
		return nil, model.ErrInvalidQuantity
	}
	if referenceType == "" || referenceID == "" {
		return nil, fmt.Errorf("%w: reservation requires a business reference", model.ErrInvalidQuantity)
	}
	ok, err := s.warehouses.Exists(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrUnknownWarehouse
	}
	if _, err := s.catalog.Resolve(ctx, productID); err != nil {
		return nil, err
	}
	if expiry.IsZero() {
		return nil, fmt.Errorf("%w: reservation requires an expiry date", model.ErrInvalidQuantity)
	}

	res := &model.Reservation{
		ID:               uuid.New(),
		WarehouseID:      warehouseID,
		ProductID:        productID,
		ReservedQuantity: quantity,
		Status:           model.ReservationActive,
		ReferenceType:    referenceType,
		ReferenceID:      referenceID,
		ExpiryDate:       expiry,
		CreatedBy:        actorID,
	}

	err = withRetry(ctx, func() error {
		return s.tx.Do(ctx, func(tx *gorm.DB) error {
			number, err := s.numbering.NextTx(tx, PrefixReservation)
			if err != nil {
				return err
			}
			res.ReservationNumber = number

			b, err := s.balances.GetForUpdateTx(tx, warehouseID, productID)
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrInsufficientStock
			}
			if err != nil {
				return err
			}
			if b.AvailableQuantity.LessThan(quantity) {
				return model.ErrInsufficientStock
			}
			delta := repository.BalanceDelta{Available: quantity.Neg(), Reserved: quantity}
			if err := s.balances.ApplyDeltaTx(tx, b.ID, delta); err != nil {
				return err
			}
			return s.reservations.CreateTx(tx, res)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("reservation", res.ReservationNumber).
		Str("warehouse_id", warehouseID.String()).
		Str("product_id", productID.String()).
		Str("quantity", quantity.String()).
		Str("reference", referenceType+"/"+referenceID).
		Msg("stock reserved")
	return res, nil
}

// Fulfill advances the fulfilled counter only. The physical release of
// reserved stock happens when the corresponding issue is recorded through the
// ledger engine, which decrements reserved and total quantity together.
func (s *reservationService) Fulfill(ctx context.Context, reservationID uuid.UUID, quantity decimal.Decimal) (*model.Reservation, error) {
	if !quantity.IsPositive() {
		return nil, model.ErrInvalidQuantity
	}
	var result *model.Reservation
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		res, err := s.reservations.FindByIDForUpdateTx(tx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive {
			return fmt.Errorf("%w: reservation is %s", model.ErrIllegalStateTransition, res.Status)
		}
		if quantity.GreaterThan(res.RemainingQuantity()) {
			return fmt.Errorf("%w: quantity exceeds remaining reservation", model.ErrInvalidQuantity)
		}
		res.FulfilledQuantity = res.FulfilledQuantity.Add(quantity)
		if res.RemainingQuantity().IsZero() {
			res.Status = model.ReservationFulfilled
		}
		if err := s.reservations.UpdateTx(tx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel returns the remaining quantity to available stock. Idempotent:
// cancelling an already-terminal reservation is a no-effect success.
func (s *reservationService) Cancel(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error) {
	return s.release(ctx, reservationID, model.ReservationCancelled)
}

func (s *reservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.reservations.ListExpired(ctx, now, 200)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		if _, err := s.release(ctx, due[i].ID, model.ReservationExpired); err != nil {
			// Log and keep sweeping; the next pass retries this one.
			log.Error().Err(err).
				Str("reservation_id", due[i].ID.String()).
				Msg("reservation expiry failed")
			continue
		}
		expired++
	}
	return expired, nil
}

// release is the shared cancel/expire path: give the remaining quantity back
// to available, drop it from reserved, mark the terminal status.
func (s *reservationService) release(ctx context.Context, reservationID uuid.UUID, terminal model.ReservationStatus) (*model.Reservation, error) {
	var result *model.Reservation
	err := withRetry(ctx, func() error {
		return s.tx.Do(ctx, func(tx *gorm.DB) error {
			res, err := s.reservations.FindByIDForUpdateTx(tx, reservationID)
			if err != nil {
				return err
			}
			if res.Status.Terminal() {
				// Already released — no-effect success, not an error.
				result = res
				return nil
			}

			remaining := res.RemainingQuantity()
			if remaining.IsPositive() {
				b, err := s.balances.GetForUpdateTx(tx, res.WarehouseID, res.ProductID)
				if err != nil {
					return err
				}
				delta := repository.BalanceDelta{Available: remaining, Reserved: remaining.Neg()}
				if err := s.balances.ApplyDeltaTx(tx, b.ID, delta); err != nil {
					return err
				}
			}

			res.Status = terminal
			if err := s.reservations.UpdateTx(tx, res); err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if result != nil && result.Status == terminal {
		log.Info().
			Str("reservation", result.ReservationNumber).
			Str("status", string(terminal)).
			Str("returned", result.RemainingQuantity().String()).
			Msg("reservation released")
	}
	return result, nil
}

func (s *reservationService) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.reservations.FindByID(ctx, id)
}

func (s *reservationService) ListByReference(ctx context.Context, referenceType, referenceID string) ([]model.Reservation, error) {
	return s.reservations.ListByReference(ctx, referenceType, referenceID)
}
