package repository

import (
	"context"
	"errors"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationRepository interface {
	CreateTx(tx *gorm.DB, r *model.Reservation) error
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Reservation, error)
	UpdateTx(tx *gorm.DB, r *model.Reservation) error

	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// ListExpired returns ACTIVE reservations whose expiry date has passed,
	// oldest first, capped at limit — the sweep input.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	ListByReference(ctx context.Context, referenceType, referenceID string) ([]model.Reservation, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

func (r *reservationRepo) CreateTx(tx *gorm.DB, res *model.Reservation) error {
	return tx.Create(res).Error
}

func (r *reservationRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) UpdateTx(tx *gorm.DB, res *model.Reservation) error {
	return tx.Save(res).Error
}

func (r *reservationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	if limit < 1 {
		limit = 100
	}
	var reservations []model.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiry_date < ?", model.ReservationActive, now).
		Order("expiry_date ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepo) ListByReference(ctx context.Context, referenceType, referenceID string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at ASC").
		Find(&reservations).Error
	return reservations, err
}
