package repository

import (
	"context"
	"errors"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository is the read-only collaborator interface the ledger uses to
// resolve item identity and cost data. The catalog module owns writes.
type CatalogRepository interface {
	Resolve(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error)
	Create(ctx context.Context, item *model.CatalogItem) error // seed tooling only
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) Resolve(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error) {
	var item model.CatalogItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND lifecycle = ?", id, model.ItemActive).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrUnknownItem
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *catalogRepo) Create(ctx context.Context, item *model.CatalogItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}
