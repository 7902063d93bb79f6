package repository

import (
	"gorm.io/gorm"
)

// SequenceRepository issues strictly increasing, gap-free-per-commit values
// scoped by (prefix, year). The increment is a single atomic upsert — counting
// existing rows would race under concurrent callers.
type SequenceRepository interface {
	NextTx(tx *gorm.DB, prefix string, year int) (int64, error)
}

type sequenceRepo struct{ db *gorm.DB }

func NewSequenceRepository(db *gorm.DB) SequenceRepository { return &sequenceRepo{db: db} }

func (r *sequenceRepo) NextTx(tx *gorm.DB, prefix string, year int) (int64, error) {
	// ON CONFLICT DO UPDATE takes the row lock, so two concurrent callers
	// serialize here and can never observe the same value.
	var next int64
	err := tx.Raw(`
		INSERT INTO sequences (prefix, year, last_value)
		VALUES (?, ?, 1)
		ON CONFLICT (prefix, year)
		DO UPDATE SET last_value = sequences.last_value + 1
		RETURNING last_value`, prefix, year).Scan(&next).Error
	return next, err
}
