package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/model"

	"gorm.io/gorm"
)

// TxManager runs a function inside one atomic unit of work. All ledger
// mutations (balance update + movement append + audit record) go through a
// single Do call so they commit or roll back together.
//
// The test suite substitutes a mutex-backed implementation, which also gives
// unit tests honest serialization semantics for concurrency scenarios.
type TxManager interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DefaultLockTimeout bounds how long a transaction waits for a contended
// balance row before surfacing ErrBusy instead of blocking indefinitely.
const DefaultLockTimeout = 3 * time.Second

type gormTxManager struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db, lockTimeout: DefaultLockTimeout}
}

func (m *gormTxManager) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SET LOCAL scopes the timeout to this transaction only. Postgres does
		// not accept bind parameters in SET, so the value is formatted in.
		timeoutMs := int(m.lockTimeout / time.Millisecond)
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMs)).Error; err != nil {
			return err
		}
		return fn(tx)
	})
	return mapLockError(err)
}

// mapLockError translates storage-level concurrency failures into the domain
// taxonomy so callers can retry appropriately.
func mapLockError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	// Postgres SQLSTATE 55P03: canceled due to lock_timeout.
	case strings.Contains(msg, "55P03") || strings.Contains(msg, "lock timeout"):
		return model.ErrBusy
	// SQLSTATE 40001/40P01: serialization failure / deadlock — retryable.
	case strings.Contains(msg, "40001") || strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock detected"):
		return model.ErrBusy
	case strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "23505"):
		return model.ErrDuplicateReference
	}
	return err
}
