package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// HistoryFilter selects a completed-movement history stream, ordered by
// (movement_date, id) ascending.
type HistoryFilter struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
	From        *time.Time
	To          *time.Time
	PageSize    int
	// Cursor resumes a previous iteration (see MovementIterator.Cursor).
	Cursor string
}

// MovementIterator is a lazy, finite, restartable walk over completed
// movements. Pages are fetched on demand with keyset pagination, so the
// sequence never loads the whole history and never skips or repeats records
// when new movements land behind the cursor.
type MovementIterator struct {
	repo   repository.MovementRepository
	filter HistoryFilter

	afterDate *time.Time
	afterID   *uuid.UUID
	buf       []model.Movement
	idx       int
	done      bool
	err       error
}

func newMovementIterator(repo repository.MovementRepository, filter HistoryFilter) *MovementIterator {
	it := &MovementIterator{repo: repo, filter: filter}
	if filter.Cursor != "" {
		date, id, err := decodeCursor(filter.Cursor)
		if err != nil {
			it.err = err
			it.done = true
			return it
		}
		it.afterDate, it.afterID = &date, &id
	}
	return it
}

// Next returns the next completed movement, fetching a page when the buffer is
// exhausted. The second return is false when the stream ends or fails; check
// Err afterwards.
func (it *MovementIterator) Next(ctx context.Context) (*model.Movement, bool) {
	if it.done && it.idx >= len(it.buf) {
		return nil, false
	}
	if it.idx >= len(it.buf) {
		if !it.fetch(ctx) {
			return nil, false
		}
	}
	m := &it.buf[it.idx]
	it.idx++
	it.afterDate, it.afterID = &m.MovementDate, &m.ID
	return m, true
}

func (it *MovementIterator) fetch(ctx context.Context) bool {
	size := it.filter.PageSize
	if size < 1 {
		size = 200
	}
	page, err := it.repo.HistoryPage(ctx, repository.HistoryPageRequest{
		WarehouseID: it.filter.WarehouseID,
		ProductID:   it.filter.ProductID,
		From:        it.filter.From,
		To:          it.filter.To,
		AfterDate:   it.afterDate,
		AfterID:     it.afterID,
		Limit:       size,
	})
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if len(page) == 0 {
		it.done = true
		return false
	}
	it.buf = page
	it.idx = 0
	if len(page) < size {
		it.done = true
	}
	return true
}

// Err reports the first error the iteration hit, if any.
func (it *MovementIterator) Err() error { return it.err }

// Cursor returns an opaque resume token for the current position. Feeding it
// back through HistoryFilter.Cursor restarts the stream exactly after the last
// movement returned by Next.
func (it *MovementIterator) Cursor() string {
	if it.afterDate == nil || it.afterID == nil {
		return ""
	}
	return encodeCursor(*it.afterDate, *it.afterID)
}

func encodeCursor(date time.Time, id uuid.UUID) string {
	return date.UTC().Format(time.RFC3339Nano) + "|" + id.String()
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed history cursor")
	}
	date, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed history cursor date: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed history cursor id: %w", err)
	}
	return date, id, nil
}
