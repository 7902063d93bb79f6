package service

import (
	"context"
	"testing"

	"stockledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_ReplayMatchesStoredBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("50"), "pcs", MovementOpts{})
	require.NoError(t, err)
	_, err = f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("12"), MovementOpts{})
	require.NoError(t, err)
	_, err = f.ledger.RecordTransfer(ctx, f.actorID, f.warehouseID, f.warehouse2ID, f.productID, dec("8"), MovementOpts{})
	require.NoError(t, err)
	_, err = f.ledger.RecordAdjustment(ctx, f.actorID, f.warehouseID, f.productID, dec("-3"), "cycle count", MovementOpts{})
	require.NoError(t, err)

	// Source warehouse: 50 - 12 - 8 - 3 = 27.
	result, err := f.reports.Reconcile(ctx, f.warehouseID, f.productID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.True(t, result.StoredQuantity.Equal(dec("27")))
	assert.True(t, result.ReplayedQuantity.Equal(dec("27")))
	assert.Equal(t, 4, result.CompletedMovements)

	// Destination warehouse sees only the inbound transfer credit leg.
	result, err = f.reports.Reconcile(ctx, f.warehouse2ID, f.productID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.True(t, result.ReplayedQuantity.Equal(dec("8")))
}

func TestReconcile_DetectsDrift(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("10"), "pcs", MovementOpts{})
	require.NoError(t, err)

	// Corrupt the stored row behind the ledger's back.
	f.store.mu.Lock()
	for id, b := range f.store.balances {
		b.Quantity = dec("11")
		b.AvailableQuantity = dec("11")
		f.store.balances[id] = b
	}
	f.store.mu.Unlock()

	result, err := f.reports.Reconcile(ctx, f.warehouseID, f.productID)
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.True(t, result.StoredQuantity.Equal(dec("11")))
	assert.True(t, result.ReplayedQuantity.Equal(dec("10")))
}

func TestMovementSummary_AggregatesCompletedByType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("5"), "pcs", MovementOpts{})
	require.NoError(t, err)
	_, err = f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("7"), "pcs", MovementOpts{})
	require.NoError(t, err)
	_, err = f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("4"), MovementOpts{})
	require.NoError(t, err)
	// Pending movements stay out of the aggregate.
	_, err = f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("1"), MovementOpts{RequireApproval: true})
	require.NoError(t, err)

	rows, err := f.reports.MovementSummary(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byType := make(map[model.MovementType]MovementSummaryRow)
	for _, r := range rows {
		byType[r.Type] = r
	}
	assert.Equal(t, int64(2), byType[model.MovementReceipt].Count)
	assert.True(t, byType[model.MovementReceipt].TotalQuantity.Equal(dec("12")))
	assert.Equal(t, int64(1), byType[model.MovementIssue].Count)
	assert.True(t, byType[model.MovementIssue].TotalQuantity.Equal(dec("4")))
}

func TestBelowReorderPoint(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("3"), "pcs", MovementOpts{})
	require.NoError(t, err)

	f.store.mu.Lock()
	for id, b := range f.store.balances {
		rp := dec("5")
		b.ReorderPoint = &rp
		f.store.balances[id] = b
	}
	f.store.mu.Unlock()

	low, err := f.reports.BelowReorderPoint(ctx, nil)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, f.warehouseID, low[0].WarehouseID)
}
