package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReceipt_CompletesAndCreatesBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	m, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("100"), "pcs", MovementOpts{})
	require.NoError(t, err)

	assert.Equal(t, model.MovementCompleted, m.Status)
	assert.NotNil(t, m.CompletedAt)
	assert.Regexp(t, `^RCT-\d{4}-000001$`, m.ReferenceNumber)
	assert.Equal(t, f.actorID, m.CreatedBy)

	b := f.balance(f.warehouseID, f.productID)
	require.NotNil(t, b)
	assert.True(t, b.Quantity.Equal(dec("100")))
	assert.True(t, b.AvailableQuantity.Equal(dec("100")))
	assert.True(t, b.CheckInvariant())
	assert.NotNil(t, b.LastMovementDate)
}

func TestRecordReceipt_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("0"), "pcs", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("-5"), "pcs", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)
}

func TestRecordReceipt_UnknownTargets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, uuid.New(), f.productID, dec("10"), "pcs", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrUnknownWarehouse)

	_, err = f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, uuid.New(), dec("10"), "pcs", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrUnknownItem)
}

func TestRecordReceipt_DefaultsUnitAndCostFromCatalog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	m, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("5"), "", MovementOpts{})
	require.NoError(t, err)
	assert.Equal(t, "pcs", m.UnitOfMeasure)
	require.NotNil(t, m.UnitCost)
	assert.True(t, m.UnitCost.Equal(decimal.NewFromFloat(2.50)))
}

func TestRecordIssue_InsufficientStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// No balance row at all: nothing was ever received here.
	_, err := f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("5"), MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	_, err = f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("3"), "pcs", MovementOpts{})
	require.NoError(t, err)

	_, err = f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("5"), MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	// The failed issue must leave no trace: balance untouched, no movement row.
	b := f.balance(f.warehouseID, f.productID)
	assert.True(t, b.AvailableQuantity.Equal(dec("3")))
	_, total, err := f.ledger.ListMovements(ctx, movementsOfType(model.MovementIssue))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRecordIssue_DecrementsAvailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("10"), "pcs", MovementOpts{})
	require.NoError(t, err)

	m, err := f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("4"), MovementOpts{})
	require.NoError(t, err)
	assert.Equal(t, model.MovementIssue, m.Type)
	assert.Regexp(t, `^ISS-`, m.ReferenceNumber)

	b := f.balance(f.warehouseID, f.productID)
	assert.True(t, b.Quantity.Equal(dec("6")))
	assert.True(t, b.AvailableQuantity.Equal(dec("6")))
	assert.True(t, b.CheckInvariant())
}

// Two concurrent issues against available=10 where each wants 8: exactly one
// may win, and the loser must see the insufficient stock rejection — never a
// negative balance.
func TestConcurrentIssues_ExactlyOneSucceeds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("10"), "pcs", MovementOpts{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("8"), MovementOpts{})
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, model.ErrInsufficientStock):
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	b := f.balance(f.warehouseID, f.productID)
	assert.True(t, b.AvailableQuantity.Equal(dec("2")))
	assert.False(t, b.AvailableQuantity.IsNegative())
	assert.True(t, b.CheckInvariant())
}

func TestRecordTransfer_MovesStockAtomically(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("10"), "pcs", MovementOpts{})
	require.NoError(t, err)

	m, err := f.ledger.RecordTransfer(ctx, f.actorID, f.warehouseID, f.warehouse2ID, f.productID, dec("4"), MovementOpts{})
	require.NoError(t, err)
	assert.Equal(t, model.MovementTransfer, m.Type)
	require.NotNil(t, m.FromWarehouseID)
	require.NotNil(t, m.ToWarehouseID)
	assert.Equal(t, f.warehouseID, *m.FromWarehouseID)
	assert.Equal(t, f.warehouse2ID, *m.ToWarehouseID)

	src := f.balance(f.warehouseID, f.productID)
	dst := f.balance(f.warehouse2ID, f.productID)
	assert.True(t, src.Quantity.Equal(dec("6")))
	assert.True(t, dst.Quantity.Equal(dec("4")))
	assert.True(t, src.CheckInvariant())
	assert.True(t, dst.CheckInvariant())
}

func TestRecordTransfer_InsufficientRollsBackBothLegs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("3"), "pcs", MovementOpts{})
	require.NoError(t, err)

	_, err = f.ledger.RecordTransfer(ctx, f.actorID, f.warehouseID, f.warehouse2ID, f.productID, dec("5"), MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	// Debit leg untouched and the lazily created destination row rolled back.
	src := f.balance(f.warehouseID, f.productID)
	assert.True(t, src.Quantity.Equal(dec("3")))
	assert.Nil(t, f.balance(f.warehouse2ID, f.productID))
}

func TestRecordTransfer_SameWarehouseRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordTransfer(ctx, f.actorID, f.warehouseID, f.warehouseID, f.productID, dec("1"), MovementOpts{})
	assert.ErrorIs(t, err, model.ErrUnknownWarehouse)
}

func TestRecordAdjustment_WritesAuditTrail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("20"), "pcs", MovementOpts{})
	require.NoError(t, err)

	m, err := f.ledger.RecordAdjustment(ctx, f.actorID, f.warehouseID, f.productID, dec("-3"), "cycle count shortfall", MovementOpts{})
	require.NoError(t, err)
	assert.Equal(t, model.MovementAdjustment, m.Type)
	assert.True(t, m.Quantity.Equal(dec("3")))
	assert.True(t, m.SignedQuantity.Equal(dec("-3")))

	b := f.balance(f.warehouseID, f.productID)
	assert.True(t, b.Quantity.Equal(dec("17")))

	f.store.mu.Lock()
	require.Len(t, f.store.adjustments, 1)
	audit := f.store.adjustments[0]
	f.store.mu.Unlock()
	assert.Equal(t, m.ID, audit.MovementID)
	assert.True(t, audit.QuantityBefore.Equal(dec("20")))
	assert.True(t, audit.QuantityAfter.Equal(dec("17")))
	assert.True(t, audit.Delta.Equal(dec("-3")))
	assert.Equal(t, "cycle count shortfall", audit.Reason)
}

func TestRecordAdjustment_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordAdjustment(ctx, f.actorID, f.warehouseID, f.productID, dec("0"), "reason", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = f.ledger.RecordAdjustment(ctx, f.actorID, f.warehouseID, f.productID, dec("1"), "", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	// Writing more stock out than exists is rejected, not clamped.
	_, err = f.ledger.RecordAdjustment(ctx, f.actorID, f.warehouseID, f.productID, dec("-1"), "shrinkage", MovementOpts{})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
}

func TestApprovalFlow_EffectAppliedOnlyAtCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	m, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("10"), "pcs", MovementOpts{RequireApproval: true})
	require.NoError(t, err)
	assert.Equal(t, model.MovementPending, m.Status)
	assert.Nil(t, f.balance(f.warehouseID, f.productID), "pending movement must not touch stock")

	approver := uuid.New()
	m, err = f.ledger.Approve(ctx, m.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, model.MovementApproved, m.Status)
	require.NotNil(t, m.ApprovedBy)
	assert.Equal(t, approver, *m.ApprovedBy)
	assert.Nil(t, f.balance(f.warehouseID, f.productID))

	m, err = f.ledger.Complete(ctx, m.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, model.MovementCompleted, m.Status)
	require.NotNil(t, m.CompletedAt)

	b := f.balance(f.warehouseID, f.productID)
	require.NotNil(t, b)
	assert.True(t, b.Quantity.Equal(dec("10")))

	// Completion is exactly-once.
	_, err = f.ledger.Complete(ctx, m.ID, approver)
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	b = f.balance(f.warehouseID, f.productID)
	assert.True(t, b.Quantity.Equal(dec("10")))
}

func TestStateMachine_TerminalStatesAreFinal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pending := func() *model.Movement {
		m, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("1"), "pcs", MovementOpts{RequireApproval: true})
		require.NoError(t, err)
		return m
	}

	// PENDING → REJECTED closes the movement.
	m := pending()
	m, err := f.ledger.Reject(ctx, m.ID, f.actorID, "not ordered")
	require.NoError(t, err)
	assert.Equal(t, model.MovementRejected, m.Status)
	assert.Equal(t, "not ordered", m.CancelReason)
	_, err = f.ledger.Approve(ctx, m.ID, f.actorID)
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)

	// PENDING → CANCELLED closes the movement without balance effect.
	m = pending()
	m, err = f.ledger.Cancel(ctx, m.ID, f.actorID, "duplicate entry")
	require.NoError(t, err)
	assert.Equal(t, model.MovementCancelled, m.Status)
	assert.Nil(t, f.balance(f.warehouseID, f.productID))

	// PENDING cannot jump straight to COMPLETED.
	m = pending()
	_, err = f.ledger.Complete(ctx, m.ID, f.actorID)
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
}

func TestLowStockAlert_RaisedAfterCommit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("10"), "pcs", MovementOpts{})
	require.NoError(t, err)

	// Configure a reorder point on the row the way the catalog module would.
	f.store.mu.Lock()
	for id, b := range f.store.balances {
		rp := dec("5")
		b.ReorderPoint = &rp
		f.store.balances[id] = b
	}
	f.store.mu.Unlock()

	_, err = f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("7"), MovementOpts{})
	require.NoError(t, err)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	require.Len(t, f.notifier.alerts, 1)
	alert := f.notifier.alerts[0]
	assert.Equal(t, f.warehouseID, alert.WarehouseID)
	assert.Equal(t, f.productID, alert.ProductID)
	assert.True(t, alert.AvailableQuantity.Equal(dec("3")))
	assert.True(t, alert.ReorderPoint.Equal(dec("5")))
}

func TestReferenceNumbers_SequentialPerPrefix(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	year := time.Now().UTC().Year()
	m1, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("1"), "pcs", MovementOpts{})
	require.NoError(t, err)
	m2, err := f.ledger.RecordReceipt(ctx, f.actorID, f.warehouseID, f.productID, dec("1"), "pcs", MovementOpts{})
	require.NoError(t, err)
	iss, err := f.ledger.RecordIssue(ctx, f.actorID, f.warehouseID, f.productID, dec("1"), MovementOpts{})
	require.NoError(t, err)

	assert.Equal(t, formatRef(PrefixReceipt, year, 1), m1.ReferenceNumber)
	assert.Equal(t, formatRef(PrefixReceipt, year, 2), m2.ReferenceNumber)
	// Each prefix counts independently.
	assert.Equal(t, formatRef(PrefixIssue, year, 1), iss.ReferenceNumber)
}
