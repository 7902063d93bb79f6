package service

// stubs_test.go — in-memory repository doubles shared by the service tests.
// The stub transaction manager serializes Do calls with a mutex and snapshots
// the store before running the body, so rollback-on-error and concurrency
// scenarios behave the way the real database does.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type memStore struct {
	mu           sync.Mutex
	balances     map[uuid.UUID]model.StockBalance
	movements    map[uuid.UUID]model.Movement
	reservations map[uuid.UUID]model.Reservation
	adjustments  []model.StockAdjustment
	sequences    map[string]int64
	items        map[uuid.UUID]model.CatalogItem
	warehouses   map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{
		balances:     make(map[uuid.UUID]model.StockBalance),
		movements:    make(map[uuid.UUID]model.Movement),
		reservations: make(map[uuid.UUID]model.Reservation),
		sequences:    make(map[string]int64),
		items:        make(map[uuid.UUID]model.CatalogItem),
		warehouses:   make(map[uuid.UUID]bool),
	}
}

type storeSnapshot struct {
	balances     map[uuid.UUID]model.StockBalance
	movements    map[uuid.UUID]model.Movement
	reservations map[uuid.UUID]model.Reservation
	adjustments  []model.StockAdjustment
	sequences    map[string]int64
}

func (s *memStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		balances:     make(map[uuid.UUID]model.StockBalance, len(s.balances)),
		movements:    make(map[uuid.UUID]model.Movement, len(s.movements)),
		reservations: make(map[uuid.UUID]model.Reservation, len(s.reservations)),
		adjustments:  append([]model.StockAdjustment(nil), s.adjustments...),
		sequences:    make(map[string]int64, len(s.sequences)),
	}
	for k, v := range s.balances {
		snap.balances[k] = v
	}
	for k, v := range s.movements {
		snap.movements[k] = v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (s *memStore) restore(snap storeSnapshot) {
	s.balances = snap.balances
	s.movements = snap.movements
	s.reservations = snap.reservations
	s.adjustments = snap.adjustments
	s.sequences = snap.sequences
}

// stubTxManager gives tests real transaction semantics: mutual exclusion
// between concurrent units of work and rollback of every write when the body
// fails.
type stubTxManager struct{ store *memStore }

func (m *stubTxManager) Do(_ context.Context, fn func(tx *gorm.DB) error) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ── Balance repository ───────────────────────────────────────────────────────

type stubBalanceRepo struct{ store *memStore }

func (r *stubBalanceRepo) findPair(warehouseID, productID uuid.UUID) (*model.StockBalance, error) {
	for _, b := range r.store.balances {
		if b.WarehouseID == warehouseID && b.ProductID == productID {
			copy := b
			return &copy, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *stubBalanceRepo) GetForUpdateTx(_ *gorm.DB, warehouseID, productID uuid.UUID) (*model.StockBalance, error) {
	return r.findPair(warehouseID, productID)
}

func (r *stubBalanceRepo) CreateTx(_ *gorm.DB, b *model.StockBalance) error {
	if _, err := r.findPair(b.WarehouseID, b.ProductID); err == nil {
		return model.ErrDuplicateReference
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.store.balances[b.ID] = *b
	return nil
}

// ApplyDeltaTx mirrors the guarded single-statement UPDATE: any component that
// would go negative rejects the whole write.
func (r *stubBalanceRepo) ApplyDeltaTx(_ *gorm.DB, id uuid.UUID, d repository.BalanceDelta) error {
	b, ok := r.store.balances[id]
	if !ok {
		return model.ErrNotFound
	}
	next := b
	next.Quantity = b.Quantity.Add(d.Quantity)
	next.AvailableQuantity = b.AvailableQuantity.Add(d.Available)
	next.ReservedQuantity = b.ReservedQuantity.Add(d.Reserved)
	next.QuarantineQuantity = b.QuarantineQuantity.Add(d.Quarantine)
	next.DamagedQuantity = b.DamagedQuantity.Add(d.Damaged)
	for _, q := range []decimal.Decimal{
		next.Quantity, next.AvailableQuantity, next.ReservedQuantity,
		next.QuarantineQuantity, next.DamagedQuantity,
	} {
		if q.IsNegative() {
			return model.ErrInsufficientStock
		}
	}
	now := time.Now()
	next.Version++
	next.LastMovementDate = &now
	r.store.balances[id] = next
	return nil
}

func (r *stubBalanceRepo) Get(_ context.Context, warehouseID, productID uuid.UUID) (*model.StockBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.findPair(warehouseID, productID)
}

func (r *stubBalanceRepo) List(_ context.Context, filter repository.BalanceFilter) ([]model.StockBalance, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.StockBalance
	for _, b := range r.store.balances {
		if filter.WarehouseID != nil && b.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.ProductID != nil && b.ProductID != *filter.ProductID {
			continue
		}
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (r *stubBalanceRepo) ListBelowReorderPoint(_ context.Context, warehouseID *uuid.UUID) ([]model.StockBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.StockBalance
	for _, b := range r.store.balances {
		if warehouseID != nil && b.WarehouseID != *warehouseID {
			continue
		}
		if b.BelowReorderPoint() {
			out = append(out, b)
		}
	}
	return out, nil
}

// ── Movement repository ──────────────────────────────────────────────────────

type stubMovementRepo struct{ store *memStore }

func (r *stubMovementRepo) CreateTx(_ *gorm.DB, m *model.Movement) error {
	for _, existing := range r.store.movements {
		if existing.ReferenceNumber == m.ReferenceNumber {
			return model.ErrDuplicateReference
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.store.movements[m.ID] = *m
	return nil
}

func (r *stubMovementRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Movement, error) {
	m, ok := r.store.movements[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copy := m
	return &copy, nil
}

func (r *stubMovementRepo) UpdateTx(_ *gorm.DB, m *model.Movement) error {
	if _, ok := r.store.movements[m.ID]; !ok {
		return model.ErrNotFound
	}
	r.store.movements[m.ID] = *m
	return nil
}

func (r *stubMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.movements[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copy := m
	return &copy, nil
}

func (r *stubMovementRepo) matches(m *model.Movement, warehouseID, productID *uuid.UUID, from, to *time.Time) bool {
	if warehouseID != nil && m.WarehouseID != *warehouseID &&
		(m.ToWarehouseID == nil || *m.ToWarehouseID != *warehouseID) {
		return false
	}
	if productID != nil && m.ProductID != *productID {
		return false
	}
	if from != nil && m.MovementDate.Before(*from) {
		return false
	}
	if to != nil && !m.MovementDate.Before(*to) {
		return false
	}
	return true
}

func (r *stubMovementRepo) List(_ context.Context, filter repository.MovementFilter) ([]model.Movement, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Movement
	for _, m := range r.store.movements {
		m := m
		if !r.matches(&m, filter.WarehouseID, filter.ProductID, filter.From, filter.To) {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MovementDate.After(out[j].MovementDate) })
	return out, int64(len(out)), nil
}

func (r *stubMovementRepo) HistoryPage(_ context.Context, req repository.HistoryPageRequest) ([]model.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Movement
	for _, m := range r.store.movements {
		m := m
		if m.Status != model.MovementCompleted {
			continue
		}
		if !r.matches(&m, req.WarehouseID, req.ProductID, req.From, req.To) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MovementDate.Equal(out[j].MovementDate) {
			return out[i].MovementDate.Before(out[j].MovementDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if req.AfterDate != nil && req.AfterID != nil {
		idx := 0
		for idx < len(out) {
			m := &out[idx]
			if m.MovementDate.After(*req.AfterDate) ||
				(m.MovementDate.Equal(*req.AfterDate) && m.ID.String() > req.AfterID.String()) {
				break
			}
			idx++
		}
		out = out[idx:]
	}
	limit := req.Limit
	if limit < 1 {
		limit = 200
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubMovementRepo) CompletedForPair(_ context.Context, warehouseID, productID uuid.UUID) ([]model.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Movement
	for _, m := range r.store.movements {
		if m.Status != model.MovementCompleted || m.ProductID != productID {
			continue
		}
		if m.WarehouseID != warehouseID &&
			(m.ToWarehouseID == nil || *m.ToWarehouseID != warehouseID) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CompletedAt, out[j].CompletedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *stubMovementRepo) SummaryByType(_ context.Context, warehouseID, productID *uuid.UUID, from, to *time.Time) ([]repository.TypeSummary, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	byType := make(map[model.MovementType]*repository.TypeSummary)
	for _, m := range r.store.movements {
		m := m
		if m.Status != model.MovementCompleted {
			continue
		}
		if !r.matches(&m, warehouseID, productID, from, to) {
			continue
		}
		row, ok := byType[m.Type]
		if !ok {
			row = &repository.TypeSummary{Type: m.Type}
			byType[m.Type] = row
		}
		row.Count++
		row.TotalQuantity = row.TotalQuantity.Add(m.Quantity)
	}
	var out []repository.TypeSummary
	for _, row := range byType {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// ── Reservation repository ───────────────────────────────────────────────────

type stubReservationRepo struct{ store *memStore }

func (r *stubReservationRepo) CreateTx(_ *gorm.DB, res *model.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.CreatedAt = time.Now()
	r.store.reservations[res.ID] = *res
	return nil
}

func (r *stubReservationRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Reservation, error) {
	res, ok := r.store.reservations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copy := res
	return &copy, nil
}

func (r *stubReservationRepo) UpdateTx(_ *gorm.DB, res *model.Reservation) error {
	if _, ok := r.store.reservations[res.ID]; !ok {
		return model.ErrNotFound
	}
	r.store.reservations[res.ID] = *res
	return nil
}

func (r *stubReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	res, ok := r.store.reservations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copy := res
	return &copy, nil
}

func (r *stubReservationRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.store.reservations {
		if res.Status == model.ReservationActive && res.ExpiryDate.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubReservationRepo) ListByReference(_ context.Context, referenceType, referenceID string) ([]model.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.store.reservations {
		if res.ReferenceType == referenceType && res.ReferenceID == referenceID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ── Remaining collaborators ──────────────────────────────────────────────────

type stubAdjustmentRepo struct{ store *memStore }

func (r *stubAdjustmentRepo) CreateTx(_ *gorm.DB, a *model.StockAdjustment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	r.store.adjustments = append(r.store.adjustments, *a)
	return nil
}

func (r *stubAdjustmentRepo) ListForPair(_ context.Context, warehouseID, productID uuid.UUID, _ int) ([]model.StockAdjustment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.StockAdjustment
	for _, a := range r.store.adjustments {
		if a.WarehouseID == warehouseID && a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubSequenceRepo struct{ store *memStore }

func (r *stubSequenceRepo) NextTx(_ *gorm.DB, prefix string, year int) (int64, error) {
	key := prefix + "|" + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
	r.store.sequences[key]++
	return r.store.sequences[key], nil
}

type stubCatalogRepo struct{ store *memStore }

func (r *stubCatalogRepo) Resolve(_ context.Context, id uuid.UUID) (*model.CatalogItem, error) {
	item, ok := r.store.items[id]
	if !ok || item.Lifecycle != model.ItemActive {
		return nil, model.ErrUnknownItem
	}
	copy := item
	return &copy, nil
}

func (r *stubCatalogRepo) Create(_ context.Context, item *model.CatalogItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.store.items[item.ID] = *item
	return nil
}

type stubWarehouseRepo struct{ store *memStore }

func (r *stubWarehouseRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return r.store.warehouses[id], nil
}

func (r *stubWarehouseRepo) LocationExists(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return true, nil
}

func (r *stubWarehouseRepo) Create(_ context.Context, w *model.Warehouse) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	r.store.warehouses[w.ID] = true
	return nil
}

// captureNotifier records low stock alerts raised by the ledger.
type captureNotifier struct {
	mu     sync.Mutex
	alerts []LowStockAlert
}

func (n *captureNotifier) NotifyLowStock(_ context.Context, alert LowStockAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	store        *memStore
	ledger       LedgerService
	reservations ReservationService
	reports      ReportService
	notifier     *captureNotifier

	warehouseID  uuid.UUID
	warehouse2ID uuid.UUID
	productID    uuid.UUID
	actorID      uuid.UUID
}

func newFixture() *fixture {
	store := newMemStore()
	tx := &stubTxManager{store: store}
	balances := &stubBalanceRepo{store: store}
	movements := &stubMovementRepo{store: store}
	reservations := &stubReservationRepo{store: store}
	adjustments := &stubAdjustmentRepo{store: store}
	catalog := &stubCatalogRepo{store: store}
	warehouses := &stubWarehouseRepo{store: store}
	numbering := NewNumberingService(&stubSequenceRepo{store: store})
	notifier := &captureNotifier{}

	f := &fixture{
		store:    store,
		notifier: notifier,
		actorID:  uuid.New(),
	}

	w1 := &model.Warehouse{Code: "MAIN", Name: "Main"}
	w2 := &model.Warehouse{Code: "AUX", Name: "Auxiliary"}
	_ = warehouses.Create(context.Background(), w1)
	_ = warehouses.Create(context.Background(), w2)
	f.warehouseID, f.warehouse2ID = w1.ID, w2.ID

	item := &model.CatalogItem{
		Kind:          model.ItemProduct,
		Code:          "PR-001",
		Name:          "Widget",
		UnitOfMeasure: "pcs",
		StandardCost:  decimal.NewFromFloat(2.50),
		Lifecycle:     model.ItemActive,
	}
	_ = catalog.Create(context.Background(), item)
	f.productID = item.ID

	f.ledger = NewLedgerService(tx, balances, movements, reservations, adjustments, catalog, warehouses, numbering, notifier)
	f.reservations = NewReservationService(tx, balances, reservations, warehouses, catalog, numbering)
	f.reports = NewReportService(balances, movements)
	return f
}

func (f *fixture) balance(warehouseID, productID uuid.UUID) *model.StockBalance {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, b := range f.store.balances {
		if b.WarehouseID == warehouseID && b.ProductID == productID {
			copy := b
			return &copy
		}
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func formatRef(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, n)
}

func movementsOfType(t model.MovementType) repository.MovementFilter {
	return repository.MovementFilter{Type: t}
}
