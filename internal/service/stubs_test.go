package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory repository stubs ────────────────────────────────────────────────

type stubProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
	// staleWrites makes the next n CompareAndSetStockTx calls lose the race.
	staleWrites int
	casCalls    int
}

func newStubProductRepo(ps ...*model.Product) *stubProductRepo {
	r := &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
	for _, p := range ps {
		r.products[p.ID] = p
	}
	return r
}

func (r *stubProductRepo) get(ownerID, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok || p.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) List(_ context.Context, ownerID uuid.UUID) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) FindByID(_ context.Context, ownerID, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(ownerID, id)
}

func (r *stubProductRepo) FindByIDTx(_ *gorm.DB, ownerID, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(ownerID, id)
}

func (r *stubProductRepo) Insert(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.products[p.ID]
	if !ok || cur.OwnerID != p.OwnerID {
		return repository.ErrNotFound
	}
	stock, version := cur.Stock, cur.Version
	cp := *p
	cp.Stock, cp.Version = stock, version
	r.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.get(ownerID, id); err != nil {
		return err
	}
	delete(r.products, id)
	return nil
}

func (r *stubProductRepo) UpsertMany(_ context.Context, ownerID uuid.UUID, ps []model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range ps {
		p := ps[i]
		p.OwnerID = ownerID
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if cur, ok := r.products[p.ID]; ok && cur.OwnerID != ownerID {
			continue
		}
		r.products[p.ID] = &p
	}
	return nil
}

func (r *stubProductRepo) CompareAndSetStockTx(_ *gorm.DB, ownerID, id uuid.UUID, expectedVersion, newStock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	p, ok := r.products[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	if r.staleWrites > 0 {
		r.staleWrites--
		p.Version++
		return repository.ErrStaleVersion
	}
	if p.Version != expectedVersion {
		return repository.ErrStaleVersion
	}
	p.Stock = newStock
	p.Version++
	return nil
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

func (r *stubProductRepo) stock(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

type stubMovementRepo struct {
	mu        sync.Mutex
	movements []model.StockMovement
}

func (r *stubMovementRepo) CreateTx(_ *gorm.DB, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubMovementRepo) ListByProduct(_ context.Context, ownerID, productID uuid.UUID, limit int) ([]model.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.OwnerID == ownerID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubCustomerRepo struct {
	customers map[uuid.UUID]*model.Customer
	inserted  []model.Customer
}

func newStubCustomerRepo(cs ...*model.Customer) *stubCustomerRepo {
	r := &stubCustomerRepo{customers: make(map[uuid.UUID]*model.Customer)}
	for _, c := range cs {
		r.customers[c.ID] = c
	}
	return r
}

func (r *stubCustomerRepo) List(_ context.Context, ownerID uuid.UUID) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range r.customers {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubCustomerRepo) FindByID(_ context.Context, ownerID, id uuid.UUID) (*model.Customer, error) {
	c, ok := r.customers[id]
	if !ok || c.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCustomerRepo) Insert(_ context.Context, c *model.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.customers[c.ID] = &cp
	r.inserted = append(r.inserted, cp)
	return nil
}

func (r *stubCustomerRepo) Update(_ context.Context, c *model.Customer) error {
	if _, ok := r.customers[c.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *stubCustomerRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	c, ok := r.customers[id]
	if !ok || c.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *stubCustomerRepo) UpsertMany(_ context.Context, ownerID uuid.UUID, cs []model.Customer) error {
	for i := range cs {
		c := cs[i]
		c.OwnerID = ownerID
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		r.customers[c.ID] = &c
	}
	return nil
}

type stubTxRepo struct {
	txs       []model.Transaction
	insertErr error
	findErr   error
}

func (r *stubTxRepo) List(_ context.Context, ownerID uuid.UUID) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range r.txs {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *stubTxRepo) ListByCustomer(_ context.Context, ownerID, customerID uuid.UUID) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range r.txs {
		if t.OwnerID == ownerID && t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubTxRepo) ListWithWarranty(_ context.Context, ownerID uuid.UUID) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range r.txs {
		if t.OwnerID == ownerID && t.WarrantyEnabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubTxRepo) FindByID(_ context.Context, ownerID, id uuid.UUID) (*model.Transaction, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := range r.txs {
		if r.txs[i].ID == id && r.txs[i].OwnerID == ownerID {
			cp := r.txs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubTxRepo) FindReversalOf(_ context.Context, ownerID, id uuid.UUID) (*model.Transaction, error) {
	for i := range r.txs {
		t := r.txs[i]
		if t.OwnerID == ownerID && t.ReversesID != nil && *t.ReversesID == id {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubTxRepo) CountByProduct(_ context.Context, ownerID, productID uuid.UUID) (int64, error) {
	var n int64
	for _, t := range r.txs {
		if t.OwnerID != ownerID {
			continue
		}
		if t.ProductSoldID == productID || (t.ProductTradeInID != nil && *t.ProductTradeInID == productID) {
			n++
		}
	}
	return n, nil
}

func (r *stubTxRepo) Insert(_ context.Context, t *model.Transaction) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if t.ReversesID != nil {
		for _, x := range r.txs {
			if x.ReversesID != nil && *x.ReversesID == *t.ReversesID {
				return repository.ErrAlreadyExists
			}
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.txs = append(r.txs, *t)
	return nil
}

func (r *stubTxRepo) UpsertMany(_ context.Context, ownerID uuid.UUID, txs []model.Transaction) error {
	existing := make(map[uuid.UUID]bool, len(r.txs))
	for _, t := range r.txs {
		existing[t.ID] = true
	}
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if existing[t.ID] {
			continue
		}
		t.OwnerID = ownerID
		r.txs = append(r.txs, t)
	}
	return nil
}

type stubSettingsRepo struct {
	rows  map[uuid.UUID]model.Settings
	saves int
}

func newStubSettingsRepo() *stubSettingsRepo {
	return &stubSettingsRepo{rows: make(map[uuid.UUID]model.Settings)}
}

func (r *stubSettingsRepo) Get(_ context.Context, ownerID uuid.UUID) (*model.Settings, error) {
	s, ok := r.rows[ownerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *stubSettingsRepo) Save(_ context.Context, s *model.Settings) error {
	r.saves++
	r.rows[s.OwnerID] = *s
	return nil
}

type stubReconRepo struct {
	rows map[uuid.UUID]*model.StockReconciliation
}

func newStubReconRepo() *stubReconRepo {
	return &stubReconRepo{rows: make(map[uuid.UUID]*model.StockReconciliation)}
}

func (r *stubReconRepo) Create(_ context.Context, rec *model.StockReconciliation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	r.rows[rec.ID] = &cp
	return nil
}

func (r *stubReconRepo) FindByID(_ context.Context, id uuid.UUID) (*model.StockReconciliation, error) {
	rec, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *stubReconRepo) ListByTransaction(_ context.Context, ownerID, transactionID uuid.UUID) ([]model.StockReconciliation, error) {
	var out []model.StockReconciliation
	for _, rec := range r.rows {
		if rec.OwnerID == ownerID && rec.TransactionID == transactionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *stubReconRepo) ListDue(_ context.Context, now time.Time, limit int) ([]model.StockReconciliation, error) {
	var out []model.StockReconciliation
	for _, rec := range r.rows {
		if rec.Status == model.ReconciliationPending && rec.NextRetryAt != nil && !rec.NextRetryAt.After(now) {
			out = append(out, *rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubReconRepo) Claim(_ context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	rec, ok := r.rows[id]
	if !ok || rec.Status != model.ReconciliationPending || rec.NextRetryAt == nil || rec.NextRetryAt.After(now) {
		return false, nil
	}
	until := now.Add(lease)
	rec.NextRetryAt = &until
	rec.UpdatedAt = now
	return true, nil
}

func (r *stubReconRepo) Update(_ context.Context, rec *model.StockReconciliation) error {
	cp := *rec
	r.rows[rec.ID] = &cp
	return nil
}

type stubQueue struct {
	enqueued []uuid.UUID
	err      error
}

func (q *stubQueue) EnqueueStockReconciliation(_ context.Context, id uuid.UUID) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, id)
	return nil
}

// failingLedger fails the listed product ids and delegates the rest.
type failingLedger struct {
	StockLedger
	fail map[uuid.UUID]bool
}

var errStoreDown = errors.New("store unavailable")

func (l *failingLedger) DecrementSold(ctx context.Context, ownerID, productID uuid.UUID, ref *uuid.UUID) (*model.Product, error) {
	if l.fail[productID] {
		return nil, errStoreDown
	}
	return l.StockLedger.DecrementSold(ctx, ownerID, productID, ref)
}

func (l *failingLedger) IncrementTradeIn(ctx context.Context, ownerID, productID uuid.UUID, ref *uuid.UUID) (*model.Product, error) {
	if l.fail[productID] {
		return nil, errStoreDown
	}
	return l.StockLedger.IncrementTradeIn(ctx, ownerID, productID, ref)
}

func (l *failingLedger) Adjust(ctx context.Context, ownerID, productID uuid.UUID, delta int, kind, reason string, ref *uuid.UUID) (*model.Product, error) {
	if l.fail[productID] {
		return nil, errStoreDown
	}
	return l.StockLedger.Adjust(ctx, ownerID, productID, delta, kind, reason, ref)
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

var fixedNow = time.Date(2024, 1, 20, 15, 0, 0, 0, time.UTC)

func usd(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newProduct(owner uuid.UUID, name, storage string, stock int, sell, tradein string) *model.Product {
	return &model.Product{
		ID:              uuid.New(),
		OwnerID:         owner,
		SKU:             "SKU-" + storage,
		Model:           name,
		Storage:         storage,
		Condition:       model.ConditionLikeNew,
		Battery:         90,
		Stock:           stock,
		PriceSellUSD:    usd(sell),
		PriceTradeInUSD: usd(tradein),
	}
}

func newCustomer(owner uuid.UUID, name string) *model.Customer {
	return &model.Customer{ID: uuid.New(), OwnerID: owner, FirstName: name, Phone: "1155550000"}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

var (
	_ repository.ProductRepository             = (*stubProductRepo)(nil)
	_ repository.StockMovementRepository       = (*stubMovementRepo)(nil)
	_ repository.CustomerRepository            = (*stubCustomerRepo)(nil)
	_ repository.TransactionRepository         = (*stubTxRepo)(nil)
	_ repository.SettingsRepository            = (*stubSettingsRepo)(nil)
	_ repository.StockReconciliationRepository = (*stubReconRepo)(nil)
	_ ReconciliationQueue                      = (*stubQueue)(nil)
)
