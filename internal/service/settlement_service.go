package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/dto"
	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imanager_settlements_total",
	Help: "Settlements processed, by operation and outcome",
}, []string{"operation", "outcome"})

// ReconciliationQueue hands failed post-commit stock writes to the
// background workers. Implemented by worker.Dispatcher.
type ReconciliationQueue interface {
	EnqueueStockReconciliation(ctx context.Context, reconciliationID uuid.UUID) error
}

type SettlementService interface {
	// Settle commits a sale, optionally paired with a trade-in. On a partial
	// commit it returns the committed settlement together with an error
	// matching ErrPartialCommit.
	Settle(ctx context.Context, actorID uuid.UUID, req dto.SettlementRequest) (*dto.SettlementResponse, error)
	// Reverse records a new transaction that cancels id and restores stock.
	// Partial commits are reported the same way as Settle.
	Reverse(ctx context.Context, actorID, id uuid.UUID, req dto.ReverseSettlementRequest) (*dto.SettlementResponse, error)
	List(ctx context.Context, actorID uuid.UUID) ([]dto.TransactionRecord, error)
	Get(ctx context.Context, actorID, id uuid.UUID) (*dto.SettlementResponse, error)
	// Import inserts settlement rows whose id is not yet stored. It never
	// touches stock.
	Import(ctx context.Context, actorID uuid.UUID, req dto.ImportSettlementsRequest) (int, error)
}

type settlementService struct {
	txs       repository.TransactionRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	recons    repository.StockReconciliationRepository
	settings  SettingsService
	ledger    StockLedger
	queue     ReconciliationQueue
	now       func() time.Time
}

func NewSettlementService(
	txs repository.TransactionRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	recons repository.StockReconciliationRepository,
	settings SettingsService,
	ledger StockLedger,
	queue ReconciliationQueue,
) SettlementService {
	return &settlementService{
		txs:       txs,
		products:  products,
		customers: customers,
		recons:    recons,
		settings:  settings,
		ledger:    ledger,
		queue:     queue,
		now:       time.Now,
	}
}

// ── Settle ────────────────────────────────────────────────────────────────────
//   0. Check preconditions (no writes on failure)
//   1. Snapshot settings (exchange rate, default warranty)
//   2. Differential
//   3. Warranty term
//   4. Balance disposition
//   5. Insert transaction (quick-add customer first, if any)
//   6. Decrement sold product
//   7. Increment trade-in product, when intake was requested
//   8. Re-read committed state

func (s *settlementService) Settle(ctx context.Context, actorID uuid.UUID, req dto.SettlementRequest) (resp *dto.SettlementResponse, err error) {
	defer func() { settlementsTotal.WithLabelValues("settle", outcomeOf(err)).Inc() }()

	if actorID == uuid.Nil {
		return nil, unauthenticatedError()
	}

	fields := map[string]string{}

	customer, err := s.resolveCustomer(ctx, actorID, req, fields)
	if err != nil {
		return nil, err
	}
	sold, err := s.resolveProduct(ctx, actorID, "product_sold_id", req.ProductSoldID, fields)
	if err != nil {
		return nil, err
	}
	if req.ProductSoldID == "" {
		fields["product_sold_id"] = "seleccione el equipo vendido"
	} else if sold != nil && sold.Stock <= 0 {
		fields["product_sold_id"] = fmt.Sprintf("%s no tiene stock disponible", sold.DisplayName())
	}
	var tradeIn *model.Product
	if req.ProductTradeInID != nil && *req.ProductTradeInID != "" {
		tradeIn, err = s.resolveProduct(ctx, actorID, "product_tradein_id", *req.ProductTradeInID, fields)
		if err != nil {
			return nil, err
		}
	}
	if req.WarrantyDays != nil && *req.WarrantyDays < 0 {
		fields["warranty_days"] = "no puede ser negativo"
	}
	if req.CreditRedeemedUSD.IsNegative() {
		fields["credit_redeemed_usd"] = "no puede ser negativo"
	}
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	// 1. Settings snapshot
	settings, err := s.settings.Fresh(ctx, actorID)
	if err != nil {
		return nil, persistenceError(StepLoadSettings, err)
	}

	// 2. Differential
	adjustment := cents(req.AdjustmentUSD)
	var tradeInPrice *decimal.Decimal
	if tradeIn != nil {
		p := tradeIn.PriceTradeInUSD
		tradeInPrice = &p
	}
	final := Differential(sold.PriceSellUSD, tradeInPrice, adjustment)

	// 3. Warranty
	now := s.now()
	days := settings.DefaultWarrantyDays
	if req.WarrantyDays != nil {
		days = *req.WarrantyDays
	}
	term := WarrantyFor(req.WarrantyEnabled == nil || *req.WarrantyEnabled, days, now)

	// 4. Disposition
	action, err := ResolveBalanceAction(final, model.BalanceAction(req.BalanceAction))
	if err != nil {
		return nil, err
	}

	redeemed := cents(req.CreditRedeemedUSD)
	if redeemed.IsPositive() {
		if customer == nil {
			return nil, validationError(map[string]string{
				"credit_redeemed_usd": "solo un cliente existente puede usar crédito",
			})
		}
		history, err := s.txs.ListByCustomer(ctx, actorID, customer.ID)
		if err != nil {
			return nil, persistenceError(StepLoadCredit, err)
		}
		if bal := ComputeCreditBalance(history); redeemed.GreaterThan(bal.Balance) {
			return nil, validationError(map[string]string{
				"credit_redeemed_usd": fmt.Sprintf("supera el crédito disponible (%s USD)", bal.Balance.StringFixed(2)),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// From here on the settlement runs to completion even if the caller
	// goes away: a commit must not stop between its writes.
	wctx := context.WithoutCancel(ctx)

	// 5. Insert
	if customer == nil {
		customer = &model.Customer{
			OwnerID:   actorID,
			FirstName: strings.TrimSpace(req.QuickCustomer.FirstName),
			LastName:  strings.TrimSpace(req.QuickCustomer.LastName),
			Phone:     strings.TrimSpace(req.QuickCustomer.Phone),
			Notes:     model.QuickAddNote,
		}
		if err := s.customers.Insert(wctx, customer); err != nil {
			return nil, persistenceError(StepCreateCustomer, err)
		}
	}

	intake := tradeIn != nil && (req.AddTradeInToStock == nil || *req.AddTradeInToStock)
	t := &model.Transaction{
		ID:                  uuid.New(),
		OwnerID:             actorID,
		Date:                now,
		ProductSoldID:       sold.ID,
		ProductSoldName:     sold.DisplayName(),
		SellUSD:             sold.PriceSellUSD,
		TradeInUSD:          decimal.Zero,
		AdjustmentUSD:       adjustment,
		FinalUSD:            final,
		USDRateSnapshot:     settings.USDRate,
		Notes:               req.Notes,
		BalanceAction:       action,
		CustomerID:          customer.ID,
		TradeInAddedToStock: intake,
		CreditRedeemedUSD:   redeemed,
	}
	if tradeIn != nil {
		name := tradeIn.DisplayName()
		t.ProductTradeInID = &tradeIn.ID
		t.ProductTradeInName = &name
		t.TradeInUSD = tradeIn.PriceTradeInUSD
	}
	if term != nil {
		t.WarrantyEnabled = true
		t.WarrantyDays = &term.Days
		t.WarrantyStart = &term.Start
		t.WarrantyEnd = &term.End
	}
	if err := s.txs.Insert(wctx, t); err != nil {
		return nil, persistenceError(StepInsertTx, err)
	}

	// 6–7. Stock writes are independent of each other and of the insert.
	var failed []string
	var causes []error
	if _, err := s.ledger.DecrementSold(wctx, actorID, sold.ID, &t.ID); err != nil {
		failed = append(failed, StepDecrementSold)
		causes = append(causes, err)
		s.scheduleReconciliation(wctx, t, sold.ID, model.OpDecrementSold, err)
	}
	if intake {
		if _, err := s.ledger.IncrementTradeIn(wctx, actorID, tradeIn.ID, &t.ID); err != nil {
			failed = append(failed, StepIncrementTradeIn)
			causes = append(causes, err)
			s.scheduleReconciliation(wctx, t, tradeIn.ID, model.OpIncrementTradeIn, err)
		}
	}

	// 8. Refresh
	return s.finish(wctx, actorID, t, failed, causes)
}

// resolveCustomer returns the selected customer, or nil with no field error
// when a valid quick-add payload was given instead.
func (s *settlementService) resolveCustomer(ctx context.Context, actorID uuid.UUID, req dto.SettlementRequest, fields map[string]string) (*model.Customer, error) {
	switch {
	case req.CustomerID != nil && *req.CustomerID != "":
		id, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			fields["customer_id"] = "identificador inválido"
			return nil, nil
		}
		c, err := s.customers.FindByID(ctx, actorID, id)
		if errors.Is(err, repository.ErrNotFound) {
			fields["customer_id"] = "el cliente no existe"
			return nil, nil
		}
		if err != nil {
			return nil, persistenceError(StepLoadCustomer, err)
		}
		return c, nil
	case req.QuickCustomer != nil:
		if strings.TrimSpace(req.QuickCustomer.FirstName) == "" {
			fields["quick_customer.first_name"] = "el nombre es obligatorio"
		}
		if strings.TrimSpace(req.QuickCustomer.Phone) == "" {
			fields["quick_customer.phone"] = "el teléfono es obligatorio"
		}
		return nil, nil
	}
	fields["customer_id"] = "seleccione un cliente"
	return nil, nil
}

func (s *settlementService) resolveProduct(ctx context.Context, actorID uuid.UUID, field, raw string, fields map[string]string) (*model.Product, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		fields[field] = "identificador inválido"
		return nil, nil
	}
	p, err := s.products.FindByID(ctx, actorID, id)
	if errors.Is(err, repository.ErrNotFound) {
		fields[field] = "el producto no existe"
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError(StepLoadProducts, err)
	}
	return p, nil
}

// ── Reverse ───────────────────────────────────────────────────────────────────

func (s *settlementService) Reverse(ctx context.Context, actorID, id uuid.UUID, req dto.ReverseSettlementRequest) (resp *dto.SettlementResponse, err error) {
	defer func() { settlementsTotal.WithLabelValues("reverse", outcomeOf(err)).Inc() }()

	if actorID == uuid.Nil {
		return nil, unauthenticatedError()
	}

	orig, err := s.txs.FindByID(ctx, actorID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("transacción %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError(StepLoadOriginal, err)
	}
	if orig.ReversesID != nil {
		return nil, validationError(map[string]string{"id": "una reversión no puede revertirse"})
	}
	_, err = s.txs.FindReversalOf(ctx, actorID, id)
	switch {
	case err == nil:
		return nil, validationError(map[string]string{"id": "la transacción ya fue revertida"})
	case !errors.Is(err, repository.ErrNotFound):
		return nil, persistenceError(StepLoadOriginal, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx := context.WithoutCancel(ctx)

	final := orig.FinalUSD.Neg()
	action := model.BalanceNone
	if final.IsNegative() {
		action = model.BalanceZero
	}
	notes := req.Notes
	if notes == "" {
		notes = "Reversión de la transacción " + orig.ID.String()
	}
	rev := &model.Transaction{
		ID:                  uuid.New(),
		OwnerID:             actorID,
		Date:                s.now(),
		ProductSoldID:       orig.ProductSoldID,
		ProductSoldName:     orig.ProductSoldName,
		ProductTradeInID:    orig.ProductTradeInID,
		ProductTradeInName:  orig.ProductTradeInName,
		SellUSD:             orig.SellUSD.Neg(),
		TradeInUSD:          orig.TradeInUSD.Neg(),
		AdjustmentUSD:       orig.AdjustmentUSD.Neg(),
		FinalUSD:            final,
		USDRateSnapshot:     orig.USDRateSnapshot,
		Notes:               notes,
		BalanceAction:       action,
		CustomerID:          orig.CustomerID,
		TradeInAddedToStock: orig.TradeInAddedToStock,
		CreditRedeemedUSD:   orig.CreditRedeemedUSD.Neg(),
		ReversesID:          &orig.ID,
	}
	if err := s.txs.Insert(wctx, rev); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, validationError(map[string]string{"id": "la transacción ya fue revertida"})
		}
		return nil, persistenceError(StepInsertTx, err)
	}

	var failed []string
	var causes []error
	if _, err := s.ledger.Adjust(wctx, actorID, orig.ProductSoldID, 1, model.MovementReversal, "Reversión de venta", &rev.ID); err != nil {
		failed = append(failed, StepRestoreSold)
		causes = append(causes, err)
		s.scheduleReconciliation(wctx, rev, orig.ProductSoldID, model.OpRestoreSold, err)
	}
	if orig.TradeInAddedToStock && orig.ProductTradeInID != nil {
		if _, err := s.ledger.Adjust(wctx, actorID, *orig.ProductTradeInID, -1, model.MovementReversal, "Reversión de canje", &rev.ID); err != nil {
			failed = append(failed, StepRemoveTradeIn)
			causes = append(causes, err)
			s.scheduleReconciliation(wctx, rev, *orig.ProductTradeInID, model.OpRemoveTradeIn, err)
		}
	}

	return s.finish(wctx, actorID, rev, failed, causes)
}

// finish re-reads the committed transaction and turns failed stock steps
// into a partial-commit error. A failed re-read after a commit is itself a
// partial commit: the record exists, only the view of it is stale.
func (s *settlementService) finish(ctx context.Context, actorID uuid.UUID, t *model.Transaction, failed []string, causes []error) (*dto.SettlementResponse, error) {
	resp, err := s.load(ctx, actorID, t.ID)
	if err != nil {
		failed = append(failed, StepRefresh)
		causes = append(causes, err)
		resp = &dto.SettlementResponse{
			Transaction: transactionToRecord(t),
			FinalLocal:  ToLocal(t.FinalUSD, t.USDRateSnapshot),
		}
	}
	if len(failed) == 0 {
		log.Info().
			Str("transaction_id", t.ID.String()).
			Str("final_usd", t.FinalUSD.StringFixed(2)).
			Str("balance_action", string(t.BalanceAction)).
			Msg("settlement committed")
		return resp, nil
	}

	log.Error().
		Str("transaction_id", t.ID.String()).
		Strs("failed_steps", failed).
		Err(errors.Join(causes...)).
		Msg("settlement committed with pending stock reconciliation")
	return resp, partialCommitError(failed, errors.Join(causes...))
}

func (s *settlementService) scheduleReconciliation(ctx context.Context, t *model.Transaction, productID uuid.UUID, op string, cause error) {
	msg := cause.Error()
	// Due at once: the queued job normally claims it first, the retry cron
	// otherwise.
	next := s.now()
	rec := &model.StockReconciliation{
		ID:            uuid.New(),
		OwnerID:       t.OwnerID,
		TransactionID: t.ID,
		ProductID:     productID,
		Operation:     op,
		Status:        model.ReconciliationPending,
		Attempts:      1,
		NextRetryAt:   &next,
		LastError:     &msg,
	}
	if err := s.recons.Create(ctx, rec); err != nil {
		log.Error().Err(err).
			Str("transaction_id", t.ID.String()).
			Str("product_id", productID.String()).
			Str("operation", op).
			Msg("stock reconciliation could not be recorded")
		return
	}
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueStockReconciliation(ctx, rec.ID); err != nil {
		// The retry cron still finds the row once next_retry_at passes.
		log.Warn().Err(err).Str("reconciliation_id", rec.ID.String()).Msg("stock reconciliation enqueue failed")
	}
}

// ── Read paths ────────────────────────────────────────────────────────────────

func (s *settlementService) List(ctx context.Context, actorID uuid.UUID) ([]dto.TransactionRecord, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	txs, err := s.txs.List(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TransactionRecord, len(txs))
	for i := range txs {
		out[i] = transactionToRecord(&txs[i])
	}
	return out, nil
}

func (s *settlementService) Get(ctx context.Context, actorID, id uuid.UUID) (*dto.SettlementResponse, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	resp, err := s.load(ctx, actorID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("transacción %s: %w", id, ErrNotFound)
	}
	return resp, err
}

// load builds the settlement view from stored state. Products that were
// deleted since the commit are omitted; the frozen names remain.
func (s *settlementService) load(ctx context.Context, actorID, id uuid.UUID) (*dto.SettlementResponse, error) {
	t, err := s.txs.FindByID(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.SettlementResponse{
		Transaction: transactionToRecord(t),
		FinalLocal:  ToLocal(t.FinalUSD, t.USDRateSnapshot),
	}

	if p, err := s.products.FindByID(ctx, actorID, t.ProductSoldID); err == nil {
		resp.ProductSold = productToResponse(p, t.USDRateSnapshot)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if t.ProductTradeInID != nil {
		if p, err := s.products.FindByID(ctx, actorID, *t.ProductTradeInID); err == nil {
			resp.ProductTradeIn = productToResponse(p, t.USDRateSnapshot)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	recs, err := s.recons.ListByTransaction(ctx, actorID, t.ID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		resp.StockReconciliations = append(resp.StockReconciliations, reconciliationToResponse(&recs[i]))
	}
	return resp, nil
}

// ── Import ────────────────────────────────────────────────────────────────────

func (s *settlementService) Import(ctx context.Context, actorID uuid.UUID, req dto.ImportSettlementsRequest) (int, error) {
	if actorID == uuid.Nil {
		return 0, unauthenticatedError()
	}

	txs := make([]model.Transaction, 0, len(req.Transactions))
	fields := map[string]string{}
	for i, r := range req.Transactions {
		t, errs := recordToTransaction(r)
		if want := expectedAction(t.FinalUSD, t.BalanceAction); want != "" {
			errs["customer_balance_action"] = want
		}
		for k, v := range errs {
			fields[fmt.Sprintf("transactions[%d].%s", i, k)] = v
		}
		txs = append(txs, *t)
	}
	if len(fields) > 0 {
		return 0, validationError(fields)
	}

	if err := s.txs.UpsertMany(ctx, actorID, txs); err != nil {
		return 0, persistenceError(StepInsertTx, err)
	}
	log.Info().Str("owner_id", actorID.String()).Int("count", len(txs)).Msg("settlements imported")
	return len(txs), nil
}

// expectedAction returns a field message when action is inconsistent with
// the sign of final, or "" when it is consistent.
func expectedAction(final decimal.Decimal, action model.BalanceAction) string {
	if final.IsNegative() {
		if action != model.BalanceZero && action != model.BalanceCredit {
			return "debe ser 'zero' o 'credit' cuando final_usd es negativo"
		}
		return ""
	}
	if action != model.BalanceNone {
		return "debe ser 'none' cuando final_usd no es negativo"
	}
	return ""
}

func unauthenticatedError() *SettlementError {
	return &SettlementError{
		Kind:   KindValidation,
		Fields: map[string]string{"actor": "se requiere un usuario autenticado"},
		Err:    ErrUnauthenticated,
	}
}

func outcomeOf(err error) string {
	var se *SettlementError
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.As(err, &se):
		return string(se.Kind)
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
