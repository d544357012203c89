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
	"github.com/rs/zerolog/log"
)

// ProductService is the catalog CRUD path. Stock only moves through the
// StockLedger: creation sets the opening count, AdjustStock corrects it.
type ProductService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]dto.ProductResponse, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*dto.ProductResponse, error)
	Create(ctx context.Context, ownerID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	BulkUpsert(ctx context.Context, ownerID uuid.UUID, req dto.BulkProductsRequest) (int, error)
	AdjustStock(ctx context.Context, ownerID, id uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error)
	Movements(ctx context.Context, ownerID, id uuid.UUID, limit int) ([]dto.StockMovementResponse, error)
}

type productService struct {
	repo      repository.ProductRepository
	movements repository.StockMovementRepository
	txs       repository.TransactionRepository
	ledger    StockLedger
	settings  SettingsService
}

func NewProductService(
	repo repository.ProductRepository,
	movements repository.StockMovementRepository,
	txs repository.TransactionRepository,
	ledger StockLedger,
	settings SettingsService,
) ProductService {
	return &productService{repo: repo, movements: movements, txs: txs, ledger: ledger, settings: settings}
}

func (s *productService) List(ctx context.Context, ownerID uuid.UUID) ([]dto.ProductResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	st, err := s.settings.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, len(products))
	for i := range products {
		out[i] = *productToResponse(&products[i], st.USDRate)
	}
	return out, nil
}

func (s *productService) Get(ctx context.Context, ownerID, id uuid.UUID) (*dto.ProductResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	p, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, p)
}

func (s *productService) Create(ctx context.Context, ownerID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	p, err := productFromRequest(ownerID, req)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New()
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("crear producto: %w", err)
	}
	return s.respond(ctx, p)
}

func (s *productService) Update(ctx context.Context, ownerID, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	p, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.SKU != nil {
		p.SKU = strings.TrimSpace(*req.SKU)
	}
	if req.Model != nil {
		p.Model = strings.TrimSpace(*req.Model)
	}
	if req.Storage != nil {
		p.Storage = strings.TrimSpace(*req.Storage)
	}
	if req.Color != nil {
		p.Color = *req.Color
	}
	if req.Condition != nil {
		c := model.Condition(*req.Condition)
		if !c.Valid() {
			return nil, validationError(map[string]string{"condition": "condición desconocida"})
		}
		p.Condition = c
	}
	if req.Battery != nil {
		p.Battery = *req.Battery
	}
	if req.PriceSellUSD != nil {
		if req.PriceSellUSD.IsNegative() {
			return nil, validationError(map[string]string{"price_sell_usd": "no puede ser negativo"})
		}
		p.PriceSellUSD = cents(*req.PriceSellUSD)
	}
	if req.PriceTradeInUSD != nil {
		if req.PriceTradeInUSD.IsNegative() {
			return nil, validationError(map[string]string{"price_tradein_usd": "no puede ser negativo"})
		}
		p.PriceTradeInUSD = cents(*req.PriceTradeInUSD)
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	p.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("producto %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("actualizar producto: %w", err)
	}
	return s.respond(ctx, p)
}

// Delete refuses to remove a product any settlement points at; the frozen
// names would survive but the links would dangle.
func (s *productService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if ownerID == uuid.Nil {
		return ErrUnauthenticated
	}
	n, err := s.txs.CountByProduct(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("el producto tiene %d transacciones asociadas: %w", n, ErrConflict)
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("producto %s: %w", id, ErrNotFound)
		}
		return err
	}
	log.Info().Str("product_id", id.String()).Msg("product deleted")
	return nil
}

func (s *productService) BulkUpsert(ctx context.Context, ownerID uuid.UUID, req dto.BulkProductsRequest) (int, error) {
	if ownerID == uuid.Nil {
		return 0, ErrUnauthenticated
	}
	products := make([]model.Product, 0, len(req.Products))
	for i, rec := range req.Products {
		p, err := productFromRequest(ownerID, rec.CreateProductRequest)
		if err != nil {
			return 0, fmt.Errorf("products[%d]: %w", i, err)
		}
		if rec.ID != "" {
			id, err := uuid.Parse(rec.ID)
			if err != nil {
				return 0, validationError(map[string]string{fmt.Sprintf("products[%d].id", i): "uuid inválido"})
			}
			p.ID = id
		}
		products = append(products, *p)
	}
	if err := s.repo.UpsertMany(ctx, ownerID, products); err != nil {
		return 0, fmt.Errorf("importar productos: %w", err)
	}
	return len(products), nil
}

func (s *productService) AdjustStock(ctx context.Context, ownerID, id uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if req.Delta == 0 {
		return nil, validationError(map[string]string{"delta": "debe ser distinto de 0"})
	}
	p, err := s.ledger.Adjust(ctx, ownerID, id, req.Delta, model.MovementManual, req.Reason, nil)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, p)
}

func (s *productService) Movements(ctx context.Context, ownerID, id uuid.UUID, limit int) ([]dto.StockMovementResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if _, err := s.find(ctx, ownerID, id); err != nil {
		return nil, err
	}
	movements, err := s.movements.ListByProduct(ctx, ownerID, id, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockMovementResponse, len(movements))
	for i := range movements {
		out[i] = movementToResponse(&movements[i])
	}
	return out, nil
}

func (s *productService) find(ctx context.Context, ownerID, id uuid.UUID) (*model.Product, error) {
	p, err := s.repo.FindByID(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("producto %s: %w", id, ErrNotFound)
	}
	return p, err
}

func (s *productService) respond(ctx context.Context, p *model.Product) (*dto.ProductResponse, error) {
	st, err := s.settings.Current(ctx, p.OwnerID)
	if err != nil {
		return nil, err
	}
	return productToResponse(p, st.USDRate), nil
}

func productFromRequest(ownerID uuid.UUID, req dto.CreateProductRequest) (*model.Product, error) {
	c := model.Condition(req.Condition)
	fields := map[string]string{}
	if !c.Valid() {
		fields["condition"] = "condición desconocida"
	}
	if req.Stock < 0 {
		fields["stock"] = "no puede ser negativo"
	}
	if req.PriceSellUSD.IsNegative() {
		fields["price_sell_usd"] = "no puede ser negativo"
	}
	if req.PriceTradeInUSD.IsNegative() {
		fields["price_tradein_usd"] = "no puede ser negativo"
	}
	if len(fields) > 0 {
		return nil, validationError(fields)
	}
	return &model.Product{
		OwnerID:         ownerID,
		SKU:             strings.TrimSpace(req.SKU),
		Model:           strings.TrimSpace(req.Model),
		Storage:         strings.TrimSpace(req.Storage),
		Color:           req.Color,
		Condition:       c,
		Battery:         req.Battery,
		Stock:           req.Stock,
		PriceSellUSD:    cents(req.PriceSellUSD),
		PriceTradeInUSD: cents(req.PriceTradeInUSD),
		Notes:           req.Notes,
	}, nil
}
