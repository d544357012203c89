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
)

type CustomerService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]dto.CustomerResponse, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*dto.CustomerResponse, error)
	Create(ctx context.Context, ownerID uuid.UUID, req dto.CreateCustomerRequest) (*dto.CustomerResponse, error)
	QuickAdd(ctx context.Context, ownerID uuid.UUID, req dto.QuickCustomerRequest) (*dto.CustomerResponse, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, req dto.UpdateCustomerRequest) (*dto.CustomerResponse, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	BulkUpsert(ctx context.Context, ownerID uuid.UUID, req dto.BulkCustomersRequest) (int, error)
	// Detail is the customer's settlements, active warranties and credit.
	Detail(ctx context.Context, ownerID, id uuid.UUID) (*dto.CustomerDetailResponse, error)
	Credit(ctx context.Context, ownerID, id uuid.UUID) (*dto.CreditBalanceResponse, error)
}

type customerService struct {
	repo repository.CustomerRepository
	txs  repository.TransactionRepository
	now  func() time.Time
}

func NewCustomerService(repo repository.CustomerRepository, txs repository.TransactionRepository) CustomerService {
	return &customerService{repo: repo, txs: txs, now: time.Now}
}

func (s *customerService) List(ctx context.Context, ownerID uuid.UUID) ([]dto.CustomerResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	customers, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CustomerResponse, len(customers))
	for i := range customers {
		out[i] = customerToResponse(&customers[i])
	}
	return out, nil
}

func (s *customerService) Get(ctx context.Context, ownerID, id uuid.UUID) (*dto.CustomerResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	c, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	resp := customerToResponse(c)
	return &resp, nil
}

func (s *customerService) Create(ctx context.Context, ownerID uuid.UUID, req dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	c := customerFromRequest(ownerID, req)
	if err := checkCustomer(c); err != nil {
		return nil, err
	}
	c.ID = uuid.New()
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("crear cliente: %w", err)
	}
	resp := customerToResponse(c)
	return &resp, nil
}

// QuickAdd registers a customer from the settlement screen with only a
// name and a phone.
func (s *customerService) QuickAdd(ctx context.Context, ownerID uuid.UUID, req dto.QuickCustomerRequest) (*dto.CustomerResponse, error) {
	return s.Create(ctx, ownerID, dto.CreateCustomerRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Notes:     model.QuickAddNote,
	})
}

func (s *customerService) Update(ctx context.Context, ownerID, id uuid.UUID, req dto.UpdateCustomerRequest) (*dto.CustomerResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	c, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		c.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		c.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		c.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		c.Email = emptyToNil(*req.Email)
	}
	if req.DNI != nil {
		c.DNI = emptyToNil(*req.DNI)
	}
	if req.City != nil {
		c.City = emptyToNil(*req.City)
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
	if err := checkCustomer(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("cliente %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("actualizar cliente: %w", err)
	}
	resp := customerToResponse(c)
	return &resp, nil
}

func (s *customerService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if ownerID == uuid.Nil {
		return ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("cliente %s: %w", id, ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *customerService) BulkUpsert(ctx context.Context, ownerID uuid.UUID, req dto.BulkCustomersRequest) (int, error) {
	if ownerID == uuid.Nil {
		return 0, ErrUnauthenticated
	}
	customers := make([]model.Customer, 0, len(req.Customers))
	for i, rec := range req.Customers {
		c := customerFromRequest(ownerID, rec.CreateCustomerRequest)
		if err := checkCustomer(c); err != nil {
			return 0, fmt.Errorf("customers[%d]: %w", i, err)
		}
		if rec.ID != "" {
			id, err := uuid.Parse(rec.ID)
			if err != nil {
				return 0, validationError(map[string]string{fmt.Sprintf("customers[%d].id", i): "uuid inválido"})
			}
			c.ID = id
		}
		customers = append(customers, *c)
	}
	if err := s.repo.UpsertMany(ctx, ownerID, customers); err != nil {
		return 0, fmt.Errorf("importar clientes: %w", err)
	}
	return len(customers), nil
}

func (s *customerService) Detail(ctx context.Context, ownerID, id uuid.UUID) (*dto.CustomerDetailResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	c, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	txs, err := s.txs.ListByCustomer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	detail := &dto.CustomerDetailResponse{
		Customer:     customerToResponse(c),
		Transactions: make([]dto.TransactionRecord, len(txs)),
		Credit:       creditToResponse(id, ComputeCreditBalance(txs)),
	}
	for i := range txs {
		detail.Transactions[i] = transactionToRecord(&txs[i])
		if txs[i].WarrantyActive(now) {
			detail.ActiveWarranties++
		}
	}
	return detail, nil
}

func (s *customerService) Credit(ctx context.Context, ownerID, id uuid.UUID) (*dto.CreditBalanceResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if _, err := s.find(ctx, ownerID, id); err != nil {
		return nil, err
	}
	txs, err := s.txs.ListByCustomer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	resp := creditToResponse(id, ComputeCreditBalance(txs))
	return &resp, nil
}

func (s *customerService) find(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error) {
	c, err := s.repo.FindByID(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("cliente %s: %w", id, ErrNotFound)
	}
	return c, err
}

func customerFromRequest(ownerID uuid.UUID, req dto.CreateCustomerRequest) *model.Customer {
	c := &model.Customer{
		OwnerID:   ownerID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Notes:     req.Notes,
	}
	if req.Email != nil {
		c.Email = emptyToNil(*req.Email)
	}
	if req.DNI != nil {
		c.DNI = emptyToNil(*req.DNI)
	}
	if req.City != nil {
		c.City = emptyToNil(*req.City)
	}
	return c
}

func checkCustomer(c *model.Customer) error {
	fields := map[string]string{}
	if c.FirstName == "" {
		fields["first_name"] = "el nombre es obligatorio"
	}
	if c.Phone == "" {
		fields["phone"] = "el teléfono es obligatorio"
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

func creditToResponse(customerID uuid.UUID, b CreditBalance) dto.CreditBalanceResponse {
	return dto.CreditBalanceResponse{
		CustomerID:  customerID.String(),
		CreditedUSD: b.Credited,
		RedeemedUSD: b.Redeemed,
		BalanceUSD:  b.Balance,
	}
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
