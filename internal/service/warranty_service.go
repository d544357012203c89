package service

import (
	"context"
	"strings"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/dto"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/google/uuid"
)

// Warranty list filters.
const (
	WarrantyAll     = "all"
	WarrantyActive  = "active"
	WarrantyExpired = "expired"
)

// WarrantyService lists the warranties granted by settlements. Status is
// computed against the clock on every call.
type WarrantyService interface {
	List(ctx context.Context, ownerID uuid.UUID, filter dto.WarrantyFilter) ([]dto.WarrantyResponse, error)
}

type warrantyService struct {
	txs       repository.TransactionRepository
	customers repository.CustomerRepository
	now       func() time.Time
}

func NewWarrantyService(txs repository.TransactionRepository, customers repository.CustomerRepository) WarrantyService {
	return &warrantyService{txs: txs, customers: customers, now: time.Now}
}

func (s *warrantyService) List(ctx context.Context, ownerID uuid.UUID, filter dto.WarrantyFilter) ([]dto.WarrantyResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	status := filter.Status
	if status == "" {
		status = WarrantyAll
	}

	txs, err := s.txs.ListWithWarranty(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(customers))
	for _, c := range customers {
		names[c.ID] = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}

	now := s.now()
	out := make([]dto.WarrantyResponse, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		if t.WarrantyStart == nil || t.WarrantyEnd == nil {
			continue
		}
		active := t.WarrantyActive(now)
		if (status == WarrantyActive && !active) || (status == WarrantyExpired && active) {
			continue
		}
		days := 0
		if t.WarrantyDays != nil {
			days = *t.WarrantyDays
		}
		out = append(out, dto.WarrantyResponse{
			TransactionID:   t.ID.String(),
			CustomerID:      t.CustomerID.String(),
			CustomerName:    names[t.CustomerID],
			ProductSoldName: t.ProductSoldName,
			Date:            formatTime(t.Date),
			WarrantyDays:    days,
			WarrantyStart:   formatTime(*t.WarrantyStart),
			WarrantyEnd:     formatTime(*t.WarrantyEnd),
			Active:          active,
		})
	}
	return out, nil
}
