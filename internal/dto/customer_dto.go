package dto

import "github.com/shopspring/decimal"

type CreateCustomerRequest struct {
	FirstName string  `json:"first_name" validate:"required,max=60"`
	LastName  string  `json:"last_name"  validate:"max=60"`
	Phone     string  `json:"phone"      validate:"required,min=6,max=30"`
	Email     *string `json:"email"      validate:"omitempty,email"`
	DNI       *string `json:"dni"        validate:"omitempty,max=20"`
	City      *string `json:"city"       validate:"omitempty,max=60"`
	Notes     string  `json:"notes"`
}

// QuickCustomerRequest is the reduced form used from the settlement screen.
type QuickCustomerRequest struct {
	FirstName string `json:"first_name" validate:"required,max=60"`
	LastName  string `json:"last_name"  validate:"max=60"`
	Phone     string `json:"phone"      validate:"required,min=6,max=30"`
}

type UpdateCustomerRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=60"`
	LastName  *string `json:"last_name"  validate:"omitempty,max=60"`
	Phone     *string `json:"phone"      validate:"omitempty,min=6,max=30"`
	Email     *string `json:"email"      validate:"omitempty,email"`
	DNI       *string `json:"dni"        validate:"omitempty,max=20"`
	City      *string `json:"city"       validate:"omitempty,max=60"`
	Notes     *string `json:"notes"`
}

type BulkCustomersRequest struct {
	Customers []CustomerRecord `json:"customers" validate:"required,min=1,dive"`
}

type CustomerRecord struct {
	ID string `json:"id" validate:"omitempty,uuid"`
	CreateCustomerRequest
}

type CustomerResponse struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     string  `json:"phone"`
	Email     *string `json:"email,omitempty"`
	DNI       *string `json:"dni,omitempty"`
	City      *string `json:"city,omitempty"`
	Notes     string  `json:"notes"`
	CreatedAt string  `json:"created_at"`
}

// CreditBalanceResponse is the derived credit ledger of one customer.
type CreditBalanceResponse struct {
	CustomerID  string          `json:"customer_id"`
	CreditedUSD decimal.Decimal `json:"credited_usd"`
	RedeemedUSD decimal.Decimal `json:"redeemed_usd"`
	BalanceUSD  decimal.Decimal `json:"balance_usd"`
}

type CustomerDetailResponse struct {
	Customer         CustomerResponse      `json:"customer"`
	Transactions     []TransactionRecord   `json:"transactions"`
	ActiveWarranties int                   `json:"active_warranties"`
	Credit           CreditBalanceResponse `json:"credit"`
}
