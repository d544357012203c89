package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated rejects any operation attempted without an actor.
	ErrUnauthenticated = errors.New("operación sin usuario autenticado")
	ErrNotFound        = errors.New("registro no encontrado")
	ErrConflict        = errors.New("operación en conflicto con el estado actual")
	// ErrStockConflict is returned when a stock write kept losing the
	// optimistic version race.
	ErrStockConflict = errors.New("el stock fue modificado concurrentemente")

	ErrValidationFailed  = errors.New("validation failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrPartialCommit     = errors.New("partial commit")
)

// ErrorKind classifies settlement failures for the operator.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation_failed"
	KindPersistence   ErrorKind = "persistence_failed"
	KindPartialCommit ErrorKind = "partial_commit"
)

// Steps named in persistence and partial-commit errors.
const (
	StepLoadSettings     = "load_settings"
	StepLoadCustomer     = "load_customer"
	StepLoadProducts     = "load_products"
	StepLoadCredit       = "load_credit"
	StepLoadOriginal     = "load_original"
	StepCreateCustomer   = "create_customer"
	StepInsertTx         = "insert_transaction"
	StepDecrementSold    = "decrement_sold"
	StepIncrementTradeIn = "increment_tradein"
	StepRestoreSold      = "restore_sold"
	StepRemoveTradeIn    = "remove_tradein"
	StepRefresh          = "refresh"
)

// SettlementError carries the outcome kind, the failing step(s) and the
// cause. errors.Is matches both the kind sentinel and the wrapped cause.
type SettlementError struct {
	Kind        ErrorKind
	Step        string
	Fields      map[string]string
	FailedSteps []string
	Err         error
}

func (e *SettlementError) Error() string {
	switch e.Kind {
	case KindValidation:
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		return "validación fallida: " + strings.Join(parts, "; ")
	case KindPartialCommit:
		return fmt.Sprintf("transacción registrada, pero falló el ajuste de stock (%s): %v",
			strings.Join(e.FailedSteps, ", "), e.Err)
	default:
		return fmt.Sprintf("error de persistencia en %s: %v", e.Step, e.Err)
	}
}

func (e *SettlementError) Unwrap() []error {
	var kind error
	switch e.Kind {
	case KindValidation:
		kind = ErrValidationFailed
	case KindPartialCommit:
		kind = ErrPartialCommit
	default:
		kind = ErrPersistenceFailed
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

func validationError(fields map[string]string) *SettlementError {
	return &SettlementError{Kind: KindValidation, Fields: fields}
}

func persistenceError(step string, err error) *SettlementError {
	return &SettlementError{Kind: KindPersistence, Step: step, Err: err}
}

func partialCommitError(failed []string, err error) *SettlementError {
	return &SettlementError{Kind: KindPartialCommit, FailedSteps: failed, Err: err}
}
