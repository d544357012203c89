package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist for the given owner.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists maps unique-key violations.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStaleVersion is returned by compare-and-swap stock writes when the
	// product changed since it was read.
	ErrStaleVersion = errors.New("stale product version")
)

// mapErr converts GORM errors into repository errors so services never
// import gorm to classify failures.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	}
	return err
}
