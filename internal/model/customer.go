package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a buyer or prospect. Phone is the only required contact field.
type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName string    `gorm:"not null"`
	LastName  string
	Phone     string `gorm:"not null"`
	Email     *string
	DNI       *string `gorm:"column:dni"`
	City      *string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuickAddNote is stored on customers created from the settlement screen.
const QuickAddNote = "Agregado rápido en venta."
