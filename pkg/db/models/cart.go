package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the per-customer aggregate root. At most one cart exists per phone
// number; line items are owned exclusively and mutated as a unit.
type Cart struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PhoneNumber string     `gorm:"column:phone_number;not null;uniqueIndex"`
	Items       []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
