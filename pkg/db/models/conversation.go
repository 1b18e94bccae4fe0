package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/calderonlabs/tienda-backend/pkg/db/types"
)

// Conversation holds the ordered agent turn log for one phone number. Turns is
// a single JSON document rewritten as a whole on every append; its decoding is
// deferred to the history store so a corrupt document degrades to empty
// history instead of a query error.
type Conversation struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PhoneNumber string          `gorm:"column:phone_number;not null;uniqueIndex"`
	Turns       dbtypes.RawJSON `gorm:"column:turns;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
