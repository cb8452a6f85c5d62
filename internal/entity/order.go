package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order intake limits enforced before any mutation.
const (
	ItemNameMaxLen = 100
	QuantityMin    = 1
	QuantityMax    = 1000
)

// Order represents a requested item tracked through the fulfillment lifecycle.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        string    `bun:"id,pk"`
	ItemName  string    `bun:"item_name,notnull"`
	Quantity  int       `bun:"quantity,notnull"`
	Status    Status    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
