package cart

import (
	"github.com/google/uuid"

	"github.com/calderonlabs/tienda-backend/pkg/db/models"
)

// mergeLines folds delta quantities into the existing line set, summing by
// product id. Lines whose resulting quantity is not positive are dropped.
// Order is stable: existing products first, then new products in delta order.
func mergeLines(existing []models.CartItem, deltas []LineInput) []LineInput {
	quantities := make(map[uuid.UUID]int, len(existing)+len(deltas))
	order := make([]uuid.UUID, 0, len(existing)+len(deltas))

	for _, item := range existing {
		if _, seen := quantities[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	for _, delta := range deltas {
		if _, seen := quantities[delta.ProductID]; !seen {
			order = append(order, delta.ProductID)
		}
		quantities[delta.ProductID] += delta.Quantity
	}

	merged := make([]LineInput, 0, len(order))
	for _, id := range order {
		if qty := quantities[id]; qty > 0 {
			merged = append(merged, LineInput{ProductID: id, Quantity: qty})
		}
	}
	return merged
}
