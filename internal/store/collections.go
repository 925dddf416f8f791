package store

import (
	"fmt"

	"github.com/quillgit/trader-pos-sub000/internal/model"
)

// CollectionForKind routes a transaction variant to its collection.
// Payments share the sales collection on the wire and on disk.
func CollectionForKind(k model.Kind) (string, error) {
	switch k {
	case model.KindPurchase:
		return ColPurchases, nil
	case model.KindSale, model.KindPaymentIn, model.KindPaymentOut:
		return ColSales, nil
	default:
		return "", fmt.Errorf("%w: %q", model.ErrUnknownKind, k)
	}
}
