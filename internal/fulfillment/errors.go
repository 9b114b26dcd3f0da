package fulfillment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict is the post-retry surface of datastore contention on shared
// inventory counters.
var ErrConflict = errors.New("concurrent update conflict, please retry")

// ValidationError reports a malformed request before any datastore work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown product, variant, order or user.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// StockShortfall describes one line that cannot be satisfied.
type StockShortfall struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Missing returns how many units short the line is.
func (s StockShortfall) Missing() int {
	return s.Requested - s.Available
}

func (s StockShortfall) String() string {
	ref := s.ProductID
	if s.VariantID != "" {
		ref += "/" + s.VariantID
	}
	return fmt.Sprintf("%s: requested %d, available %d (short %d)", ref, s.Requested, s.Available, s.Missing())
}

// InsufficientStockError carries every shortfall in the batch, not just the
// first one found.
type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, s.String())
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}
