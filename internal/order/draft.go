// Package order assembles submittable order drafts from reconciled
// selections, a resolved address and a pricing breakdown.
package order

import (
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/pricing"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

var (
	// ErrEmptySelection blocks assembly of a draft without services.
	ErrEmptySelection = &common.AppError{
		Code:       "EMPTY_SELECTION",
		Message:    "select at least one service",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
	// ErrEmptyAddress blocks assembly of a draft without a delivery address.
	ErrEmptyAddress = &common.AppError{
		Code:       "EMPTY_ADDRESS",
		Message:    "a delivery address is required",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// Timing holds the requested collection and delivery times.
type Timing struct {
	CollectionTime time.Time `json:"collectionTime"`
	DeliveryTime   time.Time `json:"deliveryTime"`
}

// Draft is an immutable, submittable order. Editing produces a new draft with
// a new ID.
type Draft struct {
	ID         string              `json:"id"`
	Items      []reconcile.Item    `json:"items"`
	Address    geo.ResolvedAddress `json:"address"`
	Pricing    pricing.Breakdown   `json:"pricing"`
	Timing     Timing              `json:"timing"`
	CustomerID string              `json:"customerId,omitempty"`
	BusinessID string              `json:"businessId,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// Unresolved lists items that matched nothing and must be flagged to the user.
func (d Draft) Unresolved() []reconcile.Item {
	var out []reconcile.Item
	for _, item := range d.Items {
		if item.IsUnresolved() {
			out = append(out, item)
		}
	}
	return out
}

// Assembler builds drafts. The zero value is ready to use.
type Assembler struct {
	Now func() time.Time
}

// Assemble uses a zero Assembler.
func Assemble(items []reconcile.Item, addr geo.ResolvedAddress, breakdown pricing.Breakdown, timing Timing) (Draft, error) {
	return Assembler{}.Assemble(items, addr, breakdown, timing)
}

// Assemble combines its inputs into a new draft. It fails without returning a
// partial draft when there are no items or the address text is blank.
func (a Assembler) Assemble(items []reconcile.Item, addr geo.ResolvedAddress, breakdown pricing.Breakdown, timing Timing) (Draft, error) {
	if len(items) == 0 {
		return Draft{}, ErrEmptySelection
	}
	text := strings.TrimSpace(addr.Text)
	if text == "" {
		return Draft{}, ErrEmptyAddress
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	created := now().UTC()

	copied := make([]reconcile.Item, len(items))
	for i, item := range items {
		item.Category = cloneString(item.Category)
		item.PreparationTime = cloneString(item.PreparationTime)
		copied[i] = item
	}

	return Draft{
		ID:        ulid.MustNew(ulid.Timestamp(created), ulid.DefaultEntropy()).String(),
		Items:     copied,
		Address:   cloneAddress(addr, text),
		Pricing:   breakdown,
		Timing:    timing,
		CreatedAt: created,
	}, nil
}

// Lines converts reconciled items into pricing lines.
func Lines(items []reconcile.Item) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{
			ServiceID: item.ServiceID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

func cloneAddress(addr geo.ResolvedAddress, text string) geo.ResolvedAddress {
	out := geo.ResolvedAddress{Text: text, Region: cloneString(addr.Region)}
	if addr.Position != nil {
		pos := *addr.Position
		if pos.Accuracy != nil {
			acc := *pos.Accuracy
			pos.Accuracy = &acc
		}
		out.Position = &pos
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
