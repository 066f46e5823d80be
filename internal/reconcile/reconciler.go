// Package reconcile matches a customer's selected services against the
// business's live catalog.
package reconcile

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/catalog"
)

const (
	// FallbackIDMarker is the id upstream clients send when a service had none.
	FallbackIDMarker = "unknown-service"
	// NotFoundName labels a selection that matched nothing.
	NotFoundName = "Service not found"
)

// ErrInvalidServiceID is returned for blank ids and FallbackIDMarker.
var ErrInvalidServiceID = errors.New("reconcile: invalid service id")

// Source records which strategy produced an Item.
type Source string

const (
	SourceCatalogID    Source = "catalog_id"
	SourceCatalogPrice Source = "catalog_price"
	SourceImported     Source = "imported"
	SourceUnresolved   Source = "unresolved"
)

// Selection is a service the customer picked.
type Selection struct {
	ServiceID string `json:"serviceId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=1000"`
}

// Imported is a selection as carried by an upstream list, with the name and
// price the client saw at the time.
type Imported struct {
	ServiceID string  `json:"serviceId"`
	Name      string  `json:"name"`
	Price     int64   `json:"price" validate:"gte=0,lte=1000000000"`
	Category  *string `json:"category,omitempty"`
	Quantity  int     `json:"quantity,omitempty" validate:"gte=0,lte=1000"`
}

// Item is a selection enriched with authoritative details.
type Item struct {
	ServiceID       string  `json:"serviceId"`
	Quantity        int     `json:"quantity"`
	Name            string  `json:"name"`
	Price           int64   `json:"price"`
	Category        *string `json:"category"`
	PreparationTime *string `json:"preparationTime,omitempty"`
	MatchedID       string  `json:"matchedId,omitempty"`
	Source          Source  `json:"source"`
}

// IsUnresolved reports whether no strategy could resolve the item.
func (i Item) IsUnresolved() bool {
	return i.Source == SourceUnresolved
}

// Reconciler resolves selections through an ordered strategy chain. It holds
// no state between calls.
type Reconciler struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// New constructs a Reconciler. Without strategies DefaultStrategies is used.
func New(logger zerolog.Logger, strategies ...Strategy) *Reconciler {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	chain := make([]Strategy, len(strategies))
	copy(chain, strategies)
	return &Reconciler{strategies: chain, logger: logger}
}

// Resolve resolves a single service id. The returned quantity comes from the
// imported record, defaulting to 1.
func (r *Reconciler) Resolve(serviceID string, imported []Imported, live []catalog.Service) (Item, error) {
	key := strings.TrimSpace(serviceID)
	if key == "" || key == FallbackIDMarker {
		r.logger.Warn().Str("service_id", serviceID).Msg("reconcile_invalid_service_id")
		return Item{}, ErrInvalidServiceID
	}
	record := findImported(key, imported)
	item := r.resolveKey(key, record, live)
	item.Quantity = 1
	if record != nil && record.Quantity > 0 {
		item.Quantity = record.Quantity
	}
	return item, nil
}

// ResolveSelections re-derives the full item list. Invalid ids are skipped.
func (r *Reconciler) ResolveSelections(selections []Selection, imported []Imported, live []catalog.Service) []Item {
	items := make([]Item, 0, len(selections))
	for _, sel := range selections {
		item, err := r.Resolve(sel.ServiceID, imported, live)
		if err != nil {
			continue
		}
		item.Quantity = sel.Quantity
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		items = append(items, item)
	}
	return items
}

func (r *Reconciler) resolveKey(key string, record *Imported, live []catalog.Service) Item {
	for _, strategy := range r.strategies {
		if item, ok := strategy(key, record, live); ok {
			return item
		}
	}
	r.logger.Warn().
		Str("service_id", key).
		Int("catalog_size", len(live)).
		Msg("reconcile_unresolved_service")
	return unresolved(key)
}

func findImported(key string, imported []Imported) *Imported {
	for i := range imported {
		if strings.TrimSpace(imported[i].ServiceID) == key {
			rec := imported[i]
			return &rec
		}
	}
	return nil
}
