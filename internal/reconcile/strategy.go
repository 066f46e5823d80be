package reconcile

import (
	"strings"

	"github.com/noah-isme/backend-pressing/internal/catalog"
)

// Strategy attempts to resolve key. imported is the upstream record carried for
// key, or nil. Strategies must be pure.
type Strategy func(key string, imported *Imported, live []catalog.Service) (Item, bool)

// DefaultStrategies returns the resolution chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{MatchByID, MatchByPrice, ImportedFallback}
}

// MatchByID finds the live entry with the same trimmed identifier.
func MatchByID(key string, _ *Imported, live []catalog.Service) (Item, bool) {
	for _, svc := range live {
		if strings.TrimSpace(svc.ID) == key {
			return fromCatalog(key, svc, SourceCatalogID), true
		}
	}
	return Item{}, false
}

// MatchByPrice returns the first live entry priced like the imported record.
// Two services sharing a price are indistinguishable here; catalog order
// decides.
func MatchByPrice(key string, imported *Imported, live []catalog.Service) (Item, bool) {
	if imported == nil || imported.Price <= 0 {
		return Item{}, false
	}
	for _, svc := range live {
		if svc.Price == imported.Price {
			return fromCatalog(key, svc, SourceCatalogPrice), true
		}
	}
	return Item{}, false
}

// ImportedFallback keeps the name and price carried upstream, unless upstream
// already marked the service as missing.
func ImportedFallback(key string, imported *Imported, _ []catalog.Service) (Item, bool) {
	if imported == nil {
		return Item{}, false
	}
	name := strings.TrimSpace(imported.Name)
	if name == "" || name == NotFoundName {
		return Item{}, false
	}
	price := imported.Price
	if price < 0 {
		price = 0
	}
	return Item{
		ServiceID: key,
		Name:      name,
		Price:     price,
		Category:  cloneString(imported.Category),
		Source:    SourceImported,
	}, true
}

func fromCatalog(key string, svc catalog.Service, source Source) Item {
	return Item{
		ServiceID:       key,
		Name:            svc.Name,
		Price:           svc.Price,
		Category:        cloneString(svc.Category),
		PreparationTime: cloneString(svc.PreparationTime),
		MatchedID:       strings.TrimSpace(svc.ID),
		Source:          source,
	}
}

func unresolved(key string) Item {
	return Item{ServiceID: key, Name: NotFoundName, Price: 0, Source: SourceUnresolved}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
