package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Service is a laundry service offered by a pressing. Prices are in minor
// units and never negative.
type Service struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           int64   `json:"price"`
	Category        *string `json:"category,omitempty"`
	PreparationTime *string `json:"preparationTime,omitempty"`
}

// Field aliases, canonical first. Business payloads use either convention.
var (
	idKeys          = []string{"id", "_id", "serviceId"}
	nameKeys        = []string{"name", "nom"}
	priceKeys       = []string{"price", "prix"}
	categoryKeys    = []string{"category", "categorie"}
	preparationKeys = []string{"preparationTime", "tempsPreparation", "delai"}
)

// UnmarshalJSON accepts both canonical and localized field names.
func (s *Service) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Service
	var err error
	if out.ID, err = firstString(raw, idKeys); err != nil {
		return fmt.Errorf("catalog: id: %w", err)
	}
	if out.Name, err = firstString(raw, nameKeys); err != nil {
		return fmt.Errorf("catalog: name: %w", err)
	}
	if out.Price, err = firstPrice(raw, priceKeys); err != nil {
		return fmt.Errorf("catalog: price: %w", err)
	}
	if v, err := firstString(raw, categoryKeys); err != nil {
		return fmt.Errorf("catalog: category: %w", err)
	} else if v != "" {
		out.Category = &v
	}
	if v, err := firstString(raw, preparationKeys); err != nil {
		return fmt.Errorf("catalog: preparation time: %w", err)
	} else if v != "" {
		out.PreparationTime = &v
	}
	*s = out
	return nil
}

func lookup(raw map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(v); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func firstString(raw map[string]json.RawMessage, keys []string) (string, error) {
	v, ok := lookup(raw, keys)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", errors.New("expected string or number")
}

func firstPrice(raw map[string]json.RawMessage, keys []string) (int64, error) {
	v, ok := lookup(raw, keys)
	if !ok {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, errors.New("expected number")
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", s, err)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	if f < 0 {
		return 0, nil
	}
	f = math.Round(f)
	if f >= math.MaxInt64 {
		return 0, errors.New("out of range")
	}
	return int64(f), nil
}
