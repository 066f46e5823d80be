package order

import (
	"errors"
	"strings"
	"sync"

	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

var (
	// ErrInvalidQuantity is returned for quantities below 1 on Add.
	ErrInvalidQuantity = errors.New("order: quantity must be at least 1")
	// ErrBlankServiceID is returned when a selection has no service id.
	ErrBlankServiceID = errors.New("order: service id is required")
)

// Selections is the customer's ordered list of picked services. Only the
// explicit edit operations below mutate it.
type Selections struct {
	mu    sync.Mutex
	items []reconcile.Selection
}

// NewSelections seeds a list, merging duplicate ids.
func NewSelections(initial ...reconcile.Selection) (*Selections, error) {
	s := &Selections{}
	for _, sel := range initial {
		if err := s.Add(sel.ServiceID, sel.Quantity); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends serviceID or increments its quantity when already selected.
func (s *Selections) Add(serviceID string, quantity int) error {
	id := strings.TrimSpace(serviceID)
	if id == "" {
		return ErrBlankServiceID
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.items[i].Quantity += quantity
		return nil
	}
	s.items = append(s.items, reconcile.Selection{ServiceID: id, Quantity: quantity})
	return nil
}

// SetQuantity replaces the quantity of serviceID. Zero or less removes it.
// It reports whether the service was selected.
func (s *Selections) SetQuantity(serviceID string, quantity int) bool {
	id := strings.TrimSpace(serviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		s.removeLocked(i)
		return true
	}
	s.items[i].Quantity = quantity
	return true
}

// Remove drops serviceID and reports whether it was selected.
func (s *Selections) Remove(serviceID string) bool {
	id := strings.TrimSpace(serviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.removeLocked(i)
	return true
}

// Clear empties the list.
func (s *Selections) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// List returns a snapshot in selection order.
func (s *Selections) List() []reconcile.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reconcile.Selection, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of distinct selected services.
func (s *Selections) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Selections) indexLocked(id string) int {
	for i, item := range s.items {
		if item.ServiceID == id {
			return i
		}
	}
	return -1
}

func (s *Selections) removeLocked(i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
}
