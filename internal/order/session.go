package order

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/geolocation"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("order: session closed")
	// ErrStaleCatalog is returned when a newer refresh superseded this one.
	ErrStaleCatalog = errors.New("order: catalog refresh superseded")
)

// CatalogFetcher loads the live catalog of a business.
type CatalogFetcher interface {
	Fetch(ctx context.Context, businessID string) ([]catalog.Service, error)
}

// Session is one checkout session: the selection list, the imported records
// and the latest catalog snapshot. Catalog refreshes never touch selections;
// Reconciled derives items from scratch on every call.
type Session struct {
	selections *Selections
	reconciler *reconcile.Reconciler

	mu          sync.Mutex
	imported    []reconcile.Imported
	catalog     []catalog.Service
	generation  uint64
	cancelFetch context.CancelFunc
	watch       *geolocation.WatchHandle
	recenter    *geolocation.Recenterer
	closed      bool
}

// NewSession constructs a Session with an empty selection list.
func NewSession(reconciler *reconcile.Reconciler) *Session {
	return &Session{selections: &Selections{}, reconciler: reconciler}
}

// Selections exposes the editable selection list.
func (s *Session) Selections() *Selections {
	return s.selections
}

// SetImported replaces the imported records used as reconciliation fallback.
func (s *Session) SetImported(imported []reconcile.Imported) {
	cp := make([]reconcile.Imported, len(imported))
	copy(cp, imported)
	s.mu.Lock()
	s.imported = cp
	s.mu.Unlock()
}

// RefreshCatalog fetches the catalog for businessID and installs it unless a
// newer refresh started or the session closed meanwhile. A failed fetch leaves
// the previous snapshot in place.
func (s *Session) RefreshCatalog(ctx context.Context, fetcher CatalogFetcher, businessID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.generation++
	gen := s.generation
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.mu.Unlock()

	services, err := fetcher.Fetch(fetchCtx, businessID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.cancelFetch = nil
	}
	cancel()
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.generation != gen:
		return ErrStaleCatalog
	case err != nil:
		return err
	}
	snapshot := make([]catalog.Service, len(services))
	copy(snapshot, services)
	s.catalog = snapshot
	return nil
}

// Catalog returns the installed snapshot. Nil means not fetched yet.
func (s *Session) Catalog() []catalog.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return nil
	}
	out := make([]catalog.Service, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Reconciled resolves the current selections against the current snapshot.
// Before the first catalog arrives the catalog is treated as empty.
func (s *Session) Reconciled() []reconcile.Item {
	selections := s.selections.List()
	s.mu.Lock()
	imported := s.imported
	live := s.catalog
	s.mu.Unlock()
	return s.reconciler.ResolveSelections(selections, imported, live)
}

// AttachWatch hands the session ownership of a position watch. A previous
// handle is stopped.
func (s *Session) AttachWatch(handle *geolocation.WatchHandle) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if handle != nil {
			handle.Stop()
		}
		return ErrSessionClosed
	}
	prev := s.watch
	s.watch = handle
	s.mu.Unlock()
	if prev != nil && prev != handle {
		prev.Stop()
	}
	return nil
}

// AttachRecenterer hands the session ownership of a map recenter debouncer.
func (s *Session) AttachRecenterer(r *geolocation.Recenterer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if r != nil {
			r.Stop()
		}
		return ErrSessionClosed
	}
	prev := s.recenter
	s.recenter = r
	s.mu.Unlock()
	if prev != nil && prev != r {
		prev.Stop()
	}
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the watch, abandons any in-flight fetch and clears the
// selections. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancelFetch
	s.cancelFetch = nil
	watch := s.watch
	s.watch = nil
	recenter := s.recenter
	s.recenter = nil
	s.catalog = nil
	s.imported = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watch != nil {
		watch.Stop()
	}
	if recenter != nil {
		recenter.Stop()
	}
	s.selections.Clear()
}
