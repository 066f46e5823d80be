package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/geolocation"
	"github.com/noah-isme/backend-pressing/internal/order"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

type fetcherFunc func(ctx context.Context, businessID string) ([]catalog.Service, error)

func (f fetcherFunc) Fetch(ctx context.Context, businessID string) ([]catalog.Service, error) {
	return f(ctx, businessID)
}

func staticFetcher(services ...catalog.Service) fetcherFunc {
	return func(context.Context, string) ([]catalog.Service, error) { return services, nil }
}

type streamLocator struct {
	readings chan geolocation.Reading
	mu       sync.Mutex
	ctx      context.Context
}

func (l *streamLocator) CurrentPosition(context.Context, geolocation.Options) (geo.Position, error) {
	return geo.Position{}, geolocation.ErrUnsupported
}

func (l *streamLocator) WatchPosition(ctx context.Context, _ geolocation.Options) (<-chan geolocation.Reading, error) {
	l.mu.Lock()
	l.ctx = ctx
	l.mu.Unlock()
	return l.readings, nil
}

func TestSessionReconcilesBeforeAndAfterCatalog(t *testing.T) {
	session := order.NewSession(reconcile.New(zerolog.Nop()))
	defer session.Close()

	require.NoError(t, session.Selections().Add("wash", 2))
	session.SetImported([]reconcile.Imported{{ServiceID: "wash", Name: "Wash (old)", Price: 900}})

	items := session.Reconciled()
	require.Len(t, items, 1)
	require.Equal(t, reconcile.SourceImported, items[0].Source)
	require.Nil(t, session.Catalog())

	err := session.RefreshCatalog(context.Background(), staticFetcher(catalog.Service{ID: "wash", Name: "Wash", Price: 1000}), "biz")
	require.NoError(t, err)

	items = session.Reconciled()
	require.Equal(t, reconcile.SourceCatalogID, items[0].Source)
	require.Equal(t, int64(1000), items[0].Price)
	require.Equal(t, 2, items[0].Quantity)
}

func TestSessionRefreshNeverTouchesSelections(t *testing.T) {
	session := order.NewSession(reconcile.New(zerolog.Nop()))
	defer session.Close()
	require.NoError(t, session.Selections().Add("wash", 1))
	before := session.Selections().List()

	require.NoError(t, session.RefreshCatalog(context.Background(), staticFetcher(), "biz"))
	require.Equal(t, before, session.Selections().List())
}

func TestSessionFailedRefreshKeepsSnapshot(t *testing.T) {
	session := order.NewSession(reconcile.New(zerolog.Nop()))
	defer session.Close()
	ctx := context.Background()
	require.NoError(t, session.RefreshCatalog(ctx, staticFetcher(catalog.Service{ID: "wash", Price: 1000}), "biz"))

	boom := errors.New("boom")
	err := session.RefreshCatalog(ctx, fetcherFunc(func(context.Context, string) ([]catalog.Service, error) {
		return []catalog.Service{{ID: "partial"}}, boom
	}), "biz")
	require.ErrorIs(t, err, boom)
	require.Len(t, session.Catalog(), 1)
	require.Equal(t, "wash", session.Catalog()[0].ID)
}

func TestSessionDiscardsSupersededFetch(t *testing.T) {
	session := order.NewSession(reconcile.New(zerolog.Nop()))
	defer session.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	slow := fetcherFunc(func(ctx context.Context, _ string) ([]catalog.Service, error) {
		close(started)
		<-release
		return []catalog.Service{{ID: "stale", Price: 1}}, nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- session.RefreshCatalog(context.Background(), slow, "biz") }()
	<-started

	require.NoError(t, session.RefreshCatalog(context.Background(), staticFetcher(catalog.Service{ID: "fresh", Price: 2}), "biz"))
	close(release)

	require.ErrorIs(t, <-errCh, order.ErrStaleCatalog)
	require.Equal(t, "fresh", session.Catalog()[0].ID)
}

func TestSessionCloseAbandonsFetch(t *testing.T) {
	session := order.NewSession(reconcile.New(zerolog.Nop()))
	require.NoError(t, session.Selections().Add("wash", 3))

	started := make(chan struct{})
	blocking := fetcherFunc(func(ctx context.Context, _ string) ([]catalog.Service, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() { errCh <- session.RefreshCatalog(context.Background(), blocking, "biz") }()
	<-started
	session.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, order.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("fetch was not cancelled by Close")
	}
	require.True(t, session.Closed())
	require.Zero(t, session.Selections().Len())
	require.Nil(t, session.Catalog())
	require.ErrorIs(t, session.RefreshCatalog(context.Background(), staticFetcher(), "biz"), order.ErrSessionClosed)
	session.Close()
}

func TestSessionCloseReleasesWatchAndRecenterer(t *testing.T) {
	session := order.NewSession(reconcile.New(zerolog.Nop()))
	locator := &streamLocator{readings: make(chan geolocation.Reading)}
	watcher := geolocation.NewWatcher(locator, zerolog.Nop())

	var mu sync.Mutex
	var centered []geo.Position
	recenter := geolocation.NewRecenterer(time.Hour, func(p geo.Position) {
		mu.Lock()
		centered = append(centered, p)
		mu.Unlock()
	})
	handle, err := watcher.Start(context.Background(), geolocation.DefaultOptions, recenter.Request)
	require.NoError(t, err)
	require.NoError(t, session.AttachWatch(handle))
	require.NoError(t, session.AttachRecenterer(recenter))

	locator.readings <- geolocation.Reading{Position: geo.Position{Lat: 5.32, Lng: -4.0}}
	require.Eventually(t, func() bool {
		_, ok := watcher.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	session.Close()

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("watch handle not released")
	}
	require.Equal(t, geolocation.WatchStopped, watcher.State())
	locator.mu.Lock()
	require.Error(t, locator.ctx.Err())
	locator.mu.Unlock()

	mu.Lock()
	require.Empty(t, centered, "pending recenter dropped on close")
	mu.Unlock()

	require.ErrorIs(t, session.AttachWatch(nil), order.ErrSessionClosed)
}
