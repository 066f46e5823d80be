package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/resilience"
)

type queryProvider interface {
	ListServicesByBusiness(ctx context.Context, businessID string) ([]Service, error)
}

// DefaultLoadTimeout bounds one shared catalog query.
const DefaultLoadTimeout = 5 * time.Second

// Loader fetches live catalogs, fronted by the Redis cache and a breaker.
type Loader struct {
	queries queryProvider
	cache   *Cache
	breaker *resilience.Breaker
	timeout time.Duration
	logger  zerolog.Logger
	group   singleflight.Group
}

// LoaderConfig groups Loader dependencies.
type LoaderConfig struct {
	Queries queryProvider
	Cache   *Cache
	Breaker *resilience.Breaker
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLoadTimeout
	}
	return &Loader{
		queries: cfg.Queries,
		cache:   cfg.Cache,
		breaker: cfg.Breaker,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Fetch returns the services offered by businessID. Concurrent calls for the
// same business share a single database round trip.
func (l *Loader) Fetch(ctx context.Context, businessID string) ([]Service, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, common.NewAppError("INVALID_BUSINESS", "business id is required", http.StatusBadRequest, nil)
	}
	if cached, ok, err := l.cache.Get(ctx, businessID); err != nil {
		l.logger.Warn().Err(err).Str("business_id", businessID).Msg("catalog_cache_read_failed")
	} else if ok {
		return cached, nil
	}

	// The shared query must outlive any single caller; each caller waits on
	// its own context.
	ch := l.group.DoChan(businessID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.load(loadCtx, businessID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	services := res.Val.([]Service)
	out := make([]Service, len(services))
	copy(out, services)
	return out, nil
}

func (l *Loader) load(ctx context.Context, businessID string) ([]Service, error) {
	if l.breaker != nil && !l.breaker.Allow(ctx) {
		return nil, common.NewAppError("CATALOG_UNAVAILABLE", "catalog temporarily unavailable", http.StatusServiceUnavailable, resilience.ErrOpenCircuit)
	}
	services, err := l.queries.ListServicesByBusiness(ctx, businessID)
	if l.breaker != nil {
		l.breaker.Report(ctx, err == nil || errors.Is(err, context.Canceled))
	}
	if err != nil {
		return nil, common.NewAppError("CATALOG_UNAVAILABLE", "catalog temporarily unavailable", http.StatusServiceUnavailable, err)
	}
	if services == nil {
		services = []Service{}
	}
	if err := l.cache.Set(ctx, businessID, services); err != nil {
		l.logger.Warn().Err(err).Str("business_id", businessID).Msg("catalog_cache_write_failed")
	}
	return services, nil
}

// Invalidate drops the cached catalog for businessID.
func (l *Loader) Invalidate(ctx context.Context, businessID string) error {
	return l.cache.Invalidate(ctx, businessID)
}
