package geolocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/geo"
)

// Accuracy thresholds in meters.
const (
	ExactAccuracyMeters = 10.0
	GoodAccuracyMeters  = 50.0
)

// Precision classifies the accuracy of a fix.
type Precision int

const (
	// PrecisionUnknown means the reading carried no accuracy.
	PrecisionUnknown Precision = iota
	// PrecisionExact is an accuracy of 10m or better.
	PrecisionExact
	// PrecisionGood is an accuracy of 50m or better.
	PrecisionGood
	// PrecisionLimited is anything coarser than 50m.
	PrecisionLimited
)

// ClassifyAccuracy maps an accuracy in meters to a Precision.
func ClassifyAccuracy(accuracy *float64) Precision {
	if accuracy == nil {
		return PrecisionUnknown
	}
	switch a := *accuracy; {
	case a <= ExactAccuracyMeters:
		return PrecisionExact
	case a <= GoodAccuracyMeters:
		return PrecisionGood
	default:
		return PrecisionLimited
	}
}

func (p Precision) String() string {
	switch p {
	case PrecisionExact:
		return "exact"
	case PrecisionGood:
		return "good"
	case PrecisionLimited:
		return "limited"
	default:
		return "unknown"
	}
}

// Advisory is the user-facing message for the precision level.
func (p Precision) Advisory() string {
	switch p {
	case PrecisionExact:
		return "Exact position found"
	case PrecisionGood:
		return "Good position found"
	case PrecisionLimited:
		return "Position found with limited precision"
	default:
		return "Position found"
	}
}

// Status is the outcome kind of an acquisition.
type Status string

const (
	StatusResolved           Status = "resolved"
	StatusOutsideServiceArea Status = "outside_service_area"
	StatusFallback           Status = "fallback"
)

// Outcome is the typed result of an acquisition. It is always usable: on
// failure Position holds the fallback metro centre and Failure the reason.
type Outcome struct {
	Status      Status
	Position    geo.Position
	Region      *string
	InsideMetro bool
	Precision   Precision
	Failure     error
	FromCache   bool
}

// State of the one-shot acquisition state machine.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAcquiring:
		return "acquiring"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Config groups Acquirer dependencies.
type Config struct {
	Locator  Locator
	Resolver geo.Resolver
	Metro    *geo.Box
	Fallback *geo.Position
	Logger   zerolog.Logger
	Now      func() time.Time
}

type cachedFix struct {
	position geo.Position
	at       time.Time
}

// Acquirer performs one-shot position requests and classifies the result.
type Acquirer struct {
	locator  Locator
	resolver geo.Resolver
	metro    geo.Box
	fallback geo.Position
	logger   zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
	last  *cachedFix
}

// NewAcquirer constructs an Acquirer.
func NewAcquirer(cfg Config) (*Acquirer, error) {
	if cfg.Locator == nil {
		return nil, errors.New("geolocation: locator is required")
	}
	a := &Acquirer{
		locator:  cfg.Locator,
		resolver: cfg.Resolver,
		metro:    geo.DefaultMetroBox,
		fallback: geo.DefaultMetroCenter,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if cfg.Metro != nil {
		a.metro = *cfg.Metro
	}
	if cfg.Fallback != nil {
		a.fallback = *cfg.Fallback
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// State returns the current acquisition state.
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// AcquireOnce requests a single fix. It never returns an error: failures are
// folded into a fallback Outcome so the caller can keep going.
func (a *Acquirer) AcquireOnce(ctx context.Context, opts Options) Outcome {
	a.mu.Lock()
	if a.state == StateAcquiring {
		a.mu.Unlock()
		return a.fallbackOutcome(ErrAcquisitionInProgress)
	}
	if opts.MaxAge > 0 && a.last != nil && a.now().Sub(a.last.at) <= opts.MaxAge {
		cached := a.last.position
		a.state = StateResolved
		a.mu.Unlock()
		out := a.Classify(cached)
		out.FromCache = true
		return out
	}
	a.state = StateAcquiring
	a.mu.Unlock()

	reqCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	pos, err := a.locator.CurrentPosition(reqCtx, opts)
	if err == nil && !validPosition(pos) {
		err = ErrUnavailable
	}
	if err != nil {
		failure := normalizeFailure(err)
		a.mu.Lock()
		a.state = StateFailed
		a.mu.Unlock()
		a.logger.Info().Str("failure", FailureCode(failure)).Err(failure).Msg("geolocation_fallback")
		return a.fallbackOutcome(failure)
	}

	a.mu.Lock()
	a.state = StateResolved
	a.last = &cachedFix{position: pos, at: a.now()}
	a.mu.Unlock()
	return a.Classify(pos)
}

// Classify turns a raw position into an Outcome without querying the
// locator. District resolution only runs inside the metro box.
func (a *Acquirer) Classify(pos geo.Position) Outcome {
	out := Outcome{
		Position:  pos,
		Precision: ClassifyAccuracy(pos.Accuracy),
	}
	if !a.metro.Contains(pos.Lat, pos.Lng) {
		out.Status = StatusOutsideServiceArea
		return out
	}
	out.Status = StatusResolved
	out.InsideMetro = true
	if name, ok := a.resolver.Resolve(pos.Lat, pos.Lng); ok {
		out.Region = &name
	}
	return out
}

// Reset returns the state machine to idle and drops the cached fix.
func (a *Acquirer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateAcquiring {
		return
	}
	a.state = StateIdle
	a.last = nil
}

func (a *Acquirer) fallbackOutcome(failure error) Outcome {
	return Outcome{
		Status:      StatusFallback,
		Position:    a.fallback,
		InsideMetro: a.metro.Contains(a.fallback.Lat, a.fallback.Lng),
		Precision:   PrecisionUnknown,
		Failure:     failure,
	}
}
