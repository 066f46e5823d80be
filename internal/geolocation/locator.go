package geolocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/backend-pressing/internal/geo"
)

var (
	// ErrDenied is returned when the user refused location access.
	ErrDenied = errors.New("geolocation: permission denied")
	// ErrTimeout is returned when no fix arrived before the deadline.
	ErrTimeout = errors.New("geolocation: timeout")
	// ErrUnsupported is returned when the device has no location capability.
	ErrUnsupported = errors.New("geolocation: unsupported")
	// ErrUnavailable is returned when the platform could not compute a position.
	ErrUnavailable = errors.New("geolocation: position unavailable")
	// ErrAcquisitionInProgress is returned when a one-shot request is already running.
	ErrAcquisitionInProgress = errors.New("geolocation: acquisition already in progress")
	// ErrWatchActive is returned when Start is called on a watcher that is already watching.
	ErrWatchActive = errors.New("geolocation: watch already active")
	// ErrWatchStopped is returned when Start is called on a stopped watcher.
	ErrWatchStopped = errors.New("geolocation: watch stopped")
)

// Options mirrors the platform position request options.
type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaxAge             time.Duration
}

// DefaultOptions are used for one-shot requests when the caller passes none.
var DefaultOptions = Options{EnableHighAccuracy: true, Timeout: 10 * time.Second, MaxAge: 0}

// Reading is a single update delivered by a position watch.
type Reading struct {
	Position geo.Position
	Err      error
}

// Locator is the platform geolocation capability.
type Locator interface {
	CurrentPosition(ctx context.Context, opts Options) (geo.Position, error)
	// WatchPosition streams readings until ctx is cancelled. Implementations
	// close the channel once they stop producing.
	WatchPosition(ctx context.Context, opts Options) (<-chan Reading, error)
}

// Fixed is a Locator backed by a single client-reported fix or failure.
type Fixed struct {
	Position *geo.Position
	Err      error
}

// CurrentPosition returns the configured position or failure.
func (f Fixed) CurrentPosition(ctx context.Context, _ Options) (geo.Position, error) {
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	if f.Err != nil {
		return geo.Position{}, f.Err
	}
	if f.Position == nil {
		return geo.Position{}, ErrUnavailable
	}
	return *f.Position, nil
}

// WatchPosition is not available for one-off reported fixes.
func (Fixed) WatchPosition(context.Context, Options) (<-chan Reading, error) {
	return nil, ErrUnsupported
}

// ParseFailure maps a client-reported failure code to a typed error. Codes
// follow the browser PositionError names as well as short aliases.
func ParseFailure(code string) error {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return nil
	case "denied", "permission_denied", "1":
		return ErrDenied
	case "unavailable", "position_unavailable", "2":
		return ErrUnavailable
	case "timeout", "3":
		return ErrTimeout
	case "unsupported":
		return ErrUnsupported
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, code)
	}
}

// FailureCode returns the short code for a typed failure.
func FailureCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDenied):
		return "denied"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrAcquisitionInProgress):
		return "busy"
	default:
		return "unavailable"
	}
}

func normalizeFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDenied), errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnsupported), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func validPosition(p geo.Position) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return false
	}
	if p.Accuracy != nil && (*p.Accuracy < 0 || math.IsNaN(*p.Accuracy)) {
		return false
	}
	return true
}
