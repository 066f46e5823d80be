package geolocation

import (
	"sync"
	"time"

	"github.com/noah-isme/backend-pressing/internal/geo"
)

// DefaultRecenterDelay is the debounce window for map re-centering.
const DefaultRecenterDelay = 300 * time.Millisecond

// Recenterer debounces re-centre requests. The last request inside the delay
// window wins; earlier ones are dropped, not queued.
type Recenterer struct {
	delay time.Duration
	apply func(geo.Position)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewRecenterer constructs a debouncer calling apply after delay.
func NewRecenterer(delay time.Duration, apply func(geo.Position)) *Recenterer {
	if delay <= 0 {
		delay = DefaultRecenterDelay
	}
	return &Recenterer{delay: delay, apply: apply}
}

// Request schedules pos, superseding any pending request.
func (r *Recenterer) Request(pos geo.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.apply == nil {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = time.AfterFunc(r.delay, func() { r.fire(gen, pos) })
}

func (r *Recenterer) fire(gen uint64, pos geo.Position) {
	r.mu.Lock()
	if r.stopped || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()
	r.apply(pos)
}

// Stop drops any pending request and disables further ones.
func (r *Recenterer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
