package geolocation

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/geo"
)

// WatchState of the continuous watch state machine.
type WatchState int

const (
	WatchIdle WatchState = iota
	Watching
	WatchStopped
)

func (s WatchState) String() string {
	switch s {
	case Watching:
		return "watching"
	case WatchStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Watcher forwards raw positions from a platform watch. It never resolves
// addresses or recentres a map on its own.
type Watcher struct {
	locator Locator
	logger  zerolog.Logger

	mu     sync.Mutex
	state  WatchState
	latest *geo.Position
}

// NewWatcher constructs a Watcher in the idle state.
func NewWatcher(locator Locator, logger zerolog.Logger) *Watcher {
	return &Watcher{locator: locator, logger: logger}
}

// State returns the current watch state.
func (w *Watcher) State() WatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Latest returns the most recent raw position, if any.
func (w *Watcher) Latest() (geo.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return geo.Position{}, false
	}
	return *w.latest, true
}

// WatchHandle releases a running watch.
type WatchHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the platform watch and blocks until the forwarding goroutine
// has exited. It is safe to call more than once.
func (h *WatchHandle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

// Done is closed once the watch has fully stopped.
func (h *WatchHandle) Done() <-chan struct{} { return h.done }

// Start begins watching. onUpdate may be nil; it is invoked on the watch
// goroutine for each valid reading.
func (w *Watcher) Start(ctx context.Context, opts Options, onUpdate func(geo.Position)) (*WatchHandle, error) {
	if w.locator == nil {
		return nil, ErrUnsupported
	}
	w.mu.Lock()
	switch w.state {
	case Watching:
		w.mu.Unlock()
		return nil, ErrWatchActive
	case WatchStopped:
		w.mu.Unlock()
		return nil, ErrWatchStopped
	}
	w.state = Watching
	w.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	readings, err := w.locator.WatchPosition(watchCtx, opts)
	if err != nil {
		cancel()
		w.mu.Lock()
		w.state = WatchIdle
		w.mu.Unlock()
		return nil, normalizeFailure(err)
	}

	h := &WatchHandle{cancel: cancel, done: make(chan struct{})}
	go w.forward(watchCtx, readings, onUpdate, h.done)
	return h, nil
}

func (w *Watcher) forward(ctx context.Context, readings <-chan Reading, onUpdate func(geo.Position), done chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.state = WatchStopped
		w.mu.Unlock()
		close(done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			if r.Err != nil {
				failure := normalizeFailure(r.Err)
				w.logger.Debug().Str("failure", FailureCode(failure)).Msg("geolocation_watch_error")
				if errors.Is(failure, ErrDenied) {
					return
				}
				continue
			}
			if !validPosition(r.Position) {
				continue
			}
			pos := r.Position
			w.mu.Lock()
			w.latest = &pos
			w.mu.Unlock()
			if onUpdate != nil {
				onUpdate(pos)
			}
		}
	}
}
