package address

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/geolocation"
	"github.com/noah-isme/backend-pressing/internal/obs"
)

// Handler exposes address resolution endpoints.
type Handler struct {
	service  *Service
	resolver geo.Resolver
	metro    geo.Box
	fallback geo.Position
	recenter time.Duration
	logger   zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Resolver geo.Resolver
	Metro    geo.Box
	Fallback geo.Position
	// RecenterDelay is advertised to map clients as the debounce before
	// recentering on a new fix.
	RecenterDelay time.Duration
	Logger        zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		service:  cfg.Service,
		resolver: cfg.Resolver,
		metro:    cfg.Metro,
		fallback: cfg.Fallback,
		recenter: cfg.RecenterDelay,
		logger:   cfg.Logger,
	}
}

type optionsRequest struct {
	EnableHighAccuracy bool  `json:"enableHighAccuracy"`
	TimeoutMs          int64 `json:"timeoutMs" validate:"gte=0,lte=60000"`
	MaxAgeMs           int64 `json:"maxAgeMs" validate:"gte=0"`
}

type resolveRequest struct {
	Lat      *float64        `json:"lat" validate:"required_without=Error,omitempty,latitude"`
	Lng      *float64        `json:"lng" validate:"required_with=Lat,omitempty,longitude"`
	Accuracy *float64        `json:"accuracy" validate:"omitempty,gte=0"`
	Label    string          `json:"label" validate:"max=120"`
	Error    string          `json:"error" validate:"omitempty,oneof=denied permission_denied timeout unsupported unavailable position_unavailable 1 2 3"`
	Options  *optionsRequest `json:"options"`
}

type resolveResponse struct {
	Status      geolocation.Status  `json:"status"`
	Precision   string              `json:"precision"`
	Advisory    string              `json:"advisory"`
	Failure     string              `json:"failure,omitempty"`
	InsideMetro bool                `json:"insideMetro"`
	Address     geo.ResolvedAddress `json:"address"`
}

type textRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

// Resolve handles POST /api/v1/address/resolve. The body carries the fix (or
// failure) reported by the client's platform geolocation.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}

	locator := geolocation.Fixed{Err: geolocation.ParseFailure(req.Error)}
	if req.Lat != nil && req.Lng != nil && locator.Err == nil {
		locator.Position = &geo.Position{Lat: *req.Lat, Lng: *req.Lng, Accuracy: req.Accuracy}
	}
	metro := h.metro
	fallback := h.fallback
	acquirer, err := geolocation.NewAcquirer(geolocation.Config{
		Locator:  locator,
		Resolver: h.resolver,
		Metro:    &metro,
		Fallback: &fallback,
		Logger:   h.logger,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	outcome := acquirer.AcquireOnce(r.Context(), req.options())

	failure := geolocation.FailureCode(outcome.Failure)
	obs.RecordGeolocation(string(outcome.Status), failure)
	if outcome.Position.Accuracy != nil {
		obs.RecordFixAccuracy(r.Context(), *outcome.Position.Accuracy, outcome.Precision.String())
	}

	common.JSON(w, http.StatusOK, map[string]any{"data": resolveResponse{
		Status:      outcome.Status,
		Precision:   outcome.Precision.String(),
		Advisory:    advisory(outcome, failure),
		Failure:     failure,
		InsideMetro: outcome.InsideMetro,
		Address:     h.service.FromRegion(outcome.Position, outcome.Region, outcome.InsideMetro, req.Label),
	}})
}

// Text handles POST /api/v1/address/text.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	addr := h.service.FromText(req.Text)
	if addr.Text == "" {
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_ADDRESS", "a delivery address is required", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": addr})
}

// Regions handles GET /api/v1/regions.
func (h *Handler) Regions(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"data":            h.resolver.Table().Regions(),
		"metro":           h.metro,
		"fallback":        h.fallback,
		"recenterDelayMs": h.recenter.Milliseconds(),
	})
}

func (r resolveRequest) options() geolocation.Options {
	if r.Options == nil {
		return geolocation.DefaultOptions
	}
	return geolocation.Options{
		EnableHighAccuracy: r.Options.EnableHighAccuracy,
		Timeout:            time.Duration(r.Options.TimeoutMs) * time.Millisecond,
		MaxAge:             time.Duration(r.Options.MaxAgeMs) * time.Millisecond,
	}
}

func advisory(outcome geolocation.Outcome, failure string) string {
	switch outcome.Status {
	case geolocation.StatusFallback:
		switch failure {
		case "denied":
			return "Location access denied, showing the default area"
		case "timeout":
			return "Location request timed out, showing the default area"
		case "unsupported":
			return "Location is not available on this device, showing the default area"
		default:
			return "Position unavailable, showing the default area"
		}
	case geolocation.StatusOutsideServiceArea:
		return "This position is outside our service area, please pick a district"
	default:
		return outcome.Precision.Advisory()
	}
}
