package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Money represents a monetary value stored in minor units.
type Money = int64

const (
	// DefaultFreeDeliveryThreshold is the inclusive subtotal from which delivery is free.
	DefaultFreeDeliveryThreshold Money = 5000
	// DefaultDeliveryFee is charged below the free delivery threshold.
	DefaultDeliveryFee Money = 1000
	// DefaultServiceFee is charged on every order.
	DefaultServiceFee Money = 500
)

// Request bounds. Selections beyond them are rejected at the API edge.
const (
	MaxQuantity  int   = 1000
	MaxUnitPrice Money = 1_000_000_000
)

var (
	// ErrNegativeAmount is returned by Config.Validate for negative fees or thresholds.
	ErrNegativeAmount = errors.New("pricing: amounts must not be negative")
	// ErrAmountOverflow is returned when a line or total does not fit in Money.
	ErrAmountOverflow = errors.New("pricing: amount overflows")
)

// Config holds the fee schedule.
type Config struct {
	FreeDeliveryThreshold Money
	DeliveryFee           Money
	ServiceFee            Money
}

// DefaultConfig returns the standard fee schedule.
func DefaultConfig() Config {
	return Config{
		FreeDeliveryThreshold: DefaultFreeDeliveryThreshold,
		DeliveryFee:           DefaultDeliveryFee,
		ServiceFee:            DefaultServiceFee,
	}
}

// Validate rejects negative amounts.
func (c Config) Validate() error {
	if c.FreeDeliveryThreshold < 0 || c.DeliveryFee < 0 || c.ServiceFee < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Line describes a reconciled item used for pricing calculation.
type Line struct {
	ServiceID string
	Name      string
	Price     Money
	Quantity  int
}

// Breakdown aggregates computed pricing components.
type Breakdown struct {
	Subtotal    Money `json:"subtotal"`
	DeliveryFee Money `json:"deliveryFee"`
	ServiceFee  Money `json:"serviceFee"`
	Total       Money `json:"total"`
	// ZeroPriced counts lines that contributed nothing because their price is 0.
	ZeroPriced int `json:"-"`
}

// Engine computes order totals from a fee schedule.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine constructs an Engine. Invalid configs fall back to DefaultConfig.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Validate() != nil {
		logger.Warn().
			Int64("free_delivery_threshold", cfg.FreeDeliveryThreshold).
			Int64("delivery_fee", cfg.DeliveryFee).
			Int64("service_fee", cfg.ServiceFee).
			Msg("pricing_config_invalid")
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the active fee schedule.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute calculates totals for the given lines. Lines with a zero price stay
// in the order but add nothing to the subtotal. Amounts that would overflow
// return ErrAmountOverflow instead of wrapping.
func (e *Engine) Compute(lines []Line) (Breakdown, error) {
	var out Breakdown
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if line.Price <= 0 {
			out.ZeroPriced++
			e.logger.Warn().
				Str("service_id", line.ServiceID).
				Str("name", line.Name).
				Int("quantity", line.Quantity).
				Msg("pricing_zero_price_item")
			continue
		}
		amount, err := LineTotal(line.Price, line.Quantity)
		if err != nil {
			return Breakdown{}, fmt.Errorf("line %q: %w", line.ServiceID, err)
		}
		if out.Subtotal, err = add(out.Subtotal, amount); err != nil {
			return Breakdown{}, err
		}
	}
	if out.Subtotal < e.cfg.FreeDeliveryThreshold {
		out.DeliveryFee = e.cfg.DeliveryFee
	}
	out.ServiceFee = e.cfg.ServiceFee
	total, err := add(out.Subtotal, out.DeliveryFee)
	if err != nil {
		return Breakdown{}, err
	}
	if out.Total, err = add(total, out.ServiceFee); err != nil {
		return Breakdown{}, err
	}
	return out, nil
}

// LineTotal returns price*quantity. Non-positive inputs give 0.
func LineTotal(price Money, quantity int) (Money, error) {
	if price <= 0 || quantity <= 0 {
		return 0, nil
	}
	if price > math.MaxInt64/Money(quantity) {
		return 0, ErrAmountOverflow
	}
	return price * Money(quantity), nil
}

func add(a, b Money) (Money, error) {
	if b > math.MaxInt64-a {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}
