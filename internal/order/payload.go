package order

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/backend-pressing/internal/pricing"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

// DefaultCurrency is appended to amounts in line descriptions.
const DefaultCurrency = "XOF"

// PayloadService is one line of the hand-off payload.
type PayloadService struct {
	ServiceID   string  `json:"serviceId"`
	Quantity    int     `json:"quantity"`
	Price       int64   `json:"price"`
	Name        string  `json:"name"`
	Category    *string `json:"category"`
	Description string  `json:"description"`
}

// PayloadPricing mirrors pricing.Breakdown on the wire.
type PayloadPricing struct {
	Subtotal    pricing.Money `json:"subtotal"`
	DeliveryFee pricing.Money `json:"deliveryFee"`
	ServiceFee  pricing.Money `json:"serviceFee"`
	Total       pricing.Money `json:"total"`
}

// Payload is what the order-submission collaborator receives.
type Payload struct {
	Services        []PayloadService `json:"services"`
	DeliveryAddress string           `json:"deliveryAddress"`
	Pricing         PayloadPricing   `json:"pricing"`
	CollectionTime  string           `json:"collectionTime"`
	DeliveryTime    string           `json:"deliveryTime"`
}

// PayloadOptions controls description rendering.
type PayloadOptions struct {
	Language language.Tag
	Currency string
}

// DefaultPayloadOptions renders French descriptions in CFA francs.
func DefaultPayloadOptions() PayloadOptions {
	return PayloadOptions{Language: language.French, Currency: DefaultCurrency}
}

// Payload renders the draft for hand-off.
func (d Draft) Payload(opts PayloadOptions) Payload {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	printer := message.NewPrinter(opts.Language)
	services := make([]PayloadService, 0, len(d.Items))
	for _, item := range d.Items {
		services = append(services, PayloadService{
			ServiceID:   item.ServiceID,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Name:        item.Name,
			Category:    cloneString(item.Category),
			Description: describe(printer, item, opts.Currency),
		})
	}
	return Payload{
		Services:        services,
		DeliveryAddress: d.Address.Text,
		Pricing: PayloadPricing{
			Subtotal:    d.Pricing.Subtotal,
			DeliveryFee: d.Pricing.DeliveryFee,
			ServiceFee:  d.Pricing.ServiceFee,
			Total:       d.Pricing.Total,
		},
		CollectionTime: formatTime(d.Timing.CollectionTime),
		DeliveryTime:   formatTime(d.Timing.DeliveryTime),
	}
}

func describe(printer *message.Printer, item reconcile.Item, currency string) string {
	if item.IsUnresolved() {
		return printer.Sprintf("%s × %d", item.Name, item.Quantity)
	}
	amount, err := pricing.LineTotal(item.Price, item.Quantity)
	if err != nil {
		return printer.Sprintf("%s × %d @ %d %s", item.Name, item.Quantity, item.Price, currency)
	}
	return printer.Sprintf("%s × %d = %d %s", item.Name, item.Quantity, amount, currency)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
