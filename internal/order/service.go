package order

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/address"
	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/events"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/obs"
	"github.com/noah-isme/backend-pressing/internal/pricing"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalog        CatalogFetcher
	Reconciler     *reconcile.Reconciler
	Pricing        *pricing.Engine
	Addresses      *address.Service
	Events         Emitter
	Assembler      Assembler
	PayloadOptions PayloadOptions
	Logger         zerolog.Logger
}

// Service runs the quote and draft submission flows.
type Service struct {
	catalog    CatalogFetcher
	reconciler *reconcile.Reconciler
	pricing    *pricing.Engine
	addresses  *address.Service
	events     Emitter
	assembler  Assembler
	payloadOpt PayloadOptions
	logger     zerolog.Logger
}

// NewService validates dependencies and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("order: catalog fetcher is required")
	case cfg.Addresses == nil:
		return nil, errors.New("order: address service is required")
	}
	if cfg.Reconciler == nil {
		cfg.Reconciler = reconcile.New(cfg.Logger)
	}
	if cfg.Pricing == nil {
		cfg.Pricing = pricing.NewEngine(pricing.DefaultConfig(), cfg.Logger)
	}
	if cfg.PayloadOptions.Currency == "" {
		cfg.PayloadOptions = DefaultPayloadOptions()
	}
	return &Service{
		catalog:    cfg.Catalog,
		reconciler: cfg.Reconciler,
		pricing:    cfg.Pricing,
		addresses:  cfg.Addresses,
		events:     cfg.Events,
		assembler:  cfg.Assembler,
		payloadOpt: cfg.PayloadOptions,
		logger:     cfg.Logger,
	}, nil
}

// QuoteInput describes a selection to price.
type QuoteInput struct {
	BusinessID string
	Selections []reconcile.Selection
	Imported   []reconcile.Imported
}

// Quote is a priced, reconciled selection.
type Quote struct {
	Items            []reconcile.Item  `json:"items"`
	Pricing          pricing.Breakdown `json:"pricing"`
	Unresolved       []string          `json:"unresolved"`
	CatalogAvailable bool              `json:"catalogAvailable"`
}

// AddressInput is either free text or a position.
type AddressInput struct {
	Text     string
	Position *geo.Position
	Label    string
}

// SubmitInput describes a draft submission.
type SubmitInput struct {
	QuoteInput
	Address    AddressInput
	Timing     Timing
	CustomerID string
}

// SubmittedEvent is the payload of events.TopicDraftSubmitted.
type SubmittedEvent struct {
	DraftID    string  `json:"draftId"`
	BusinessID string  `json:"businessId"`
	CustomerID string  `json:"customerId,omitempty"`
	Unresolved int     `json:"unresolved"`
	Payload    Payload `json:"payload"`
}

// Submission is the result of a successful hand-off.
type Submission struct {
	Draft   Draft   `json:"draft"`
	Payload Payload `json:"payload"`
	EventID string  `json:"eventId,omitempty"`
}

// Quote reconciles and prices the selection. A catalog outage degrades to
// imported data instead of failing.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	items, available, err := s.reconcile(ctx, in)
	if err != nil {
		return Quote{}, err
	}
	breakdown, err := s.pricing.Compute(Lines(items))
	if err != nil {
		return Quote{}, common.NewValidationError("AMOUNT_OUT_OF_RANGE", "order total is too large", err)
	}
	obs.RecordZeroPriceItems(breakdown.ZeroPriced)

	unresolved := []string{}
	for _, item := range items {
		obs.RecordReconciledItem(string(item.Source))
		if item.IsUnresolved() {
			unresolved = append(unresolved, item.ServiceID)
		}
	}
	return Quote{Items: items, Pricing: breakdown, Unresolved: unresolved, CatalogAvailable: available}, nil
}

// Submit assembles a draft and hands it off through the event bus.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Submission, error) {
	quote, err := s.Quote(ctx, in.QuoteInput)
	if err != nil {
		return Submission{}, err
	}
	addr := s.resolveAddress(in.Address)

	draft, err := s.assembler.Assemble(quote.Items, addr, quote.Pricing, in.Timing)
	if err != nil {
		obs.RecordDraft("rejected")
		return Submission{}, err
	}
	draft.BusinessID = strings.TrimSpace(in.BusinessID)
	draft.CustomerID = strings.TrimSpace(in.CustomerID)
	payload := draft.Payload(s.payloadOpt)

	sub := Submission{Draft: draft, Payload: payload}
	if s.events == nil {
		obs.RecordDraft("assembled")
		return sub, nil
	}
	ev, err := s.events.Emit(ctx, events.TopicDraftSubmitted, draft.ID, SubmittedEvent{
		DraftID:    draft.ID,
		BusinessID: draft.BusinessID,
		CustomerID: draft.CustomerID,
		Unresolved: len(draft.Unresolved()),
		Payload:    payload,
	})
	switch {
	case err == nil:
	case errors.Is(err, events.ErrNotifyFailed) && !errors.Is(err, events.ErrScheduleFailed):
		// already persisted and queued; a retry would hand it off twice
		s.logger.Warn().Err(err).Str("draft_id", draft.ID).Msg("order_draft_notify_failed")
	default:
		obs.RecordDraft("handoff_failed")
		s.logger.Error().Err(err).Str("draft_id", draft.ID).Msg("order_draft_handoff_failed")
		return Submission{}, common.NewAppError("HANDOFF_UNAVAILABLE", "order could not be handed off, retry later", http.StatusServiceUnavailable, err)
	}
	sub.EventID = ev.ID.String()
	obs.RecordDraft("assembled")
	s.logger.Info().
		Str("draft_id", draft.ID).
		Str("business_id", draft.BusinessID).
		Int64("total", draft.Pricing.Total).
		Int("items", len(draft.Items)).
		Msg("order_draft_submitted")
	return sub, nil
}

func (s *Service) reconcile(ctx context.Context, in QuoteInput) ([]reconcile.Item, bool, error) {
	session := NewSession(s.reconciler)
	defer session.Close()

	for _, sel := range in.Selections {
		if err := session.Selections().Add(sel.ServiceID, sel.Quantity); err != nil {
			return nil, false, common.NewValidationError("INVALID_SELECTION", err.Error(), err)
		}
	}
	session.SetImported(in.Imported)

	available := true
	if err := session.RefreshCatalog(ctx, s.catalog, in.BusinessID); err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
			return nil, false, err
		}
		available = false
		s.logger.Warn().Err(err).Str("business_id", in.BusinessID).Msg("order_catalog_unavailable")
	}
	return session.Reconciled(), available, nil
}

func (s *Service) resolveAddress(in AddressInput) geo.ResolvedAddress {
	if in.Position != nil {
		return s.addresses.FromPosition(*in.Position, in.Label)
	}
	return s.addresses.FromText(in.Text)
}
