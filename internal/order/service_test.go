package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pressing/internal/address"
	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/events"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/order"
	"github.com/noah-isme/backend-pressing/internal/pricing"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

type recordingEmitter struct {
	mu      sync.Mutex
	topics  []string
	ids     []string
	payload []order.SubmittedEvent
	err     error
}

func (r *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return events.Event{}, r.err
	}
	r.topics = append(r.topics, topic)
	r.ids = append(r.ids, aggregateID)
	if ev, ok := payload.(order.SubmittedEvent); ok {
		r.payload = append(r.payload, ev)
	}
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func newAddressService() *address.Service {
	return address.NewService(geo.NewResolver(geo.DefaultRegionTable()), geo.DefaultMetroBox, address.NewFormatter("", "", ""))
}

func newService(t *testing.T, fetcher order.CatalogFetcher, emitter order.Emitter) *order.Service {
	t.Helper()
	svc, err := order.NewService(order.ServiceConfig{
		Catalog:   fetcher,
		Addresses: newAddressService(),
		Events:    emitter,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func washCatalog() order.CatalogFetcher {
	return staticFetcher(
		catalog.Service{ID: "wash", Name: "Wash", Price: 1000, Category: strPtr("Linge")},
		catalog.Service{ID: "iron", Name: "Iron", Price: 500},
	)
}

func TestQuoteScenarios(t *testing.T) {
	svc := newService(t, washCatalog(), nil)
	ctx := context.Background()

	quote, err := svc.Quote(ctx, order.QuoteInput{BusinessID: "biz", Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 2}}})
	require.NoError(t, err)
	require.Equal(t, int64(3500), quote.Pricing.Total)
	require.True(t, quote.CatalogAvailable)

	quote, err = svc.Quote(ctx, order.QuoteInput{BusinessID: "biz", Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 5}}})
	require.NoError(t, err)
	require.Equal(t, int64(0), quote.Pricing.DeliveryFee)
	require.Equal(t, int64(5500), quote.Pricing.Total)
}

func TestQuoteDegradesWhenCatalogUnavailable(t *testing.T) {
	down := fetcherFunc(func(context.Context, string) ([]catalog.Service, error) {
		return nil, common.NewAppError("CATALOG_UNAVAILABLE", "down", http.StatusServiceUnavailable, errors.New("db"))
	})
	svc := newService(t, down, nil)

	quote, err := svc.Quote(context.Background(), order.QuoteInput{
		BusinessID: "biz",
		Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 1}, {ServiceID: "ghost", Quantity: 1}},
		Imported:   []reconcile.Imported{{ServiceID: "wash", Name: "Wash", Price: 1000}},
	})
	require.NoError(t, err)
	require.False(t, quote.CatalogAvailable)
	require.Equal(t, reconcile.SourceImported, quote.Items[0].Source)
	require.Equal(t, []string{"ghost"}, quote.Unresolved)
	require.Equal(t, int64(1000), quote.Pricing.Subtotal)
}

func TestQuotePropagatesClientErrors(t *testing.T) {
	bad := fetcherFunc(func(context.Context, string) ([]catalog.Service, error) {
		return nil, common.NewAppError("INVALID_BUSINESS", "business id is required", http.StatusBadRequest, nil)
	})
	svc := newService(t, bad, nil)
	_, err := svc.Quote(context.Background(), order.QuoteInput{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_BUSINESS", appErr.Code)
}

func TestSubmitHandsOffDraft(t *testing.T) {
	emitter := &recordingEmitter{}
	svc := newService(t, washCatalog(), emitter)
	collection := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)

	sub, err := svc.Submit(context.Background(), order.SubmitInput{
		QuoteInput: order.QuoteInput{
			BusinessID: "biz",
			Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 2}, {ServiceID: reconcile.FallbackIDMarker, Quantity: 1}},
		},
		Address:    order.AddressInput{Position: &geo.Position{Lat: 5.32, Lng: -4.00}},
		Timing:     order.Timing{CollectionTime: collection, DeliveryTime: collection.Add(24 * time.Hour)},
		CustomerID: "cust-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, sub.EventID)
	require.Equal(t, "Plateau, Abidjan, Côte d'Ivoire", sub.Draft.Address.Text)
	require.Equal(t, "cust-1", sub.Draft.CustomerID)
	require.Len(t, sub.Draft.Items, 1, "fallback marker is skipped")
	require.Equal(t, int64(3500), sub.Payload.Pricing.Total)

	require.Equal(t, []string{events.TopicDraftSubmitted}, emitter.topics)
	require.Equal(t, []string{sub.Draft.ID}, emitter.ids)
	require.Equal(t, "biz", emitter.payload[0].BusinessID)
}

func TestSubmitRejectsEmptyPreconditions(t *testing.T) {
	emitter := &recordingEmitter{}
	svc := newService(t, washCatalog(), emitter)

	_, err := svc.Submit(context.Background(), order.SubmitInput{
		QuoteInput: order.QuoteInput{BusinessID: "biz"},
		Address:    order.AddressInput{Text: "Cocody"},
	})
	require.ErrorIs(t, err, order.ErrEmptySelection)

	_, err = svc.Submit(context.Background(), order.SubmitInput{
		QuoteInput: order.QuoteInput{BusinessID: "biz", Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 1}}},
	})
	require.ErrorIs(t, err, order.ErrEmptyAddress)
	require.Empty(t, emitter.topics)
}

func TestSubmitHandoffFailure(t *testing.T) {
	svc := newService(t, washCatalog(), &recordingEmitter{err: errors.New("queue down")})
	_, err := svc.Submit(context.Background(), order.SubmitInput{
		QuoteInput: order.QuoteInput{BusinessID: "biz", Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 1}}},
		Address:    order.AddressInput{Text: "Cocody"},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
}

// txEvents is an in-memory events.TxStore that discards writes of failed
// transactions.
type txEvents struct {
	mu        sync.Mutex
	committed []events.Event
	staged    []events.Event
}

func (s *txEvents) InsertEvent(_ context.Context, event events.Event) (events.Event, error) {
	s.staged = append(s.staged, event)
	return event, nil
}

func (s *txEvents) InTx(_ context.Context, fn func(events.EventStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
	err := fn(s)
	if err == nil {
		s.committed = append(s.committed, s.staged...)
	}
	s.staged = nil
	return err
}

type schedulerFunc func(context.Context, events.Event) error

func (f schedulerFunc) Schedule(ctx context.Context, ev events.Event) error { return f(ctx, ev) }

func TestSubmitHandoffFailureLeavesNoEvent(t *testing.T) {
	store := &txEvents{}
	bus := &events.Bus{
		Store:     store,
		Scheduler: schedulerFunc(func(context.Context, events.Event) error { return errors.New("redis down") }),
	}
	svc := newService(t, washCatalog(), bus)
	in := order.SubmitInput{
		QuoteInput: order.QuoteInput{BusinessID: "biz", Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 1}}},
		Address:    order.AddressInput{Text: "Cocody"},
	}

	for i := 0; i < 2; i++ {
		_, err := svc.Submit(context.Background(), in)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "HANDOFF_UNAVAILABLE", appErr.Code)
	}
	require.Empty(t, store.committed)
}

func TestSubmitNotifierFailureStillSucceeds(t *testing.T) {
	store := &txEvents{}
	scheduled := 0
	bus := &events.Bus{
		Store: store,
		Scheduler: schedulerFunc(func(context.Context, events.Event) error {
			scheduled++
			return nil
		}),
		Notifiers: []events.Notifier{events.NotifierFunc(func(context.Context, events.Event) error {
			return errors.New("log sink down")
		})},
	}
	svc := newService(t, washCatalog(), bus)

	sub, err := svc.Submit(context.Background(), order.SubmitInput{
		QuoteInput: order.QuoteInput{BusinessID: "biz", Selections: []reconcile.Selection{{ServiceID: "wash", Quantity: 1}}},
		Address:    order.AddressInput{Text: "Cocody"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, sub.EventID)
	require.Equal(t, 1, scheduled)
	require.Len(t, store.committed, 1)
	require.Equal(t, events.TopicDraftSubmitted, store.committed[0].Topic)
}

func TestQuoteRejectsOverflowingCatalogPrice(t *testing.T) {
	svc := newService(t, staticFetcher(catalog.Service{ID: "gold", Name: "Gold", Price: 1 << 62}), nil)
	_, err := svc.Quote(context.Background(), order.QuoteInput{
		BusinessID: "biz",
		Selections: []reconcile.Selection{{ServiceID: "gold", Quantity: 2}},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "AMOUNT_OUT_OF_RANGE", appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.ErrorIs(t, err, pricing.ErrAmountOverflow)
}

func postJSON(t *testing.T, h http.HandlerFunc, ctx context.Context, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestQuoteHandler(t *testing.T) {
	handler := order.NewHandler(newService(t, washCatalog(), nil))

	rec := postJSON(t, handler.Quote, context.Background(), `{"businessId":"biz","selections":[{"serviceId":"wash","quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data order.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(3500), resp.Data.Pricing.Total)

	rec = postJSON(t, handler.Quote, context.Background(), `{"businessId":"biz","selections":[{"serviceId":"wash","quantity":0}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = postJSON(t, handler.Quote, context.Background(), `{"businessId":"biz","extra":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDraftHandler(t *testing.T) {
	emitter := &recordingEmitter{}
	handler := order.NewHandler(newService(t, washCatalog(), emitter))
	ctx := common.WithCustomerID(context.Background(), "cust-42")

	body := `{
		"businessId":"biz",
		"selections":[{"serviceId":"wash","quantity":5},{"serviceId":"ghost","quantity":1}],
		"address":{"lat":5.0,"lng":-4.0},
		"collectionTime":"2024-06-02T08:00:00Z",
		"deliveryTime":"2024-06-03T08:00:00Z"
	}`
	rec := postJSON(t, handler.CreateDraft, ctx, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data       order.Submission `json:"data"`
		Unresolved []string         `json:"unresolved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Selected position (5.0000, -4.0000)", resp.Data.Payload.DeliveryAddress)
	require.Equal(t, "cust-42", resp.Data.Draft.CustomerID)
	require.Equal(t, []string{"ghost"}, resp.Unresolved)
	require.Equal(t, int64(5500), resp.Data.Payload.Pricing.Total)
}

func TestCreateDraftHandlerValidation(t *testing.T) {
	handler := order.NewHandler(newService(t, washCatalog(), &recordingEmitter{}))

	cases := map[string]struct {
		body string
		code string
	}{
		"delivery before collection": {
			body: `{"businessId":"biz","selections":[{"serviceId":"wash","quantity":1}],"address":{"text":"Cocody"},
				"collectionTime":"2024-06-03T08:00:00Z","deliveryTime":"2024-06-02T08:00:00Z"}`,
			code: "VALIDATION_FAILED",
		},
		"lat without lng": {
			body: `{"businessId":"biz","selections":[{"serviceId":"wash","quantity":1}],"address":{"lat":5.3},
				"collectionTime":"2024-06-02T08:00:00Z","deliveryTime":"2024-06-03T08:00:00Z"}`,
			code: "VALIDATION_FAILED",
		},
		"empty selection": {
			body: `{"businessId":"biz","selections":[],"address":{"text":"Cocody"},
				"collectionTime":"2024-06-02T08:00:00Z","deliveryTime":"2024-06-03T08:00:00Z"}`,
			code: "EMPTY_SELECTION",
		},
		"imported price above bound": {
			body: `{"businessId":"biz","selections":[{"serviceId":"x","quantity":2}],
				"imported":[{"serviceId":"x","name":"Big","price":4611686018427387904}],"address":{"text":"Cocody"},
				"collectionTime":"2024-06-02T08:00:00Z","deliveryTime":"2024-06-03T08:00:00Z"}`,
			code: "VALIDATION_FAILED",
		},
		"quantity above bound": {
			body: `{"businessId":"biz","selections":[{"serviceId":"wash","quantity":1001}],"address":{"text":"Cocody"},
				"collectionTime":"2024-06-02T08:00:00Z","deliveryTime":"2024-06-03T08:00:00Z"}`,
			code: "VALIDATION_FAILED",
		},
		"empty address": {
			body: `{"businessId":"biz","selections":[{"serviceId":"wash","quantity":1}],"address":{"text":"  "},
				"collectionTime":"2024-06-02T08:00:00Z","deliveryTime":"2024-06-03T08:00:00Z"}`,
			code: "EMPTY_ADDRESS",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, handler.CreateDraft, context.Background(), tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.True(t, strings.Contains(rec.Body.String(), tc.code), rec.Body.String())
		})
	}
}
