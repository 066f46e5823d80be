package order_test

import (
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/order"
	"github.com/noah-isme/backend-pressing/internal/pricing"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

func strPtr(s string) *string { return &s }

func washItems() []reconcile.Item {
	return []reconcile.Item{
		{ServiceID: "wash", Quantity: 2, Name: "Wash", Price: 1000, Category: strPtr("Linge"), Source: reconcile.SourceCatalogID},
		{ServiceID: "ghost", Quantity: 1, Name: reconcile.NotFoundName, Price: 0, Source: reconcile.SourceUnresolved},
	}
}

func TestAssembleRejectsMissingPreconditions(t *testing.T) {
	addr := geo.ResolvedAddress{Text: "Plateau, Abidjan, Côte d'Ivoire"}

	draft, err := order.Assemble(nil, addr, pricing.Breakdown{}, order.Timing{})
	require.ErrorIs(t, err, order.ErrEmptySelection)
	require.Empty(t, draft.ID)

	draft, err = order.Assemble(washItems(), geo.ResolvedAddress{Text: "   "}, pricing.Breakdown{}, order.Timing{})
	require.ErrorIs(t, err, order.ErrEmptyAddress)
	require.Empty(t, draft.ID)

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, 422, appErr.HTTPStatus)
}

func TestAssembleBuildsImmutableDraft(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	assembler := order.Assembler{Now: func() time.Time { return fixed }}
	items := washItems()
	region := "Plateau"
	addr := geo.ResolvedAddress{Text: " Plateau, Abidjan ", Region: &region, Position: &geo.Position{Lat: 5.32, Lng: -4.0}}
	breakdown := pricing.Breakdown{Subtotal: 2000, DeliveryFee: 1000, ServiceFee: 500, Total: 3500}
	timing := order.Timing{CollectionTime: fixed.Add(time.Hour), DeliveryTime: fixed.Add(48 * time.Hour)}

	draft, err := assembler.Assemble(items, addr, breakdown, timing)
	require.NoError(t, err)

	id, err := ulid.ParseStrict(draft.ID)
	require.NoError(t, err)
	require.Equal(t, ulid.Timestamp(fixed), id.Time())
	require.Equal(t, fixed, draft.CreatedAt)
	require.Equal(t, "Plateau, Abidjan", draft.Address.Text)
	require.Equal(t, breakdown, draft.Pricing)

	// Mutating inputs afterwards does not leak into the draft.
	*items[0].Category = "changed"
	items[0].Name = "changed"
	region = "Cocody"
	addr.Position.Lat = 0
	require.Equal(t, "Linge", *draft.Items[0].Category)
	require.Equal(t, "Wash", draft.Items[0].Name)
	require.Equal(t, "Plateau", *draft.Address.Region)
	require.Equal(t, 5.32, draft.Address.Position.Lat)

	again, err := assembler.Assemble(washItems(), addr, breakdown, timing)
	require.NoError(t, err)
	require.NotEqual(t, draft.ID, again.ID, "each assembly supersedes with a new id")
}

func TestDraftUnresolved(t *testing.T) {
	draft, err := order.Assemble(washItems(), geo.ResolvedAddress{Text: "Cocody"}, pricing.Breakdown{}, order.Timing{})
	require.NoError(t, err)
	unresolved := draft.Unresolved()
	require.Len(t, unresolved, 1)
	require.Equal(t, "ghost", unresolved[0].ServiceID)
}

func TestDraftPayload(t *testing.T) {
	collection := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	items := []reconcile.Item{
		{ServiceID: "wash", Quantity: 5, Name: "Wash", Price: 1000, Category: strPtr("Linge"), Source: reconcile.SourceCatalogID},
		{ServiceID: "ghost", Quantity: 1, Name: reconcile.NotFoundName, Source: reconcile.SourceUnresolved},
	}
	draft, err := order.Assemble(items, geo.ResolvedAddress{Text: "Abidjan, Côte d'Ivoire"},
		pricing.Breakdown{Subtotal: 5000, DeliveryFee: 0, ServiceFee: 500, Total: 5500},
		order.Timing{CollectionTime: collection, DeliveryTime: collection.Add(24 * time.Hour)})
	require.NoError(t, err)

	payload := draft.Payload(order.PayloadOptions{Language: language.English, Currency: "XOF"})
	require.Equal(t, "Abidjan, Côte d'Ivoire", payload.DeliveryAddress)
	require.Equal(t, order.PayloadPricing{Subtotal: 5000, DeliveryFee: 0, ServiceFee: 500, Total: 5500}, payload.Pricing)
	require.Equal(t, "2024-06-02T08:00:00Z", payload.CollectionTime)
	require.Equal(t, "2024-06-03T08:00:00Z", payload.DeliveryTime)

	require.Len(t, payload.Services, 2)
	require.Equal(t, "wash", payload.Services[0].ServiceID)
	require.Equal(t, 5, payload.Services[0].Quantity)
	require.Equal(t, int64(1000), payload.Services[0].Price)
	require.Equal(t, "Linge", *payload.Services[0].Category)
	require.Equal(t, "Wash × 5 = 5,000 XOF", payload.Services[0].Description)
	require.Equal(t, "Service not found × 1", payload.Services[1].Description)
}
