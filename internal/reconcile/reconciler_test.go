package reconcile_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

func strPtr(s string) *string { return &s }

func liveCatalog() []catalog.Service {
	return []catalog.Service{
		{ID: "wash", Name: "Wash", Price: 1000, Category: strPtr("Linge")},
		{ID: " iron ", Name: "Iron", Price: 500, Category: strPtr("Repassage")},
		{ID: "dry", Name: "Dry clean", Price: 2500},
		{ID: "duvet", Name: "Duvet", Price: 2500},
	}
}

func TestResolveStrategies(t *testing.T) {
	r := reconcile.New(zerolog.Nop())

	cases := []struct {
		name     string
		id       string
		imported []reconcile.Imported
		wantName string
		price    int64
		source   reconcile.Source
	}{
		{
			name: "id match wins over imported data", id: " wash ",
			imported: []reconcile.Imported{{ServiceID: "wash", Name: "Old wash", Price: 900}},
			wantName: "Wash", price: 1000, source: reconcile.SourceCatalogID,
		},
		{
			name: "catalog ids are trimmed", id: "iron",
			wantName: "Iron", price: 500, source: reconcile.SourceCatalogID,
		},
		{
			name: "stale id recovered by price", id: "old-iron",
			imported: []reconcile.Imported{{ServiceID: "old-iron", Name: "Ironing", Price: 500}},
			wantName: "Iron", price: 500, source: reconcile.SourceCatalogPrice,
		},
		{
			name: "imported data used when catalog has nothing", id: "carpet",
			imported: []reconcile.Imported{{ServiceID: "carpet", Name: "Carpet", Price: 7000}},
			wantName: "Carpet", price: 7000, source: reconcile.SourceImported,
		},
		{
			name: "not found placeholder is unresolved", id: "carpet",
			imported: []reconcile.Imported{{ServiceID: "carpet", Name: reconcile.NotFoundName, Price: 7000}},
			wantName: reconcile.NotFoundName, price: 0, source: reconcile.SourceUnresolved,
		},
		{
			name: "no data at all is unresolved", id: "mystery",
			wantName: reconcile.NotFoundName, price: 0, source: reconcile.SourceUnresolved,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item, err := r.Resolve(tc.id, tc.imported, liveCatalog())
			require.NoError(t, err)
			require.Equal(t, tc.wantName, item.Name)
			require.Equal(t, tc.price, item.Price)
			require.Equal(t, tc.source, item.Source)
			require.Equal(t, tc.source == reconcile.SourceUnresolved, item.IsUnresolved())
		})
	}
}

func TestPriceMatchAmbiguityPicksFirstCatalogEntry(t *testing.T) {
	r := reconcile.New(zerolog.Nop())
	imported := []reconcile.Imported{{ServiceID: "renamed", Name: "Duvet", Price: 2500}}

	item, err := r.Resolve("renamed", imported, liveCatalog())
	require.NoError(t, err)
	// Both "dry" and "duvet" cost 2500; catalog order decides even though the
	// imported name says otherwise.
	require.Equal(t, "Dry clean", item.Name)
	require.Equal(t, "dry", item.MatchedID)
	require.Equal(t, reconcile.SourceCatalogPrice, item.Source)
}

func TestRejectsInvalidIDs(t *testing.T) {
	var buf bytes.Buffer
	r := reconcile.New(zerolog.New(&buf))

	for _, id := range []string{"", "   ", reconcile.FallbackIDMarker, " unknown-service "} {
		_, err := r.Resolve(id, nil, liveCatalog())
		require.ErrorIs(t, err, reconcile.ErrInvalidServiceID, "id %q", id)
	}
	require.Contains(t, buf.String(), "reconcile_invalid_service_id")

	items := r.ResolveSelections([]reconcile.Selection{
		{ServiceID: reconcile.FallbackIDMarker, Quantity: 2},
		{ServiceID: "wash", Quantity: 2},
	}, nil, liveCatalog())
	require.Len(t, items, 1)
	require.Equal(t, "wash", items[0].ServiceID)
}

func TestResolveSelectionsIsDeterministic(t *testing.T) {
	r := reconcile.New(zerolog.Nop())
	selections := []reconcile.Selection{
		{ServiceID: "wash", Quantity: 2},
		{ServiceID: "old-iron", Quantity: 1},
		{ServiceID: "ghost", Quantity: 4},
	}
	imported := []reconcile.Imported{{ServiceID: "old-iron", Name: "Ironing", Price: 500, Quantity: 9}}

	first := r.ResolveSelections(selections, imported, liveCatalog())
	second := r.ResolveSelections(selections, imported, liveCatalog())
	require.Equal(t, first, second)

	require.Len(t, first, 3)
	require.Equal(t, 2, first[0].Quantity)
	require.Equal(t, 1, first[1].Quantity, "selection quantity beats imported quantity")
	require.True(t, first[2].IsUnresolved())
	require.Equal(t, 4, first[2].Quantity)
}

func TestEmptyCatalogIsNotAnError(t *testing.T) {
	r := reconcile.New(zerolog.Nop())
	imported := []reconcile.Imported{{ServiceID: "wash", Name: "Wash", Price: 1000}}

	items := r.ResolveSelections([]reconcile.Selection{{ServiceID: "wash", Quantity: 2}}, imported, nil)
	require.Len(t, items, 1)
	require.Equal(t, reconcile.SourceImported, items[0].Source)

	// Once the catalog arrives the same inputs upgrade to a catalog match.
	items = r.ResolveSelections([]reconcile.Selection{{ServiceID: "wash", Quantity: 2}}, imported, liveCatalog())
	require.Equal(t, reconcile.SourceCatalogID, items[0].Source)
}

func TestResolveDoesNotAliasCatalog(t *testing.T) {
	r := reconcile.New(zerolog.Nop())
	live := liveCatalog()
	item, err := r.Resolve("wash", nil, live)
	require.NoError(t, err)
	*item.Category = "changed"
	require.Equal(t, "Linge", *live[0].Category)
}

func TestCustomStrategyChain(t *testing.T) {
	r := reconcile.New(zerolog.Nop(), reconcile.MatchByID)
	imported := []reconcile.Imported{{ServiceID: "old-iron", Name: "Ironing", Price: 500}}
	item, err := r.Resolve("old-iron", imported, liveCatalog())
	require.NoError(t, err)
	require.True(t, item.IsUnresolved())
}
