package geo_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pressing/internal/geo"
)

func TestResolveDefaultTable(t *testing.T) {
	resolver := geo.NewResolver(geo.DefaultRegionTable())

	cases := []struct {
		name   string
		lat    float64
		lng    float64
		region string
		ok     bool
	}{
		{name: "plateau", lat: 5.32, lng: -4.00, region: "Plateau", ok: true},
		{name: "yopougon", lat: 5.34, lng: -4.09, region: "Yopougon", ok: true},
		{name: "abobo", lat: 5.42, lng: -4.02, region: "Abobo", ok: true},
		{name: "metro gap", lat: 5.22, lng: -4.15},
		{name: "far away", lat: 48.85, lng: 2.35},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, ok := resolver.Resolve(tc.lat, tc.lng)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.region, name)
		})
	}
}

func TestResolveInsideSingleRegion(t *testing.T) {
	table := geo.MustRegionTable([]geo.Region{
		{Name: "North", Lat: geo.Range{Min: 10, Max: 20}, Lng: geo.Range{Min: 0, Max: 10}},
		{Name: "South", Lat: geo.Range{Min: 0, Max: 9}, Lng: geo.Range{Min: 0, Max: 10}},
	})
	resolver := geo.NewResolver(table)
	for _, region := range table.Regions() {
		midLat := (region.Lat.Min + region.Lat.Max) / 2
		midLng := (region.Lng.Min + region.Lng.Max) / 2
		name, ok := resolver.Resolve(midLat, midLng)
		require.True(t, ok)
		require.Equal(t, region.Name, name)
	}
}

func TestResolveOverlapFirstDeclaredWins(t *testing.T) {
	a := geo.Region{Name: "A", Lat: geo.Range{Min: 0, Max: 10}, Lng: geo.Range{Min: 0, Max: 10}}
	b := geo.Region{Name: "B", Lat: geo.Range{Min: 5, Max: 15}, Lng: geo.Range{Min: 5, Max: 15}}

	ab := geo.NewResolver(geo.MustRegionTable([]geo.Region{a, b}))
	ba := geo.NewResolver(geo.MustRegionTable([]geo.Region{b, a}))

	name, ok := ab.Resolve(7, 7)
	require.True(t, ok)
	require.Equal(t, "A", name)

	name, ok = ba.Resolve(7, 7)
	require.True(t, ok)
	require.Equal(t, "B", name)

	// shared boundary: 10 is the max of A and inside B
	name, _ = ab.Resolve(10, 10)
	require.Equal(t, "A", name)
	name, _ = ba.Resolve(10, 10)
	require.Equal(t, "B", name)
}

func TestResolveInclusiveBounds(t *testing.T) {
	resolver := geo.NewResolver(geo.MustRegionTable([]geo.Region{
		{Name: "Box", Lat: geo.Range{Min: 1, Max: 2}, Lng: geo.Range{Min: 3, Max: 4}},
	}))
	for _, pt := range [][2]float64{{1, 3}, {2, 4}, {1, 4}, {2, 3}} {
		_, ok := resolver.Resolve(pt[0], pt[1])
		require.True(t, ok, "corner %v should match", pt)
	}
	_, ok := resolver.Resolve(2.0000001, 3.5)
	require.False(t, ok)
}

func TestNewRegionTableRejectsInvertedRange(t *testing.T) {
	_, err := geo.NewRegionTable([]geo.Region{
		{Name: "Bad", Lat: geo.Range{Min: 2, Max: 1}, Lng: geo.Range{Min: 0, Max: 1}},
	})
	require.ErrorIs(t, err, geo.ErrInvalidRegion)

	_, err = geo.NewRegionTable([]geo.Region{{Name: "  "}})
	require.ErrorIs(t, err, geo.ErrInvalidRegion)
}

func TestRegionTableIsImmutable(t *testing.T) {
	rows := []geo.Region{{Name: "A", Lat: geo.Range{Min: 0, Max: 1}, Lng: geo.Range{Min: 0, Max: 1}}}
	table := geo.MustRegionTable(rows)
	rows[0].Name = "mutated"

	copied := table.Regions()
	copied[0].Name = "also mutated"

	require.Equal(t, "A", table.Regions()[0].Name)
}

func TestDecodeRegionTableYAML(t *testing.T) {
	doc := `
regions:
  - name: Zone 4
    lat: {min: 5.29, max: 5.30}
    lng: {min: -3.99, max: -3.97}
  - name: Riviera
    lat: {min: 5.34, max: 5.37}
    lng: {min: -3.98, max: -3.95}
`
	table, err := geo.DecodeRegionTableYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	require.Equal(t, "Zone 4", table.Regions()[0].Name)

	_, err = geo.DecodeRegionTableYAML(strings.NewReader("regions: []"))
	require.ErrorIs(t, err, geo.ErrInvalidRegion)
}

func TestMetroBox(t *testing.T) {
	require.True(t, geo.DefaultMetroBox.Contains(5.32, -4.00))
	require.True(t, geo.DefaultMetroBox.Contains(5.2, -4.2))
	require.False(t, geo.DefaultMetroBox.Contains(5.0, -4.0))
	require.True(t, geo.DefaultMetroBox.Contains(geo.DefaultMetroCenter.Lat, geo.DefaultMetroCenter.Lng))
}
