package geo

// Position is a single location reading. Accuracy is in meters and is nil for
// typed or searched addresses.
type Position struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// ResolvedAddress is the display address derived from a position or free text.
// Region is nil when the position falls outside every named region.
type ResolvedAddress struct {
	Text     string    `json:"text"`
	Region   *string   `json:"region"`
	Position *Position `json:"position"`
}

// Box is the coarse metro bounding rectangle.
type Box struct {
	Lat Range `json:"lat"`
	Lng Range `json:"lng"`
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Box) Contains(lat, lng float64) bool {
	return b.Lat.Contains(lat) && b.Lng.Contains(lng)
}

// DefaultMetroBox covers greater Abidjan.
var DefaultMetroBox = Box{
	Lat: Range{Min: 5.2, Max: 5.55},
	Lng: Range{Min: -4.2, Max: -3.9},
}

// DefaultMetroCenter is used when no fix can be obtained.
var DefaultMetroCenter = Position{Lat: 5.3599517, Lng: -4.0082563}

// Resolver classifies coordinates against a region table.
type Resolver struct {
	table RegionTable
}

// NewResolver constructs a Resolver bound to table.
func NewResolver(table RegionTable) Resolver {
	return Resolver{table: table}
}

// Table returns the table the resolver scans.
func (r Resolver) Table() RegionTable { return r.table }

// Resolve returns the name of the first region containing the point. ok is
// false when no named region matches; that does not imply the point is
// outside the service area.
func (r Resolver) Resolve(lat, lng float64) (name string, ok bool) {
	for _, region := range r.table.regions {
		if region.Contains(lat, lng) {
			return region.Name, true
		}
	}
	return "", false
}
