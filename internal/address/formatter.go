package address

import (
	"fmt"
	"strings"

	"github.com/noah-isme/backend-pressing/internal/geo"
)

const (
	DefaultCity            = "Abidjan"
	DefaultCountry         = "Côte d'Ivoire"
	DefaultCoordinateLabel = "Selected position"
)

// Input carries what the formatter needs to choose a display form.
type Input struct {
	Region      *string
	InsideMetro bool
	Lat         float64
	Lng         float64
	Label       string
}

// Formatter renders display addresses.
type Formatter struct {
	City    string
	Country string
	Label   string
}

// NewFormatter returns a Formatter with defaults applied to empty fields.
func NewFormatter(city, country, label string) Formatter {
	return Formatter{
		City:    valueOrDefault(city, DefaultCity),
		Country: valueOrDefault(country, DefaultCountry),
		Label:   valueOrDefault(label, DefaultCoordinateLabel),
	}
}

// Format applies, in order: named region, metro-only, raw coordinates. A
// region is only named for points inside the metro box.
func (f Formatter) Format(in Input) string {
	city := valueOrDefault(f.City, DefaultCity)
	country := valueOrDefault(f.Country, DefaultCountry)
	if in.InsideMetro && in.Region != nil && strings.TrimSpace(*in.Region) != "" {
		return fmt.Sprintf("%s, %s, %s", strings.TrimSpace(*in.Region), city, country)
	}
	if in.InsideMetro {
		return fmt.Sprintf("%s, %s", city, country)
	}
	label := valueOrDefault(in.Label, valueOrDefault(f.Label, DefaultCoordinateLabel))
	return fmt.Sprintf("%s (%.4f, %.4f)", label, in.Lat, in.Lng)
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// Service turns positions and free text into resolved addresses.
type Service struct {
	resolver  geo.Resolver
	metro     geo.Box
	formatter Formatter
}

// NewService wires a resolver, metro box and formatter.
func NewService(resolver geo.Resolver, metro geo.Box, formatter Formatter) *Service {
	return &Service{resolver: resolver, metro: metro, formatter: formatter}
}

// FromPosition resolves pos. Region lookup only happens inside the metro box.
func (s *Service) FromPosition(pos geo.Position, label string) geo.ResolvedAddress {
	in := Input{Lat: pos.Lat, Lng: pos.Lng, Label: label}
	if s.metro.Contains(pos.Lat, pos.Lng) {
		in.InsideMetro = true
		if name, ok := s.resolver.Resolve(pos.Lat, pos.Lng); ok {
			in.Region = &name
		}
	}
	p := pos
	return geo.ResolvedAddress{
		Text:     s.formatter.Format(in),
		Region:   in.Region,
		Position: &p,
	}
}

// FromRegion builds the address for an already classified fix, typically the
// outcome of a geolocation acquisition.
func (s *Service) FromRegion(pos geo.Position, region *string, insideMetro bool, label string) geo.ResolvedAddress {
	if !insideMetro {
		region = nil
	}
	p := pos
	return geo.ResolvedAddress{
		Text:     s.formatter.Format(Input{Region: region, InsideMetro: insideMetro, Lat: pos.Lat, Lng: pos.Lng, Label: label}),
		Region:   region,
		Position: &p,
	}
}

// FromText wraps a user-entered address. No position is attached.
func (s *Service) FromText(text string) geo.ResolvedAddress {
	return geo.ResolvedAddress{Text: strings.Join(strings.Fields(text), " ")}
}
