package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinates are on the globe.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

// String renders the coordinates at four decimals, about 11 m of precision.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f:%.4f", c.Latitude, c.Longitude)
}

// FacilityRecord is one urgent-care location.
type FacilityRecord struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Category   string   `json:"category,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Position returns the record's coordinates.
func (f FacilityRecord) Position() Coordinates {
	return Coordinates{Latitude: f.Latitude, Longitude: f.Longitude}
}

// FacilityQuery is the nearby-search request shape.
type FacilityQuery struct {
	Center         Coordinates `json:"center"`
	RadiusMeters   int         `json:"radius_meters"`
	CategoryFilter []string    `json:"category_filter"`
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FacilityEntry is a stored facility directory row.
type FacilityEntry struct {
	ID int64 `json:"id,omitempty"`
	FacilityRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoundingBox is a latitude/longitude rectangle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

const kmPerDegreeLat = 111.32

// BoundingBoxAround returns a rectangle that contains the circle of
// radiusMeters around center. Near the poles the longitude span is the
// whole globe.
func BoundingBoxAround(center Coordinates, radiusMeters int) BoundingBox {
	radiusKm := float64(radiusMeters) / 1000
	dLat := radiusKm / kmPerDegreeLat

	box := BoundingBox{
		MinLat: math.Max(center.Latitude-dLat, -90),
		MaxLat: math.Min(center.Latitude+dLat, 90),
		MinLon: -180,
		MaxLon: 180,
	}

	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	if cosLat > 0.01 {
		dLon := radiusKm / (kmPerDegreeLat * cosLat)
		if dLon < 180 {
			box.MinLon = math.Max(center.Longitude-dLon, -180)
			box.MaxLon = math.Min(center.Longitude+dLon, 180)
		}
	}
	return box
}

// RankByDistance annotates records with their distance from center, drops
// those farther than radiusMeters and those whose category is set but not
// in categories, and returns them nearest first. limit <= 0 means no limit. The input slice
// is not modified.
func RankByDistance(records []FacilityRecord, center Coordinates, radiusMeters int, categories []string, limit int) []FacilityRecord {
	allowed := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(c)] = struct{}{}
	}

	radiusKm := float64(radiusMeters) / 1000
	out := make([]FacilityRecord, 0, len(records))
	for _, r := range records {
		if len(allowed) > 0 && r.Category != "" {
			if _, ok := allowed[strings.ToLower(r.Category)]; !ok {
				continue
			}
		}
		d := HaversineKm(center, r.Position())
		if radiusMeters > 0 && d > radiusKm {
			continue
		}
		r.DistanceKm = &d
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceKm < *out[j].DistanceKm
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
