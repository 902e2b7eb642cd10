package models

import "fmt"

// GeoPoint is the single normalized coordinate type. Location payloads
// arrive in several historical shapes; NormalizeGeo converts them all at
// the boundary so nothing downstream branches on shape.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NormalizeGeo accepts the coordinate shapes seen in stored user documents
// and preference payloads and returns a GeoPoint:
//
//   - GeoPoint / *GeoPoint
//   - map with "latitude"/"longitude" keys
//   - map with "lat"/"lng" keys
//   - two-element array [lat, lng]
func NormalizeGeo(v any) (GeoPoint, error) {
	switch p := v.(type) {
	case GeoPoint:
		return p, nil
	case *GeoPoint:
		if p == nil {
			return GeoPoint{}, fmt.Errorf("nil geo point")
		}
		return *p, nil
	case map[string]any:
		if lat, lng, ok := geoFromMap(p, "latitude", "longitude"); ok {
			return GeoPoint{Latitude: lat, Longitude: lng}, nil
		}
		if lat, lng, ok := geoFromMap(p, "lat", "lng"); ok {
			return GeoPoint{Latitude: lat, Longitude: lng}, nil
		}
		return GeoPoint{}, fmt.Errorf("unrecognized geo map keys")
	case []any:
		if len(p) == 2 {
			lat, latOK := asFloat(p[0])
			lng, lngOK := asFloat(p[1])
			if latOK && lngOK {
				return GeoPoint{Latitude: lat, Longitude: lng}, nil
			}
		}
		return GeoPoint{}, fmt.Errorf("geo array must be [lat, lng]")
	case [2]float64:
		return GeoPoint{Latitude: p[0], Longitude: p[1]}, nil
	}
	return GeoPoint{}, fmt.Errorf("unsupported geo payload type %T", v)
}

func geoFromMap(m map[string]any, latKey, lngKey string) (float64, float64, bool) {
	lat, latOK := asFloat(m[latKey])
	lng, lngOK := asFloat(m[lngKey])
	return lat, lng, latOK && lngOK
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Bounds is an inclusive lat/lng rectangle, used to fence locations to the
// campus area.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether the point lies inside the bounds.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

// CampusBounds fences the service area; locations outside it are ignored.
var CampusBounds = Bounds{
	MinLat: 1.2840,
	MaxLat: 1.3100,
	MinLng: 103.7620,
	MaxLng: 103.7925,
}
