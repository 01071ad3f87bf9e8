package geo

import (
	"errors"
	"math"
)

// EarthRadius in meters
const EarthRadius = 6371000

const degToRad = math.Pi / 180

var ErrNoStopsNearby = errors.New("no stops nearby")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Haversine distance between two points in meters
func Haversine(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad

	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad

	sinDlat := math.Sin(dLat / 2)
	sinDlng := math.Sin(dLng / 2)

	aVal := sinDlat*sinDlat + sinDlng*sinDlng*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(aVal), math.Sqrt(1-aVal))
	return EarthRadius * c
}

// Locatable is anything with a fixed position, typically a transit stop.
type Locatable interface {
	Position() Point
}

// Nearest returns the index of the candidate closest to user and its
// distance in meters. Returns ErrNoStopsNearby for an empty candidate list.
func Nearest[T Locatable](user Point, candidates []T) (int, float64, error) {
	if len(candidates) == 0 {
		return -1, 0, ErrNoStopsNearby
	}

	best := 0
	bestDist := Haversine(user, candidates[0].Position())
	for i := 1; i < len(candidates); i++ {
		if d := Haversine(user, candidates[i].Position()); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist, nil
}

// ValidCoordinates reports whether lat/lng are finite and inside GPS ranges.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
