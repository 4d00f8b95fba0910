package geo

import (
	"fmt"
	"math"
	"time"
)

// Location is a stored geocoded place attached to exactly one host object
type Location struct {
	ID      int64     `json:"id"`
	Status  Status    `json:"status"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	Title   string    `json:"title,omitempty"`
	Address Address   `json:"address"`
	Updated time.Time `json:"updated"`

	// Set when the location is read together with its relationship
	Object     ObjectRef `json:"object"`
	ObjectDate time.Time `json:"object_date,omitempty"`

	// Distance from the query point in the query's unit; zero outside
	// proximity queries
	Distance float64 `json:"distance,omitempty"`
}

// Public reports whether the location is publicly visible
func (l Location) Public() bool {
	return l.Status != StatusPrivate
}

// Relationship binds a Location to a host object
type Relationship struct {
	Object     ObjectRef
	LocationID int64
	ObjectDate time.Time
	Updated    time.Time
}

// ValidateCoordinates checks that lat/lng are finite and within range
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: latitude or longitude is not a number", ErrInvalidCoordinates)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinates, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinates, lng)
	}
	return nil
}

// RoundCoordinate rounds to the six fractional digits the schema stores
func RoundCoordinate(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// ValidDate reports whether t passes the structural date check applied to
// relationship object dates
func ValidDate(t time.Time) bool {
	return !t.IsZero() && t.Year() >= 1 && t.Year() <= 9999
}
