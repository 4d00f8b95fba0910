// Package calculator provides distance unit conversion and great-circle
// distance calculations between geographic coordinates.
package calculator

import (
	"math"
)

const (
	// EarthRadiusKM is the Earth's radius in kilometers
	EarthRadiusKM = 6371.0
)

// Point represents a GPS coordinate
type Point struct {
	Latitude  float64
	Longitude float64
}

// Haversine calculates the great-circle distance between two points
// on the Earth's surface given their latitudes and longitudes in decimal degrees
//
// Formula:
// a = sin²(Δφ/2) + cos φ1 ⋅ cos φ2 ⋅ sin²(Δλ/2)
// c = 2 ⋅ atan2( √a, √(1−a) )
// d = R ⋅ c
//
// where:
// φ is latitude, λ is longitude, R is earth's radius (6371 km)
// Δφ is the difference in latitude, Δλ is the difference in longitude
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lon1Rad := degreesToRadians(lon1)
	lat2Rad := degreesToRadians(lat2)
	lon2Rad := degreesToRadians(lon2)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

// SphericalCosines calculates the great-circle distance in kilometers
// using the spherical law of cosines:
//
// d = R ⋅ acos( sin φ1 ⋅ sin φ2 + cos φ1 ⋅ cos φ2 ⋅ cos Δλ )
//
// Identical points return exactly 0. The cosine term is clamped to [-1, 1]
// so rounding never yields NaN; precision degrades for nearly antipodal
// points, which is left as a known numeric edge case.
func SphericalCosines(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)
	deltaLon := degreesToRadians(lon2 - lon1)

	cosine := math.Sin(lat1Rad)*math.Sin(lat2Rad) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	return EarthRadiusKM * math.Acos(math.Max(-1, math.Min(1, cosine)))
}

// GreatCircleDistance returns the distance between two points in the given unit
func GreatCircleDistance(a, b Point, unit string) (float64, error) {
	km := SphericalCosines(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	return Convert(km, "km", unit)
}

// PathDistance returns the distance of each segment along a polyline of
// points and their sum, both in the given unit. Fewer than two points
// yield no segments and a zero total.
func PathDistance(points []Point, unit string) ([]float64, float64, error) {
	if _, err := Metrify(unit); err != nil {
		return nil, 0, err
	}
	if len(points) < 2 {
		return nil, 0, nil
	}

	segments := make([]float64, 0, len(points)-1)
	var total float64
	for i := 1; i < len(points); i++ {
		d, err := GreatCircleDistance(points[i-1], points[i], unit)
		if err != nil {
			return nil, 0, err
		}
		segments = append(segments, d)
		total += d
	}

	return segments, total, nil
}

// degreesToRadians converts degrees to radians
func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// DistanceMetrics holds calculated distance statistics
type DistanceMetrics struct {
	TotalDistanceKM float64
	MaxDistanceKM   float64
	MinDistanceKM   float64
	TotalLocations  int
	AvgDistanceKM   float64
}

// CalculateMetrics computes distance metrics of a set of points
// relative to an origin
func CalculateMetrics(origin Point, points []Point) DistanceMetrics {
	if len(points) == 0 {
		return DistanceMetrics{}
	}

	metrics := DistanceMetrics{
		TotalLocations: len(points),
		MinDistanceKM:  math.MaxFloat64,
	}

	var totalDistance float64

	for _, p := range points {
		distance := Haversine(origin.Latitude, origin.Longitude, p.Latitude, p.Longitude)
		totalDistance += distance

		if distance > metrics.MaxDistanceKM {
			metrics.MaxDistanceKM = distance
		}
		if distance < metrics.MinDistanceKM {
			metrics.MinDistanceKM = distance
		}
	}

	metrics.TotalDistanceKM = totalDistance
	metrics.AvgDistanceKM = totalDistance / float64(len(points))

	return metrics
}
