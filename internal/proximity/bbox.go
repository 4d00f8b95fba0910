package proximity

import (
	"math"

	"github.com/stuartshay/geostore/internal/calculator"
)

// boxMargin widens the box so rounding of stored coordinates never drops
// a point that lies inside the radius
const boxMargin = 1.01

// box is a lat/lng range enclosing a search circle. A nil range means the
// axis is not constrained.
type box struct {
	lat *[2]float64
	lng *[2]float64
}

// boundingBox returns the smallest lat/lng box that contains every point
// within radiusKM of the center. Boxes that would reach a pole or cross
// the antimeridian leave the affected axis unconstrained.
func boundingBox(lat, lng, radiusKM float64) box {
	angular := radiusKM * boxMargin / calculator.EarthRadiusKM
	if angular >= math.Pi/2 {
		return box{}
	}

	dLat := angular * 180 / math.Pi
	minLat, maxLat := lat-dLat, lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return box{}
	}

	var b box
	b.lat = &[2]float64{minLat, maxLat}

	sinRatio := math.Sin(angular) / math.Cos(lat*math.Pi/180)
	if sinRatio >= 1 {
		return b
	}
	dLng := math.Asin(sinRatio) * 180 / math.Pi
	minLng, maxLng := lng-dLng, lng+dLng
	if minLng < -180 || maxLng > 180 {
		return b
	}
	b.lng = &[2]float64{minLng, maxLng}
	return b
}

func (b box) where() condition {
	var c condition
	if b.lat != nil {
		c.sql = `l.lat BETWEEN ? AND ?`
		c.args = append(c.args, b.lat[0], b.lat[1])
	}
	if b.lng != nil {
		if c.sql != "" {
			c.sql += ` AND `
		}
		c.sql += `l.lng BETWEEN ? AND ?`
		c.args = append(c.args, b.lng[0], b.lng[1])
	}
	return c
}
