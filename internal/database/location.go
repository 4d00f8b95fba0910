package database

import (
	"fmt"

	"github.com/stuartshay/geostore/internal/geo"
)

// LocationColumns selects a location joined with its relationship. Queries
// alias locations as l and location_relationships as r.
const LocationColumns = `l.id, l.status, l.lat, l.lng, l.title, l.street, l.area, l.city, l.district,
    l.state, l.postcode, l.country, l.countrycode, l.updated, r.object_name, r.object_id, r.object_date`

// LocationJoin is the FROM clause matching LocationColumns
const LocationJoin = `location_relationships r JOIN locations l ON l.id = r.location_id`

// Scanner is satisfied by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...any) error
}

// ScanLocation reads one row selected with LocationColumns
func ScanLocation(row Scanner) (geo.Location, error) {
	var (
		loc        geo.Location
		status     string
		objectName string
		updated    Timestamp
		objectDate Timestamp
	)

	err := row.Scan(
		&loc.ID,
		&status,
		&loc.Lat,
		&loc.Lng,
		&loc.Title,
		&loc.Address.Street,
		&loc.Address.Area,
		&loc.Address.City,
		&loc.Address.District,
		&loc.Address.State,
		&loc.Address.Postcode,
		&loc.Address.Country,
		&loc.Address.CountryCode,
		&updated,
		&objectName,
		&loc.Object.ID,
		&objectDate,
	)
	if err != nil {
		return geo.Location{}, err
	}

	loc.Status = geo.Status(status)
	loc.Updated = updated.Time
	loc.ObjectDate = objectDate.Time

	loc.Object.Type, err = geo.ParseObjectType(objectName)
	if err != nil {
		return geo.Location{}, fmt.Errorf("location %d: %w", loc.ID, err)
	}
	return loc, nil
}
