package proximity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stuartshay/geostore/internal/geo"
)

// Field is an address component or the coordinates, matched exactly by
// LocationsFor
type Field string

// Matchable fields
const (
	FieldCoordinates Field = "coordinates"
	FieldPostcode    Field = "postcode"
	FieldCity        Field = "city"
	FieldState       Field = "state"
	FieldCountry     Field = "country"
	FieldCountryCode Field = "countrycode"
)

var fieldColumns = map[Field]string{
	FieldPostcode:    "l.postcode",
	FieldCity:        "l.city",
	FieldState:       "l.state",
	FieldCountry:     "l.country",
	FieldCountryCode: "l.countrycode",
}

// ParseField maps a field name to a Field
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := fieldColumns[f]; ok || f == FieldCoordinates {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown field %q", geo.ErrInvalidArgument, s)
}

// LocationsFor returns the locations of typ whose field equals value.
// Coordinates are given as "lat,lng" and matched at stored precision.
func (e *Engine) LocationsFor(ctx context.Context, typ geo.ObjectType, field Field, value string, includePrivate bool) ([]geo.Location, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %d", geo.ErrInvalidObjectType, int(typ))
	}

	var cond condition
	switch field {
	case FieldCoordinates:
		lat, lng, err := parseCoordinates(value)
		if err != nil {
			return nil, err
		}
		cond = condition{
			sql:  `l.lat = ? AND l.lng = ?`,
			args: []any{geo.RoundCoordinate(lat), geo.RoundCoordinate(lng)},
		}
	default:
		column, ok := fieldColumns[field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", geo.ErrInvalidArgument, field)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("%w: empty %s", geo.ErrInvalidArgument, field)
		}
		if field == FieldCountryCode {
			value = strings.ToUpper(value)
		}
		cond = condition{sql: column + ` = ?`, args: []any{value}}
	}

	ctx, span := tracer.Start(ctx, "proximity.LocationsFor")
	defer span.End()
	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	locs, err := e.selectLocations(ctx, typ, includePrivate, cond)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return e.capResults(locs, 0), nil
}

// parseCoordinates parses "lat,lng"
func parseCoordinates(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected \"lat,lng\", got %q", geo.ErrInvalidCoordinates, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: latitude %q", geo.ErrInvalidCoordinates, parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: longitude %q", geo.ErrInvalidCoordinates, parts[1])
	}
	return lat, lng, geo.ValidateCoordinates(lat, lng)
}
