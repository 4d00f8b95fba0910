package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
)

// Filter selects locations for ListLocations and PurgeLocations. Zero
// fields match everything.
type Filter struct {
	Type   geo.ObjectType
	Status geo.Status

	// Coordinates matches locations stored at exactly this point
	Coordinates *calculator.Point
}

func (f Filter) validate() error {
	if f.Type != 0 && !f.Type.Valid() {
		return fmt.Errorf("%w: %d", geo.ErrInvalidObjectType, int(f.Type))
	}
	if _, err := geo.ParseStatus(string(f.Status)); err != nil {
		return err
	}
	if f.Coordinates != nil {
		return geo.ValidateCoordinates(f.Coordinates.Latitude, f.Coordinates.Longitude)
	}
	return nil
}

// where renders the filter as a WHERE clause with its arguments
func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Type != 0 {
		conds = append(conds, "r.object_name = ?")
		args = append(args, f.Type.String())
	}
	if f.Status != "" {
		conds = append(conds, "l.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Coordinates != nil {
		conds = append(conds, "l.lat = ? AND l.lng = ?")
		args = append(args, geo.RoundCoordinate(f.Coordinates.Latitude), geo.RoundCoordinate(f.Coordinates.Longitude))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListLocations returns the locations matching filter ordered by object
// type and id
func (s *Store) ListLocations(ctx context.Context, filter Filter) (locs []geo.Location, err error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	ctx, span, cancel := s.begin(ctx, "ListLocations", attribute.String("object.type", filter.Type.String()))
	defer cancel()
	defer func() { finish(span, err) }()

	where, args := filter.where()
	query := `SELECT ` + database.LocationColumns + ` FROM ` + database.LocationJoin + where +
		` ORDER BY r.object_name, r.object_id`

	rows, err := s.db.DB().QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("list locations: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		loc, err := database.ScanLocation(rows)
		if err != nil {
			return nil, database.Classify(fmt.Errorf("scan location: %w", err))
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err)
	}

	span.SetAttributes(attribute.Int("locations.count", len(locs)))
	return locs, nil
}

// PurgeLocations deletes every location matching filter through
// DeleteLocation, so mirrored host meta is cleared too. It returns the
// number of deleted locations.
func (s *Store) PurgeLocations(ctx context.Context, filter Filter) (int, error) {
	locs, err := s.ListLocations(ctx, filter)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, loc := range locs {
		if err := ctx.Err(); err != nil {
			return deleted, database.Classify(err)
		}
		_, err := s.DeleteLocation(ctx, loc.Object)
		if errors.Is(err, geo.ErrNotFound) {
			// Removed concurrently
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("purge %s: %w", loc.Object, err)
		}
		deleted++
	}

	log.Info().
		Str("object_type", filter.Type.String()).
		Str("status", string(filter.Status)).
		Int("deleted", deleted).
		Msg("Locations purged")
	return deleted, nil
}
