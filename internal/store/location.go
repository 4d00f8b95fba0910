package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/metasync"
)

const selectByObject = `SELECT ` + database.LocationColumns + `
FROM ` + database.LocationJoin + `
WHERE r.object_name = ? AND r.object_id = ?`

// GetLocation returns the location attached to ref
func (s *Store) GetLocation(ctx context.Context, ref geo.ObjectRef) (loc *geo.Location, err error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	ctx, span, cancel := s.begin(ctx, "GetLocation", refAttrs(ref)...)
	defer cancel()
	defer func() { finish(span, err) }()

	return s.getLocation(ctx, s.db.DB(), ref)
}

func (s *Store) getLocation(ctx context.Context, q database.Querier, ref geo.ObjectRef) (*geo.Location, error) {
	row := q.QueryRowContext(ctx, s.db.Rebind(selectByObject), ref.Type.String(), ref.ID)
	l, err := database.ScanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", geo.ErrNotFound, ref)
	}
	if err != nil {
		return nil, database.Classify(fmt.Errorf("get location of %s: %w", ref, err))
	}
	return &l, nil
}

// SaveLocation creates or updates the location of ref and returns its id.
// The location and its relationship are written in one transaction; the
// host object meta is mirrored afterwards.
func (s *Store) SaveLocation(ctx context.Context, data LocationData, ref geo.ObjectRef) (id int64, err error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	if err := data.Validate(); err != nil {
		return 0, err
	}
	ctx, span, cancel := s.begin(ctx, "SaveLocation", refAttrs(ref)...)
	defer cancel()
	defer func() { finish(span, err) }()

	obj, known, err := s.lookupObject(ctx, ref)
	if err != nil {
		return 0, err
	}

	loc := geo.Location{
		Status:  data.Status,
		Lat:     geo.RoundCoordinate(data.Lat),
		Lng:     geo.RoundCoordinate(data.Lng),
		Title:   data.Title,
		Address: data.Address.Normalize(),
		Updated: now(),
		Object:  ref,
	}
	if loc.Status == "" {
		loc.Status = geo.StatusFromPublic(!known || obj.Published())
	}

	objectDate := data.ObjectDate
	if objectDate.IsZero() && known {
		objectDate = obj.Date
	}
	if !geo.ValidDate(objectDate) {
		objectDate = loc.Updated
	}
	loc.ObjectDate = objectDate.UTC().Truncate(time.Microsecond)

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, s.db.Rebind(
			`SELECT location_id FROM location_relationships WHERE object_name = ? AND object_id = ?`),
			ref.Type.String(), ref.ID).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			loc.ID, err = s.insertLocation(ctx, tx, loc)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, s.db.Rebind(
				`INSERT INTO location_relationships (object_name, object_id, location_id, object_date, updated)
				VALUES (?, ?, ?, ?, ?)`),
				ref.Type.String(), ref.ID, loc.ID, loc.ObjectDate, loc.Updated)
			if err != nil {
				return fmt.Errorf("insert relationship: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("find relationship: %w", err)
		}

		loc.ID = existing
		if err := s.updateLocation(ctx, tx, loc); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE location_relationships SET object_date = ?, updated = ? WHERE object_name = ? AND object_id = ?`),
			loc.ObjectDate, loc.Updated, ref.Type.String(), ref.ID)
		if err != nil {
			return fmt.Errorf("update relationship: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int64("location.id", loc.ID))
	log.Debug().
		Str("object_type", ref.Type.String()).
		Int64("object_id", ref.ID).
		Int64("location_id", loc.ID).
		Str("status", string(loc.Status)).
		Msg("Location saved")

	s.mirror(ctx, ref, metasync.Upsert, metasync.FieldsOf(loc))
	return loc.ID, nil
}

func (s *Store) insertLocation(ctx context.Context, tx *sql.Tx, loc geo.Location) (int64, error) {
	a := loc.Address
	id, err := s.db.InsertID(ctx, tx,
		`INSERT INTO locations (status, lat, lng, title, street, area, city, district, state, postcode, country, countrycode, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"id",
		string(loc.Status), loc.Lat, loc.Lng, loc.Title,
		a.Street, a.Area, a.City, a.District, a.State, a.Postcode, a.Country, a.CountryCode,
		loc.Updated)
	if err != nil {
		return 0, fmt.Errorf("insert location: %w", err)
	}
	return id, nil
}

func (s *Store) updateLocation(ctx context.Context, tx *sql.Tx, loc geo.Location) error {
	a := loc.Address
	_, err := tx.ExecContext(ctx, s.db.Rebind(
		`UPDATE locations SET status = ?, lat = ?, lng = ?, title = ?, street = ?, area = ?, city = ?,
		district = ?, state = ?, postcode = ?, country = ?, countrycode = ?, updated = ?
		WHERE id = ?`),
		string(loc.Status), loc.Lat, loc.Lng, loc.Title,
		a.Street, a.Area, a.City, a.District, a.State, a.Postcode, a.Country, a.CountryCode,
		loc.Updated, loc.ID)
	if err != nil {
		return fmt.Errorf("update location %d: %w", loc.ID, err)
	}
	return nil
}

// SaveLocationRelationship binds ref to a location. A zero locationID
// keeps the location ref is already bound to; a zero objectDate is read
// from the host object. The call does nothing when the resolved date is
// not a valid date.
func (s *Store) SaveLocationRelationship(ctx context.Context, ref geo.ObjectRef, locationID int64, objectDate time.Time) (err error) {
	if err := ref.Validate(); err != nil {
		return err
	}
	if locationID < 0 {
		return fmt.Errorf("%w: location id %d", geo.ErrInvalidArgument, locationID)
	}
	ctx, span, cancel := s.begin(ctx, "SaveLocationRelationship", refAttrs(ref)...)
	defer cancel()
	defer func() { finish(span, err) }()

	if objectDate.IsZero() {
		obj, known, err := s.lookupObject(ctx, ref)
		if err != nil {
			return err
		}
		if known {
			objectDate = obj.Date
		}
	}
	if !geo.ValidDate(objectDate) {
		log.Debug().
			Str("object_type", ref.Type.String()).
			Int64("object_id", ref.ID).
			Msg("Skipping relationship without a valid object date")
		return nil
	}
	objectDate = objectDate.UTC().Truncate(time.Microsecond)
	updated := now()

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if locationID == 0 {
			err := tx.QueryRowContext(ctx, s.db.Rebind(
				`SELECT location_id FROM location_relationships WHERE object_name = ? AND object_id = ?`),
				ref.Type.String(), ref.ID).Scan(&locationID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: no location bound to %s", geo.ErrNotFound, ref)
			}
			if err != nil {
				return fmt.Errorf("find relationship: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE location_relationships SET location_id = ?, object_date = ?, updated = ?
			WHERE object_name = ? AND object_id = ?`),
			locationID, objectDate, updated, ref.Type.String(), ref.ID)
		if err != nil {
			return fmt.Errorf("update relationship: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO location_relationships (object_name, object_id, location_id, object_date, updated)
			VALUES (?, ?, ?, ?, ?)`),
			ref.Type.String(), ref.ID, locationID, objectDate, updated)
		if err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
		return nil
	})
}

// DeleteLocation removes the location of ref with its metadata and
// relationship, then clears the mirrored host meta. It returns the id of
// the deleted location.
func (s *Store) DeleteLocation(ctx context.Context, ref geo.ObjectRef) (id int64, err error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	ctx, span, cancel := s.begin(ctx, "DeleteLocation", refAttrs(ref)...)
	defer cancel()
	defer func() { finish(span, err) }()

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.db.Rebind(
			`SELECT location_id FROM location_relationships WHERE object_name = ? AND object_id = ?`),
			ref.Type.String(), ref.ID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", geo.ErrNotFound, ref)
		}
		if err != nil {
			return fmt.Errorf("find relationship: %w", err)
		}

		steps := []struct {
			query string
			args  []any
		}{
			{`DELETE FROM locationmeta WHERE location_id = ?`, []any{id}},
			{`DELETE FROM location_relationships WHERE object_name = ? AND object_id = ?`, []any{ref.Type.String(), ref.ID}},
			{`DELETE FROM locations WHERE id = ?`, []any{id}},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, s.db.Rebind(step.query), step.args...); err != nil {
				return fmt.Errorf("delete location %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Debug().
		Str("object_type", ref.Type.String()).
		Int64("object_id", ref.ID).
		Int64("location_id", id).
		Msg("Location deleted")

	s.mirror(ctx, ref, metasync.Delete, metasync.Fields{})
	return id, nil
}

// TrashLocation marks the location of ref private without deleting it,
// as when the host object is moved to the trash
func (s *Store) TrashLocation(ctx context.Context, ref geo.ObjectRef) (id int64, err error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	ctx, span, cancel := s.begin(ctx, "TrashLocation", refAttrs(ref)...)
	defer cancel()
	defer func() { finish(span, err) }()

	loc, err := s.getLocation(ctx, s.db.DB(), ref)
	if err != nil {
		return 0, err
	}

	loc.Status = geo.StatusPrivate
	loc.Updated = now()
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE locations SET status = ?, updated = ? WHERE id = ?`),
			string(loc.Status), loc.Updated, loc.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("trash location %d: %w", loc.ID, err)
	}

	public := false
	s.mirror(ctx, ref, metasync.Upsert, metasync.Fields{Public: &public})
	return loc.ID, nil
}
