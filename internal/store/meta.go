package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
)

func validateMetaKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty meta key", geo.ErrInvalidArgument)
	}
	return nil
}

// GetLocationMeta returns one metadata value of a location
func (s *Store) GetLocationMeta(ctx context.Context, locationID int64, key string) (v geo.MetaValue, err error) {
	if err := validateMetaKey(key); err != nil {
		return geo.Null(), err
	}
	ctx, span, cancel := s.begin(ctx, "GetLocationMeta",
		attribute.Int64("location.id", locationID), attribute.String("meta.key", key))
	defer cancel()
	defer func() { finish(span, err) }()

	var raw string
	err = s.db.DB().QueryRowContext(ctx, s.db.Rebind(
		`SELECT meta_value FROM locationmeta WHERE location_id = ? AND meta_key = ?`),
		locationID, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return geo.Null(), fmt.Errorf("%w: meta %q of location %d", geo.ErrNotFound, key, locationID)
	}
	if err != nil {
		return geo.Null(), database.Classify(fmt.Errorf("get location meta: %w", err))
	}
	return geo.DecodeMeta(raw), nil
}

// ListLocationMeta returns every metadata value of a location. A missing
// location has no metadata.
func (s *Store) ListLocationMeta(ctx context.Context, locationID int64) (values map[string]geo.MetaValue, err error) {
	ctx, span, cancel := s.begin(ctx, "ListLocationMeta", attribute.Int64("location.id", locationID))
	defer cancel()
	defer func() { finish(span, err) }()

	rows, err := s.db.DB().QueryContext(ctx, s.db.Rebind(
		`SELECT meta_key, meta_value FROM locationmeta WHERE location_id = ? ORDER BY meta_key`),
		locationID)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("list location meta: %w", err))
	}
	defer rows.Close()

	values = make(map[string]geo.MetaValue)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, database.Classify(err)
		}
		values[key] = geo.DecodeMeta(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err)
	}
	return values, nil
}

// SaveLocationMeta writes values for a location, updating existing keys in
// place. Keys are written in sorted order and the returned meta ids follow
// that order. Nothing is written when the location does not exist.
func (s *Store) SaveLocationMeta(ctx context.Context, locationID int64, values map[string]geo.MetaValue) (ids []int64, err error) {
	keys := make([]string, 0, len(values))
	encoded := make(map[string]string, len(values))
	for key, v := range values {
		if err := validateMetaKey(key); err != nil {
			return nil, err
		}
		raw, err := geo.EncodeMeta(v)
		if err != nil {
			return nil, fmt.Errorf("%w: meta %q: %w", geo.ErrInvalidArgument, key, err)
		}
		keys = append(keys, key)
		encoded[key] = raw
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, span, cancel := s.begin(ctx, "SaveLocationMeta",
		attribute.Int64("location.id", locationID), attribute.Int("meta.count", len(keys)))
	defer cancel()
	defer func() { finish(span, err) }()

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT 1 FROM locations WHERE id = ?`), locationID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find location %d: %w", locationID, err)
		}

		ids = make([]int64, 0, len(keys))
		for _, key := range keys {
			id, err := s.upsertMeta(ctx, tx, locationID, key, encoded[key])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) upsertMeta(ctx context.Context, tx *sql.Tx, locationID int64, key, raw string) (int64, error) {
	var metaID int64
	err := tx.QueryRowContext(ctx, s.db.Rebind(
		`SELECT meta_id FROM locationmeta WHERE location_id = ? AND meta_key = ?`),
		locationID, key).Scan(&metaID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		metaID, err = s.db.InsertID(ctx, tx,
			`INSERT INTO locationmeta (location_id, meta_key, meta_value) VALUES (?, ?, ?)`,
			"meta_id", locationID, key, raw)
		if err != nil {
			return 0, fmt.Errorf("insert meta %q: %w", key, err)
		}
		return metaID, nil
	case err != nil:
		return 0, fmt.Errorf("find meta %q: %w", key, err)
	}

	_, err = tx.ExecContext(ctx, s.db.Rebind(
		`UPDATE locationmeta SET meta_value = ? WHERE meta_id = ?`), raw, metaID)
	if err != nil {
		return 0, fmt.Errorf("update meta %q: %w", key, err)
	}
	return metaID, nil
}

// DeleteLocationMeta removes the given keys of a location, or all of its
// metadata when no key is given
func (s *Store) DeleteLocationMeta(ctx context.Context, locationID int64, keys ...string) (err error) {
	ctx, span, cancel := s.begin(ctx, "DeleteLocationMeta",
		attribute.Int64("location.id", locationID), attribute.StringSlice("meta.keys", keys))
	defer cancel()
	defer func() { finish(span, err) }()

	if len(keys) == 0 {
		_, err = s.db.DB().ExecContext(ctx, s.db.Rebind(
			`DELETE FROM locationmeta WHERE location_id = ?`), locationID)
		return database.Classify(err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			_, err := tx.ExecContext(ctx, s.db.Rebind(
				`DELETE FROM locationmeta WHERE location_id = ? AND meta_key = ?`), locationID, key)
			if err != nil {
				return fmt.Errorf("delete meta %q: %w", key, err)
			}
		}
		return nil
	})
}
