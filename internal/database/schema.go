package database

import (
	"context"
	"fmt"
)

// Table names
const (
	TableLocations     = "locations"
	TableRelationships = "location_relationships"
	TableMeta          = "locationmeta"
)

// Schema DDL per dialect. Relationships are unique per (object_name,
// object_id) and meta rows per (location_id, meta_key).
var schemas = map[Dialect][]string{
	Postgres: {
		`CREATE TABLE IF NOT EXISTS locations (
    id BIGSERIAL PRIMARY KEY,
    lat NUMERIC(9,6) NOT NULL DEFAULT 0,
    lng NUMERIC(9,6) NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    street VARCHAR(144) NOT NULL DEFAULT '',
    area VARCHAR(128) NOT NULL DEFAULT '',
    city VARCHAR(96) NOT NULL DEFAULT '',
    district VARCHAR(96) NOT NULL DEFAULT '',
    state VARCHAR(96) NOT NULL DEFAULT '',
    postcode VARCHAR(24) NOT NULL DEFAULT '',
    country VARCHAR(96) NOT NULL DEFAULT '',
    countrycode VARCHAR(2) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'public',
    updated TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS locations_coordinates_idx ON locations (lat, lng)`,
		`CREATE INDEX IF NOT EXISTS locations_city_idx ON locations (country, city)`,
		`CREATE INDEX IF NOT EXISTS locations_region_idx ON locations (country, state)`,
		`CREATE INDEX IF NOT EXISTS locations_postcode_idx ON locations (country, postcode)`,
		`CREATE INDEX IF NOT EXISTS locations_countrycode_idx ON locations (countrycode)`,
		`CREATE TABLE IF NOT EXISTS location_relationships (
    object_name VARCHAR(20) NOT NULL,
    object_id BIGINT NOT NULL,
    location_id BIGINT NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
    object_date TIMESTAMPTZ NOT NULL,
    updated TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (object_name, object_id)
)`,
		`CREATE INDEX IF NOT EXISTS location_relationships_location_idx ON location_relationships (location_id)`,
		`CREATE INDEX IF NOT EXISTS location_relationships_date_idx ON location_relationships (object_name, object_date)`,
		`CREATE TABLE IF NOT EXISTS locationmeta (
    meta_id BIGSERIAL PRIMARY KEY,
    location_id BIGINT NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
    meta_key VARCHAR(255) NOT NULL,
    meta_value TEXT NOT NULL,
    UNIQUE (location_id, meta_key)
)`,
		`CREATE INDEX IF NOT EXISTS locationmeta_key_idx ON locationmeta (meta_key)`,
	},
	MySQL: {
		`CREATE TABLE IF NOT EXISTS locations (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    lat DECIMAL(9,6) NOT NULL DEFAULT 0,
    lng DECIMAL(9,6) NOT NULL DEFAULT 0,
    title TEXT NOT NULL,
    street VARCHAR(144) NOT NULL DEFAULT '',
    area VARCHAR(128) NOT NULL DEFAULT '',
    city VARCHAR(96) NOT NULL DEFAULT '',
    district VARCHAR(96) NOT NULL DEFAULT '',
    state VARCHAR(96) NOT NULL DEFAULT '',
    postcode VARCHAR(24) NOT NULL DEFAULT '',
    country VARCHAR(96) NOT NULL DEFAULT '',
    countrycode CHAR(2) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'public',
    updated DATETIME(6) NOT NULL,
    PRIMARY KEY (id),
    KEY coordinates (lat, lng),
    KEY city (country, city),
    KEY region (country, state),
    KEY postcode (country, postcode),
    KEY countrycode (countrycode)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS location_relationships (
    object_name VARCHAR(20) NOT NULL,
    object_id BIGINT UNSIGNED NOT NULL,
    location_id BIGINT UNSIGNED NOT NULL,
    object_date DATETIME(6) NOT NULL,
    updated DATETIME(6) NOT NULL,
    PRIMARY KEY (object_name, object_id),
    KEY location (location_id),
    KEY object_date (object_name, object_date),
    CONSTRAINT fk_relationship_location FOREIGN KEY (location_id) REFERENCES locations (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS locationmeta (
    meta_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    location_id BIGINT UNSIGNED NOT NULL,
    meta_key VARCHAR(191) NOT NULL,
    meta_value LONGTEXT NOT NULL,
    PRIMARY KEY (meta_id),
    UNIQUE KEY location_key (location_id, meta_key),
    KEY meta_key (meta_key),
    CONSTRAINT fk_meta_location FOREIGN KEY (location_id) REFERENCES locations (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS locations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lat DECIMAL(9,6) NOT NULL DEFAULT 0,
    lng DECIMAL(9,6) NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    street TEXT NOT NULL DEFAULT '',
    area TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    district TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT '',
    postcode TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    countrycode TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'public',
    updated DATETIME NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS locations_coordinates_idx ON locations (lat, lng)`,
		`CREATE INDEX IF NOT EXISTS locations_city_idx ON locations (country, city)`,
		`CREATE INDEX IF NOT EXISTS locations_postcode_idx ON locations (country, postcode)`,
		`CREATE TABLE IF NOT EXISTS location_relationships (
    object_name TEXT NOT NULL,
    object_id INTEGER NOT NULL,
    location_id INTEGER NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
    object_date DATETIME NOT NULL,
    updated DATETIME NOT NULL,
    PRIMARY KEY (object_name, object_id)
)`,
		`CREATE INDEX IF NOT EXISTS location_relationships_location_idx ON location_relationships (location_id)`,
		`CREATE TABLE IF NOT EXISTS locationmeta (
    meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
    location_id INTEGER NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
    meta_key TEXT NOT NULL,
    meta_value TEXT NOT NULL,
    UNIQUE (location_id, meta_key)
)`,
	},
}

// Migrate creates the locations, relationships and meta tables if they
// do not exist
func (c *Client) Migrate(ctx context.Context) error {
	return c.Exec(ctx, schemas[c.dialect]...)
}

// Exec runs each statement in order, stopping at the first failure
func (c *Client) Exec(ctx context.Context, statements ...string) error {
	if len(statements) == 0 {
		return fmt.Errorf("no statements for dialect %q", c.dialect)
	}
	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return Classify(fmt.Errorf("schema statement failed: %w", err))
		}
	}
	return nil
}
