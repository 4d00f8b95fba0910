package host

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
)

// hostSchemas holds the tables the SQL host reads and writes when the
// host CMS shares the geostore database
var hostSchemas = map[database.Dialect][]string{
	database.Postgres: {
		`CREATE TABLE IF NOT EXISTS host_objects (
    object_name VARCHAR(20) NOT NULL,
    object_id BIGINT NOT NULL,
    state VARCHAR(20) NOT NULL DEFAULT '',
    object_date TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (object_name, object_id)
)`,
		`CREATE TABLE IF NOT EXISTS host_objectmeta (
    object_name VARCHAR(20) NOT NULL,
    object_id BIGINT NOT NULL,
    meta_key VARCHAR(255) NOT NULL,
    meta_value TEXT NOT NULL,
    PRIMARY KEY (object_name, object_id, meta_key)
)`,
	},
	database.MySQL: {
		`CREATE TABLE IF NOT EXISTS host_objects (
    object_name VARCHAR(20) NOT NULL,
    object_id BIGINT UNSIGNED NOT NULL,
    state VARCHAR(20) NOT NULL DEFAULT '',
    object_date DATETIME(6) NOT NULL,
    PRIMARY KEY (object_name, object_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS host_objectmeta (
    object_name VARCHAR(20) NOT NULL,
    object_id BIGINT UNSIGNED NOT NULL,
    meta_key VARCHAR(191) NOT NULL,
    meta_value LONGTEXT NOT NULL,
    PRIMARY KEY (object_name, object_id, meta_key)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	database.SQLite: {
		`CREATE TABLE IF NOT EXISTS host_objects (
    object_name TEXT NOT NULL,
    object_id INTEGER NOT NULL,
    state TEXT NOT NULL DEFAULT '',
    object_date DATETIME NOT NULL,
    PRIMARY KEY (object_name, object_id)
)`,
		`CREATE TABLE IF NOT EXISTS host_objectmeta (
    object_name TEXT NOT NULL,
    object_id INTEGER NOT NULL,
    meta_key TEXT NOT NULL,
    meta_value TEXT NOT NULL,
    PRIMARY KEY (object_name, object_id, meta_key)
)`,
	},
}

// SQL is a host backed by tables in the geostore database
type SQL struct {
	db *database.Client
}

// NewSQL creates a SQL host on an open client
func NewSQL(db *database.Client) *SQL {
	return &SQL{db: db}
}

// Migrate creates the host tables if they do not exist
func (h *SQL) Migrate(ctx context.Context) error {
	return h.db.Exec(ctx, hostSchemas[h.db.Dialect()]...)
}

// Put registers or replaces a host object
func (h *SQL) Put(ctx context.Context, obj Object) error {
	if err := obj.Ref.Validate(); err != nil {
		return err
	}
	date := obj.Date
	if date.IsZero() {
		date = time.Now()
	}
	date = date.UTC().Truncate(time.Microsecond)

	_, err := h.db.DB().ExecContext(ctx, h.upsert("host_objects",
		[]string{"object_name", "object_id"}, []string{"state", "object_date"}),
		obj.Ref.Type.String(), obj.Ref.ID, obj.State, date)
	if err != nil {
		return database.Classify(fmt.Errorf("put host object: %w", err))
	}
	return nil
}

// upsert builds a single-statement insert-or-update bound for the
// client's dialect. Arguments bind keys first, then cols.
func (h *SQL) upsert(table string, keys, cols []string) string {
	return h.db.Rebind(upsertQuery(h.db.Dialect(), table, keys, cols))
}

func upsertQuery(dialect database.Dialect, table string, keys, cols []string) string {
	all := append(append([]string{}, keys...), cols...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")

	sets := make([]string, len(cols))
	for i, col := range cols {
		if dialect == database.MySQL {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), marks)
	if dialect == database.MySQL {
		return query + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return query + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(sets, ", "))
}

// Lookup implements Objects
func (h *SQL) Lookup(ctx context.Context, ref geo.ObjectRef) (Object, error) {
	obj := Object{Ref: ref}
	var date database.Timestamp

	err := h.db.DB().QueryRowContext(ctx, h.db.Rebind(
		`SELECT state, object_date FROM host_objects WHERE object_name = ? AND object_id = ?`),
		ref.Type.String(), ref.ID).Scan(&obj.State, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, geo.ErrNotFound
	}
	if err != nil {
		return Object{}, database.Classify(fmt.Errorf("lookup host object: %w", err))
	}

	obj.Date = date.Time
	return obj, nil
}

// MetaValue returns a stored metadata value
func (h *SQL) MetaValue(ctx context.Context, ref geo.ObjectRef, key string) (string, bool, error) {
	var value string
	err := h.db.DB().QueryRowContext(ctx, h.db.Rebind(
		`SELECT meta_value FROM host_objectmeta WHERE object_name = ? AND object_id = ? AND meta_key = ?`),
		ref.Type.String(), ref.ID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, database.Classify(err)
	}
	return value, true, nil
}

// PostMeta implements Meta
func (h *SQL) PostMeta() ObjectMeta { return sqlMeta{h, geo.Post} }

// TermMeta implements Meta
func (h *SQL) TermMeta() ObjectMeta { return sqlMeta{h, geo.Term} }

// UserMeta implements Meta
func (h *SQL) UserMeta() ObjectMeta { return sqlMeta{h, geo.User} }

// CommentMeta implements Meta
func (h *SQL) CommentMeta() ObjectMeta { return sqlMeta{h, geo.Comment} }

type sqlMeta struct {
	host *SQL
	typ  geo.ObjectType
}

func (m sqlMeta) Update(ctx context.Context, objectID int64, key, value string) error {
	_, err := m.host.db.DB().ExecContext(ctx, m.host.upsert("host_objectmeta",
		[]string{"object_name", "object_id", "meta_key"}, []string{"meta_value"}),
		m.typ.String(), objectID, key, value)
	return database.Classify(err)
}

func (m sqlMeta) Delete(ctx context.Context, objectID int64, key string) error {
	db := m.host.db
	_, err := db.DB().ExecContext(ctx, db.Rebind(
		`DELETE FROM host_objectmeta WHERE object_name = ? AND object_id = ? AND meta_key = ?`),
		m.typ.String(), objectID, key)
	return database.Classify(err)
}
