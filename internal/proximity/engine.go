// Package proximity answers "what lies near this point" queries over the
// stored locations of one object type.
package proximity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
)

// DefaultDistance is the search radius when a query names none
const DefaultDistance = "50km"

var tracer = otel.Tracer("github.com/stuartshay/geostore/internal/proximity")

// Options tunes the engine
type Options struct {
	// DefaultDistance replaces an empty Query.Distance
	DefaultDistance string
	// MaxLimit caps every result set when positive
	MaxLimit int
	// QueryTimeout bounds each query when positive
	QueryTimeout time.Duration
}

// Engine runs proximity and exact-match queries
type Engine struct {
	db   *database.Client
	opts Options
}

// NewEngine creates an Engine
func NewEngine(db *database.Client, opts Options) *Engine {
	if opts.DefaultDistance == "" {
		opts.DefaultDistance = DefaultDistance
	}
	return &Engine{db: db, opts: opts}
}

// Query describes a nearby search
type Query struct {
	Type     geo.ObjectType
	Lat      float64
	Lng      float64
	Distance string
	// Limit caps the results when at least 1
	Limit int
	// IncludePrivate keeps private locations in the results
	IncludePrivate bool
}

// Nearby returns the locations of q.Type within q.Distance of the query
// point, nearest first. Distances are reported in the unit of q.Distance.
func (e *Engine) Nearby(ctx context.Context, q Query) ([]geo.Location, error) {
	distance := strings.TrimSpace(q.Distance)
	if distance == "" {
		distance = e.opts.DefaultDistance
	}
	d, err := calculator.ParseDistance(distance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", geo.ErrInvalidDistance, err)
	}
	return e.HaversineQuery(ctx, q.Type, q.Lat, q.Lng, d.Quantity, d.Unit, q.Limit, q.IncludePrivate)
}

// PostsNearby runs Nearby over posts
func (e *Engine) PostsNearby(ctx context.Context, lat, lng float64, distance string, limit int, includePrivate bool) ([]geo.Location, error) {
	return e.Nearby(ctx, Query{Type: geo.Post, Lat: lat, Lng: lng, Distance: distance, Limit: limit, IncludePrivate: includePrivate})
}

// TermsNearby runs Nearby over terms
func (e *Engine) TermsNearby(ctx context.Context, lat, lng float64, distance string, limit int, includePrivate bool) ([]geo.Location, error) {
	return e.Nearby(ctx, Query{Type: geo.Term, Lat: lat, Lng: lng, Distance: distance, Limit: limit, IncludePrivate: includePrivate})
}

// UsersNearby runs Nearby over users
func (e *Engine) UsersNearby(ctx context.Context, lat, lng float64, distance string, limit int, includePrivate bool) ([]geo.Location, error) {
	return e.Nearby(ctx, Query{Type: geo.User, Lat: lat, Lng: lng, Distance: distance, Limit: limit, IncludePrivate: includePrivate})
}

// CommentsNearby runs Nearby over comments
func (e *Engine) CommentsNearby(ctx context.Context, lat, lng float64, distance string, limit int, includePrivate bool) ([]geo.Location, error) {
	return e.Nearby(ctx, Query{Type: geo.Comment, Lat: lat, Lng: lng, Distance: distance, Limit: limit, IncludePrivate: includePrivate})
}

// HaversineQuery returns the locations of typ strictly closer than radius
// (in unit) to lat/lng, ordered by ascending distance and capped at limit
// when limit is at least 1
func (e *Engine) HaversineQuery(ctx context.Context, typ geo.ObjectType, lat, lng, radius float64, unit string, limit int, includePrivate bool) (locs []geo.Location, err error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %d", geo.ErrInvalidObjectType, int(typ))
	}
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return nil, fmt.Errorf("%w: radius %v", geo.ErrInvalidDistance, radius)
	}
	radiusKM, err := calculator.Convert(radius, unit, "km")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", geo.ErrInvalidDistance, err)
	}

	ctx, span := tracer.Start(ctx, "proximity.HaversineQuery", trace.WithAttributes(
		attribute.String("object.type", typ.String()),
		attribute.Float64("query.radius_km", radiusKM),
		attribute.Int("query.limit", limit),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	box := boundingBox(lat, lng, radiusKM)
	candidates, err := e.selectLocations(ctx, typ, includePrivate, box.where())
	if err != nil {
		return nil, err
	}

	for _, loc := range candidates {
		km := calculator.SphericalCosines(lat, lng, loc.Lat, loc.Lng)
		if km >= radiusKM {
			continue
		}
		loc.Distance, err = calculator.Convert(km, "km", unit)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}

	sort.SliceStable(locs, func(i, j int) bool {
		if locs[i].Distance != locs[j].Distance {
			return locs[i].Distance < locs[j].Distance
		}
		return locs[i].ID < locs[j].ID
	})
	locs = e.capResults(locs, limit)

	span.SetAttributes(
		attribute.Int("query.candidates", len(candidates)),
		attribute.Int("query.results", len(locs)),
	)
	log.Debug().
		Str("object_type", typ.String()).
		Float64("radius_km", radiusKM).
		Int("candidates", len(candidates)).
		Int("results", len(locs)).
		Msg("Proximity query")
	return locs, nil
}

func (e *Engine) capResults(locs []geo.Location, limit int) []geo.Location {
	if limit >= 1 && len(locs) > limit {
		locs = locs[:limit]
	}
	if e.opts.MaxLimit > 0 && len(locs) > e.opts.MaxLimit {
		locs = locs[:e.opts.MaxLimit]
	}
	return locs
}

// selectLocations loads the locations of typ matching an extra condition
func (e *Engine) selectLocations(ctx context.Context, typ geo.ObjectType, includePrivate bool, cond condition) ([]geo.Location, error) {
	query := `SELECT ` + database.LocationColumns + ` FROM ` + database.LocationJoin + ` WHERE r.object_name = ?`
	args := []any{typ.String()}
	if !includePrivate {
		query += ` AND l.status <> ?`
		args = append(args, string(geo.StatusPrivate))
	}
	if cond.sql != "" {
		query += ` AND ` + cond.sql
		args = append(args, cond.args...)
	}
	query += ` ORDER BY l.id`

	rows, err := e.db.DB().QueryContext(ctx, e.db.Rebind(query), args...)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("select locations: %w", err))
	}
	defer rows.Close()

	var locs []geo.Location
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
	return locs, nil
}

type condition struct {
	sql  string
	args []any
}
