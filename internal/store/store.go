// Package store implements the location store: the lifecycle of locations,
// their relationships to host objects and their typed metadata, kept
// consistent inside SQL transactions and mirrored into host object meta.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/host"
	"github.com/stuartshay/geostore/internal/metasync"
)

var tracer = otel.Tracer("github.com/stuartshay/geostore/internal/store")

// Options tunes the store
type Options struct {
	// QueryTimeout bounds each operation on top of the caller's context.
	// Zero means no extra bound.
	QueryTimeout time.Duration
}

// Store manages locations, relationships and location metadata
type Store struct {
	db      *database.Client
	objects host.Objects
	sync    *metasync.Synchronizer
	opts    Options
}

// New creates a Store. objects and sync may be nil: without objects every
// host object is treated as unknown, without sync nothing is mirrored.
func New(db *database.Client, objects host.Objects, sync *metasync.Synchronizer, opts Options) *Store {
	return &Store{
		db:      db,
		objects: objects,
		sync:    sync,
		opts:    opts,
	}
}

// LocationData is the input of SaveLocation
type LocationData struct {
	Lat     float64     `json:"lat"`
	Lng     float64     `json:"lng"`
	Title   string      `json:"title,omitempty"`
	Address geo.Address `json:"address"`

	// Status overrides the status derived from the host object
	Status geo.Status `json:"status,omitempty"`

	// ObjectDate overrides the date read from the host object
	ObjectDate time.Time `json:"object_date,omitempty"`
}

// Validate checks coordinates, status and country code
func (d LocationData) Validate() error {
	if err := geo.ValidateCoordinates(d.Lat, d.Lng); err != nil {
		return err
	}
	if _, err := geo.ParseStatus(string(d.Status)); err != nil {
		return err
	}
	if code := strings.TrimSpace(d.Address.CountryCode); len(code) > 2 {
		return fmt.Errorf("%w: country code %q is longer than two letters", geo.ErrInvalidArgument, code)
	}
	return nil
}

// begin starts a span and applies the query timeout
func (s *Store) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, context.CancelFunc) {
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	if s.opts.QueryTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
		return ctx, span, cancel
	}
	return ctx, span, func() {}
}

// finish records err on the span and ends it
func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, geo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func refAttrs(ref geo.ObjectRef) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("object.type", ref.Type.String()),
		attribute.Int64("object.id", ref.ID),
	}
}

// mirror pushes a change into host object meta. Failures are logged and
// never undo the committed write.
func (s *Store) mirror(ctx context.Context, ref geo.ObjectRef, action metasync.Action, fields metasync.Fields) {
	if s.sync == nil {
		return
	}
	if err := s.sync.Sync(ctx, ref, action, fields); err != nil {
		log.Warn().
			Err(err).
			Str("object_type", ref.Type.String()).
			Int64("object_id", ref.ID).
			Str("action", action.String()).
			Msg("Failed to mirror location into object meta")
	}
}

// lookupObject asks the host about ref. ok is false when the host does
// not know the object.
func (s *Store) lookupObject(ctx context.Context, ref geo.ObjectRef) (host.Object, bool, error) {
	if s.objects == nil {
		return host.Object{}, false, nil
	}
	obj, err := s.objects.Lookup(ctx, ref)
	if errors.Is(err, geo.ErrNotFound) {
		return host.Object{}, false, nil
	}
	if err != nil {
		return host.Object{}, false, fmt.Errorf("lookup %s: %w", ref, err)
	}
	return obj, true, nil
}

// now returns the current time at the precision every dialect stores
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
