// Package grpc implements the LocationService gRPC server: location and
// metadata lifecycle, proximity queries, unit conversion and management
// of background maintenance jobs.
package grpc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/jobs"
	"github.com/stuartshay/geostore/internal/proximity"
	"github.com/stuartshay/geostore/internal/queue"
	"github.com/stuartshay/geostore/internal/store"
)

// ListJobs paging bounds
const (
	defaultJobsLimit = 50
	maxJobsLimit     = 500
)

// Server implements LocationServiceServer
type Server struct {
	store  *store.Store
	engine *proximity.Engine
	queue  *queue.Queue
}

// NewServer creates a new gRPC server instance
func NewServer(st *store.Store, engine *proximity.Engine, q *queue.Queue) *Server {
	return &Server{store: st, engine: engine, queue: q}
}

// GetLocation returns the location of an object
func (s *Server) GetLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := newRequest(req).ref()
	if err != nil {
		return nil, err
	}
	loc, err := s.store.GetLocation(ctx, ref)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"location": locationFields(*loc)})
}

// SaveLocation creates or updates the location of an object
func (s *Server) SaveLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	ref, err := r.ref()
	if err != nil {
		return nil, err
	}
	data, err := r.locationData()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("object_type", ref.Type.String()).
		Int64("object_id", ref.ID).
		Msg("Received save location request")

	id, err := s.store.SaveLocation(ctx, data, ref)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"location_id": float64(id)})
}

// DeleteLocation removes the location of an object
func (s *Server) DeleteLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := newRequest(req).ref()
	if err != nil {
		return nil, err
	}
	id, err := s.store.DeleteLocation(ctx, ref)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"location_id": float64(id)})
}

// TrashLocation makes the location of an object private
func (s *Server) TrashLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := newRequest(req).ref()
	if err != nil {
		return nil, err
	}
	id, err := s.store.TrashLocation(ctx, ref)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"location_id": float64(id), "status": string(geo.StatusPrivate)})
}

// GetLocationMeta returns one value when key is set, else every value
func (s *Server) GetLocationMeta(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	id, err := r.integer("location_id")
	if err != nil {
		return nil, err
	}

	if key := r.str("key"); key != "" {
		v, err := s.store.GetLocationMeta(ctx, id, key)
		if err != nil {
			return nil, err
		}
		return toStruct(map[string]any{"key": key, "value": v.Interface(), "kind": v.Kind().String()})
	}

	values, err := s.store.ListLocationMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]any, len(values))
	for k, v := range values {
		meta[k] = v.Interface()
	}
	return toStruct(map[string]any{"meta": meta})
}

// SaveLocationMeta writes metadata values of a location
func (s *Server) SaveLocationMeta(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	id, err := r.integer("location_id")
	if err != nil {
		return nil, err
	}

	values := make(map[string]geo.MetaValue)
	for k, v := range r.object("meta") {
		mv, err := geo.MetaValueOf(v.AsInterface())
		if err != nil {
			return nil, fmt.Errorf("%w: meta %q: %w", geo.ErrInvalidArgument, k, err)
		}
		values[k] = mv
	}

	ids, err := s.store.SaveLocationMeta(ctx, id, values)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(ids))
	for i, metaID := range ids {
		out[i] = float64(metaID)
	}
	return toStruct(map[string]any{"meta_ids": out})
}

// DeleteLocationMeta removes metadata keys of a location
func (s *Server) DeleteLocationMeta(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	id, err := r.integer("location_id")
	if err != nil {
		return nil, err
	}
	keys := r.strings("keys")
	if len(keys) == 0 && !r.boolean("all") {
		return nil, fmt.Errorf("%w: keys or all is required", geo.ErrInvalidArgument)
	}
	if err := s.store.DeleteLocationMeta(ctx, id, keys...); err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"location_id": float64(id)})
}

// GetLocationsNearby runs a proximity query
func (s *Server) GetLocationsNearby(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	t, err := geo.ParseObjectType(r.str("object_type"))
	if err != nil {
		return nil, err
	}
	q := proximity.Query{
		Type:           t,
		Distance:       r.str("distance"),
		IncludePrivate: r.boolean("include_private"),
	}
	if q.Lat, err = r.number("lat"); err != nil {
		return nil, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
	}
	if q.Lng, err = r.number("lng"); err != nil {
		return nil, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
	}
	if q.Limit, err = r.optionalInt("limit"); err != nil {
		return nil, err
	}

	locs, err := s.engine.Nearby(ctx, q)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"locations": nearbyList(locs), "count": float64(len(locs))})
}

// GetLocationsFor returns locations matching an address field or
// coordinates exactly
func (s *Server) GetLocationsFor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	t, err := geo.ParseObjectType(r.str("object_type"))
	if err != nil {
		return nil, err
	}
	field, err := proximity.ParseField(r.str("field"))
	if err != nil {
		return nil, err
	}

	locs, err := s.engine.LocationsFor(ctx, t, field, r.str("value"), r.boolean("include_private"))
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"locations": locationList(locs), "count": float64(len(locs))})
}

// ConvertDistance converts between distance units. The input is either
// a distance string or an amount with a unit.
func (s *Server) ConvertDistance(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	to := r.str("to")

	var (
		amount float64
		from   string
		err    error
	)
	if text := r.str("distance"); text != "" {
		d, err := calculator.ParseDistance(text)
		if err != nil {
			return nil, err
		}
		amount, from = d.Quantity, d.Unit
	} else {
		if amount, err = r.number("amount"); err != nil {
			return nil, err
		}
		from = r.str("from")
	}

	converted, err := calculator.Convert(amount, from, to)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"amount": converted, "unit": to})
}

// ExportLocations enqueues a CSV export job
func (s *Server) ExportLocations(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	filter, err := r.filter()
	if err != nil {
		return nil, err
	}
	export := jobs.ExportRequest{Filter: filter}
	if r.has("lat") || r.has("lng") {
		if export.Origin.Latitude, err = r.number("lat"); err != nil {
			return nil, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
		}
		if export.Origin.Longitude, err = r.number("lng"); err != nil {
			return nil, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
		}
		if err := geo.ValidateCoordinates(export.Origin.Latitude, export.Origin.Longitude); err != nil {
			return nil, err
		}
	}
	return s.enqueue(jobs.KindExport, export.Params())
}

// PurgeLocations enqueues a bulk delete job
func (s *Server) PurgeLocations(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	filter, err := r.filter()
	if err != nil {
		return nil, err
	}
	if r.has("lat") || r.has("lng") {
		var p calculator.Point
		if p.Latitude, err = r.number("lat"); err != nil {
			return nil, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
		}
		if p.Longitude, err = r.number("lng"); err != nil {
			return nil, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
		}
		filter.Coordinates = &p
	}
	if filter == (store.Filter{}) && !r.boolean("all") {
		return nil, fmt.Errorf("%w: refusing to purge every location without all=true", geo.ErrInvalidArgument)
	}
	return s.enqueue(jobs.KindPurge, jobs.PurgeParams(filter))
}

func (s *Server) enqueue(kind queue.Kind, params map[string]string) (*structpb.Struct, error) {
	jobID, err := s.queue.Enqueue(kind, params)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to enqueue job")
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	job, err := s.queue.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	return toStruct(jobFields(job))
}

// GetJobStatus returns the current status of a job
func (s *Server) GetJobStatus(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	jobID := newRequest(req).str("job_id")
	if jobID == "" {
		return nil, fmt.Errorf("%w: job_id is required", geo.ErrInvalidArgument)
	}
	job, err := s.queue.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	return toStruct(jobFields(job))
}

// ListJobs returns jobs with optional status and kind filtering
func (s *Server) ListJobs(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	limit, err := r.optionalInt("limit")
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultJobsLimit
	}
	if limit > maxJobsLimit {
		limit = maxJobsLimit
	}
	offset, err := r.optionalInt("offset")
	if err != nil {
		return nil, err
	}

	list, total := s.queue.ListJobs(queue.JobStatus(r.str("status")), queue.Kind(r.str("kind")), limit, offset)
	out := make([]any, len(list))
	for i, job := range list {
		out[i] = jobFields(job)
	}
	return toStruct(map[string]any{
		"jobs":        out,
		"total_count": float64(total),
		"limit":       float64(limit),
		"offset":      float64(offset),
	})
}
