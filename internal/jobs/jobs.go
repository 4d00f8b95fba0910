// Package jobs implements the background maintenance jobs run on the
// worker queue: CSV export of stored locations and bulk purges.
package jobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/queue"
	"github.com/stuartshay/geostore/internal/store"
)

// Job kinds
const (
	KindExport queue.Kind = "export"
	KindPurge  queue.Kind = "purge"
)

// Parameter keys
const (
	ParamObjectType = "object_type"
	ParamStatus     = "status"
	ParamLat        = "lat"
	ParamLng        = "lng"
)

// Runner executes jobs against a location store
type Runner struct {
	store      *store.Store
	exportPath string
}

// NewRunner creates a Runner writing exports below exportPath
func NewRunner(st *store.Store, exportPath string) *Runner {
	return &Runner{store: st, exportPath: exportPath}
}

// Process is the queue.ProcessFunc dispatching on the job kind
func (r *Runner) Process(ctx context.Context, job *queue.Job) (*queue.JobResult, error) {
	switch job.Kind {
	case KindExport:
		req, err := ParseExport(job.Params)
		if err != nil {
			return nil, err
		}
		return r.export(ctx, job.ID, req)
	case KindPurge:
		filter, err := ParsePurge(job.Params)
		if err != nil {
			return nil, err
		}
		return r.purge(ctx, filter)
	}
	return nil, fmt.Errorf("unknown job kind %q", job.Kind)
}

// ExportRequest selects the locations to export and the reference point
// distances are measured from
type ExportRequest struct {
	Filter store.Filter
	Origin calculator.Point
}

// Params encodes the request as job parameters
func (r ExportRequest) Params() map[string]string {
	p := filterParams(r.Filter)
	p[ParamLat] = strconv.FormatFloat(r.Origin.Latitude, 'f', -1, 64)
	p[ParamLng] = strconv.FormatFloat(r.Origin.Longitude, 'f', -1, 64)
	return p
}

// ParseExport decodes export job parameters
func ParseExport(params map[string]string) (ExportRequest, error) {
	filter, err := parseFilter(params)
	if err != nil {
		return ExportRequest{}, err
	}
	req := ExportRequest{Filter: filter}
	if v := params[ParamLat]; v != "" {
		if req.Origin.Latitude, err = strconv.ParseFloat(v, 64); err != nil {
			return ExportRequest{}, fmt.Errorf("%w: lat %q", geo.ErrInvalidCoordinates, v)
		}
	}
	if v := params[ParamLng]; v != "" {
		if req.Origin.Longitude, err = strconv.ParseFloat(v, 64); err != nil {
			return ExportRequest{}, fmt.Errorf("%w: lng %q", geo.ErrInvalidCoordinates, v)
		}
	}
	if err := geo.ValidateCoordinates(req.Origin.Latitude, req.Origin.Longitude); err != nil {
		return ExportRequest{}, err
	}
	return req, nil
}

// PurgeParams encodes a purge filter as job parameters
func PurgeParams(filter store.Filter) map[string]string {
	p := filterParams(filter)
	if filter.Coordinates != nil {
		p[ParamLat] = strconv.FormatFloat(filter.Coordinates.Latitude, 'f', -1, 64)
		p[ParamLng] = strconv.FormatFloat(filter.Coordinates.Longitude, 'f', -1, 64)
	}
	return p
}

// ParsePurge decodes purge job parameters
func ParsePurge(params map[string]string) (store.Filter, error) {
	filter, err := parseFilter(params)
	if err != nil {
		return store.Filter{}, err
	}
	lat, lng := params[ParamLat], params[ParamLng]
	if lat == "" && lng == "" {
		return filter, nil
	}
	var p calculator.Point
	if p.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return store.Filter{}, fmt.Errorf("%w: lat %q", geo.ErrInvalidCoordinates, lat)
	}
	if p.Longitude, err = strconv.ParseFloat(lng, 64); err != nil {
		return store.Filter{}, fmt.Errorf("%w: lng %q", geo.ErrInvalidCoordinates, lng)
	}
	filter.Coordinates = &p
	return filter, nil
}

func filterParams(f store.Filter) map[string]string {
	p := make(map[string]string)
	if f.Type != 0 {
		p[ParamObjectType] = f.Type.String()
	}
	if f.Status != "" {
		p[ParamStatus] = string(f.Status)
	}
	return p
}

func parseFilter(params map[string]string) (store.Filter, error) {
	var f store.Filter
	if v := params[ParamObjectType]; v != "" && v != "all" {
		t, err := geo.ParseObjectType(v)
		if err != nil {
			return store.Filter{}, err
		}
		f.Type = t
	}
	status, err := geo.ParseStatus(params[ParamStatus])
	if err != nil {
		return store.Filter{}, err
	}
	f.Status = status
	return f, nil
}

func (r *Runner) purge(ctx context.Context, filter store.Filter) (*queue.JobResult, error) {
	deleted, err := r.store.PurgeLocations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("purge failed after %d deletions: %w", deleted, err)
	}
	return &queue.JobResult{TotalLocations: deleted}, nil
}
