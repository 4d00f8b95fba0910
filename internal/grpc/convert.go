package grpc

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/queue"
	"github.com/stuartshay/geostore/internal/store"
)

// request reads typed fields out of a Struct message
type request struct {
	fields map[string]*structpb.Value
}

func newRequest(s *structpb.Struct) request {
	return request{fields: s.GetFields()}
}

func (r request) has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

func (r request) str(key string) string {
	v, ok := r.fields[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return fmt.Sprint(k.NumberValue)
	}
	return ""
}

func (r request) number(key string) (float64, error) {
	v, ok := r.fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", geo.ErrInvalidArgument, key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", geo.ErrInvalidArgument, key)
	}
	return n.NumberValue, nil
}

func (r request) integer(key string) (int64, error) {
	n, err := r.number(key)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
		return 0, fmt.Errorf("%w: %s must be an integer", geo.ErrInvalidArgument, key)
	}
	return int64(n), nil
}

// optionalInt returns 0 when key is absent
func (r request) optionalInt(key string) (int, error) {
	if !r.has(key) {
		return 0, nil
	}
	n, err := r.integer(key)
	return int(n), err
}

func (r request) boolean(key string) bool {
	return r.fields[key].GetBoolValue()
}

func (r request) strings(key string) []string {
	var out []string
	for _, v := range r.fields[key].GetListValue().GetValues() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}
	return out
}

func (r request) object(key string) map[string]*structpb.Value {
	return r.fields[key].GetStructValue().GetFields()
}

func (r request) ref() (geo.ObjectRef, error) {
	t, err := geo.ParseObjectType(r.str("object_type"))
	if err != nil {
		return geo.ObjectRef{}, err
	}
	id, err := r.integer("object_id")
	if err != nil {
		return geo.ObjectRef{}, fmt.Errorf("%w: %w", geo.ErrInvalidObjectID, err)
	}
	ref := geo.Ref(t, id)
	return ref, ref.Validate()
}

func (r request) address() geo.Address {
	m := make(map[string]string)
	for k, v := range r.object("address") {
		m[k] = v.GetStringValue()
	}
	return geo.AddressFromMap(m)
}

func (r request) locationData() (store.LocationData, error) {
	var (
		data store.LocationData
		err  error
	)
	if data.Lat, err = r.number("lat"); err != nil {
		return data, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
	}
	if data.Lng, err = r.number("lng"); err != nil {
		return data, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err)
	}
	data.Title = r.str("title")
	data.Address = r.address()
	if data.Status, err = geo.ParseStatus(r.str("status")); err != nil {
		return data, err
	}
	if v := r.str("object_date"); v != "" {
		if data.ObjectDate, err = time.Parse(time.RFC3339, v); err != nil {
			return data, fmt.Errorf("%w: object_date %q is not RFC 3339", geo.ErrInvalidArgument, v)
		}
	}
	return data, nil
}

// filter reads the object type and status shared by list-style requests
func (r request) filter() (store.Filter, error) {
	var f store.Filter
	if v := r.str("object_type"); v != "" && v != "all" {
		t, err := geo.ParseObjectType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	s, err := geo.ParseStatus(r.str("status"))
	if err != nil {
		return f, err
	}
	f.Status = s
	return f, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func addressFields(a geo.Address) map[string]any {
	m := make(map[string]any)
	for k, v := range a.Map() {
		m[k] = v
	}
	return m
}

func locationFields(loc geo.Location) map[string]any {
	m := map[string]any{
		"id":          float64(loc.ID),
		"status":      string(loc.Status),
		"lat":         loc.Lat,
		"lng":         loc.Lng,
		"title":       loc.Title,
		"address":     addressFields(loc.Address),
		"display":     loc.Address.String(),
		"updated":     formatTime(loc.Updated),
		"object_type": loc.Object.Type.String(),
		"object_id":   float64(loc.Object.ID),
		"object_date": formatTime(loc.ObjectDate),
	}
	return m
}

func locationList(locs []geo.Location) []any {
	out := make([]any, len(locs))
	for i, loc := range locs {
		out[i] = locationFields(loc)
	}
	return out
}

// nearbyList renders proximity results, which always carry a distance
// in the query unit, zero included
func nearbyList(locs []geo.Location) []any {
	out := make([]any, len(locs))
	for i, loc := range locs {
		m := locationFields(loc)
		m["distance"] = loc.Distance
		out[i] = m
	}
	return out
}

func jobFields(job *queue.Job) map[string]any {
	params := make(map[string]any, len(job.Params))
	for k, v := range job.Params {
		params[k] = v
	}
	m := map[string]any{
		"job_id":       job.ID,
		"kind":         string(job.Kind),
		"status":       string(job.Status),
		"params":       params,
		"queued_at":    formatTime(job.QueuedAt),
		"started_at":   nil,
		"completed_at": nil,
	}
	if job.StartedAt != nil {
		m["started_at"] = formatTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		m["completed_at"] = formatTime(*job.CompletedAt)
	}
	if job.ErrorMessage != "" {
		m["error_message"] = job.ErrorMessage
	}
	if r := job.Result; r != nil {
		m["result"] = map[string]any{
			"path":               r.Path,
			"total_locations":    float64(r.TotalLocations),
			"total_distance_km":  r.TotalDistanceKM,
			"max_distance_km":    r.MaxDistanceKM,
			"min_distance_km":    r.MinDistanceKM,
			"avg_distance_km":    r.AvgDistanceKM,
			"processing_time_ms": float64(r.ProcessingTimeMS),
		}
	}
	return m
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}
