package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/host"
	"github.com/stuartshay/geostore/internal/jobs"
	"github.com/stuartshay/geostore/internal/metasync"
	"github.com/stuartshay/geostore/internal/proximity"
	"github.com/stuartshay/geostore/internal/queue"
	"github.com/stuartshay/geostore/internal/store"
)

// setupTestServer starts the service on an in-memory listener backed by
// an in-memory SQLite store
func setupTestServer(t *testing.T) *Client {
	t.Helper()

	db, err := database.NewClient(database.SQLite, ":memory:")
	require.NoError(t, err, "Failed to open database")
	require.NoError(t, db.Migrate(context.Background()))

	h := host.NewMemory()
	st := store.New(db, h, metasync.New(h), store.Options{QueryTimeout: 5 * time.Second})
	engine := proximity.NewEngine(db, proximity.Options{})
	q := queue.NewQueue(1, 10, jobs.NewRunner(st, t.TempDir()).Process)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterLocationServiceServer(srv, NewServer(st, engine, q))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = q.Shutdown(5 * time.Second)
		_ = db.Close()
	})
	return NewClient(conn)
}

func call(t *testing.T, c *Client, method string, fields map[string]any) *structpb.Struct {
	t.Helper()
	out, err := c.Call(context.Background(), method, fields)
	require.NoError(t, err, method)
	return out
}

func callCode(c *Client, method string, fields map[string]any) codes.Code {
	_, err := c.Call(context.Background(), method, fields)
	return status.Code(err)
}

func saveLondon(t *testing.T, c *Client, id int) float64 {
	t.Helper()
	out := call(t, c, MethodSaveLocation, map[string]any{
		"object_type": "post",
		"object_id":   id,
		"lat":         51.5074,
		"lng":         -0.1278,
		"title":       "London",
		"address":     map[string]any{"city": "London", "countrycode": "gb"},
	})
	return out.Fields["location_id"].GetNumberValue()
}

func TestSaveAndGetLocation(t *testing.T) {
	c := setupTestServer(t)

	id := saveLondon(t, c, 42)
	assert.Positive(t, id)

	out := call(t, c, MethodGetLocation, map[string]any{"object_type": "posts", "object_id": 42})
	loc := out.Fields["location"].GetStructValue().AsMap()
	assert.Equal(t, id, loc["id"])
	assert.Equal(t, "post", loc["object_type"])
	assert.Equal(t, "public", loc["status"])
	assert.Equal(t, 51.5074, loc["lat"])
	assert.Equal(t, "London", loc["display"])
	assert.Equal(t, "GB", loc["address"].(map[string]any)["countrycode"])
}

func TestErrorCodes(t *testing.T) {
	c := setupTestServer(t)
	saveLondon(t, c, 1)

	tests := []struct {
		name   string
		method string
		fields map[string]any
		want   codes.Code
	}{
		{"unknown object type", MethodGetLocation, map[string]any{"object_type": "widget", "object_id": 1}, codes.InvalidArgument},
		{"missing object id", MethodGetLocation, map[string]any{"object_type": "post"}, codes.InvalidArgument},
		{"not found", MethodGetLocation, map[string]any{"object_type": "post", "object_id": 99}, codes.NotFound},
		{"bad coordinates", MethodSaveLocation, map[string]any{"object_type": "post", "object_id": 2, "lat": 100, "lng": 0}, codes.InvalidArgument},
		{"bad distance", MethodGetLocationsNearby, map[string]any{"object_type": "post", "lat": 0, "lng": 0, "distance": "near"}, codes.InvalidArgument},
		{"bad unit", MethodConvertDistance, map[string]any{"amount": 1, "from": "km", "to": "cubits"}, codes.InvalidArgument},
		{"delete missing", MethodDeleteLocation, map[string]any{"object_type": "user", "object_id": 5}, codes.NotFound},
		{"unknown job", MethodGetJobStatus, map[string]any{"job_id": "nope"}, codes.NotFound},
		{"purge everything", MethodPurgeLocations, map[string]any{}, codes.InvalidArgument},
		{"missing location meta", MethodGetLocationMeta, map[string]any{"location_id": 1, "key": "nope"}, codes.NotFound},
		{"bad object date", MethodSaveLocation, map[string]any{"object_type": "post", "object_id": 3, "lat": 0, "lng": 0, "object_date": "yesterday"}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callCode(c, tt.method, tt.fields))
		})
	}
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Aborted, status.Code(toStatus(geo.ErrConstraintViolation)))
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(geo.ErrStorageUnavailable)))
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(queue.ErrQueueFull)))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))

	already := status.Error(codes.PermissionDenied, "no")
	assert.Equal(t, already, toStatus(already))
}

func TestLocationMeta(t *testing.T) {
	c := setupTestServer(t)
	id := saveLondon(t, c, 7)

	out := call(t, c, MethodSaveLocationMeta, map[string]any{
		"location_id": id,
		"meta": map[string]any{
			"zoom":  12,
			"label": "HQ",
			"tags":  []any{"a", "b"},
		},
	})
	assert.Len(t, out.Fields["meta_ids"].GetListValue().GetValues(), 3)

	out = call(t, c, MethodGetLocationMeta, map[string]any{"location_id": id, "key": "zoom"})
	assert.Equal(t, 12.0, out.Fields["value"].GetNumberValue())
	assert.Equal(t, "number", out.Fields["kind"].GetStringValue())

	out = call(t, c, MethodGetLocationMeta, map[string]any{"location_id": id})
	meta := out.Fields["meta"].GetStructValue().AsMap()
	assert.Equal(t, []any{"a", "b"}, meta["tags"])

	call(t, c, MethodDeleteLocationMeta, map[string]any{"location_id": id, "keys": []any{"zoom"}})
	out = call(t, c, MethodGetLocationMeta, map[string]any{"location_id": id})
	assert.Len(t, out.Fields["meta"].GetStructValue().GetFields(), 2)

	assert.Equal(t, codes.InvalidArgument, callCode(c, MethodDeleteLocationMeta, map[string]any{"location_id": id}))
}

func TestNearbyAndFor(t *testing.T) {
	c := setupTestServer(t)
	saveLondon(t, c, 1)
	call(t, c, MethodSaveLocation, map[string]any{
		"object_type": "post", "object_id": 2, "lat": 48.8566, "lng": 2.3522,
		"address": map[string]any{"city": "Paris"},
	})

	out := call(t, c, MethodGetLocationsNearby, map[string]any{
		"object_type": "post", "lat": 51.5, "lng": -0.1, "distance": "50km",
	})
	assert.Equal(t, 1.0, out.Fields["count"].GetNumberValue())
	first := out.Fields["locations"].GetListValue().GetValues()[0].GetStructValue().AsMap()
	assert.Equal(t, 1.0, first["object_id"])
	assert.InDelta(t, 2.1, first["distance"], 0.3)

	out = call(t, c, MethodGetLocationsNearby, map[string]any{
		"object_type": "post", "lat": 51.5, "lng": -0.1, "distance": "1000km", "limit": 1,
	})
	assert.Equal(t, 1.0, out.Fields["count"].GetNumberValue())

	out = call(t, c, MethodGetLocationsFor, map[string]any{
		"object_type": "post", "field": "city", "value": "Paris",
	})
	assert.Equal(t, 1.0, out.Fields["count"].GetNumberValue())
}

func TestNearbyAtQueryPointReportsZeroDistance(t *testing.T) {
	c := setupTestServer(t)
	saveLondon(t, c, 1)

	out := call(t, c, MethodGetLocationsNearby, map[string]any{
		"object_type": "post", "lat": 51.5074, "lng": -0.1278, "distance": "1km",
	})
	locs := out.Fields["locations"].GetListValue().GetValues()
	require.Len(t, locs, 1)
	first := locs[0].GetStructValue().AsMap()
	require.Contains(t, first, "distance")
	assert.Equal(t, 0.0, first["distance"])
}

func TestTrashLocation(t *testing.T) {
	c := setupTestServer(t)
	saveLondon(t, c, 3)

	call(t, c, MethodTrashLocation, map[string]any{"object_type": "post", "object_id": 3})

	out := call(t, c, MethodGetLocationsNearby, map[string]any{"object_type": "post", "lat": 51.5, "lng": -0.1})
	assert.Zero(t, out.Fields["count"].GetNumberValue(), "trashed locations are hidden from public queries")

	out = call(t, c, MethodGetLocationsNearby, map[string]any{"object_type": "post", "lat": 51.5, "lng": -0.1, "include_private": true})
	assert.Equal(t, 1.0, out.Fields["count"].GetNumberValue())
}

func TestConvertDistance(t *testing.T) {
	c := setupTestServer(t)

	out := call(t, c, MethodConvertDistance, map[string]any{"amount": 1, "from": "mi", "to": "km"})
	assert.InDelta(t, 1.609344, out.Fields["amount"].GetNumberValue(), 1e-9)

	out = call(t, c, MethodConvertDistance, map[string]any{"distance": "2 swedish miles", "to": "km"})
	assert.InDelta(t, 20, out.Fields["amount"].GetNumberValue(), 1e-9)
	assert.Equal(t, "km", out.Fields["unit"].GetStringValue())
}

func TestJobs(t *testing.T) {
	c := setupTestServer(t)
	saveLondon(t, c, 1)
	saveLondon(t, c, 2)

	out := call(t, c, MethodExportLocations, map[string]any{"object_type": "post", "lat": 51.5, "lng": -0.1})
	exportID := out.Fields["job_id"].GetStringValue()
	require.NotEmpty(t, exportID)
	assert.Equal(t, "export", out.Fields["kind"].GetStringValue())

	var job map[string]any
	require.Eventually(t, func() bool {
		job = call(t, c, MethodGetJobStatus, map[string]any{"job_id": exportID}).AsMap()
		return job["status"] == string(queue.StatusCompleted)
	}, 2*time.Second, 20*time.Millisecond)
	result := job["result"].(map[string]any)
	assert.Equal(t, 2.0, result["total_locations"])
	assert.NotEmpty(t, result["path"])

	out = call(t, c, MethodPurgeLocations, map[string]any{"object_type": "post"})
	purgeID := out.Fields["job_id"].GetStringValue()
	require.Eventually(t, func() bool {
		job = call(t, c, MethodGetJobStatus, map[string]any{"job_id": purgeID}).AsMap()
		return job["status"] == string(queue.StatusCompleted)
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, codes.NotFound, callCode(c, MethodGetLocation, map[string]any{"object_type": "post", "object_id": 1}))

	out = call(t, c, MethodListJobs, map[string]any{"kind": "purge"})
	assert.Equal(t, 1.0, out.Fields["total_count"].GetNumberValue())
	assert.Equal(t, 50.0, out.Fields["limit"].GetNumberValue())
}
