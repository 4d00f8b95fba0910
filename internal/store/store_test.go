package store

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/host"
	"github.com/stuartshay/geostore/internal/metasync"
)

func newTestStore(t *testing.T) (*Store, *host.Memory, *database.Client) {
	t.Helper()

	db, err := database.NewClient(database.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	h := host.NewMemory()
	return New(db, h, metasync.New(h), Options{QueryTimeout: 5 * time.Second}), h, db
}

var london = LocationData{
	Lat:   51.5072178,
	Lng:   -0.1275862,
	Title: "Trafalgar Square",
	Address: geo.Address{
		City:        "London",
		Postcode:    "WC2N 5DN",
		Country:     "United Kingdom",
		CountryCode: "gb",
	},
}

func countRows(t *testing.T, db *database.Client, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSaveAndGetLocation(t *testing.T) {
	s, h, _ := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Post, 42)

	date := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	h.Put(host.Object{Ref: ref, State: "publish", Date: date})

	id, err := s.SaveLocation(ctx, london, ref)
	require.NoError(t, err)
	assert.Positive(t, id)

	loc, err := s.GetLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, id, loc.ID)
	assert.Equal(t, 51.507218, loc.Lat)
	assert.Equal(t, -0.127586, loc.Lng)
	assert.Equal(t, "Trafalgar Square", loc.Title)
	assert.Equal(t, "London", loc.Address.City)
	assert.Equal(t, "GB", loc.Address.CountryCode)
	assert.Equal(t, geo.StatusPublic, loc.Status)
	assert.Equal(t, ref, loc.Object)
	assert.True(t, date.Equal(loc.ObjectDate), "object date %s", loc.ObjectDate)
	assert.False(t, loc.Updated.IsZero())
}

func TestSaveLocation_UpdatesInPlace(t *testing.T) {
	s, _, db := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.User, 3)

	first, err := s.SaveLocation(ctx, london, ref)
	require.NoError(t, err)

	paris := LocationData{Lat: 48.856614, Lng: 2.3522219, Address: geo.Address{City: "Paris"}}
	second, err := s.SaveLocation(ctx, paris, ref)
	require.NoError(t, err)
	assert.Equal(t, first, second, "saving again must update the same location")

	loc, err := s.GetLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Paris", loc.Address.City)
	assert.Empty(t, loc.Address.Postcode)

	assert.Equal(t, 1, countRows(t, db, database.TableLocations))
	assert.Equal(t, 1, countRows(t, db, database.TableRelationships))
}

func TestSaveLocation_StatusFromHostObject(t *testing.T) {
	s, h, _ := newTestStore(t)
	ctx := context.Background()

	draft := geo.Ref(geo.Post, 1)
	h.Put(host.Object{Ref: draft, State: "draft", Date: time.Now()})
	_, err := s.SaveLocation(ctx, london, draft)
	require.NoError(t, err)
	loc, err := s.GetLocation(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, geo.StatusPrivate, loc.Status)

	// Unknown objects are public
	unknown := geo.Ref(geo.Term, 9)
	_, err = s.SaveLocation(ctx, london, unknown)
	require.NoError(t, err)
	loc, err = s.GetLocation(ctx, unknown)
	require.NoError(t, err)
	assert.Equal(t, geo.StatusPublic, loc.Status)

	// Explicit status wins
	data := london
	data.Status = geo.StatusPublic
	_, err = s.SaveLocation(ctx, data, draft)
	require.NoError(t, err)
	loc, err = s.GetLocation(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, geo.StatusPublic, loc.Status)
}

func TestSaveLocation_Invalid(t *testing.T) {
	s, _, db := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data LocationData
		ref  geo.ObjectRef
		want error
	}{
		{"latitude out of range", LocationData{Lat: 91}, geo.Ref(geo.Post, 1), geo.ErrInvalidCoordinates},
		{"longitude out of range", LocationData{Lng: -180.5}, geo.Ref(geo.Post, 1), geo.ErrInvalidCoordinates},
		{"nan", LocationData{Lat: math.NaN()}, geo.Ref(geo.Post, 1), geo.ErrInvalidCoordinates},
		{"bad status", LocationData{Status: "hidden"}, geo.Ref(geo.Post, 1), geo.ErrInvalidStatus},
		{"bad type", london, geo.ObjectRef{Type: 9, ID: 1}, geo.ErrInvalidObjectType},
		{"bad id", london, geo.Ref(geo.Post, 0), geo.ErrInvalidObjectID},
		{"country code", LocationData{Address: geo.Address{CountryCode: "GBR"}}, geo.Ref(geo.Post, 1), geo.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveLocation(ctx, tt.data, tt.ref)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, geo.ErrInvalidArgument)
		})
	}
	assert.Zero(t, countRows(t, db, database.TableLocations))
}

func TestGetLocation_NotFound(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.GetLocation(context.Background(), geo.Ref(geo.Comment, 77))
	assert.ErrorIs(t, err, geo.ErrNotFound)

	_, err = s.GetLocation(context.Background(), geo.ObjectRef{Type: 0, ID: 1})
	assert.ErrorIs(t, err, geo.ErrInvalidObjectType)
}

func TestSaveLocation_MirrorsObjectMeta(t *testing.T) {
	s, h, _ := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Post, 5)

	_, err := s.SaveLocation(ctx, london, ref)
	require.NoError(t, err)

	lat, ok := h.MetaValue(ref, metasync.KeyLatitude)
	assert.True(t, ok)
	assert.Equal(t, "51.507218", lat)
	addr, _ := h.MetaValue(ref, metasync.KeyAddress)
	assert.Equal(t, "London, WC2N 5DN, United Kingdom", addr)
	public, _ := h.MetaValue(ref, metasync.KeyPublic)
	assert.Equal(t, "1", public)
}

func TestSaveLocation_MirrorFailureDoesNotRollBack(t *testing.T) {
	s, h, _ := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Post, 6)
	h.FailMeta = true

	id, err := s.SaveLocation(ctx, london, ref)
	require.NoError(t, err)

	loc, err := s.GetLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, id, loc.ID)

	_, err = s.DeleteLocation(ctx, ref)
	require.NoError(t, err)
}

func TestSaveLocation_ConcurrentSameObject(t *testing.T) {
	s, _, db := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Post, 100)

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.SaveLocation(ctx, london, ref)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			// A lost insert race is reported, never duplicated
			assert.ErrorIs(t, err, geo.ErrConstraintViolation, "call %d", i)
		}
	}
	assert.Equal(t, 1, countRows(t, db, database.TableLocations))
	assert.Equal(t, 1, countRows(t, db, database.TableRelationships))
}

func TestDeleteLocation(t *testing.T) {
	s, h, db := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Term, 12)

	id, err := s.SaveLocation(ctx, london, ref)
	require.NoError(t, err)
	_, err = s.SaveLocationMeta(ctx, id, map[string]geo.MetaValue{"zoom": geo.Number(12)})
	require.NoError(t, err)

	deleted, err := s.DeleteLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, id, deleted)

	_, err = s.GetLocation(ctx, ref)
	assert.ErrorIs(t, err, geo.ErrNotFound)
	for _, table := range []string{database.TableLocations, database.TableRelationships, database.TableMeta} {
		assert.Zero(t, countRows(t, db, table), table)
	}
	for _, key := range metasync.Keys {
		_, ok := h.MetaValue(ref, key)
		assert.False(t, ok, key)
	}

	_, err = s.DeleteLocation(ctx, ref)
	assert.ErrorIs(t, err, geo.ErrNotFound)
}

func TestTrashLocation(t *testing.T) {
	s, h, _ := newTestStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Post, 8)

	id, err := s.SaveLocation(ctx, london, ref)
	require.NoError(t, err)

	trashed, err := s.TrashLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, id, trashed)

	loc, err := s.GetLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, geo.StatusPrivate, loc.Status)
	assert.Equal(t, "London", loc.Address.City)

	public, _ := h.MetaValue(ref, metasync.KeyPublic)
	assert.Equal(t, "0", public)

	_, err = s.TrashLocation(ctx, geo.Ref(geo.Post, 9))
	assert.ErrorIs(t, err, geo.ErrNotFound)
}

func TestSaveLocationRelationship(t *testing.T) {
	s, h, db := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveLocation(ctx, london, geo.Ref(geo.Post, 1))
	require.NoError(t, err)

	// Bind a second object to the same location
	second := geo.Ref(geo.Comment, 2)
	date := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveLocationRelationship(ctx, second, id, date))

	loc, err := s.GetLocation(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, id, loc.ID)
	assert.True(t, date.Equal(loc.ObjectDate))

	// Zero location keeps the bound location and refreshes the date from the host
	later := date.AddDate(1, 0, 0)
	h.Put(host.Object{Ref: second, Date: later})
	require.NoError(t, s.SaveLocationRelationship(ctx, second, 0, time.Time{}))
	loc, err = s.GetLocation(ctx, second)
	require.NoError(t, err)
	assert.True(t, later.Equal(loc.ObjectDate))

	// Unknown object without a date is a no-op
	require.NoError(t, s.SaveLocationRelationship(ctx, geo.Ref(geo.User, 4), id, time.Time{}))
	assert.Equal(t, 2, countRows(t, db, database.TableRelationships))

	// Zero location on an unbound object
	err = s.SaveLocationRelationship(ctx, geo.Ref(geo.User, 4), 0, date)
	assert.ErrorIs(t, err, geo.ErrNotFound)

	// Missing location violates the foreign key
	err = s.SaveLocationRelationship(ctx, geo.Ref(geo.User, 5), id+100, date)
	assert.ErrorIs(t, err, geo.ErrConstraintViolation)
}

func TestLocationMeta(t *testing.T) {
	s, _, db := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveLocation(ctx, london, geo.Ref(geo.Post, 1))
	require.NoError(t, err)

	values := map[string]geo.MetaValue{
		"zoom":    geo.Number(14),
		"label":   geo.String("HQ"),
		"visible": geo.Bool(true),
		"tags":    geo.List(geo.String("a"), geo.String("b")),
		"extra":   geo.Map(map[string]geo.MetaValue{"floor": geo.Number(2)}),
		"none":    geo.Null(),
	}
	ids, err := s.SaveLocationMeta(ctx, id, values)
	require.NoError(t, err)
	require.Len(t, ids, len(values))

	got, err := s.ListLocationMeta(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, len(values))
	for key, want := range values {
		assert.True(t, want.Equal(got[key]), "key %s: got %v", key, got[key].Interface())
		assert.Equal(t, want.Kind(), got[key].Kind(), key)
	}

	// Update in place keeps the meta id
	again, err := s.SaveLocationMeta(ctx, id, map[string]geo.MetaValue{"zoom": geo.Number(15)})
	require.NoError(t, err)
	// keys sort as extra, label, none, tags, visible, zoom
	assert.Equal(t, ids[5], again[0])
	zoom, err := s.GetLocationMeta(ctx, id, "zoom")
	require.NoError(t, err)
	n, ok := zoom.Num()
	assert.True(t, ok)
	assert.Equal(t, 15.0, n)
	assert.Equal(t, len(values), countRows(t, db, database.TableMeta))

	require.NoError(t, s.DeleteLocationMeta(ctx, id, "zoom", "label"))
	_, err = s.GetLocationMeta(ctx, id, "zoom")
	assert.ErrorIs(t, err, geo.ErrNotFound)
	assert.Equal(t, len(values)-2, countRows(t, db, database.TableMeta))

	require.NoError(t, s.DeleteLocationMeta(ctx, id))
	assert.Zero(t, countRows(t, db, database.TableMeta))
}

func TestLocationMeta_MissingLocation(t *testing.T) {
	s, _, db := newTestStore(t)
	ctx := context.Background()

	ids, err := s.SaveLocationMeta(ctx, 404, map[string]geo.MetaValue{"k": geo.String("v")})
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Zero(t, countRows(t, db, database.TableMeta))

	all, err := s.ListLocationMeta(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.GetLocationMeta(ctx, 404, "k")
	assert.ErrorIs(t, err, geo.ErrNotFound)

	_, err = s.SaveLocationMeta(ctx, 1, map[string]geo.MetaValue{" ": geo.String("v")})
	assert.ErrorIs(t, err, geo.ErrInvalidArgument)
}

func TestListAndPurgeLocations(t *testing.T) {
	s, _, db := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		_, err := s.SaveLocation(ctx, london, geo.Ref(geo.Post, i))
		require.NoError(t, err)
	}
	_, err := s.SaveLocation(ctx, LocationData{Lat: 48.8566, Lng: 2.3522}, geo.Ref(geo.User, 1))
	require.NoError(t, err)
	_, err = s.TrashLocation(ctx, geo.Ref(geo.Post, 2))
	require.NoError(t, err)

	posts, err := s.ListLocations(ctx, Filter{Type: geo.Post})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, int64(1), posts[0].Object.ID)

	all, err := s.ListLocations(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	at, err := s.ListLocations(ctx, Filter{Coordinates: &calculator.Point{Latitude: 48.8566, Longitude: 2.3522}})
	require.NoError(t, err)
	require.Len(t, at, 1)
	assert.Equal(t, geo.User, at[0].Object.Type)

	// Purge by status removes only the private post
	n, err := s.PurgeLocations(ctx, Filter{Status: geo.StatusPrivate})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.GetLocation(ctx, geo.Ref(geo.Post, 2))
	assert.ErrorIs(t, err, geo.ErrNotFound)

	n, err = s.PurgeLocations(ctx, Filter{Type: geo.Post})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, countRows(t, db, database.TableLocations))

	_, err = s.ListLocations(ctx, Filter{Status: "gone"})
	assert.ErrorIs(t, err, geo.ErrInvalidStatus)
}

func TestQueryTimeout(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveLocation(ctx, london, geo.Ref(geo.Post, 1))
	assert.ErrorIs(t, err, geo.ErrStorageUnavailable)
}
