//go:build integration

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/geostore/internal/config"
	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/geo"
)

// setupIntegrationStore opens the pooled database configured in the
// environment, so concurrent writers really run in parallel
func setupIntegrationStore(t *testing.T) (*Store, *database.Client) {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")
	dialect, err := database.ParseDialect(cfg.DatabaseDriver)
	require.NoError(t, err)

	db, err := database.NewClient(dialect, cfg.DatabaseDSN())
	require.NoError(t, err, "Failed to create database client")
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	return New(db, nil, nil, Options{QueryTimeout: 10 * time.Second}), db
}

func TestIntegration_SaveLocationRace(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	s, db := setupIntegrationStore(t)
	ctx := context.Background()
	ref := geo.Ref(geo.Post, time.Now().UnixNano()%1_000_000_000)
	data := london
	data.Title = fmt.Sprintf("race %s", ref)
	t.Cleanup(func() { _, _ = s.DeleteLocation(context.Background(), ref) })

	const writers = 2
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, writers)
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.SaveLocation(ctx, data, ref)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, geo.ErrConstraintViolation, "writer %d", i)
	}
	assert.GreaterOrEqual(t, succeeded, 1)

	var relationships, locations int
	require.NoError(t, db.DB().QueryRowContext(ctx, db.Rebind(
		"SELECT COUNT(*) FROM "+database.TableRelationships+" WHERE object_name = ? AND object_id = ?"),
		ref.Type.String(), ref.ID).Scan(&relationships))
	require.NoError(t, db.DB().QueryRowContext(ctx, db.Rebind(
		"SELECT COUNT(*) FROM "+database.TableLocations+" WHERE title = ?"),
		data.Title).Scan(&locations))

	assert.Equal(t, 1, relationships)
	assert.Equal(t, 1, locations, "a lost race must not leave an orphaned location")

	loc, err := s.GetLocation(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data.Title, loc.Title)
}
