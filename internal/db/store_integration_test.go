//go:build integration

package db

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/navigation"
	"github.com/sincitytravels/navigator/internal/poiimport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostGIS starts a PostGIS container, loads the schema and seed data
// and returns a connected pool
func setupPostGIS(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:16-3.4-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "navigator",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostGIS container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostGIS container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	cfg := Config{
		Host:     host,
		Port:     port,
		Database: "navigator",
		User:     "test",
		Password: "test",
		SSLMode:  "disable",
		MaxConns: 4,
	}

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = Connect(ctx, cfg)
		return err == nil
	}, 30*time.Second, time.Second, "PostGIS not ready for connections")
	t.Cleanup(pool.Close)

	for _, file := range []string{"testdata/schema.sql", "testdata/seed.sql"} {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "failed to load %s", file)
	}

	return pool
}

func TestStoreIntegration(t *testing.T) {
	pool := setupPostGIS(t)
	store := NewStore(pool)
	ctx := context.Background()

	t.Run("HealthCheck", func(t *testing.T) {
		assert.NoError(t, HealthCheck(ctx, pool))
	})

	t.Run("FindPOI", func(t *testing.T) {
		poi, err := store.FindPOI(ctx, "bel-cafe")
		require.NoError(t, err)
		require.NotNil(t, poi)
		assert.Equal(t, "Cafe Bellagio", poi.Name)
		assert.Equal(t, "Bellagio", poi.Property)
		assert.Equal(t, "restaurant", poi.Category)
		assert.InDelta(t, 36.1127, poi.Location.Lat, 1e-9)
		assert.InDelta(t, -115.1765, poi.Location.Lng, 1e-9)

		missing, err := store.FindPOI(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("FindStoredIndoorRoute", func(t *testing.T) {
		route, err := store.FindStoredIndoorRoute(ctx, "bel-cafe", "bel-pool")
		require.NoError(t, err)
		require.NotNil(t, route)
		assert.Equal(t, 180.5, route.DistanceMeters)
		assert.Equal(t, 129, route.DurationSeconds)
		assert.Equal(t, []int64{1, 2}, route.NodeIDs)
		assert.True(t, route.HasStairs)
		assert.False(t, route.HasElevator)
		assert.Equal(t, int64(1), route.PropertyID)

		none, err := store.FindStoredIndoorRoute(ctx, "bel-pool", "bel-cafe")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("ResolveNodes", func(t *testing.T) {
		nodes, err := store.ResolveNodes(ctx, []int64{1, 2, 20}, 1)
		require.NoError(t, err)
		require.Len(t, nodes, 2, "nodes of other properties are excluded")

		unfiltered, err := store.ResolveNodes(ctx, []int64{1, 20}, 0)
		require.NoError(t, err)
		assert.Len(t, unfiltered, 2)
	})

	t.Run("FindPropertyDistance", func(t *testing.T) {
		d, ok, err := store.FindPropertyDistance(ctx, "Bellagio", "Wynn")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1800.4, d)

		_, ok, err = store.FindPropertyDistance(ctx, "Bellagio", "Aria")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("FindNearestEntrance", func(t *testing.T) {
		ent, err := store.FindNearestEntrance(ctx, "bel-cafe", models.RoleRidesharePickup)
		require.NoError(t, err)
		require.NotNil(t, ent)
		assert.Equal(t, int64(10), ent.NodeID)
		assert.Equal(t, "Bellagio Rideshare", ent.Name)
		assert.Greater(t, ent.Distance, 0.0)

		none, err := store.FindNearestEntrance(ctx, "wynn-spa", models.RoleRidesharePickup)
		require.NoError(t, err)
		assert.Nil(t, none)

		main, err := store.FindNearestEntrance(ctx, "wynn-spa", models.RoleMain)
		require.NoError(t, err)
		require.NotNil(t, main)
		assert.Equal(t, int64(20), main.NodeID)
		assert.Empty(t, main.Name)
	})

	t.Run("FindIndoorPath", func(t *testing.T) {
		path, err := store.FindIndoorPath(ctx, "bel-cafe", 10, "Bellagio", false)
		require.NoError(t, err)
		require.Len(t, path, 4)
		assert.Equal(t, "Cafe Bellagio", path[0].Name)
		assert.Equal(t, "Conservatory", path[1].Name)
		assert.Equal(t, "stairs", path[2].Name)
		assert.Equal(t, "Bellagio Rideshare", path[3].Name)
		assert.Equal(t, models.RoleRidesharePickup, path[3].EntranceRole)

		reversed, err := store.FindIndoorPath(ctx, "wynn-spa", 20, "Wynn", true)
		require.NoError(t, err)
		require.Len(t, reversed, 2)
		assert.Equal(t, "Entrance", reversed[0].Name)
		assert.Equal(t, models.NodeEntrance, reversed[0].Kind)
		assert.Equal(t, "The Spa", reversed[1].Name)

		empty, err := store.FindIndoorPath(ctx, "bel-cafe", 999, "Bellagio", false)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Listings", func(t *testing.T) {
		pois, err := store.ListPOIs(ctx, "")
		require.NoError(t, err)
		require.Len(t, pois, 3, "closed POIs are hidden")
		assert.Equal(t, "Bellagio Pool", pois[0].Name)

		restaurants, err := store.ListPOIs(ctx, "restaurant")
		require.NoError(t, err)
		assert.Len(t, restaurants, 1)

		nearby, err := store.FindNearbyPOIs(ctx, models.Coordinate{Lat: 36.1127, Lng: -115.1765}, 200, "")
		require.NoError(t, err)
		require.Len(t, nearby, 2)
		assert.Equal(t, "bel-cafe", nearby[0].ID)
		assert.Less(t, nearby[0].DistanceMeters, nearby[1].DistanceMeters)

		props, err := store.ListProperties(ctx)
		require.NoError(t, err)
		assert.Len(t, props, 2)

		distances, err := store.ListPropertyDistances(ctx, 500)
		require.NoError(t, err)
		require.Len(t, distances, 2)
		assert.Equal(t, 1800.0, distances[0].DistanceMeters)
		assert.Equal(t, models.TransportRideshare, distances[0].Mode)

		d, ok, err := store.POIDistance(ctx, "bel-cafe", "wynn-spa")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Greater(t, d, 1000.0)
	})

	t.Run("ComposeTrip", func(t *testing.T) {
		composer := navigation.NewComposer(store, nil, nil, navigation.DefaultConfig(), nil, nil)

		trip, err := composer.ComposeTrip(ctx, "bel-cafe", "wynn-spa")
		require.NoError(t, err)
		require.Len(t, trip.Legs, 3)
		assert.Equal(t, models.TransportRideshare, trip.Mode)
		assert.Len(t, trip.Legs[0].Waypoints, 4)
		assert.Equal(t, "Bellagio Rideshare", trip.Legs[1].Pickup.Name)

		same, err := composer.ComposeTrip(ctx, "bel-cafe", "bel-pool")
		require.NoError(t, err)
		require.Len(t, same.Legs, 1)
		assert.Equal(t, 180.5, same.Legs[0].DistanceMeters)
		assert.True(t, *same.Legs[0].HasStairs)
	})

	t.Run("POIImport", func(t *testing.T) {
		lat, lng := 36.1262, -115.1658
		rec := poiimport.Record{ID: "wynn-buffet", Name: "The Buffet", Category: "restaurant", CasinoProperty: "Wynn"}
		rec.Location.Coordinates.Lat = &lat
		rec.Location.Coordinates.Lng = &lng
		rec.Location.Level = "1"
		rec.Tags = []string{"recommended"}

		valid, skipped := poiimport.Validate([]poiimport.Record{rec}, nil)
		require.Empty(t, skipped)

		summary, err := poiimport.NewImporter(pool, nil).Import(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)

		poi, err := store.FindPOI(ctx, "wynn-buffet")
		require.NoError(t, err)
		require.NotNil(t, poi)
		assert.Equal(t, "Wynn", poi.Property)
		assert.InDelta(t, lat, poi.Location.Lat, 1e-9)

		// re-import updates in place
		valid[0].Name = "The Buffet at Wynn"
		_, err = poiimport.NewImporter(pool, nil).Import(ctx, valid)
		require.NoError(t, err)
		poi, err = store.FindPOI(ctx, "wynn-buffet")
		require.NoError(t, err)
		assert.Equal(t, "The Buffet at Wynn", poi.Name)

		recommended, err := store.ListRecommendedPOIs(ctx)
		require.NoError(t, err)
		require.Len(t, recommended, 1)
		assert.Equal(t, "wynn-buffet", recommended[0].ID)

		counts, err := poiimport.CountByCategory(ctx, pool)
		require.NoError(t, err)
		byCategory := map[string]int64{}
		for _, c := range counts {
			byCategory[c.Category] = c.Count
		}
		assert.Equal(t, int64(2), byCategory["restaurant"])
	})
}
