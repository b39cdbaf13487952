package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building-access-service/internal/access"
	"building-access-service/internal/database"
	"building-access-service/internal/store"
	"building-access-service/internal/types"
	"building-access-service/internal/visitor"
)

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *store.Stores) {
	t.Helper()

	dbCfg := database.DefaultConfig()
	dbCfg.Driver = database.DriverSQLite
	dbCfg.Path = filepath.Join(t.TempDir(), "scheduler.db")

	db, err := database.Connect(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	require.NoError(t, database.Migrate(db, logger))

	stores := store.New(db)
	accessSvc := access.NewService(stores, nil, logger, access.DefaultConfig())
	visitorSvc := visitor.NewService(stores, accessSvc, nil, logger)

	s, err := New(cfg, stores, visitorSvc, logger)
	require.NoError(t, err)
	return s, stores
}

func seedGrant(t *testing.T, s *store.Stores, buildingID string, status types.GrantStatus, validFrom, validUntil time.Time) *types.AccessGrant {
	t.Helper()

	g := &types.AccessGrant{
		ID:         uuid.NewString(),
		UserID:     "user-1",
		BuildingID: buildingID,
		PINHash:    "hash-" + uuid.NewString()[:8],
		AccessType: types.AccessTemporary,
		Status:     status,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	}
	require.NoError(t, s.Grants.Create(context.Background(), g))
	return g
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, _ = newTestScheduler(t, DefaultConfig())

	dbCfg := database.DefaultConfig()
	dbCfg.Driver = database.DriverSQLite
	dbCfg.Path = filepath.Join(t.TempDir(), "bad.db")
	db, err := database.Connect(dbCfg)
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	require.NoError(t, database.Migrate(db, logger))
	stores := store.New(db)
	accessSvc := access.NewService(stores, nil, logger, access.DefaultConfig())
	visitorSvc := visitor.NewService(stores, accessSvc, nil, logger)

	cfg := DefaultConfig()
	cfg.GrantSweepSpec = "every minute or so"
	_, err = New(cfg, stores, visitorSvc, logger)
	assert.Error(t, err)
}

func TestRunOnceSweeps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogRetention = 24 * time.Hour
	s, stores := newTestScheduler(t, cfg)
	ctx := context.Background()

	building := &types.Building{
		ID:       uuid.NewString(),
		Code:     "HQ",
		Name:     "Headquarters",
		Timezone: "UTC",
		Status:   types.BuildingActive,
	}
	require.NoError(t, stores.Buildings.Create(ctx, building))

	now := time.Now().UTC()
	pending := seedGrant(t, stores, building.ID, types.GrantPending, now.Add(-time.Minute), now.Add(time.Hour))
	overdue := seedGrant(t, stores, building.ID, types.GrantActive, now.Add(-2*time.Hour), now.Add(-time.Hour))
	future := seedGrant(t, stores, building.ID, types.GrantPending, now.Add(time.Hour), now.Add(2*time.Hour))

	noShow := &types.Visitor{
		ID:                uuid.NewString(),
		BuildingID:        building.ID,
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Status:            types.VisitorScheduled,
		HostUserID:        "host-1",
		ExpectedArrival:   now.Add(-5 * time.Hour),
		ExpectedDeparture: now.Add(-time.Hour),
	}
	require.NoError(t, stores.Visitors.Create(ctx, noShow))

	oldEntry := &types.AccessLogEntry{
		ID:         uuid.NewString(),
		BuildingID: building.ID,
		DoorID:     "door-1",
		Method:     types.MethodPIN,
		Direction:  types.DirectionEntry,
		Result:     types.ResultSuccess,
		Timestamp:  now.Add(-48 * time.Hour),
	}
	require.NoError(t, stores.AccessLogs.Insert(ctx, oldEntry))
	freshEntry := &types.AccessLogEntry{
		ID:         uuid.NewString(),
		BuildingID: building.ID,
		DoorID:     "door-1",
		Method:     types.MethodPIN,
		Direction:  types.DirectionEntry,
		Result:     types.ResultSuccess,
		Timestamp:  now,
	}
	require.NoError(t, stores.AccessLogs.Insert(ctx, freshEntry))

	s.RunOnce()

	g, err := stores.Grants.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GrantActive, g.Status)

	g, err = stores.Grants.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GrantExpired, g.Status)

	g, err = stores.Grants.Get(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GrantPending, g.Status)

	v, err := stores.Visitors.Get(ctx, noShow.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorNoShow, v.Status)

	entries, total, err := stores.AccessLogs.Query(ctx, store.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, freshEntry.ID, entries[0].ID)
}
