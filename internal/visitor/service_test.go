package visitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
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
)

type fakePublisher struct {
	mu    sync.Mutex
	types []types.EventType
}

func (p *fakePublisher) Publish(ctx context.Context, eventType types.EventType, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) seen() []types.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.EventType(nil), p.types...)
}

func newTestService(t *testing.T) (*Service, *store.Stores, *fakePublisher) {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.Driver = database.DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "visitor.db")

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	require.NoError(t, database.Migrate(db, logger))

	stores := store.New(db)
	pub := &fakePublisher{}
	accessSvc := access.NewService(stores, pub, logger, access.DefaultConfig())
	svc := NewService(stores, accessSvc, pub, logger)
	return svc, stores, pub
}

func seedBuilding(t *testing.T, s *store.Stores) *types.Building {
	t.Helper()

	b := &types.Building{
		ID:       uuid.NewString(),
		Code:     "BLD-" + uuid.NewString()[:8],
		Name:     "Headquarters",
		Address:  "1 Main St",
		Timezone: "UTC",
		Status:   types.BuildingActive,
	}
	require.NoError(t, s.Buildings.Create(context.Background(), b))
	return b
}

func seedDoor(t *testing.T, s *store.Stores, buildingID string) *types.Door {
	t.Helper()

	d := &types.Door{
		ID:         uuid.NewString(),
		BuildingID: buildingID,
		Code:       "DOOR-" + uuid.NewString()[:8],
		Name:       "Lobby",
		Floor:      1,
		Status:     types.DoorLocked,
	}
	require.NoError(t, s.Doors.Create(context.Background(), d))
	return d
}

func scheduleVisit(t *testing.T, svc *Service, buildingID string, preRegistered bool) *types.Visitor {
	t.Helper()

	now := time.Now().UTC()
	v, err := svc.Schedule(context.Background(), ScheduleRequest{
		BuildingID:        buildingID,
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Email:             "ada@example.com",
		HostUserID:        "host-1",
		ExpectedArrival:   now.Add(time.Hour),
		ExpectedDeparture: now.Add(5 * time.Hour),
		AllowedAreas:      []string{"lobby", "floor-2"},
		PreRegistered:     preRegistered,
	})
	require.NoError(t, err)
	return v
}

func TestSchedule(t *testing.T) {
	svc, stores, _ := newTestService(t)
	building := seedBuilding(t, stores)

	v := scheduleVisit(t, svc, building.ID, false)
	assert.Equal(t, types.VisitorScheduled, v.Status)
	assert.Empty(t, v.GrantID)
	assert.Nil(t, v.ActualArrival)

	pre := scheduleVisit(t, svc, building.ID, true)
	assert.Equal(t, types.VisitorPreRegistered, pre.Status)

	stored, err := stores.Visitors.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.Equal(t, []string{"lobby", "floor-2"}, stored.AllowedAreas)
}

func TestScheduleValidation(t *testing.T) {
	svc, stores, _ := newTestService(t)
	building := seedBuilding(t, stores)
	now := time.Now().UTC()

	base := ScheduleRequest{
		BuildingID:        building.ID,
		FirstName:         "Ada",
		LastName:          "Lovelace",
		HostUserID:        "host-1",
		ExpectedArrival:   now.Add(time.Hour),
		ExpectedDeparture: now.Add(2 * time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(r *ScheduleRequest)
	}{
		{"missing name", func(r *ScheduleRequest) { r.FirstName = "" }},
		{"missing host", func(r *ScheduleRequest) { r.HostUserID = "" }},
		{"inverted window", func(r *ScheduleRequest) { r.ExpectedDeparture = r.ExpectedArrival.Add(-time.Hour) }},
		{"unknown building", func(r *ScheduleRequest) { r.BuildingID = uuid.NewString() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := svc.Schedule(context.Background(), req)
			assert.Error(t, err)
		})
	}
}

func TestCheckInIssuesGrant(t *testing.T) {
	svc, stores, pub := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	door := seedDoor(t, stores, building.ID)
	v := scheduleVisit(t, svc, building.ID, false)

	result, err := svc.CheckIn(ctx, v.ID, CheckInOptions{DoorIDs: []string{door.ID}})
	require.NoError(t, err)

	assert.Equal(t, types.VisitorCheckedIn, result.Visitor.Status)
	assert.NotNil(t, result.Visitor.ActualArrival)
	assert.NotEmpty(t, result.PIN)
	assert.Contains(t, pub.seen(), types.EventVisitorCheckedIn)

	// The issued grant is a VISITOR grant valid until the expected departure
	grant, err := stores.Grants.Get(ctx, result.Visitor.GrantID)
	require.NoError(t, err)
	assert.Equal(t, types.AccessVisitor, grant.AccessType)
	assert.Equal(t, v.ID, grant.UserID)
	assert.WithinDuration(t, v.ExpectedDeparture, grant.ValidUntil, time.Second)

	// The badge PIN opens the visitor's door
	decision, err := svc.accessSvc.Validate(ctx, access.ValidateRequest{PIN: result.PIN, DoorID: door.ID})
	require.NoError(t, err)
	assert.Equal(t, types.ResultSuccess, decision.Result)
}

func TestCheckInWithoutDoorsSkipsGrant(t *testing.T) {
	svc, stores, _ := newTestService(t)

	building := seedBuilding(t, stores)
	v := scheduleVisit(t, svc, building.ID, true)

	result, err := svc.CheckIn(context.Background(), v.ID, CheckInOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.PIN)
	assert.Empty(t, result.Visitor.GrantID)
}

func TestCheckInRequiresScheduledState(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	v := scheduleVisit(t, svc, building.ID, false)

	_, err := svc.CheckIn(ctx, v.ID, CheckInOptions{})
	require.NoError(t, err)

	// Already checked in
	_, err = svc.CheckIn(ctx, v.ID, CheckInOptions{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCheckInConcurrentAttemptsAdmitOnce(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	v := scheduleVisit(t, svc, building.ID, false)

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CheckIn(ctx, v.ID, CheckInOptions{})
		}(i)
	}
	wg.Wait()

	// The compare-and-set lets exactly one racer through
	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInvalidTransition):
			conflicted++
		default:
			t.Fatalf("unexpected check-in error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, conflicted)

	stored, err := stores.Visitors.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorCheckedIn, stored.Status)
	assert.NotNil(t, stored.ActualArrival)
}

func TestCheckOutConcurrentAttemptsCloseOnce(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	v := scheduleVisit(t, svc, building.ID, false)

	_, err := svc.CheckIn(ctx, v.ID, CheckInOptions{})
	require.NoError(t, err)

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CheckOut(ctx, v.ID)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded)

	stored, err := stores.Visitors.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorCheckedOut, stored.Status)
	assert.NotNil(t, stored.ActualDeparture)
}

func TestCheckOutRevokesGrant(t *testing.T) {
	svc, stores, pub := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	door := seedDoor(t, stores, building.ID)
	v := scheduleVisit(t, svc, building.ID, false)

	result, err := svc.CheckIn(ctx, v.ID, CheckInOptions{DoorIDs: []string{door.ID}})
	require.NoError(t, err)

	out, err := svc.CheckOut(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorCheckedOut, out.Status)
	assert.NotNil(t, out.ActualDeparture)
	assert.Contains(t, pub.seen(), types.EventVisitorCheckedOut)

	grant, err := stores.Grants.Get(ctx, result.Visitor.GrantID)
	require.NoError(t, err)
	assert.Equal(t, types.GrantRevoked, grant.Status)

	// The badge PIN no longer works
	decision, err := svc.accessSvc.Validate(ctx, access.ValidateRequest{PIN: result.PIN, DoorID: door.ID})
	require.NoError(t, err)
	assert.Equal(t, types.ResultInvalidPIN, decision.Result)
}

func TestCheckOutRequiresCheckedIn(t *testing.T) {
	svc, stores, _ := newTestService(t)

	building := seedBuilding(t, stores)
	v := scheduleVisit(t, svc, building.ID, false)

	// Straight from SCHEDULED to CHECKED_OUT is not allowed
	_, err := svc.CheckOut(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	v := scheduleVisit(t, svc, building.ID, false)

	cancelled, err := svc.Cancel(ctx, v.ID, "host unavailable")
	require.NoError(t, err)
	assert.Equal(t, types.VisitorCancelled, cancelled.Status)

	// Terminal: no further transitions
	_, err = svc.Cancel(ctx, v.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.CheckIn(ctx, v.ID, CheckInOptions{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelCheckedInRevokesGrant(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)
	door := seedDoor(t, stores, building.ID)
	v := scheduleVisit(t, svc, building.ID, false)

	result, err := svc.CheckIn(ctx, v.ID, CheckInOptions{DoorIDs: []string{door.ID}})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, v.ID, "evacuation")
	require.NoError(t, err)

	grant, err := stores.Grants.Get(ctx, result.Visitor.GrantID)
	require.NoError(t, err)
	assert.Equal(t, types.GrantRevoked, grant.Status)
}

func TestMarkNoShows(t *testing.T) {
	svc, stores, pub := newTestService(t)
	ctx := context.Background()

	building := seedBuilding(t, stores)

	// Overdue: expected two grace periods ago
	overdue := scheduleVisit(t, svc, building.ID, false)
	overdue.ExpectedArrival = time.Now().UTC().Add(-2 * svc.NoShowGrace)
	require.NoError(t, stores.Visitors.Update(ctx, overdue))

	// On time and already arrived: both untouched
	upcoming := scheduleVisit(t, svc, building.ID, false)
	arrived := scheduleVisit(t, svc, building.ID, false)
	arrived.ExpectedArrival = time.Now().UTC().Add(-2 * svc.NoShowGrace)
	require.NoError(t, stores.Visitors.Update(ctx, arrived))
	_, err := svc.CheckIn(ctx, arrived.ID, CheckInOptions{})
	require.NoError(t, err)

	marked, err := svc.MarkNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Contains(t, pub.seen(), types.EventVisitorNoShow)

	stored, err := stores.Visitors.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorNoShow, stored.Status)

	stored, err = stores.Visitors.Get(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorScheduled, stored.Status)

	stored, err = stores.Visitors.Get(ctx, arrived.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisitorCheckedIn, stored.Status)

	// Second sweep is a no-op
	marked, err = svc.MarkNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)
}
