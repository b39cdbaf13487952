package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building-access-service/internal/types"
)

func TestDoorCRUD(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	b := seedBuilding(t, s)

	d := &types.Door{
		ID:            uuid.NewString(),
		BuildingID:    b.ID,
		Code:          "LOBBY-1",
		Name:          "Lobby Entrance",
		Floor:         1,
		Area:          "lobby",
		DoorType:      "double",
		LockType:      "magnetic",
		Status:        types.DoorLocked,
		SecurityLevel: 2,
		HardwareInfo:  map[string]interface{}{"controller": "acx-9"},
		AccessMethods: []types.AccessMethod{types.MethodPIN, types.MethodCard},
	}
	require.NoError(t, s.Doors.Create(ctx, d))

	got, err := s.Doors.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Code, got.Code)
	assert.Equal(t, d.Area, got.Area)
	assert.Equal(t, d.AccessMethods, got.AccessMethods)
	assert.Equal(t, "acx-9", got.HardwareInfo["controller"])

	got.Name = "Lobby North"
	require.NoError(t, s.Doors.Update(ctx, got))

	updated, err := s.Doors.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lobby North", updated.Name)

	require.NoError(t, s.Doors.Delete(ctx, d.ID))
	_, err = s.Doors.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDoorDuplicateCodeInBuilding(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	b := seedBuilding(t, s)
	d := seedDoor(t, s, b.ID)

	dup := &types.Door{
		ID:         uuid.NewString(),
		BuildingID: b.ID,
		Code:       d.Code,
		Name:       "Clone",
		Status:     types.DoorLocked,
	}
	assert.ErrorIs(t, s.Doors.Create(ctx, dup), ErrConflict)

	// Same code in a different building is fine
	other := seedBuilding(t, s)
	dup.BuildingID = other.ID
	assert.NoError(t, s.Doors.Create(ctx, dup))
}

func TestDoorGetMany(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	b := seedBuilding(t, s)
	d1 := seedDoor(t, s, b.ID)
	d2 := seedDoor(t, s, b.ID)

	doors, err := s.Doors.GetMany(ctx, []string{d1.ID, d2.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, doors, 2)
	assert.Contains(t, doors, d1.ID)
	assert.Contains(t, doors, d2.ID)
	assert.NotContains(t, doors, "missing")
}

func TestDoorUpdateStatus(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	b := seedBuilding(t, s)
	d := seedDoor(t, s, b.ID)

	previous, err := s.Doors.UpdateStatus(ctx, d.ID, types.DoorOffline)
	require.NoError(t, err)
	assert.Equal(t, types.DoorLocked, previous)

	got, err := s.Doors.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DoorOffline, got.Status)
}

func TestDoorListByFloor(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	b := seedBuilding(t, s)
	seedDoor(t, s, b.ID)

	upstairs := seedDoor(t, s, b.ID)
	upstairs.Floor = 2
	require.NoError(t, s.Doors.Update(ctx, upstairs))

	floor := 2
	doors, total, err := s.Doors.List(ctx, DoorFilter{BuildingID: b.ID, Floor: &floor})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, doors, 1)
	assert.Equal(t, upstairs.ID, doors[0].ID)
}

func TestDoorDeleteCascadesFromBuilding(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	b := seedBuilding(t, s)
	d := seedDoor(t, s, b.ID)

	require.NoError(t, s.Buildings.Delete(ctx, b.ID))

	_, err := s.Doors.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
