package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrantStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    GrantStatus
		to      GrantStatus
		allowed bool
	}{
		{"pending to active", GrantPending, GrantActive, true},
		{"pending to revoked", GrantPending, GrantRevoked, true},
		{"pending to expired", GrantPending, GrantExpired, true},
		{"pending to suspended", GrantPending, GrantSuspended, false},
		{"active to suspended", GrantActive, GrantSuspended, true},
		{"active to revoked", GrantActive, GrantRevoked, true},
		{"active to expired", GrantActive, GrantExpired, true},
		{"active to pending", GrantActive, GrantPending, false},
		{"suspended to active", GrantSuspended, GrantActive, true},
		{"suspended to revoked", GrantSuspended, GrantRevoked, true},
		{"suspended to expired", GrantSuspended, GrantExpired, true},
		{"revoked is terminal", GrantRevoked, GrantActive, false},
		{"revoked stays revoked", GrantRevoked, GrantSuspended, false},
		{"expired is terminal", GrantExpired, GrantActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestGrantStatusIsTerminal(t *testing.T) {
	assert.True(t, GrantRevoked.IsTerminal())
	assert.True(t, GrantExpired.IsTerminal())
	assert.False(t, GrantActive.IsTerminal())
	assert.False(t, GrantPending.IsTerminal())
	assert.False(t, GrantSuspended.IsTerminal())
}

func TestVisitorStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    VisitorStatus
		to      VisitorStatus
		allowed bool
	}{
		{"scheduled to pre-registered", VisitorScheduled, VisitorPreRegistered, true},
		{"scheduled to checked in", VisitorScheduled, VisitorCheckedIn, true},
		{"pre-registered to checked in", VisitorPreRegistered, VisitorCheckedIn, true},
		{"checked in to checked out", VisitorCheckedIn, VisitorCheckedOut, true},
		{"scheduled straight to checked out", VisitorScheduled, VisitorCheckedOut, false},
		{"pre-registered to checked out", VisitorPreRegistered, VisitorCheckedOut, false},
		{"cancel scheduled", VisitorScheduled, VisitorCancelled, true},
		{"cancel checked in", VisitorCheckedIn, VisitorCancelled, true},
		{"no-show from scheduled", VisitorScheduled, VisitorNoShow, true},
		{"no-show from pre-registered", VisitorPreRegistered, VisitorNoShow, true},
		{"no-show from checked in", VisitorCheckedIn, VisitorNoShow, false},
		{"checked out is terminal", VisitorCheckedOut, VisitorCheckedIn, false},
		{"cancelled is terminal", VisitorCancelled, VisitorCheckedIn, false},
		{"no-show is terminal", VisitorNoShow, VisitorCheckedIn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDoorStatusIsOperational(t *testing.T) {
	assert.True(t, DoorLocked.IsOperational())
	assert.True(t, DoorUnlocked.IsOperational())
	assert.True(t, DoorEmergency.IsOperational())
	assert.False(t, DoorOffline.IsOperational())
	assert.False(t, DoorMaintenance.IsOperational())
}

func TestAccessGrantHasUsageRemaining(t *testing.T) {
	unlimited := &AccessGrant{CurrentUsageCount: 1000}
	assert.True(t, unlimited.HasUsageRemaining())

	cap := 2
	capped := &AccessGrant{MaxUsageCount: &cap, CurrentUsageCount: 1}
	assert.True(t, capped.HasUsageRemaining())

	capped.CurrentUsageCount = 2
	assert.False(t, capped.HasUsageRemaining())
}

func TestAccessGrantAllowsDoor(t *testing.T) {
	grant := &AccessGrant{DoorIDs: []string{"door-1", "door-2"}}
	assert.True(t, grant.AllowsDoor("door-1"))
	assert.False(t, grant.AllowsDoor("door-3"))
}

func TestAccessResultDenied(t *testing.T) {
	assert.False(t, ResultSuccess.Denied())
	assert.True(t, ResultInvalidPIN.Denied())
	assert.True(t, ResultAntiPassback.Denied())
}

func TestAccessDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionExit, DirectionEntry.Opposite())
	assert.Equal(t, DirectionEntry, DirectionExit.Opposite())
}
