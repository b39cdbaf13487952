package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEventType(t *testing.T) {
	valid := []EventType{
		EventAccessGranted,
		EventAccessDenied,
		EventGrantCreated,
		EventGrantSuspended,
		EventGrantRevoked,
		EventGrantReactivated,
		EventGrantExpired,
		EventDoorOpened,
		EventDoorForced,
		EventDoorHeldOpen,
		EventDoorStatusChanged,
		EventVisitorCheckedIn,
		EventVisitorCheckedOut,
		EventVisitorNoShow,
	}
	for _, et := range valid {
		assert.True(t, IsValidEventType(et), "expected %s to be valid", et)
	}

	assert.False(t, IsValidEventType(EventType("access.unknown")))
	assert.False(t, IsValidEventType(EventType("")))
}
