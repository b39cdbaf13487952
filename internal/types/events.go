package types

import (
	"time"
)

// EventType tags a domain event published on the message bus
type EventType string

// Event type constants consumed by downstream services
const (
	EventAccessGranted     EventType = "access.granted"
	EventAccessDenied      EventType = "access.denied"
	EventGrantCreated      EventType = "access.grant_created"
	EventGrantSuspended    EventType = "access.grant_suspended"
	EventGrantRevoked      EventType = "access.grant_revoked"
	EventGrantReactivated  EventType = "access.grant_reactivated"
	EventGrantExpired      EventType = "access.grant_expired"
	EventDoorOpened        EventType = "door.opened"
	EventDoorForced        EventType = "door.forced"
	EventDoorHeldOpen      EventType = "door.held_open"
	EventDoorStatusChanged EventType = "door.status_changed"
	EventVisitorCheckedIn  EventType = "visitor.checked_in"
	EventVisitorCheckedOut EventType = "visitor.checked_out"
	EventVisitorNoShow     EventType = "visitor.no_show"
)

// IsValidEventType checks if the provided event type is valid
func IsValidEventType(eventType EventType) bool {
	switch eventType {
	case EventAccessGranted, EventAccessDenied, EventGrantCreated,
		EventGrantSuspended, EventGrantRevoked, EventGrantReactivated,
		EventGrantExpired, EventDoorOpened, EventDoorForced,
		EventDoorHeldOpen, EventDoorStatusChanged, EventVisitorCheckedIn,
		EventVisitorCheckedOut, EventVisitorNoShow:
		return true
	default:
		return false
	}
}

// AccessEventPayload carries the data for access granted/denied events
type AccessEventPayload struct {
	GrantID    string          `json:"grantId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	VisitorID  string          `json:"visitorId,omitempty"`
	BuildingID string          `json:"buildingId"`
	DoorID     string          `json:"doorId"`
	Method     AccessMethod    `json:"method"`
	Direction  AccessDirection `json:"direction"`
	Result     AccessResult    `json:"result"`
	Timestamp  time.Time       `json:"timestamp"`
}

// GrantEventPayload carries the data for grant lifecycle events
type GrantEventPayload struct {
	GrantID    string      `json:"grantId"`
	UserID     string      `json:"userId"`
	BuildingID string      `json:"buildingId"`
	Status     GrantStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DoorEventPayload carries the data for door state events
type DoorEventPayload struct {
	DoorID     string     `json:"doorId"`
	BuildingID string     `json:"buildingId"`
	Status     DoorStatus `json:"status"`
	Previous   DoorStatus `json:"previousStatus,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// VisitorEventPayload carries the data for visitor lifecycle events
type VisitorEventPayload struct {
	VisitorID  string        `json:"visitorId"`
	BuildingID string        `json:"buildingId"`
	HostUserID string        `json:"hostUserId"`
	Status     VisitorStatus `json:"status"`
	GrantID    string        `json:"grantId,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
