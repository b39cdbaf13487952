package types

import (
	"fmt"
	"time"
)

// BuildingStatus represents the operational status of a building
type BuildingStatus string

const (
	BuildingActive      BuildingStatus = "ACTIVE"
	BuildingInactive    BuildingStatus = "INACTIVE"
	BuildingMaintenance BuildingStatus = "MAINTENANCE"
	BuildingEmergency   BuildingStatus = "EMERGENCY"
)

// IsValid checks if the building status is a known value
func (s BuildingStatus) IsValid() bool {
	switch s {
	case BuildingActive, BuildingInactive, BuildingMaintenance, BuildingEmergency:
		return true
	default:
		return false
	}
}

// Building represents a managed building and its security configuration
type Building struct {
	ID                string            `json:"id"`
	Code              string            `json:"code"`
	Name              string            `json:"name"`
	Address           string            `json:"address"`
	Timezone          string            `json:"timezone"`
	Status            BuildingStatus    `json:"status"`
	SecurityLevel     int               `json:"securityLevel"`
	OperatingHours    map[string]string `json:"operatingHours,omitempty"`
	EmergencyContacts []string          `json:"emergencyContacts,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// DoorStatus represents the current state of a door
type DoorStatus string

const (
	DoorLocked      DoorStatus = "LOCKED"
	DoorUnlocked    DoorStatus = "UNLOCKED"
	DoorOffline     DoorStatus = "OFFLINE"
	DoorMaintenance DoorStatus = "MAINTENANCE"
	DoorEmergency   DoorStatus = "EMERGENCY"
)

// IsValid checks if the door status is a known value
func (s DoorStatus) IsValid() bool {
	switch s {
	case DoorLocked, DoorUnlocked, DoorOffline, DoorMaintenance, DoorEmergency:
		return true
	default:
		return false
	}
}

// IsOperational reports whether the door can process access attempts
func (s DoorStatus) IsOperational() bool {
	return s == DoorLocked || s == DoorUnlocked || s == DoorEmergency
}

// Door represents a controlled door belonging to exactly one building
type Door struct {
	ID            string                 `json:"id"`
	BuildingID    string                 `json:"buildingId"`
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Floor         int                    `json:"floor"`
	Area          string                 `json:"area,omitempty"`
	DoorType      string                 `json:"doorType,omitempty"`
	LockType      string                 `json:"lockType,omitempty"`
	Status        DoorStatus             `json:"status"`
	SecurityLevel int                    `json:"securityLevel"`
	HardwareInfo  map[string]interface{} `json:"hardwareInfo,omitempty"`
	AccessMethods []AccessMethod         `json:"accessMethods,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// AccessType classifies the kind of access a grant confers
type AccessType string

const (
	AccessPermanent   AccessType = "PERMANENT"
	AccessTemporary   AccessType = "TEMPORARY"
	AccessVisitor     AccessType = "VISITOR"
	AccessContractor  AccessType = "CONTRACTOR"
	AccessEmergency   AccessType = "EMERGENCY"
	AccessMaintenance AccessType = "MAINTENANCE"
)

// IsValid checks if the access type is a known value
func (t AccessType) IsValid() bool {
	switch t {
	case AccessPermanent, AccessTemporary, AccessVisitor, AccessContractor, AccessEmergency, AccessMaintenance:
		return true
	default:
		return false
	}
}

// GrantStatus represents the lifecycle state of an access grant
type GrantStatus string

const (
	GrantPending   GrantStatus = "PENDING"
	GrantActive    GrantStatus = "ACTIVE"
	GrantSuspended GrantStatus = "SUSPENDED"
	GrantRevoked   GrantStatus = "REVOKED"
	GrantExpired   GrantStatus = "EXPIRED"
)

// IsValid checks if the grant status is a known value
func (s GrantStatus) IsValid() bool {
	switch s {
	case GrantPending, GrantActive, GrantSuspended, GrantRevoked, GrantExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions
func (s GrantStatus) IsTerminal() bool {
	return s == GrantRevoked || s == GrantExpired
}

// CanTransitionTo enforces the grant state machine:
// PENDING -> ACTIVE -> {SUSPENDED, REVOKED, EXPIRED};
// SUSPENDED -> {ACTIVE, REVOKED}; REVOKED and EXPIRED are terminal.
func (s GrantStatus) CanTransitionTo(target GrantStatus) bool {
	switch s {
	case GrantPending:
		return target == GrantActive || target == GrantRevoked || target == GrantExpired
	case GrantActive:
		return target == GrantSuspended || target == GrantRevoked || target == GrantExpired
	case GrantSuspended:
		return target == GrantActive || target == GrantRevoked || target == GrantExpired
	default:
		return false
	}
}

// WeeklySchedule maps weekday names ("monday".."sunday") to time windows
// in "HH:MM-HH:MM" form. An empty schedule means access at any time.
type WeeklySchedule map[string][]string

// AccessGrant represents door-opening rights conferred to a subject
type AccessGrant struct {
	ID                string         `json:"id"`
	UserID            string         `json:"userId"`
	BuildingID        string         `json:"buildingId"`
	DoorIDs           []string       `json:"doorIds"`
	PINHash           string         `json:"-"`
	AccessType        AccessType     `json:"accessType"`
	Status            GrantStatus    `json:"status"`
	ValidFrom         time.Time      `json:"validFrom"`
	ValidUntil        time.Time      `json:"validUntil"`
	MaxUsageCount     *int           `json:"maxUsageCount,omitempty"`
	CurrentUsageCount int            `json:"currentUsageCount"`
	Schedule          WeeklySchedule `json:"schedule,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// HasUsageRemaining reports whether the grant's usage cap allows another use
func (g *AccessGrant) HasUsageRemaining() bool {
	if g.MaxUsageCount == nil {
		return true
	}
	return g.CurrentUsageCount < *g.MaxUsageCount
}

// AllowsDoor reports whether the grant covers the given door
func (g *AccessGrant) AllowsDoor(doorID string) bool {
	for _, id := range g.DoorIDs {
		if id == doorID {
			return true
		}
	}
	return false
}

// VisitorStatus represents the lifecycle state of a visitor record
type VisitorStatus string

const (
	VisitorScheduled     VisitorStatus = "SCHEDULED"
	VisitorPreRegistered VisitorStatus = "PRE_REGISTERED"
	VisitorCheckedIn     VisitorStatus = "CHECKED_IN"
	VisitorCheckedOut    VisitorStatus = "CHECKED_OUT"
	VisitorCancelled     VisitorStatus = "CANCELLED"
	VisitorNoShow        VisitorStatus = "NO_SHOW"
)

// IsValid checks if the visitor status is a known value
func (s VisitorStatus) IsValid() bool {
	switch s {
	case VisitorScheduled, VisitorPreRegistered, VisitorCheckedIn,
		VisitorCheckedOut, VisitorCancelled, VisitorNoShow:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the visitor record permits no further transitions
func (s VisitorStatus) IsTerminal() bool {
	return s == VisitorCheckedOut || s == VisitorCancelled || s == VisitorNoShow
}

// CanTransitionTo enforces the visitor state machine:
// SCHEDULED -> {PRE_REGISTERED, CHECKED_IN}; PRE_REGISTERED -> CHECKED_IN;
// CHECKED_IN -> CHECKED_OUT; cancel from any non-terminal state;
// NO_SHOW from SCHEDULED or PRE_REGISTERED only.
func (s VisitorStatus) CanTransitionTo(target VisitorStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch target {
	case VisitorPreRegistered:
		return s == VisitorScheduled
	case VisitorCheckedIn:
		return s == VisitorScheduled || s == VisitorPreRegistered
	case VisitorCheckedOut:
		return s == VisitorCheckedIn
	case VisitorCancelled:
		return true
	case VisitorNoShow:
		return s == VisitorScheduled || s == VisitorPreRegistered
	default:
		return false
	}
}

// Visitor represents a visitor's lifecycle through a building
type Visitor struct {
	ID                string        `json:"id"`
	BuildingID        string        `json:"buildingId"`
	FirstName         string        `json:"firstName"`
	LastName          string        `json:"lastName"`
	Email             string        `json:"email,omitempty"`
	Phone             string        `json:"phone,omitempty"`
	Company           string        `json:"company,omitempty"`
	VisitorType       string        `json:"visitorType,omitempty"`
	Status            VisitorStatus `json:"status"`
	HostUserID        string        `json:"hostUserId"`
	ExpectedArrival   time.Time     `json:"expectedArrival"`
	ExpectedDeparture time.Time     `json:"expectedDeparture"`
	ActualArrival     *time.Time    `json:"actualArrival,omitempty"`
	ActualDeparture   *time.Time    `json:"actualDeparture,omitempty"`
	AllowedAreas      []string      `json:"allowedAreas,omitempty"`
	GrantID           string        `json:"grantId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// FullName returns the visitor's display name
func (v *Visitor) FullName() string {
	return fmt.Sprintf("%s %s", v.FirstName, v.LastName)
}

// AccessMethod identifies how an access attempt was made
type AccessMethod string

const (
	MethodPIN    AccessMethod = "PIN"
	MethodCard   AccessMethod = "CARD"
	MethodMobile AccessMethod = "MOBILE"
	MethodRemote AccessMethod = "REMOTE"
)

// IsValid checks if the access method is a known value
func (m AccessMethod) IsValid() bool {
	switch m {
	case MethodPIN, MethodCard, MethodMobile, MethodRemote:
		return true
	default:
		return false
	}
}

// AccessDirection distinguishes entries from exits for anti-passback tracking
type AccessDirection string

const (
	DirectionEntry AccessDirection = "ENTRY"
	DirectionExit  AccessDirection = "EXIT"
)

// Opposite returns the reverse direction
func (d AccessDirection) Opposite() AccessDirection {
	if d == DirectionEntry {
		return DirectionExit
	}
	return DirectionEntry
}

// AccessResult enumerates the outcome of an access attempt. Denials are
// domain outcomes, not errors; every attempt is logged with its result.
type AccessResult string

const (
	ResultSuccess         AccessResult = "SUCCESS"
	ResultInvalidPIN      AccessResult = "INVALID_PIN"
	ResultExpired         AccessResult = "EXPIRED"
	ResultSuspended       AccessResult = "SUSPENDED"
	ResultNotYetValid     AccessResult = "NOT_YET_VALID"
	ResultOutsideSchedule AccessResult = "OUTSIDE_SCHEDULE"
	ResultMaxUsageReached AccessResult = "MAX_USAGE_REACHED"
	ResultDoorOffline     AccessResult = "DOOR_OFFLINE"
	ResultDoorNotAllowed  AccessResult = "DOOR_NOT_ALLOWED"
	ResultAntiPassback    AccessResult = "ANTI_PASSBACK"
	ResultBuildingClosed  AccessResult = "BUILDING_CLOSED"
)

// IsValid checks if the access result is a known value
func (r AccessResult) IsValid() bool {
	switch r {
	case ResultSuccess, ResultInvalidPIN, ResultExpired, ResultSuspended,
		ResultNotYetValid, ResultOutsideSchedule,
		ResultMaxUsageReached, ResultDoorOffline, ResultDoorNotAllowed,
		ResultAntiPassback, ResultBuildingClosed:
		return true
	default:
		return false
	}
}

// Denied reports whether the result represents a denied attempt
func (r AccessResult) Denied() bool {
	return r != ResultSuccess
}

// AccessLogEntry is an append-only record of a single access attempt
type AccessLogEntry struct {
	ID            string          `json:"id"`
	GrantID       string          `json:"grantId,omitempty"`
	UserID        string          `json:"userId,omitempty"`
	VisitorID     string          `json:"visitorId,omitempty"`
	BuildingID    string          `json:"buildingId"`
	DoorID        string          `json:"doorId"`
	Method        AccessMethod    `json:"method"`
	Direction     AccessDirection `json:"direction"`
	Result        AccessResult    `json:"result"`
	CredentialRef string          `json:"credentialRef,omitempty"`
	DeviceInfo    string          `json:"deviceInfo,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
