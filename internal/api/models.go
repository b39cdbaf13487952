package api

import (
	"fmt"
	"time"

	"building-access-service/internal/types"
)

// ErrorResponse is the JSON body for all error replies
type ErrorResponse struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ListResponse wraps paginated list replies
type ListResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// HealthCheckResponse represents the health endpoint reply
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// CreateBuildingRequest is the body for POST /buildings
type CreateBuildingRequest struct {
	Code              string            `json:"code"`
	Name              string            `json:"name"`
	Address           string            `json:"address"`
	Timezone          string            `json:"timezone"`
	SecurityLevel     int               `json:"securityLevel"`
	OperatingHours    map[string]string `json:"operatingHours,omitempty"`
	EmergencyContacts []string          `json:"emergencyContacts,omitempty"`
}

// Validate checks required fields
func (r *CreateBuildingRequest) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("code is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return fmt.Errorf("timezone is not a valid IANA zone name")
		}
	}
	return nil
}

// UpdateBuildingRequest is the body for PUT /buildings/{id}
type UpdateBuildingRequest struct {
	Name              string               `json:"name"`
	Address           string               `json:"address"`
	Timezone          string               `json:"timezone"`
	Status            types.BuildingStatus `json:"status"`
	SecurityLevel     int                  `json:"securityLevel"`
	OperatingHours    map[string]string    `json:"operatingHours,omitempty"`
	EmergencyContacts []string             `json:"emergencyContacts,omitempty"`
}

// Validate checks field values
func (r *UpdateBuildingRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Status != "" && !r.Status.IsValid() {
		return fmt.Errorf("status must be one of ACTIVE, INACTIVE, MAINTENANCE, EMERGENCY")
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return fmt.Errorf("timezone is not a valid IANA zone name")
		}
	}
	return nil
}

// CreateDoorRequest is the body for POST /buildings/{id}/doors
type CreateDoorRequest struct {
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Floor         int                    `json:"floor"`
	Area          string                 `json:"area,omitempty"`
	DoorType      string                 `json:"doorType,omitempty"`
	LockType      string                 `json:"lockType,omitempty"`
	SecurityLevel int                    `json:"securityLevel"`
	HardwareInfo  map[string]interface{} `json:"hardwareInfo,omitempty"`
	AccessMethods []types.AccessMethod   `json:"accessMethods,omitempty"`
}

// Validate checks required fields
func (r *CreateDoorRequest) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("code is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, m := range r.AccessMethods {
		if !m.IsValid() {
			return fmt.Errorf("accessMethods contains unknown method %s", m)
		}
	}
	return nil
}

// UpdateDoorRequest is the body for PUT /doors/{id}
type UpdateDoorRequest struct {
	Name          string                 `json:"name"`
	Floor         int                    `json:"floor"`
	Area          string                 `json:"area,omitempty"`
	DoorType      string                 `json:"doorType,omitempty"`
	LockType      string                 `json:"lockType,omitempty"`
	SecurityLevel int                    `json:"securityLevel"`
	HardwareInfo  map[string]interface{} `json:"hardwareInfo,omitempty"`
	AccessMethods []types.AccessMethod   `json:"accessMethods,omitempty"`
}

// Validate checks field values
func (r *UpdateDoorRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, m := range r.AccessMethods {
		if !m.IsValid() {
			return fmt.Errorf("accessMethods contains unknown method %s", m)
		}
	}
	return nil
}

// DoorStatusReportRequest is the body for POST /doors/{id}/status
type DoorStatusReportRequest struct {
	Status types.DoorStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}

// Validate checks field values
func (r *DoorStatusReportRequest) Validate() error {
	if !r.Status.IsValid() {
		return fmt.Errorf("status must be one of LOCKED, UNLOCKED, OFFLINE, MAINTENANCE, EMERGENCY")
	}
	return nil
}

// GeneratePINRequest is the body for POST /access/grants
type GeneratePINRequest struct {
	UserID        string               `json:"userId"`
	BuildingID    string               `json:"buildingId"`
	DoorIDs       []string             `json:"doorIds"`
	AccessType    types.AccessType     `json:"accessType"`
	ValidFrom     time.Time            `json:"validFrom"`
	ValidUntil    time.Time            `json:"validUntil"`
	MaxUsageCount *int                 `json:"maxUsageCount,omitempty"`
	Schedule      types.WeeklySchedule `json:"schedule,omitempty"`
}

// Validate checks required fields
func (r *GeneratePINRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if r.BuildingID == "" {
		return fmt.Errorf("buildingId is required")
	}
	if len(r.DoorIDs) == 0 {
		return fmt.Errorf("doorIds must not be empty")
	}
	if !r.AccessType.IsValid() {
		return fmt.Errorf("accessType must be a known access type")
	}
	if r.ValidFrom.IsZero() || r.ValidUntil.IsZero() {
		return fmt.Errorf("validFrom and validUntil are required")
	}
	if !r.ValidUntil.After(r.ValidFrom) {
		return fmt.Errorf("validUntil must be after validFrom")
	}
	if r.MaxUsageCount != nil && *r.MaxUsageCount <= 0 {
		return fmt.Errorf("maxUsageCount must be positive when set")
	}
	return nil
}

// GeneratePINResponse carries the created grant and the one-time raw PIN
type GeneratePINResponse struct {
	Grant *types.AccessGrant `json:"grant"`
	PIN   string             `json:"pin"`
}

// GrantActionRequest is the body for suspend/revoke actions
type GrantActionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BulkGrantRequest is the body for bulk suspend/revoke
type BulkGrantRequest struct {
	GrantIDs []string `json:"grantIds"`
	Reason   string   `json:"reason,omitempty"`
}

// Validate checks required fields
func (r *BulkGrantRequest) Validate() error {
	if len(r.GrantIDs) == 0 {
		return fmt.Errorf("grantIds must not be empty")
	}
	return nil
}

// ValidateAccessRequest is the body for POST /access/validate
type ValidateAccessRequest struct {
	PIN        string                `json:"pin"`
	DoorID     string                `json:"doorId"`
	Direction  types.AccessDirection `json:"direction,omitempty"`
	Method     types.AccessMethod    `json:"method,omitempty"`
	DeviceInfo string                `json:"deviceInfo,omitempty"`
}

// Validate checks required fields
func (r *ValidateAccessRequest) Validate() error {
	if r.PIN == "" {
		return fmt.Errorf("pin is required")
	}
	if r.DoorID == "" {
		return fmt.Errorf("doorId is required")
	}
	if r.Method != "" && !r.Method.IsValid() {
		return fmt.Errorf("method must be one of PIN, CARD, MOBILE, REMOTE")
	}
	if r.Direction != "" && r.Direction != types.DirectionEntry && r.Direction != types.DirectionExit {
		return fmt.Errorf("direction must be ENTRY or EXIT")
	}
	return nil
}

// ValidateAccessResponse reports the outcome of an access attempt
type ValidateAccessResponse struct {
	Allowed   bool               `json:"allowed"`
	Result    types.AccessResult `json:"result"`
	GrantID   string             `json:"grantId,omitempty"`
	UserID    string             `json:"userId,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ScheduleVisitorRequest is the body for POST /visitors
type ScheduleVisitorRequest struct {
	BuildingID        string    `json:"buildingId"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Company           string    `json:"company,omitempty"`
	VisitorType       string    `json:"visitorType,omitempty"`
	HostUserID        string    `json:"hostUserId"`
	ExpectedArrival   time.Time `json:"expectedArrival"`
	ExpectedDeparture time.Time `json:"expectedDeparture"`
	AllowedAreas      []string  `json:"allowedAreas,omitempty"`
	PreRegistered     bool      `json:"preRegistered,omitempty"`
}

// Validate checks required fields
func (r *ScheduleVisitorRequest) Validate() error {
	if r.BuildingID == "" {
		return fmt.Errorf("buildingId is required")
	}
	if r.FirstName == "" || r.LastName == "" {
		return fmt.Errorf("firstName and lastName are required")
	}
	if r.HostUserID == "" {
		return fmt.Errorf("hostUserId is required")
	}
	if r.ExpectedArrival.IsZero() || r.ExpectedDeparture.IsZero() {
		return fmt.Errorf("expectedArrival and expectedDeparture are required")
	}
	if !r.ExpectedDeparture.After(r.ExpectedArrival) {
		return fmt.Errorf("expectedDeparture must be after expectedArrival")
	}
	return nil
}

// CheckInVisitorRequest is the body for POST /visitors/{id}/checkin
type CheckInVisitorRequest struct {
	DoorIDs       []string `json:"doorIds,omitempty"`
	MaxUsageCount *int     `json:"maxUsageCount,omitempty"`
}

// Validate checks field values
func (r *CheckInVisitorRequest) Validate() error {
	if r.MaxUsageCount != nil && *r.MaxUsageCount <= 0 {
		return fmt.Errorf("maxUsageCount must be positive when set")
	}
	return nil
}

// CheckInVisitorResponse carries the updated visitor and badge PIN, if issued
type CheckInVisitorResponse struct {
	Visitor *types.Visitor `json:"visitor"`
	PIN     string         `json:"pin,omitempty"`
}

// CancelVisitorRequest is the body for POST /visitors/{id}/cancel
type CancelVisitorRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AccessLogStatsResponse summarizes attempt counts per result
type AccessLogStatsResponse struct {
	Total    int64                        `json:"total"`
	ByResult map[types.AccessResult]int64 `json:"byResult"`
}
