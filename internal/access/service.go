// Package access implements the access grant lifecycle and PIN validation,
// the domain core of the service.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/events"
	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// ErrInvalidTransition indicates a grant state transition the lifecycle
// state machine does not permit
var ErrInvalidTransition = errors.New("invalid grant status transition")

// Config holds domain tunables
type Config struct {
	PINLength          int
	AntiPassbackWindow time.Duration
}

// DefaultConfig returns default domain settings
func DefaultConfig() Config {
	return Config{
		PINLength:          6,
		AntiPassbackWindow: 5 * time.Minute,
	}
}

// Service coordinates grant lifecycle operations and access validation
type Service struct {
	stores    *store.Stores
	publisher events.Publisher
	logger    *logrus.Entry
	cfg       Config
	now       func() time.Time
}

// NewService creates the access domain service
func NewService(stores *store.Stores, publisher events.Publisher, logger *logrus.Logger, cfg Config) *Service {
	if cfg.PINLength == 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		stores:    stores,
		publisher: publisher,
		logger:    logger.WithField("component", "access"),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GenerateRequest describes a new grant to issue
type GenerateRequest struct {
	UserID        string
	BuildingID    string
	DoorIDs       []string
	AccessType    types.AccessType
	ValidFrom     time.Time
	ValidUntil    time.Time
	MaxUsageCount *int
	Schedule      types.WeeklySchedule
}

// GenerateResult carries the created grant and the raw PIN, which is
// returned exactly once and never persisted
type GenerateResult struct {
	Grant *types.AccessGrant
	PIN   string
}

// GeneratePIN issues a new access grant with a fresh PIN. The grant starts
// ACTIVE when its validity window is already open, otherwise PENDING.
func (s *Service) GeneratePIN(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if !req.AccessType.IsValid() {
		return nil, fmt.Errorf("invalid access type: %s", req.AccessType)
	}
	if len(req.DoorIDs) == 0 {
		return nil, fmt.Errorf("at least one door id is required")
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return nil, fmt.Errorf("valid_until must be after valid_from")
	}
	if req.MaxUsageCount != nil && *req.MaxUsageCount <= 0 {
		return nil, fmt.Errorf("max_usage_count must be positive when set")
	}

	building, err := s.stores.Buildings.Get(ctx, req.BuildingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("building %s not found", req.BuildingID)
		}
		return nil, err
	}

	// Door membership is validated against the registry at write time, so
	// the grant can never reference unknown doors or doors in another building
	doors, err := s.stores.Doors.GetMany(ctx, req.DoorIDs)
	if err != nil {
		return nil, err
	}
	for _, doorID := range req.DoorIDs {
		door, ok := doors[doorID]
		if !ok {
			return nil, fmt.Errorf("door %s not found", doorID)
		}
		if door.BuildingID != building.ID {
			return nil, fmt.Errorf("door %s does not belong to building %s", doorID, building.ID)
		}
	}

	pin, err := GeneratePIN(s.cfg.PINLength)
	if err != nil {
		return nil, err
	}

	status := types.GrantActive
	if req.ValidFrom.After(s.now()) {
		status = types.GrantPending
	}

	grant := &types.AccessGrant{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		BuildingID:    req.BuildingID,
		DoorIDs:       req.DoorIDs,
		PINHash:       HashPIN(pin),
		AccessType:    req.AccessType,
		Status:        status,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		MaxUsageCount: req.MaxUsageCount,
		Schedule:      req.Schedule,
	}

	if err := s.stores.Grants.Create(ctx, grant); err != nil {
		return nil, err
	}

	s.publish(ctx, types.EventGrantCreated, types.GrantEventPayload{
		GrantID:    grant.ID,
		UserID:     grant.UserID,
		BuildingID: grant.BuildingID,
		Status:     grant.Status,
		Timestamp:  s.now(),
	})

	s.logger.WithFields(logrus.Fields{
		"grant_id":    grant.ID,
		"building_id": grant.BuildingID,
		"access_type": grant.AccessType,
		"status":      grant.Status,
	}).Info("Access grant created")

	return &GenerateResult{Grant: grant, PIN: pin}, nil
}

// Suspend moves an ACTIVE grant to SUSPENDED
func (s *Service) Suspend(ctx context.Context, grantID, reason string) error {
	return s.transition(ctx, grantID, types.GrantSuspended, types.EventGrantSuspended, reason)
}

// Revoke terminates a grant permanently
func (s *Service) Revoke(ctx context.Context, grantID, reason string) error {
	return s.transition(ctx, grantID, types.GrantRevoked, types.EventGrantRevoked, reason)
}

// Reactivate restores a SUSPENDED grant to ACTIVE. Any other source status
// is rejected with ErrInvalidTransition.
func (s *Service) Reactivate(ctx context.Context, grantID string) error {
	grant, err := s.stores.Grants.Get(ctx, grantID)
	if err != nil {
		return err
	}
	if grant.Status != types.GrantSuspended {
		return fmt.Errorf("cannot reactivate grant in status %s: %w", grant.Status, ErrInvalidTransition)
	}
	return s.transition(ctx, grantID, types.GrantActive, types.EventGrantReactivated, "")
}

// BulkResult reports the outcome of one id in a bulk operation
type BulkResult struct {
	GrantID string `json:"grantId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// BulkSuspend applies Suspend to each id best-effort, reporting per-id
// results. A failed id never blocks the rest, and missing ids are reported
// rather than silently skipped.
func (s *Service) BulkSuspend(ctx context.Context, grantIDs []string, reason string) []BulkResult {
	return s.bulk(grantIDs, func(id string) error { return s.Suspend(ctx, id, reason) })
}

// BulkRevoke applies Revoke to each id best-effort with per-id results
func (s *Service) BulkRevoke(ctx context.Context, grantIDs []string, reason string) []BulkResult {
	return s.bulk(grantIDs, func(id string) error { return s.Revoke(ctx, id, reason) })
}

func (s *Service) bulk(grantIDs []string, op func(string) error) []BulkResult {
	results := make([]BulkResult, 0, len(grantIDs))
	for _, id := range grantIDs {
		if err := op(id); err != nil {
			results = append(results, BulkResult{GrantID: id, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{GrantID: id, OK: true})
	}
	return results
}

func (s *Service) transition(ctx context.Context, grantID string, target types.GrantStatus, event types.EventType, reason string) error {
	grant, err := s.stores.Grants.Get(ctx, grantID)
	if err != nil {
		return err
	}

	if !grant.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot move grant from %s to %s: %w", grant.Status, target, ErrInvalidTransition)
	}

	ok, err := s.stores.Grants.TransitionStatus(ctx, grantID, grant.Status, target)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a concurrent transition
		return fmt.Errorf("grant %s changed status concurrently: %w", grantID, ErrInvalidTransition)
	}

	s.publish(ctx, event, types.GrantEventPayload{
		GrantID:    grantID,
		UserID:     grant.UserID,
		BuildingID: grant.BuildingID,
		Status:     target,
		Reason:     reason,
		Timestamp:  s.now(),
	})

	s.logger.WithFields(logrus.Fields{
		"grant_id": grantID,
		"from":     grant.Status,
		"to":       target,
	}).Info("Grant status changed")

	return nil
}

// ReportDoorStatus persists an externally detected door state change and
// republishes it for downstream consumers. Forced and held-open conditions
// are detected by the hardware layer and arrive here as status reports.
func (s *Service) ReportDoorStatus(ctx context.Context, doorID string, status types.DoorStatus, detail string) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid door status: %s", status)
	}

	door, err := s.stores.Doors.Get(ctx, doorID)
	if err != nil {
		return err
	}

	previous, err := s.stores.Doors.UpdateStatus(ctx, doorID, status)
	if err != nil {
		return err
	}

	eventType := types.EventDoorStatusChanged
	switch detail {
	case "forced":
		eventType = types.EventDoorForced
	case "held_open":
		eventType = types.EventDoorHeldOpen
	}

	s.publish(ctx, eventType, types.DoorEventPayload{
		DoorID:     doorID,
		BuildingID: door.BuildingID,
		Status:     status,
		Previous:   previous,
		Detail:     detail,
		Timestamp:  s.now(),
	})

	s.logger.WithFields(logrus.Fields{
		"door_id": doorID,
		"from":    previous,
		"to":      status,
		"detail":  detail,
	}).Info("Door status reported")

	return nil
}

// publish dispatches a domain event, logging failures without propagating
// them; events are a best-effort side channel
func (s *Service) publish(ctx context.Context, eventType types.EventType, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Warn("Event publish failed")
	}
}
