// Package visitor implements the visitor lifecycle: scheduling,
// pre-registration, check-in/out, cancellation and the no-show sweep.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/access"
	"building-access-service/internal/events"
	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// ErrInvalidTransition indicates a visitor state transition the lifecycle
// state machine does not permit
var ErrInvalidTransition = errors.New("invalid visitor status transition")

// Service coordinates visitor lifecycle operations
type Service struct {
	stores    *store.Stores
	accessSvc *access.Service
	publisher events.Publisher
	logger    *logrus.Entry
	now       func() time.Time

	// NoShowGrace is how long past the expected arrival a visitor may
	// check in before the sweep marks them NO_SHOW
	NoShowGrace time.Duration
}

// NewService creates the visitor service
func NewService(stores *store.Stores, accessSvc *access.Service, publisher events.Publisher, logger *logrus.Logger) *Service {
	return &Service{
		stores:      stores,
		accessSvc:   accessSvc,
		publisher:   publisher,
		logger:      logger.WithField("component", "visitor"),
		now:         func() time.Time { return time.Now().UTC() },
		NoShowGrace: 2 * time.Hour,
	}
}

// ScheduleRequest describes a new visit to register
type ScheduleRequest struct {
	BuildingID        string
	FirstName         string
	LastName          string
	Email             string
	Phone             string
	Company           string
	VisitorType       string
	HostUserID        string
	ExpectedArrival   time.Time
	ExpectedDeparture time.Time
	AllowedAreas      []string
	PreRegistered     bool
}

// Schedule creates a visitor record in SCHEDULED (or PRE_REGISTERED) state
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*types.Visitor, error) {
	if req.FirstName == "" || req.LastName == "" {
		return nil, fmt.Errorf("visitor name is required")
	}
	if req.HostUserID == "" {
		return nil, fmt.Errorf("host user id is required")
	}
	if !req.ExpectedDeparture.After(req.ExpectedArrival) {
		return nil, fmt.Errorf("expected departure must be after expected arrival")
	}

	if _, err := s.stores.Buildings.Get(ctx, req.BuildingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("building %s not found", req.BuildingID)
		}
		return nil, err
	}

	status := types.VisitorScheduled
	if req.PreRegistered {
		status = types.VisitorPreRegistered
	}

	visitor := &types.Visitor{
		ID:                uuid.NewString(),
		BuildingID:        req.BuildingID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Phone:             req.Phone,
		Company:           req.Company,
		VisitorType:       req.VisitorType,
		Status:            status,
		HostUserID:        req.HostUserID,
		ExpectedArrival:   req.ExpectedArrival,
		ExpectedDeparture: req.ExpectedDeparture,
		AllowedAreas:      req.AllowedAreas,
	}

	if err := s.stores.Visitors.Create(ctx, visitor); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"visitor_id":  visitor.ID,
		"building_id": visitor.BuildingID,
		"host":        visitor.HostUserID,
	}).Info("Visitor scheduled")

	return visitor, nil
}

// CheckInOptions controls grant issuance at check-in
type CheckInOptions struct {
	// DoorIDs, when non-empty, issues a temporary VISITOR grant for these
	// doors valid until the expected departure
	DoorIDs []string
	// MaxUsageCount caps the issued grant's uses when set
	MaxUsageCount *int
}

// CheckInResult carries the updated visitor and, when a grant was issued,
// the raw PIN for the visitor badge
type CheckInResult struct {
	Visitor *types.Visitor
	PIN     string
}

// CheckIn records the visitor's arrival. Valid only from SCHEDULED or
// PRE_REGISTERED; records actualArrival and optionally issues a temporary
// access grant linked to the visitor.
func (s *Service) CheckIn(ctx context.Context, visitorID string, opts CheckInOptions) (*CheckInResult, error) {
	visitor, err := s.stores.Visitors.Get(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	if !visitor.Status.CanTransitionTo(types.VisitorCheckedIn) {
		return nil, fmt.Errorf("cannot check in visitor in status %s: %w", visitor.Status, ErrInvalidTransition)
	}

	now := s.now()
	result := &CheckInResult{}

	if len(opts.DoorIDs) > 0 {
		grantRes, err := s.accessSvc.GeneratePIN(ctx, access.GenerateRequest{
			UserID:        visitor.ID,
			BuildingID:    visitor.BuildingID,
			DoorIDs:       opts.DoorIDs,
			AccessType:    types.AccessVisitor,
			ValidFrom:     now,
			ValidUntil:    visitor.ExpectedDeparture,
			MaxUsageCount: opts.MaxUsageCount,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to issue visitor grant: %w", err)
		}
		visitor.GrantID = grantRes.Grant.ID
		result.PIN = grantRes.PIN
	}

	// The compare-and-set claims the check-in; a concurrent caller loses
	// here even when both passed the status check above
	ok, err := s.stores.Visitors.TransitionStatus(ctx, visitorID, visitor.Status, types.VisitorCheckedIn)
	if err != nil {
		return nil, err
	}
	if !ok {
		if visitor.GrantID != "" {
			if err := s.accessSvc.Revoke(ctx, visitor.GrantID, "concurrent check-in"); err != nil {
				s.logger.WithError(err).WithField("grant_id", visitor.GrantID).
					Warn("Failed to revoke grant after losing check-in race")
			}
		}
		return nil, fmt.Errorf("visitor %s changed status concurrently: %w", visitorID, ErrInvalidTransition)
	}

	visitor.Status = types.VisitorCheckedIn
	visitor.ActualArrival = &now
	if err := s.stores.Visitors.Update(ctx, visitor); err != nil {
		return nil, err
	}

	s.publish(ctx, types.EventVisitorCheckedIn, visitor)

	s.logger.WithFields(logrus.Fields{
		"visitor_id": visitor.ID,
		"grant_id":   visitor.GrantID,
	}).Info("Visitor checked in")

	result.Visitor = visitor
	return result, nil
}

// CheckOut records the visitor's departure. Valid only from CHECKED_IN;
// revokes any linked temporary grant.
func (s *Service) CheckOut(ctx context.Context, visitorID string) (*types.Visitor, error) {
	visitor, err := s.stores.Visitors.Get(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	if !visitor.Status.CanTransitionTo(types.VisitorCheckedOut) {
		return nil, fmt.Errorf("cannot check out visitor in status %s: %w", visitor.Status, ErrInvalidTransition)
	}

	ok, err := s.stores.Visitors.TransitionStatus(ctx, visitorID, visitor.Status, types.VisitorCheckedOut)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("visitor %s changed status concurrently: %w", visitorID, ErrInvalidTransition)
	}

	now := s.now()
	visitor.Status = types.VisitorCheckedOut
	visitor.ActualDeparture = &now
	if err := s.stores.Visitors.Update(ctx, visitor); err != nil {
		return nil, err
	}

	if visitor.GrantID != "" {
		if err := s.accessSvc.Revoke(ctx, visitor.GrantID, "visitor checked out"); err != nil {
			// The visit is already closed; a failed revoke is logged and the
			// grant expires on its own at the departure time
			s.logger.WithError(err).WithField("grant_id", visitor.GrantID).
				Warn("Failed to revoke visitor grant on check-out")
		}
	}

	s.publish(ctx, types.EventVisitorCheckedOut, visitor)

	s.logger.WithField("visitor_id", visitor.ID).Info("Visitor checked out")
	return visitor, nil
}

// Cancel aborts a visit from any non-terminal state
func (s *Service) Cancel(ctx context.Context, visitorID, reason string) (*types.Visitor, error) {
	visitor, err := s.stores.Visitors.Get(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	if !visitor.Status.CanTransitionTo(types.VisitorCancelled) {
		return nil, fmt.Errorf("cannot cancel visitor in status %s: %w", visitor.Status, ErrInvalidTransition)
	}

	ok, err := s.stores.Visitors.TransitionStatus(ctx, visitorID, visitor.Status, types.VisitorCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("visitor %s changed status concurrently: %w", visitorID, ErrInvalidTransition)
	}
	visitor.Status = types.VisitorCancelled

	if visitor.GrantID != "" {
		if err := s.accessSvc.Revoke(ctx, visitor.GrantID, "visit cancelled"); err != nil {
			s.logger.WithError(err).WithField("grant_id", visitor.GrantID).
				Warn("Failed to revoke visitor grant on cancellation")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"visitor_id": visitorID,
		"reason":     reason,
	}).Info("Visit cancelled")

	return visitor, nil
}

// MarkNoShows transitions visitors whose expected arrival has passed the
// grace period without a check-in. Returns the number marked.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.NoShowGrace)

	candidates, err := s.stores.Visitors.ListNoShowCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, visitor := range candidates {
		ok, err := s.stores.Visitors.TransitionStatus(ctx, visitor.ID, visitor.Status, types.VisitorNoShow)
		if err != nil {
			s.logger.WithError(err).WithField("visitor_id", visitor.ID).
				Error("Failed to mark visitor as no-show")
			continue
		}
		if !ok {
			continue
		}
		marked++

		visitor.Status = types.VisitorNoShow
		s.publish(ctx, types.EventVisitorNoShow, visitor)
	}

	if marked > 0 {
		s.logger.WithField("count", marked).Info("Marked visitor no-shows")
	}
	return marked, nil
}

func (s *Service) publish(ctx context.Context, eventType types.EventType, visitor *types.Visitor) {
	if s.publisher == nil {
		return
	}
	payload := types.VisitorEventPayload{
		VisitorID:  visitor.ID,
		BuildingID: visitor.BuildingID,
		HostUserID: visitor.HostUserID,
		Status:     visitor.Status,
		GrantID:    visitor.GrantID,
		Timestamp:  s.now(),
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Warn("Event publish failed")
	}
}
