package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/store"
	"building-access-service/internal/types"
)

// ErrDoorNotFound indicates the access attempt referenced an unknown door.
// This is a request error, not a domain denial, and produces no log entry.
var ErrDoorNotFound = errors.New("door not found")

// ValidateRequest describes one access attempt at a door
type ValidateRequest struct {
	PIN        string
	DoorID     string
	Direction  types.AccessDirection
	Method     types.AccessMethod
	DeviceInfo string
}

// Decision is the outcome of one access attempt. Denials are ordinary
// decisions, not errors; exactly one log entry backs every decision.
type Decision struct {
	Result   types.AccessResult
	Grant    *types.AccessGrant
	LogEntry *types.AccessLogEntry
}

// Allowed reports whether the attempt succeeded
func (d *Decision) Allowed() bool {
	return d.Result == types.ResultSuccess
}

// Validate checks a PIN against a door. Checks run in a fixed precedence
// order: door state, credential lookup, building state, grant status,
// validity window, door membership, schedule, anti-passback, usage cap.
// Every call appends exactly one access log row matching the outcome and
// publishes an access granted or denied event.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*Decision, error) {
	if req.Method == "" {
		req.Method = types.MethodPIN
	}
	if req.Direction == "" {
		req.Direction = types.DirectionEntry
	}

	door, err := s.stores.Doors.Get(ctx, req.DoorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDoorNotFound
		}
		return nil, err
	}

	result, grant, err := s.decide(ctx, req, door)
	if err != nil {
		// Store failures are infrastructure errors, never denial reasons;
		// nothing was decided so nothing is logged or published
		return nil, err
	}

	entry := &types.AccessLogEntry{
		ID:            uuid.NewString(),
		BuildingID:    door.BuildingID,
		DoorID:        door.ID,
		Method:        req.Method,
		Direction:     req.Direction,
		Result:        result,
		CredentialRef: MaskPIN(req.PIN),
		DeviceInfo:    req.DeviceInfo,
		Timestamp:     s.now(),
	}
	if grant != nil {
		entry.GrantID = grant.ID
		entry.UserID = grant.UserID
	}

	if err := s.stores.AccessLogs.Insert(ctx, entry); err != nil {
		// The attempt outcome is already decided; losing the audit row is an
		// infrastructure failure the caller must see
		return nil, fmt.Errorf("failed to record access attempt: %w", err)
	}

	payload := types.AccessEventPayload{
		BuildingID: door.BuildingID,
		DoorID:     door.ID,
		Method:     req.Method,
		Direction:  req.Direction,
		Result:     result,
		Timestamp:  entry.Timestamp,
	}
	if grant != nil {
		payload.GrantID = grant.ID
		payload.UserID = grant.UserID
	}

	if result == types.ResultSuccess {
		s.publish(ctx, types.EventAccessGranted, payload)
		s.publish(ctx, types.EventDoorOpened, types.DoorEventPayload{
			DoorID:     door.ID,
			BuildingID: door.BuildingID,
			Status:     door.Status,
			Timestamp:  entry.Timestamp,
		})
	} else {
		s.publish(ctx, types.EventAccessDenied, payload)
	}

	s.logger.WithFields(logrus.Fields{
		"door_id": door.ID,
		"result":  result,
	}).Debug("Access attempt validated")

	return &Decision{Result: result, Grant: grant, LogEntry: entry}, nil
}

// decide walks the denial precedence chain and returns the outcome plus the
// resolved grant, when one was found. A non-error return is always a domain
// outcome; store failures propagate as errors so they never masquerade as
// denials. Revoked and already-expired grants are excluded from the credential
// lookup, so their PINs deny as INVALID_PIN.
func (s *Service) decide(ctx context.Context, req ValidateRequest, door *types.Door) (types.AccessResult, *types.AccessGrant, error) {
	now := s.now()

	// Door state comes first: a dead door denies even a perfect PIN
	if !door.Status.IsOperational() {
		return types.ResultDoorOffline, nil, nil
	}

	grant, err := s.stores.Grants.GetByPINHash(ctx, door.BuildingID, HashPIN(req.PIN))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ResultInvalidPIN, nil, nil
		}
		return "", nil, fmt.Errorf("grant lookup failed: %w", err)
	}

	// Emergency grants bypass the building state check
	if grant.AccessType != types.AccessEmergency {
		building, err := s.stores.Buildings.Get(ctx, door.BuildingID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", nil, fmt.Errorf("building lookup failed: %w", err)
		}
		if err == nil && building.Status != types.BuildingActive {
			return types.ResultBuildingClosed, grant, nil
		}
	}

	if grant.Status == types.GrantSuspended {
		return types.ResultSuspended, grant, nil
	}

	// validUntil is enforced at read time; the row is marked EXPIRED lazily
	// so a stale status can never produce a SUCCESS past the window
	if now.After(grant.ValidUntil) {
		if ok, err := s.stores.Grants.TransitionStatus(ctx, grant.ID, grant.Status, types.GrantExpired); err != nil {
			s.logger.WithError(err).WithField("grant_id", grant.ID).Error("Failed to mark grant expired")
		} else if ok {
			s.publish(ctx, types.EventGrantExpired, types.GrantEventPayload{
				GrantID:    grant.ID,
				UserID:     grant.UserID,
				BuildingID: grant.BuildingID,
				Status:     types.GrantExpired,
				Timestamp:  now,
			})
		}
		return types.ResultExpired, grant, nil
	}

	if now.Before(grant.ValidFrom) {
		return types.ResultNotYetValid, grant, nil
	}

	// A PENDING grant whose window has opened is promoted here rather than
	// waiting for the scheduler sweep
	if grant.Status == types.GrantPending {
		ok, err := s.stores.Grants.TransitionStatus(ctx, grant.ID, types.GrantPending, types.GrantActive)
		if err != nil {
			return "", nil, fmt.Errorf("grant activation failed: %w", err)
		}
		if !ok {
			return types.ResultNotYetValid, grant, nil
		}
		grant.Status = types.GrantActive
	}

	if !grant.AllowsDoor(door.ID) {
		return types.ResultDoorNotAllowed, grant, nil
	}

	if !s.scheduleAllows(ctx, grant, door.BuildingID, now) {
		return types.ResultOutsideSchedule, grant, nil
	}

	if s.antiPassbackViolated(ctx, grant.UserID, door.ID, req.Direction, now) {
		return types.ResultAntiPassback, grant, nil
	}

	// The conditional UPDATE serializes concurrent attempts; the counter can
	// never pass the cap even when two validations race
	ok, err := s.stores.Grants.ConsumeUsage(ctx, grant.ID)
	if err != nil {
		return "", nil, fmt.Errorf("usage count update failed: %w", err)
	}
	if !ok {
		return types.ResultMaxUsageReached, grant, nil
	}
	grant.CurrentUsageCount++

	return types.ResultSuccess, grant, nil
}

// scheduleAllows checks the grant's weekly schedule in the building's
// timezone. An empty schedule allows access at any time.
func (s *Service) scheduleAllows(ctx context.Context, grant *types.AccessGrant, buildingID string, now time.Time) bool {
	if len(grant.Schedule) == 0 {
		return true
	}

	loc := time.UTC
	if building, err := s.stores.Buildings.Get(ctx, buildingID); err == nil && building.Timezone != "" {
		if l, err := time.LoadLocation(building.Timezone); err == nil {
			loc = l
		}
	}

	local := now.In(loc)
	day := strings.ToLower(local.Weekday().String())
	windows, ok := grant.Schedule[day]
	if !ok || len(windows) == 0 {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	for _, window := range windows {
		start, end, err := parseWindow(window)
		if err != nil {
			s.logger.WithError(err).WithField("window", window).Warn("Skipping malformed schedule window")
			continue
		}
		if minutes >= start && minutes <= end {
			return true
		}
	}
	return false
}

// parseWindow parses "HH:MM-HH:MM" into minute-of-day bounds
func parseWindow(window string) (int, int, error) {
	parts := strings.SplitN(window, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed schedule window %q", window)
	}
	start, err := parseMinutes(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseMinutes(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("schedule window %q ends before it starts", window)
	}
	return start, end, nil
}

func parseMinutes(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(hhmm), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("malformed time %q: %w", hhmm, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", hhmm)
	}
	return h*60 + m, nil
}

// antiPassbackViolated rejects a repeat passage through the same door in the
// same direction within the anti-passback window. An intervening passage in
// the opposite direction resets the state, because LastSuccess always
// reflects the most recent successful passage.
func (s *Service) antiPassbackViolated(ctx context.Context, userID, doorID string, direction types.AccessDirection, now time.Time) bool {
	if s.cfg.AntiPassbackWindow <= 0 {
		return false
	}

	last, err := s.stores.AccessLogs.LastSuccess(ctx, userID, doorID, now.Add(-s.cfg.AntiPassbackWindow))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WithError(err).Warn("Anti-passback lookup failed, allowing attempt")
		}
		return false
	}
	return last.Direction == direction
}
