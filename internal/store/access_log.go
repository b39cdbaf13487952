package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"building-access-service/internal/database"
	"building-access-service/internal/types"
)

// AccessLogStore persists the append-only access attempt log.
// Entries are never updated or deleted by request handling; the only
// destructive operation is the retention prune run by the scheduler.
type AccessLogStore struct {
	db *database.DB
}

// LogFilter narrows access log queries
type LogFilter struct {
	BuildingID string
	DoorID     string
	UserID     string
	VisitorID  string
	Result     types.AccessResult
	From       *time.Time
	To         *time.Time
	Page       Page
}

// Insert appends one access attempt record
func (s *AccessLogStore) Insert(ctx context.Context, e *types.AccessLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO access_logs (id, grant_id, user_id, visitor_id, building_id, door_id,
			method, direction, result, credential_ref, device_info, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		e.ID, nullString(e.GrantID), nullString(e.UserID), nullString(e.VisitorID),
		e.BuildingID, e.DoorID, string(e.Method), string(e.Direction), string(e.Result),
		nullString(e.CredentialRef), nullString(e.DeviceInfo), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log entry: %w", err)
	}
	return nil
}

// Query returns log entries matching the filter, most recent first
func (s *AccessLogStore) Query(ctx context.Context, filter LogFilter) ([]*types.AccessLogEntry, int64, error) {
	filter.Page.Normalize()

	where, args := s.buildWhere(filter)

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM access_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count access logs: %w", err)
	}

	query := `
		SELECT id, grant_id, user_id, visitor_id, building_id, door_id,
		       method, direction, result, credential_ref, device_info, timestamp
		FROM access_logs ` + where + `
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Page.Limit, filter.Page.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query access logs: %w", err)
	}
	defer rows.Close()

	var entries []*types.AccessLogEntry
	for rows.Next() {
		e, err := s.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// LastSuccess returns the most recent SUCCESS entry for a user at a door,
// used by the anti-passback check
func (s *AccessLogStore) LastSuccess(ctx context.Context, userID, doorID string, since time.Time) (*types.AccessLogEntry, error) {
	query := `
		SELECT id, grant_id, user_id, visitor_id, building_id, door_id,
		       method, direction, result, credential_ref, device_info, timestamp
		FROM access_logs
		WHERE user_id = ? AND door_id = ? AND result = 'SUCCESS' AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT 1
	`
	e, err := s.scanRow(s.db.QueryRow(query, userID, doorID, since))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// CountByResult aggregates attempts per result over a filter window
func (s *AccessLogStore) CountByResult(ctx context.Context, filter LogFilter) (map[types.AccessResult]int64, error) {
	where, args := s.buildWhere(filter)

	query := "SELECT result, COUNT(*) FROM access_logs " + where + " GROUP BY result"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate access logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.AccessResult]int64)
	for rows.Next() {
		var result string
		var count int64
		if err := rows.Scan(&result, &count); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		counts[types.AccessResult(result)] = count
	}
	return counts, rows.Err()
}

// PruneOlderThan removes entries beyond the retention horizon
func (s *AccessLogStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM access_logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune access logs: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (s *AccessLogStore) buildWhere(filter LogFilter) (string, []interface{}) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.BuildingID != "" {
		where += " AND building_id = ?"
		args = append(args, filter.BuildingID)
	}
	if filter.DoorID != "" {
		where += " AND door_id = ?"
		args = append(args, filter.DoorID)
	}
	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.VisitorID != "" {
		where += " AND visitor_id = ?"
		args = append(args, filter.VisitorID)
	}
	if filter.Result != "" {
		where += " AND result = ?"
		args = append(args, string(filter.Result))
	}
	if filter.From != nil {
		where += " AND timestamp >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where += " AND timestamp <= ?"
		args = append(args, *filter.To)
	}
	return where, args
}

func (s *AccessLogStore) scanRow(row rowScanner) (*types.AccessLogEntry, error) {
	e := &types.AccessLogEntry{}
	var grantID, userID, visitorID, credentialRef, deviceInfo sql.NullString
	var method, direction, result string

	err := row.Scan(
		&e.ID, &grantID, &userID, &visitorID, &e.BuildingID, &e.DoorID,
		&method, &direction, &result, &credentialRef, &deviceInfo, &e.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan access log row: %w", err)
	}

	e.GrantID = grantID.String
	e.UserID = userID.String
	e.VisitorID = visitorID.String
	e.Method = types.AccessMethod(method)
	e.Direction = types.AccessDirection(direction)
	e.Result = types.AccessResult(result)
	e.CredentialRef = credentialRef.String
	e.DeviceInfo = deviceInfo.String
	return e, nil
}
