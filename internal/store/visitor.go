package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"building-access-service/internal/database"
	"building-access-service/internal/types"
)

// VisitorStore persists visitor records
type VisitorStore struct {
	db *database.DB
}

// VisitorFilter narrows visitor list queries
type VisitorFilter struct {
	BuildingID   string
	HostUserID   string
	Status       types.VisitorStatus
	ArrivingFrom *time.Time
	ArrivingTo   *time.Time
	Page         Page
}

// Create inserts a new visitor record
func (s *VisitorStore) Create(ctx context.Context, v *types.Visitor) error {
	areas, err := marshalJSON(v.AllowedAreas)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	query := `
		INSERT INTO visitors (id, building_id, first_name, last_name, email, phone, company,
			visitor_type, status, host_user_id, expected_arrival, expected_departure,
			actual_arrival, actual_departure, allowed_areas, grant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		v.ID, v.BuildingID, v.FirstName, v.LastName,
		nullString(v.Email), nullString(v.Phone), nullString(v.Company),
		nullString(v.VisitorType), string(v.Status), v.HostUserID,
		v.ExpectedArrival, v.ExpectedDeparture,
		nullTime(v.ActualArrival), nullTime(v.ActualDeparture),
		areas, nullString(v.GrantID), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert visitor: %w", err)
	}
	return nil
}

// Get retrieves a visitor by id
func (s *VisitorStore) Get(ctx context.Context, id string) (*types.Visitor, error) {
	query := visitorSelect + " WHERE id = ?"
	v, err := s.scanRow(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return v, err
}

// List returns visitors matching the filter, by expected arrival
func (s *VisitorStore) List(ctx context.Context, filter VisitorFilter) ([]*types.Visitor, int64, error) {
	filter.Page.Normalize()

	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.BuildingID != "" {
		where += " AND building_id = ?"
		args = append(args, filter.BuildingID)
	}
	if filter.HostUserID != "" {
		where += " AND host_user_id = ?"
		args = append(args, filter.HostUserID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.ArrivingFrom != nil {
		where += " AND expected_arrival >= ?"
		args = append(args, *filter.ArrivingFrom)
	}
	if filter.ArrivingTo != nil {
		where += " AND expected_arrival <= ?"
		args = append(args, *filter.ArrivingTo)
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM visitors "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count visitors: %w", err)
	}

	query := visitorSelect + " " + where + " ORDER BY expected_arrival DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Page.Limit, filter.Page.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query visitors: %w", err)
	}
	defer rows.Close()

	var visitors []*types.Visitor
	for rows.Next() {
		v, err := s.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		visitors = append(visitors, v)
	}
	return visitors, total, rows.Err()
}

// Update persists visitor state, arrival times and grant linkage
func (s *VisitorStore) Update(ctx context.Context, v *types.Visitor) error {
	areas, err := marshalJSON(v.AllowedAreas)
	if err != nil {
		return err
	}

	v.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE visitors
		SET first_name = ?, last_name = ?, email = ?, phone = ?, company = ?,
		    visitor_type = ?, status = ?, expected_arrival = ?, expected_departure = ?,
		    actual_arrival = ?, actual_departure = ?, allowed_areas = ?, grant_id = ?,
		    updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		v.FirstName, v.LastName, nullString(v.Email), nullString(v.Phone),
		nullString(v.Company), nullString(v.VisitorType), string(v.Status),
		v.ExpectedArrival, v.ExpectedDeparture,
		nullTime(v.ActualArrival), nullTime(v.ActualDeparture),
		areas, nullString(v.GrantID), v.UpdatedAt, v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update visitor: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus moves a visitor between states atomically.
// Returns false when the visitor was not in the expected source status.
func (s *VisitorStore) TransitionStatus(ctx context.Context, id string, from, to types.VisitorStatus) (bool, error) {
	query := "UPDATE visitors SET status = ?, updated_at = ? WHERE id = ? AND status = ?"
	result, err := s.db.Exec(query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition visitor status: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListNoShowCandidates returns visitors whose expected arrival has passed
// without a check-in, for the no-show sweep
func (s *VisitorStore) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*types.Visitor, error) {
	query := visitorSelect + `
		WHERE status IN ('SCHEDULED', 'PRE_REGISTERED') AND expected_arrival < ?
		ORDER BY expected_arrival ASC
	`
	rows, err := s.db.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query no-show candidates: %w", err)
	}
	defer rows.Close()

	var visitors []*types.Visitor
	for rows.Next() {
		v, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

const visitorSelect = `
	SELECT id, building_id, first_name, last_name, email, phone, company,
	       visitor_type, status, host_user_id, expected_arrival, expected_departure,
	       actual_arrival, actual_departure, allowed_areas, grant_id, created_at, updated_at
	FROM visitors
`

func (s *VisitorStore) scanRow(row rowScanner) (*types.Visitor, error) {
	v := &types.Visitor{}
	var email, phone, company, visitorType, areas, grantID sql.NullString
	var status string
	var actualArrival, actualDeparture sql.NullTime

	err := row.Scan(
		&v.ID, &v.BuildingID, &v.FirstName, &v.LastName, &email, &phone, &company,
		&visitorType, &status, &v.HostUserID, &v.ExpectedArrival, &v.ExpectedDeparture,
		&actualArrival, &actualDeparture, &areas, &grantID, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan visitor row: %w", err)
	}

	v.Email = email.String
	v.Phone = phone.String
	v.Company = company.String
	v.VisitorType = visitorType.String
	v.Status = types.VisitorStatus(status)
	v.ActualArrival = timePtr(actualArrival)
	v.ActualDeparture = timePtr(actualDeparture)
	v.GrantID = grantID.String
	if err := unmarshalJSON(areas, &v.AllowedAreas); err != nil {
		return nil, fmt.Errorf("failed to decode allowed areas: %w", err)
	}
	return v, nil
}
