package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"building-access-service/internal/database"
	"building-access-service/internal/types"
)

// GrantStore persists access grants and their door memberships
type GrantStore struct {
	db *database.DB
}

// GrantFilter narrows grant list queries
type GrantFilter struct {
	BuildingID string
	UserID     string
	Status     types.GrantStatus
	AccessType types.AccessType
	Page       Page
}

// Create inserts a grant and its door memberships in one transaction
func (s *GrantStore) Create(ctx context.Context, g *types.AccessGrant) error {
	schedule, err := marshalJSON(g.Schedule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	insertGrant := s.db.Rebind(`
		INSERT INTO access_grants (id, user_id, building_id, pin_hash, access_type, status,
			valid_from, valid_until, max_usage_count, current_usage_count, schedule,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = tx.Exec(insertGrant,
		g.ID, g.UserID, g.BuildingID, g.PINHash, string(g.AccessType), string(g.Status),
		g.ValidFrom, g.ValidUntil, nullInt(g.MaxUsageCount), g.CurrentUsageCount,
		schedule, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert grant: %w", err)
	}

	insertDoor := s.db.Rebind("INSERT INTO grant_doors (grant_id, door_id) VALUES (?, ?)")
	for _, doorID := range g.DoorIDs {
		if _, err := tx.Exec(insertDoor, g.ID, doorID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert grant door %s: %w", doorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grant: %w", err)
	}
	return nil
}

// Get retrieves a grant by id, including its door ids
func (s *GrantStore) Get(ctx context.Context, id string) (*types.AccessGrant, error) {
	query := grantSelect + " WHERE id = ?"
	g, err := s.scanRow(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDoors(g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetByPINHash finds the grant matching a PIN hash within a building.
// Terminal grants are excluded so a reissued PIN resolves to the live grant.
func (s *GrantStore) GetByPINHash(ctx context.Context, buildingID, pinHash string) (*types.AccessGrant, error) {
	query := grantSelect + `
		WHERE building_id = ? AND pin_hash = ? AND status NOT IN ('REVOKED', 'EXPIRED')
		ORDER BY created_at DESC LIMIT 1
	`
	g, err := s.scanRow(s.db.QueryRow(query, buildingID, pinHash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDoors(g); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns grants matching the filter, newest first
func (s *GrantStore) List(ctx context.Context, filter GrantFilter) ([]*types.AccessGrant, int64, error) {
	filter.Page.Normalize()

	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.BuildingID != "" {
		where += " AND building_id = ?"
		args = append(args, filter.BuildingID)
	}
	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.AccessType != "" {
		where += " AND access_type = ?"
		args = append(args, string(filter.AccessType))
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM access_grants "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count grants: %w", err)
	}

	query := grantSelect + " " + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Page.Limit, filter.Page.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []*types.AccessGrant
	for rows.Next() {
		g, err := s.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating grant rows: %w", err)
	}

	for _, g := range grants {
		if err := s.loadDoors(g); err != nil {
			return nil, 0, err
		}
	}
	return grants, total, nil
}

// TransitionStatus moves a grant from one status to another atomically.
// Returns false when the grant was not in the expected source status.
func (s *GrantStore) TransitionStatus(ctx context.Context, id string, from, to types.GrantStatus) (bool, error) {
	query := "UPDATE access_grants SET status = ?, updated_at = ? WHERE id = ? AND status = ?"
	result, err := s.db.Exec(query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition grant status: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ConsumeUsage atomically increments the usage counter, honoring the cap.
// Returns false when the cap is already reached; the conditional UPDATE keeps
// concurrent validations from ever exceeding max_usage_count.
func (s *GrantStore) ConsumeUsage(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE access_grants
		SET current_usage_count = current_usage_count + 1, updated_at = ?
		WHERE id = ?
		  AND (max_usage_count IS NULL OR current_usage_count < max_usage_count)
	`
	result, err := s.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to consume grant usage: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ExpireOverdue marks every non-terminal grant past its validity as EXPIRED
func (s *GrantStore) ExpireOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE access_grants
		SET status = 'EXPIRED', updated_at = ?
		WHERE status IN ('PENDING', 'ACTIVE', 'SUSPENDED') AND valid_until < ?
	`
	result, err := s.db.Exec(query, time.Now().UTC(), asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue grants: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ActivatePending promotes PENDING grants whose validity window has opened
func (s *GrantStore) ActivatePending(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE access_grants
		SET status = 'ACTIVE', updated_at = ?
		WHERE status = 'PENDING' AND valid_from <= ? AND valid_until >= ?
	`
	result, err := s.db.Exec(query, time.Now().UTC(), asOf, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to activate pending grants: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

const grantSelect = `
	SELECT id, user_id, building_id, pin_hash, access_type, status, valid_from,
	       valid_until, max_usage_count, current_usage_count, schedule,
	       created_at, updated_at
	FROM access_grants
`

func (s *GrantStore) scanRow(row rowScanner) (*types.AccessGrant, error) {
	g := &types.AccessGrant{}
	var accessType, status string
	var maxUsage sql.NullInt64
	var schedule sql.NullString

	err := row.Scan(
		&g.ID, &g.UserID, &g.BuildingID, &g.PINHash, &accessType, &status,
		&g.ValidFrom, &g.ValidUntil, &maxUsage, &g.CurrentUsageCount,
		&schedule, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan grant row: %w", err)
	}

	g.AccessType = types.AccessType(accessType)
	g.Status = types.GrantStatus(status)
	g.MaxUsageCount = intPtr(maxUsage)
	if err := unmarshalJSON(schedule, &g.Schedule); err != nil {
		return nil, fmt.Errorf("failed to decode grant schedule: %w", err)
	}
	return g, nil
}

func (s *GrantStore) loadDoors(g *types.AccessGrant) error {
	rows, err := s.db.Query("SELECT door_id FROM grant_doors WHERE grant_id = ? ORDER BY door_id", g.ID)
	if err != nil {
		return fmt.Errorf("failed to query grant doors: %w", err)
	}
	defer rows.Close()

	g.DoorIDs = g.DoorIDs[:0]
	for rows.Next() {
		var doorID string
		if err := rows.Scan(&doorID); err != nil {
			return fmt.Errorf("failed to scan grant door row: %w", err)
		}
		g.DoorIDs = append(g.DoorIDs, doorID)
	}
	return rows.Err()
}
