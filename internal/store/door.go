package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"building-access-service/internal/database"
	"building-access-service/internal/types"
)

// DoorStore persists doors
type DoorStore struct {
	db *database.DB
}

// DoorFilter narrows door list queries
type DoorFilter struct {
	BuildingID string
	Status     types.DoorStatus
	Floor      *int
	Page       Page
}

// Create inserts a new door
func (s *DoorStore) Create(ctx context.Context, d *types.Door) error {
	hardware, err := marshalJSON(d.HardwareInfo)
	if err != nil {
		return err
	}
	methods, err := marshalJSON(d.AccessMethods)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := `
		INSERT INTO doors (id, building_id, code, name, floor, area, door_type, lock_type,
			status, security_level, hardware_info, access_methods, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		d.ID, d.BuildingID, d.Code, d.Name, d.Floor,
		nullString(d.Area), nullString(d.DoorType), nullString(d.LockType),
		string(d.Status), d.SecurityLevel, hardware, methods, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			return fmt.Errorf("door code %q already exists in building: %w", d.Code, ErrConflict)
		}
		return fmt.Errorf("failed to insert door: %w", err)
	}
	return nil
}

// Get retrieves a door by id
func (s *DoorStore) Get(ctx context.Context, id string) (*types.Door, error) {
	query := doorSelect + " WHERE id = ?"
	d, err := s.scanRow(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// GetMany retrieves doors by id, returning them keyed by id
func (s *DoorStore) GetMany(ctx context.Context, ids []string) (map[string]*types.Door, error) {
	if len(ids) == 0 {
		return map[string]*types.Door{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := doorSelect + " WHERE id IN (" + strings.Join(placeholders, ", ") + ")"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query doors: %w", err)
	}
	defer rows.Close()

	doors := make(map[string]*types.Door, len(ids))
	for rows.Next() {
		d, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		doors[d.ID] = d
	}
	return doors, rows.Err()
}

// List returns doors matching the filter
func (s *DoorStore) List(ctx context.Context, filter DoorFilter) ([]*types.Door, int64, error) {
	filter.Page.Normalize()

	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.BuildingID != "" {
		where += " AND building_id = ?"
		args = append(args, filter.BuildingID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Floor != nil {
		where += " AND floor = ?"
		args = append(args, *filter.Floor)
	}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM doors "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count doors: %w", err)
	}

	query := doorSelect + " " + where + " ORDER BY building_id, floor, code LIMIT ? OFFSET ?"
	args = append(args, filter.Page.Limit, filter.Page.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query doors: %w", err)
	}
	defer rows.Close()

	var doors []*types.Door
	for rows.Next() {
		d, err := s.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		doors = append(doors, d)
	}
	return doors, total, rows.Err()
}

// Update persists mutable door fields
func (s *DoorStore) Update(ctx context.Context, d *types.Door) error {
	hardware, err := marshalJSON(d.HardwareInfo)
	if err != nil {
		return err
	}
	methods, err := marshalJSON(d.AccessMethods)
	if err != nil {
		return err
	}

	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE doors
		SET name = ?, floor = ?, area = ?, door_type = ?, lock_type = ?, status = ?,
		    security_level = ?, hardware_info = ?, access_methods = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		d.Name, d.Floor, nullString(d.Area), nullString(d.DoorType), nullString(d.LockType),
		string(d.Status), d.SecurityLevel, hardware, methods, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update door: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus transitions a door's status, returning the previous status
func (s *DoorStore) UpdateStatus(ctx context.Context, id string, status types.DoorStatus) (types.DoorStatus, error) {
	door, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	previous := door.Status

	query := "UPDATE doors SET status = ?, updated_at = ? WHERE id = ?"
	if _, err := s.db.Exec(query, string(status), time.Now().UTC(), id); err != nil {
		return "", fmt.Errorf("failed to update door status: %w", err)
	}
	return previous, nil
}

// Delete removes a door
func (s *DoorStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Exec("DELETE FROM doors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete door: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const doorSelect = `
	SELECT id, building_id, code, name, floor, area, door_type, lock_type,
	       status, security_level, hardware_info, access_methods, created_at, updated_at
	FROM doors
`

func (s *DoorStore) scanRow(row rowScanner) (*types.Door, error) {
	d := &types.Door{}
	var area, doorType, lockType, hardware, methods sql.NullString
	var status string

	err := row.Scan(
		&d.ID, &d.BuildingID, &d.Code, &d.Name, &d.Floor,
		&area, &doorType, &lockType, &status, &d.SecurityLevel,
		&hardware, &methods, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan door row: %w", err)
	}

	d.Area = area.String
	d.DoorType = doorType.String
	d.LockType = lockType.String
	d.Status = types.DoorStatus(status)
	if err := unmarshalJSON(hardware, &d.HardwareInfo); err != nil {
		return nil, fmt.Errorf("failed to decode hardware info: %w", err)
	}
	if err := unmarshalJSON(methods, &d.AccessMethods); err != nil {
		return nil, fmt.Errorf("failed to decode access methods: %w", err)
	}
	return d, nil
}
