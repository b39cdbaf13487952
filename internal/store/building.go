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

// BuildingStore persists buildings
type BuildingStore struct {
	db *database.DB
}

// BuildingFilter narrows building list queries
type BuildingFilter struct {
	Status types.BuildingStatus
	Search string
	Page   Page
}

// Create inserts a new building
func (s *BuildingStore) Create(ctx context.Context, b *types.Building) error {
	hours, err := marshalJSON(b.OperatingHours)
	if err != nil {
		return err
	}
	contacts, err := marshalJSON(b.EmergencyContacts)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `
		INSERT INTO buildings (id, code, name, address, timezone, status, security_level,
			operating_hours, emergency_contacts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		b.ID, b.Code, b.Name, b.Address, b.Timezone, string(b.Status),
		b.SecurityLevel, hours, contacts, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			return fmt.Errorf("building code %q already exists: %w", b.Code, ErrConflict)
		}
		return fmt.Errorf("failed to insert building: %w", err)
	}
	return nil
}

// Get retrieves a building by id
func (s *BuildingStore) Get(ctx context.Context, id string) (*types.Building, error) {
	query := `
		SELECT id, code, name, address, timezone, status, security_level,
		       operating_hours, emergency_contacts, created_at, updated_at
		FROM buildings WHERE id = ?
	`
	return s.scanOne(s.db.QueryRow(query, id))
}

// GetByCode retrieves a building by its unique code
func (s *BuildingStore) GetByCode(ctx context.Context, code string) (*types.Building, error) {
	query := `
		SELECT id, code, name, address, timezone, status, security_level,
		       operating_hours, emergency_contacts, created_at, updated_at
		FROM buildings WHERE code = ?
	`
	return s.scanOne(s.db.QueryRow(query, code))
}

// List returns buildings matching the filter, newest first
func (s *BuildingStore) List(ctx context.Context, filter BuildingFilter) ([]*types.Building, int64, error) {
	filter.Page.Normalize()

	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		where += " AND (name LIKE ? OR code LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM buildings " + where
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count buildings: %w", err)
	}

	query := `
		SELECT id, code, name, address, timezone, status, security_level,
		       operating_hours, emergency_contacts, created_at, updated_at
		FROM buildings ` + where + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Page.Limit, filter.Page.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query buildings: %w", err)
	}
	defer rows.Close()

	var buildings []*types.Building
	for rows.Next() {
		b, err := s.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating building rows: %w", err)
	}

	return buildings, total, nil
}

// Update persists mutable building fields
func (s *BuildingStore) Update(ctx context.Context, b *types.Building) error {
	hours, err := marshalJSON(b.OperatingHours)
	if err != nil {
		return err
	}
	contacts, err := marshalJSON(b.EmergencyContacts)
	if err != nil {
		return err
	}

	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE buildings
		SET name = ?, address = ?, timezone = ?, status = ?, security_level = ?,
		    operating_hours = ?, emergency_contacts = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		b.Name, b.Address, b.Timezone, string(b.Status), b.SecurityLevel,
		hours, contacts, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update building: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a building; doors, grants and visitors cascade
func (s *BuildingStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Exec("DELETE FROM buildings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete building: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *BuildingStore) scanOne(row *sql.Row) (*types.Building, error) {
	b, err := s.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *BuildingStore) scanRow(row rowScanner) (*types.Building, error) {
	b := &types.Building{}
	var address, status sql.NullString
	var hours, contacts sql.NullString

	err := row.Scan(
		&b.ID, &b.Code, &b.Name, &address, &b.Timezone, &status,
		&b.SecurityLevel, &hours, &contacts, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan building row: %w", err)
	}

	b.Address = address.String
	b.Status = types.BuildingStatus(status.String)
	if err := unmarshalJSON(hours, &b.OperatingHours); err != nil {
		return nil, fmt.Errorf("failed to decode operating hours: %w", err)
	}
	if err := unmarshalJSON(contacts, &b.EmergencyContacts); err != nil {
		return nil, fmt.Errorf("failed to decode emergency contacts: %w", err)
	}
	return b, nil
}
