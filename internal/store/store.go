// Package store implements the relational persistence layer for the access
// control domain. All repositories share a single database connection and
// write queries with '?' placeholders, rebound per driver.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"building-access-service/internal/database"
)

// ErrNotFound indicates the requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a uniqueness or state conflict
var ErrConflict = errors.New("record conflict")

// Page describes pagination parameters for list queries
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps pagination to sane bounds
func (p *Page) Normalize() {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Stores bundles all repositories over one connection
type Stores struct {
	Buildings  *BuildingStore
	Doors      *DoorStore
	Grants     *GrantStore
	Visitors   *VisitorStore
	AccessLogs *AccessLogStore
}

// New creates all repositories backed by the given connection
func New(db *database.DB) *Stores {
	return &Stores{
		Buildings:  &BuildingStore{db: db},
		Doors:      &DoorStore{db: db},
		Grants:     &GrantStore{db: db},
		Visitors:   &VisitorStore{db: db},
		AccessLogs: &AccessLogStore{db: db},
	}
}

// marshalJSON serializes a value to a nullable TEXT/JSONB column
func marshalJSON(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON deserializes a nullable TEXT/JSONB column into target
func unmarshalJSON(col sql.NullString, target interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), target)
}

// nullTime converts an optional time into a sql.NullTime
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a sql.NullTime back into an optional time
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullString converts an optional string into a sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt converts an optional int into a sql.NullInt64
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// intPtr converts a sql.NullInt64 back into an optional int
func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
