package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a versioned schema migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// dialect holds the column type tokens that differ between drivers
type dialect struct {
	JSON string
	Time string
	Now  string
}

func dialectFor(driver Driver) dialect {
	if driver == DriverPostgres {
		return dialect{JSON: "JSONB", Time: "TIMESTAMP WITH TIME ZONE", Now: "NOW()"}
	}
	return dialect{JSON: "TEXT", Time: "TIMESTAMP", Now: "CURRENT_TIMESTAMP"}
}

// migrationsFor builds the migration set for the given driver
func migrationsFor(driver Driver) []Migration {
	d := dialectFor(driver)

	return []Migration{
		{
			Version: 1,
			Name:    "create_buildings_table",
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS buildings (
					id TEXT PRIMARY KEY,
					code VARCHAR(64) UNIQUE NOT NULL,
					name VARCHAR(255) NOT NULL,
					address VARCHAR(512),
					timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
					status VARCHAR(32) NOT NULL DEFAULT 'ACTIVE',
					security_level INTEGER NOT NULL DEFAULT 1,
					operating_hours %s,
					emergency_contacts %s,
					created_at %s NOT NULL DEFAULT %s,
					updated_at %s NOT NULL DEFAULT %s
				);

				CREATE INDEX IF NOT EXISTS idx_buildings_code ON buildings(code);
				CREATE INDEX IF NOT EXISTS idx_buildings_status ON buildings(status);
			`, d.JSON, d.JSON, d.Time, d.Now, d.Time, d.Now),
			Down: `DROP TABLE IF EXISTS buildings;`,
		},
		{
			Version: 2,
			Name:    "create_doors_table",
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS doors (
					id TEXT PRIMARY KEY,
					building_id TEXT NOT NULL REFERENCES buildings(id) ON DELETE CASCADE,
					code VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					floor INTEGER NOT NULL DEFAULT 0,
					area VARCHAR(128),
					door_type VARCHAR(64),
					lock_type VARCHAR(64),
					status VARCHAR(32) NOT NULL DEFAULT 'LOCKED',
					security_level INTEGER NOT NULL DEFAULT 1,
					hardware_info %s,
					access_methods %s,
					created_at %s NOT NULL DEFAULT %s,
					updated_at %s NOT NULL DEFAULT %s,
					UNIQUE (code, building_id)
				);

				CREATE INDEX IF NOT EXISTS idx_doors_building_id ON doors(building_id);
				CREATE INDEX IF NOT EXISTS idx_doors_status ON doors(status);
			`, d.JSON, d.JSON, d.Time, d.Now, d.Time, d.Now),
			Down: `DROP TABLE IF EXISTS doors;`,
		},
		{
			Version: 3,
			Name:    "create_access_grants_table",
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS access_grants (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					building_id TEXT NOT NULL REFERENCES buildings(id) ON DELETE CASCADE,
					pin_hash VARCHAR(64) NOT NULL,
					access_type VARCHAR(32) NOT NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
					valid_from %s NOT NULL,
					valid_until %s NOT NULL,
					max_usage_count INTEGER,
					current_usage_count INTEGER NOT NULL DEFAULT 0,
					schedule %s,
					created_at %s NOT NULL DEFAULT %s,
					updated_at %s NOT NULL DEFAULT %s,
					CHECK (max_usage_count IS NULL OR current_usage_count <= max_usage_count)
				);

				CREATE INDEX IF NOT EXISTS idx_grants_pin_hash ON access_grants(building_id, pin_hash);
				CREATE INDEX IF NOT EXISTS idx_grants_user_id ON access_grants(user_id);
				CREATE INDEX IF NOT EXISTS idx_grants_status ON access_grants(status);
				CREATE INDEX IF NOT EXISTS idx_grants_valid_until ON access_grants(valid_until);
			`, d.Time, d.Time, d.JSON, d.Time, d.Now, d.Time, d.Now),
			Down: `DROP TABLE IF EXISTS access_grants;`,
		},
		{
			Version: 4,
			Name:    "create_grant_doors_table",
			Up: `
				CREATE TABLE IF NOT EXISTS grant_doors (
					grant_id TEXT NOT NULL REFERENCES access_grants(id) ON DELETE CASCADE,
					door_id TEXT NOT NULL REFERENCES doors(id) ON DELETE CASCADE,
					PRIMARY KEY (grant_id, door_id)
				);

				CREATE INDEX IF NOT EXISTS idx_grant_doors_door_id ON grant_doors(door_id);
			`,
			Down: `DROP TABLE IF EXISTS grant_doors;`,
		},
		{
			Version: 5,
			Name:    "create_visitors_table",
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS visitors (
					id TEXT PRIMARY KEY,
					building_id TEXT NOT NULL REFERENCES buildings(id) ON DELETE CASCADE,
					first_name VARCHAR(128) NOT NULL,
					last_name VARCHAR(128) NOT NULL,
					email VARCHAR(255),
					phone VARCHAR(50),
					company VARCHAR(255),
					visitor_type VARCHAR(64),
					status VARCHAR(32) NOT NULL DEFAULT 'SCHEDULED',
					host_user_id TEXT NOT NULL,
					expected_arrival %s NOT NULL,
					expected_departure %s NOT NULL,
					actual_arrival %s,
					actual_departure %s,
					allowed_areas %s,
					grant_id TEXT,
					created_at %s NOT NULL DEFAULT %s,
					updated_at %s NOT NULL DEFAULT %s
				);

				CREATE INDEX IF NOT EXISTS idx_visitors_building_id ON visitors(building_id);
				CREATE INDEX IF NOT EXISTS idx_visitors_status ON visitors(status);
				CREATE INDEX IF NOT EXISTS idx_visitors_host ON visitors(host_user_id);
				CREATE INDEX IF NOT EXISTS idx_visitors_expected_arrival ON visitors(expected_arrival);
			`, d.Time, d.Time, d.Time, d.Time, d.JSON, d.Time, d.Now, d.Time, d.Now),
			Down: `DROP TABLE IF EXISTS visitors;`,
		},
		{
			Version: 6,
			Name:    "create_access_logs_table",
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS access_logs (
					id TEXT PRIMARY KEY,
					grant_id TEXT,
					user_id TEXT,
					visitor_id TEXT,
					building_id TEXT NOT NULL,
					door_id TEXT NOT NULL,
					method VARCHAR(32) NOT NULL,
					direction VARCHAR(16) NOT NULL DEFAULT 'ENTRY',
					result VARCHAR(32) NOT NULL,
					credential_ref VARCHAR(64),
					device_info VARCHAR(255),
					timestamp %s NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_access_logs_building_ts ON access_logs(building_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_access_logs_door_ts ON access_logs(door_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_access_logs_user_ts ON access_logs(user_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_access_logs_result ON access_logs(result);
			`, d.Time),
			Down: `DROP TABLE IF EXISTS access_logs;`,
		},
	}
}

// Migrate runs all pending migrations for the connection's driver
func Migrate(db *DB, logger *logrus.Logger) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range migrationsFor(db.Driver()) {
		if migration.Version <= currentVersion {
			continue
		}

		logger.WithFields(logrus.Fields{
			"version": migration.Version,
			"name":    migration.Name,
		}).Info("Running migration")

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(
			db.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
			migration.Version, migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version
func SchemaVersion(db *DB) (int, error) {
	if err := createMigrationsTable(db); err != nil {
		return 0, err
	}
	return currentVersion(db)
}

func createMigrationsTable(db *DB) error {
	d := dialectFor(db.Driver())
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at %s NOT NULL DEFAULT %s
		);
	`, d.Time, d.Now)
	_, err := db.Exec(query)
	return err
}

func currentVersion(db *DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
