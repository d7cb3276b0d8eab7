package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'viewer',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Projects table. The owning user is the project admin.
			CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT UNIQUE NOT NULL,
				title TEXT NOT NULL,
				public INTEGER NOT NULL DEFAULT 0,
				user_id INTEGER NOT NULL,
				validation_ref TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id)
			);

			-- Project-User membership junction table (many-to-many). A row
			-- here is the sole authorization signal for acting in a project.
			CREATE TABLE IF NOT EXISTS project_users (
				project_id INTEGER NOT NULL,
				user_id INTEGER NOT NULL,
				PRIMARY KEY (project_id, user_id),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Expeditions table. token carries the per-mint allocation token;
			-- UNIQUE(code, project_id) makes a duplicate mint a deterministic
			-- insert failure instead of a pre-check race.
			CREATE TABLE IF NOT EXISTS expeditions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				token TEXT UNIQUE NOT NULL,
				code TEXT NOT NULL,
				title TEXT NOT NULL,
				abstract TEXT,
				user_id INTEGER NOT NULL,
				project_id INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				UNIQUE (code, project_id),
				FOREIGN KEY (user_id) REFERENCES users(id),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Dataset/resource references, minted externally and attached here.
			CREATE TABLE IF NOT EXISTS resources (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				prefix TEXT UNIQUE NOT NULL,
				resource_type TEXT,
				web_address TEXT,
				created_at DATETIME NOT NULL
			);

			-- Expedition-Resource junction table (many-to-many).
			CREATE TABLE IF NOT EXISTS expedition_resources (
				expedition_id INTEGER NOT NULL,
				resource_id INTEGER NOT NULL,
				PRIMARY KEY (expedition_id, resource_id),
				FOREIGN KEY (expedition_id) REFERENCES expeditions(id) ON DELETE CASCADE,
				FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_expeditions_project ON expeditions(project_id);
			CREATE INDEX IF NOT EXISTS idx_expeditions_user ON expeditions(user_id);
			CREATE INDEX IF NOT EXISTS idx_project_users_user ON project_users(user_id);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
