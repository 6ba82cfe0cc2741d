package sqlstore

import (
	"context"
	"fmt"
)

// sqliteSchema and postgresSchema create the same four logical relations with
// backend-appropriate column types. Both are safe to run on every start.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		phone_number TEXT,
		registration_date DATETIME,
		is_admin INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pending_users (
		user_id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		phone_number TEXT,
		request_date DATETIME
	);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		action TEXT,
		action_data TEXT,
		timestamp DATETIME
	);

	CREATE TABLE IF NOT EXISTS buttons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		button_key TEXT UNIQUE,
		button_text TEXT,
		button_url TEXT,
		last_updated DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	CREATE INDEX IF NOT EXISTS idx_logs_action ON logs(action);
	`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		phone_number TEXT,
		registration_date TIMESTAMP,
		is_admin BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS pending_users (
		user_id BIGINT PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		phone_number TEXT,
		request_date TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS logs (
		id SERIAL PRIMARY KEY,
		user_id BIGINT,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		action TEXT,
		action_data TEXT,
		timestamp TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS buttons (
		id SERIAL PRIMARY KEY,
		button_key VARCHAR(255) UNIQUE,
		button_text VARCHAR(255),
		button_url TEXT,
		last_updated TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	CREATE INDEX IF NOT EXISTS idx_logs_action ON logs(action);
	`

// InitSchema creates the database tables. It is idempotent and runs on every
// process start.
func (d *Database) InitSchema(ctx context.Context) error {
	schema := sqliteSchema
	if d.backend == BackendPostgres {
		schema = postgresSchema
	}

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// EnsureAdmin inserts the configured administrator if no user with that ID
// exists yet. A no-op on every start after the first.
func (d *Database) EnsureAdmin(ctx context.Context, adminID int64) error {
	if adminID == 0 {
		return nil
	}

	_, err := d.exec(ctx, `
		INSERT INTO users (user_id, registration_date, is_admin)
		VALUES (?, CURRENT_TIMESTAMP, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, adminID, true)
	if err != nil {
		return fmt.Errorf("failed to ensure admin %d: %w", adminID, err)
	}
	return nil
}
