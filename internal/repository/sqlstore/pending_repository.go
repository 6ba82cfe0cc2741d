package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// PendingUserRepository implements domain.PendingUserRepository.
type PendingUserRepository struct {
	db *Database
}

// NewPendingUserRepository creates a new PendingUserRepository.
func NewPendingUserRepository(db *Database) *PendingUserRepository {
	return &PendingUserRepository{db: db}
}

const pendingColumns = "user_id, username, first_name, last_name, phone_number, request_date"

func scanPending(row rowScanner) (*domain.PendingUser, error) {
	pending := &domain.PendingUser{}
	var username, firstName, lastName, phone sql.NullString
	var requested sql.NullTime

	err := row.Scan(
		&pending.ID,
		&username,
		&firstName,
		&lastName,
		&phone,
		&requested,
	)
	if err != nil {
		return nil, err
	}

	pending.Username = fromNull(username)
	pending.FirstName = fromNull(firstName)
	pending.LastName = fromNull(lastName)
	pending.Phone = fromNull(phone)
	if requested.Valid {
		pending.RequestedAt = requested.Time
	}

	return pending, nil
}

// Upsert inserts a pending contact or, on repeat contact, refreshes the
// display fields and request date under the same key.
func (r *PendingUserRepository) Upsert(ctx context.Context, pending *domain.PendingUser) error {
	if pending.RequestedAt.IsZero() {
		pending.RequestedAt = time.Now()
	}

	_, err := r.db.exec(ctx, `
		INSERT INTO pending_users (user_id, username, first_name, last_name, phone_number, request_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone_number = excluded.phone_number,
			request_date = excluded.request_date
	`,
		pending.ID,
		nullable(domain.NormalizeUsername(pending.Username)),
		nullable(pending.FirstName),
		nullable(pending.LastName),
		nullable(pending.Phone),
		pending.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending user: %w", err)
	}

	return nil
}

// GetByID retrieves a pending contact by Telegram ID. Returns (nil, nil) when
// absent.
func (r *PendingUserRepository) GetByID(ctx context.Context, id int64) (*domain.PendingUser, error) {
	row := r.db.queryRow(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_users
		WHERE user_id = ?
	`, id)

	pending, err := scanPending(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending user: %w", err)
	}

	return pending, nil
}

// GetByUsername retrieves a pending contact by normalized handle. Returns
// (nil, nil) when absent and ErrAmbiguousUsername on duplicate handles.
func (r *PendingUserRepository) GetByUsername(ctx context.Context, username string) (*domain.PendingUser, error) {
	normalized := domain.NormalizeUsername(username)
	if normalized == "" {
		return nil, nil
	}

	rows, err := r.db.query(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_users
		WHERE username IS NOT NULL AND LOWER(username) = ?
	`, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending user by username: %w", err)
	}
	defer rows.Close()

	var pendings []*domain.PendingUser
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending user: %w", err)
		}
		pendings = append(pendings, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending users: %w", err)
	}

	switch len(pendings) {
	case 0:
		return nil, nil
	case 1:
		return pendings[0], nil
	default:
		return nil, fmt.Errorf("pending username %q matches %d rows: %w", normalized, len(pendings), domain.ErrAmbiguousUsername)
	}
}

// GetAll retrieves all pending contacts, newest requests first.
func (r *PendingUserRepository) GetAll(ctx context.Context) ([]*domain.PendingUser, error) {
	rows, err := r.db.query(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_users
		ORDER BY request_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending users: %w", err)
	}
	defer rows.Close()

	var pendings []*domain.PendingUser
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending user: %w", err)
		}
		pendings = append(pendings, pending)
	}

	return pendings, rows.Err()
}

// Delete removes a pending contact, typically after promotion.
func (r *PendingUserRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.exec(ctx, `DELETE FROM pending_users WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pending user: %w", err)
	}
	return nil
}
