package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// UserRepository implements domain.UserRepository on the shared Database.
type UserRepository struct {
	db *Database
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *Database) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "user_id, username, first_name, last_name, phone_number, registration_date, is_admin"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var username, firstName, lastName, phone sql.NullString
	var registered sql.NullTime

	err := row.Scan(
		&user.ID,
		&username,
		&firstName,
		&lastName,
		&phone,
		&registered,
		&user.IsAdmin,
	)
	if err != nil {
		return nil, err
	}

	user.Username = fromNull(username)
	user.FirstName = fromNull(firstName)
	user.LastName = fromNull(lastName)
	user.Phone = fromNull(phone)
	if registered.Valid {
		user.RegisteredAt = registered.Time
	}

	return user, nil
}

// Create creates a new authorized user. The username must not collide with an
// existing user's normalized handle.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.Username != "" {
		existing, err := r.GetByUsername(ctx, user.Username)
		if err != nil && !errors.Is(err, domain.ErrAmbiguousUsername) {
			return err
		}
		if existing != nil || errors.Is(err, domain.ErrAmbiguousUsername) {
			return fmt.Errorf("username %q: %w", user.Username, domain.ErrAlreadyExists)
		}
	}

	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now()
	}

	_, err := r.db.exec(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, phone_number, registration_date, is_admin)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		nullable(user.Username),
		nullable(user.FirstName),
		nullable(user.LastName),
		nullable(user.Phone),
		user.RegisteredAt,
		user.IsAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by Telegram ID. Returns (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE user_id = ?
	`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByUsername retrieves a user by normalized handle. Returns (nil, nil)
// when absent and ErrAmbiguousUsername when more than one row matches; the
// original schema cannot rule duplicates out, so ambiguity is reported
// instead of silently taking the first match.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOneByUsername(ctx, username, false)
}

// GetPlaceholderByUsername retrieves a placeholder (negative ID) user by
// normalized handle.
func (r *UserRepository) GetPlaceholderByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOneByUsername(ctx, username, true)
}

func (r *UserRepository) getOneByUsername(ctx context.Context, username string, placeholderOnly bool) (*domain.User, error) {
	normalized := domain.NormalizeUsername(username)
	if normalized == "" {
		return nil, nil
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username IS NOT NULL AND LOWER(username) = ?
	`
	if placeholderOnly {
		query += " AND user_id < 0"
	}

	rows, err := r.db.query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	switch len(users) {
	case 0:
		return nil, nil
	case 1:
		return users[0], nil
	default:
		return nil, fmt.Errorf("username %q matches %d rows: %w", normalized, len(users), domain.ErrAmbiguousUsername)
	}
}

// GetAll retrieves all users, admins first, newest registrations first.
func (r *UserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY is_admin DESC, registration_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateProfile refreshes the display fields observed on contact.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, username, firstName, lastName string) error {
	_, err := r.db.exec(ctx, `
		UPDATE users
		SET username = ?, first_name = ?, last_name = ?
		WHERE user_id = ?
	`, nullable(username), nullable(firstName), nullable(lastName), id)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	return nil
}

// SetAdmin grants the admin flag.
func (r *UserRepository) SetAdmin(ctx context.Context, id int64) error {
	res, err := r.db.exec(ctx, `UPDATE users SET is_admin = ? WHERE user_id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("failed to set admin: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set admin: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Delete deletes a user.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.exec(ctx, `DELETE FROM users WHERE user_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// CountAll returns the number of users.
func (r *UserRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountAdmins returns the number of administrators.
func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = ?`, true).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// CreatePlaceholder inserts a user known only by username or phone under the
// next free negative ID. The ID comes from a dedicated sequence (one below
// the current minimum, floored at -1) allocated inside the insert
// transaction, so concurrent restarts cannot hand out the same placeholder
// twice. This replaces the wall-clock heuristic the data was originally
// seeded with.
func (r *UserRepository) CreatePlaceholder(ctx context.Context, username, phone string) (int64, error) {
	normalized := domain.NormalizeUsername(username)

	if normalized != "" {
		existing, err := r.GetByUsername(ctx, normalized)
		if err != nil && !errors.Is(err, domain.ErrAmbiguousUsername) {
			return 0, err
		}
		if existing != nil || errors.Is(err, domain.ErrAmbiguousUsername) {
			return 0, fmt.Errorf("username %q: %w", normalized, domain.ErrAlreadyExists)
		}
	}

	tx, err := r.db.begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var minID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MIN(user_id) FROM users`).Scan(&minID); err != nil {
		return 0, fmt.Errorf("failed to read placeholder sequence: %w", err)
	}

	id := int64(-1)
	if minID.Valid && minID.Int64 < 0 {
		id = minID.Int64 - 1
	}

	_, err = tx.ExecContext(ctx, r.db.rebind(`
		INSERT INTO users (user_id, username, phone_number, registration_date)
		VALUES (?, ?, ?, ?)
	`), id, nullable(normalized), nullable(phone), time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to create placeholder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit placeholder: %w", err)
	}

	return id, nil
}

// ActivatePlaceholder rewrites a placeholder row onto the real Telegram ID
// and refreshes the display fields. Runs in one transaction so no other code
// path can observe a half-migrated row.
func (r *UserRepository) ActivatePlaceholder(ctx context.Context, placeholderID, realID int64, firstName, lastName string) error {
	tx, err := r.db.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.db.rebind(`
		UPDATE users
		SET user_id = ?, first_name = ?, last_name = ?
		WHERE user_id = ?
	`), realID, nullable(firstName), nullable(lastName), placeholderID)
	if err != nil {
		return fmt.Errorf("failed to activate placeholder: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to activate placeholder: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	return nil
}
