package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// ActionLogRepository implements domain.ActionLogRepository.
type ActionLogRepository struct {
	db *Database
}

// NewActionLogRepository creates a new ActionLogRepository.
func NewActionLogRepository(db *Database) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Append writes one audit record. The id column is assigned by the database.
func (r *ActionLogRepository) Append(ctx context.Context, entry *domain.ActionLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err := r.db.exec(ctx, `
		INSERT INTO logs (user_id, username, first_name, last_name, action, action_data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.UserID,
		nullable(entry.Username),
		nullable(entry.FirstName),
		nullable(entry.LastName),
		entry.Action,
		nullable(entry.ActionData),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}

	return nil
}

// Recent returns the latest entries, newest first.
func (r *ActionLogRepository) Recent(ctx context.Context, limit int) ([]*domain.ActionLog, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, user_id, username, first_name, last_name, action, action_data, timestamp
		FROM logs
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent actions: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ActionLog
	for rows.Next() {
		entry := &domain.ActionLog{}
		var username, firstName, lastName, actionData sql.NullString
		var ts sql.NullTime

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&username,
			&firstName,
			&lastName,
			&entry.Action,
			&actionData,
			&ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		entry.Username = fromNull(username)
		entry.FirstName = fromNull(firstName)
		entry.LastName = fromNull(lastName)
		entry.ActionData = fromNull(actionData)
		if ts.Valid {
			entry.Timestamp = ts.Time
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// DistinctUsers counts distinct user IDs that logged any of the actions.
func (r *ActionLogRepository) DistinctUsers(ctx context.Context, actions ...string) (int, error) {
	if len(actions) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(actions)), ", ")
	args := make([]any, len(actions))
	for i, action := range actions {
		args[i] = action
	}

	var count int
	err := r.db.queryRow(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM logs
		WHERE action IN (`+placeholders+`)
	`, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct users: %w", err)
	}

	return count, nil
}

// Count returns the total number of entries for one action.
func (r *ActionLogRepository) Count(ctx context.Context, action string) (int, error) {
	var count int
	err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM logs WHERE action = ?`, action).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count action %q: %w", action, err)
	}
	return count, nil
}

// AccessesByAction returns per-user access timestamps for one action, most
// recently active user first. Grouping happens here rather than in SQL so the
// query stays identical on both backends.
func (r *ActionLogRepository) AccessesByAction(ctx context.Context, action string) ([]*domain.VideoAccess, error) {
	rows, err := r.db.query(ctx, `
		SELECT username, first_name, last_name, timestamp
		FROM logs
		WHERE action = ? AND username IS NOT NULL
		ORDER BY timestamp
	`, action)
	if err != nil {
		return nil, fmt.Errorf("failed to get accesses for %q: %w", action, err)
	}
	defer rows.Close()

	byUser := make(map[string]*domain.VideoAccess)
	var order []string
	for rows.Next() {
		var username string
		var firstName, lastName sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&username, &firstName, &lastName, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan access: %w", err)
		}

		access, ok := byUser[username]
		if !ok {
			access = &domain.VideoAccess{
				Username:  username,
				FirstName: fromNull(firstName),
				LastName:  fromNull(lastName),
			}
			byUser[username] = access
			order = append(order, username)
		}
		if ts.Valid {
			access.Times = append(access.Times, ts.Time)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accesses: %w", err)
	}

	accesses := make([]*domain.VideoAccess, 0, len(order))
	for _, username := range order {
		accesses = append(accesses, byUser[username])
	}
	// Rows came ordered by timestamp, so the last element of Times is each
	// user's latest access.
	sort.SliceStable(accesses, func(i, j int) bool {
		return lastTime(accesses[i].Times).After(lastTime(accesses[j].Times))
	})

	return accesses, nil
}

func lastTime(times []time.Time) time.Time {
	if len(times) == 0 {
		return time.Time{}
	}
	return times[len(times)-1]
}
