package domain

import (
	"context"
	"fmt"
	"time"
)

// Action tags written to the audit log.
const (
	ActionStart          = "start"
	ActionStartActivated = "start_activated"
	ActionHelp           = "help"
	ActionRefresh        = "refresh_keyboard"
	ActionAddUser        = "add_user"
	ActionAddUsers       = "add_users"
	ActionRemoveUser     = "remove_user"
	ActionMakeAdmin      = "make_admin"
	ActionUpdateButton   = "update_button"
	ActionListUsers      = "list_users"
	ActionPendingUsers   = "pending_users"
	ActionShowStats      = "show_stats"
	ActionShowActions    = "show_actions"
)

// VideoAction returns the audit tag for a press of the numbered video button.
func VideoAction(buttonNumber int) string {
	return fmt.Sprintf("get_video_%d", buttonNumber)
}

// ActionLog is one append-only audit record. User fields are a denormalized
// snapshot taken at log time: the referenced user may be deleted later, or
// may not exist at all for unauthorized contacts.
type ActionLog struct {
	ID         int64
	UserID     int64
	Username   string
	FirstName  string
	LastName   string
	Action     string
	ActionData string
	Timestamp  time.Time
}

// VideoAccess aggregates one user's presses of a single video button.
type VideoAccess struct {
	Username  string
	FirstName string
	LastName  string
	Times     []time.Time
}

// ActionLogRepository defines the interface for the audit trail.
type ActionLogRepository interface {
	Append(ctx context.Context, entry *ActionLog) error
	Recent(ctx context.Context, limit int) ([]*ActionLog, error)
	// DistinctUsers counts distinct user IDs that logged any of the actions.
	DistinctUsers(ctx context.Context, actions ...string) (int, error)
	Count(ctx context.Context, action string) (int, error)
	// AccessesByAction returns per-user access timestamps for one action,
	// most recent user first.
	AccessesByAction(ctx context.Context, action string) ([]*VideoAccess, error)
}
