package domain

import (
	"context"
	"strings"
	"time"
)

// User represents a person permitted to use the bot.
//
// A negative ID is a placeholder: the user was pre-registered by username
// before they ever messaged the bot, and the real Telegram ID is not known
// yet. The first /start from that username swaps the placeholder for the
// real ID. Known limitation: the placeholder lives in the same column as the
// real ID, distinguished only by sign, because the admin-facing contract
// (adduser/removeuser by ID) treats both the same way.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Phone        string
	RegisteredAt time.Time
	IsAdmin      bool
}

// IsPlaceholder reports whether the user was added by username only and has
// not contacted the bot yet.
func (u *User) IsPlaceholder() bool {
	return u.ID < 0
}

// PendingUser is a contact that messaged the bot but is not authorized yet.
type PendingUser struct {
	ID          int64
	Username    string
	FirstName   string
	LastName    string
	Phone       string
	RequestedAt time.Time
}

// NormalizeUsername lowercases a Telegram handle and strips the leading @
// so lookups tolerate case variations and both @name and name forms.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// UserRepository defines the interface for authorized-user storage.
// Lookups that find nothing return (nil, nil); username lookups that match
// more than one row return ErrAmbiguousUsername.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)
	UpdateProfile(ctx context.Context, id int64, username, firstName, lastName string) error
	SetAdmin(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	CountAll(ctx context.Context) (int, error)
	CountAdmins(ctx context.Context) (int, error)

	// CreatePlaceholder inserts a user known only by username or phone under
	// a fresh negative ID and returns that ID.
	CreatePlaceholder(ctx context.Context, username, phone string) (int64, error)
	// GetPlaceholderByUsername finds a user with the given username and a
	// negative ID.
	GetPlaceholderByUsername(ctx context.Context, username string) (*User, error)
	// ActivatePlaceholder rewrites a placeholder row onto the real Telegram
	// ID and refreshes the display fields, atomically.
	ActivatePlaceholder(ctx context.Context, placeholderID, realID int64, firstName, lastName string) error
}

// PendingUserRepository defines the interface for not-yet-authorized contacts.
type PendingUserRepository interface {
	Upsert(ctx context.Context, pending *PendingUser) error
	GetByID(ctx context.Context, id int64) (*PendingUser, error)
	GetByUsername(ctx context.Context, username string) (*PendingUser, error)
	GetAll(ctx context.Context) ([]*PendingUser, error)
	Delete(ctx context.Context, id int64) error
}
