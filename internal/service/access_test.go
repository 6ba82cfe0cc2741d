package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
	"github.com/kinoshkola/filmschool-bot/internal/repository/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Database {
	t.Helper()

	db, err := sqlstore.Open(context.Background(), sqlstore.Options{
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.InitSchema(context.Background()))
	return db
}

func newAccessService(t *testing.T) (*AccessService, domain.UserRepository, domain.PendingUserRepository) {
	t.Helper()

	db := newTestStore(t)
	users := sqlstore.NewUserRepository(db)
	pending := sqlstore.NewPendingUserRepository(db)
	return NewAccessService(users, pending), users, pending
}

func TestReconcileUnknownContactGoesPending(t *testing.T) {
	svc, _, _ := newAccessService(t)
	ctx := context.Background()

	outcome, err := svc.ReconcileOnContact(ctx, Contact{ID: 100, Username: "alice", FirstName: "Алиса"})
	require.NoError(t, err)
	require.Equal(t, ContactPending, outcome)
	require.False(t, svc.IsAuthorized(ctx, 100, "alice"))

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.EqualValues(t, 100, pending[0].ID)
}

func TestReconcileActivatesPlaceholder(t *testing.T) {
	svc, users, _ := newAccessService(t)
	ctx := context.Background()

	// Admin pre-registers @alice before she ever talks to the bot.
	outcome, added, err := svc.AddUser(ctx, "@alice")
	require.NoError(t, err)
	require.Equal(t, AddAsPlaceholder, outcome)
	require.True(t, added.IsPlaceholder())

	// Pre-registered usernames authorize even before first contact.
	require.True(t, svc.IsAuthorized(ctx, 987654321, "Alice"))

	contact, err := svc.ReconcileOnContact(ctx, Contact{
		ID: 987654321, Username: "Alice", FirstName: "Алиса", LastName: "Иванова",
	})
	require.NoError(t, err)
	require.Equal(t, ContactActivated, contact)

	// The placeholder row is gone, the real one carries her profile.
	activated, err := users.GetByID(ctx, 987654321)
	require.NoError(t, err)
	require.NotNil(t, activated)
	require.Equal(t, "alice", activated.Username)
	require.Equal(t, "Алиса", activated.FirstName)

	stale, err := users.GetByID(ctx, added.ID)
	require.NoError(t, err)
	require.Nil(t, stale)

	// The second /start is a plain welcome.
	contact, err = svc.ReconcileOnContact(ctx, Contact{ID: 987654321, Username: "Alice"})
	require.NoError(t, err)
	require.Equal(t, ContactWelcomed, contact)
}

func TestReconcileDropsDuplicatePlaceholder(t *testing.T) {
	svc, users, _ := newAccessService(t)
	ctx := context.Background()

	// The same person added twice: once by ID, once by username.
	_, _, err := svc.AddUser(ctx, "100")
	require.NoError(t, err)
	_, placeholder, err := svc.AddUser(ctx, "alice")
	require.NoError(t, err)

	outcome, err := svc.ReconcileOnContact(ctx, Contact{ID: 100, Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, ContactWelcomed, outcome)

	gone, err := users.GetByID(ctx, placeholder.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestAddUserByID(t *testing.T) {
	svc, _, _ := newAccessService(t)
	ctx := context.Background()

	outcome, user, err := svc.AddUser(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, AddDirect, outcome)
	require.EqualValues(t, 100, user.ID)
	require.True(t, svc.IsAuthorized(ctx, 100, ""))

	_, _, err = svc.AddUser(ctx, "100")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestAddUserPromotesPending(t *testing.T) {
	svc, _, pending := newAccessService(t)
	ctx := context.Background()

	_, err := svc.ReconcileOnContact(ctx, Contact{ID: 200, Username: "bob", FirstName: "Боб"})
	require.NoError(t, err)

	outcome, user, err := svc.AddUser(ctx, "@bob")
	require.NoError(t, err)
	require.Equal(t, AddFromPending, outcome)
	require.EqualValues(t, 200, user.ID)
	require.Equal(t, "Боб", user.FirstName)
	require.True(t, svc.IsAuthorized(ctx, 200, "bob"))

	left, err := pending.GetByID(ctx, 200)
	require.NoError(t, err)
	require.Nil(t, left)
}

func TestAddUserByPhone(t *testing.T) {
	svc, users, _ := newAccessService(t)
	ctx := context.Background()

	outcome, user, err := svc.AddUser(ctx, "+79991234567")
	require.NoError(t, err)
	require.Equal(t, AddAsPlaceholder, outcome)
	require.True(t, user.IsPlaceholder())

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "+79991234567", stored.Phone)
}

func TestAddUsersBulkCounts(t *testing.T) {
	svc, _, _ := newAccessService(t)
	ctx := context.Background()

	_, _, err := svc.AddUser(ctx, "100")
	require.NoError(t, err)

	result := svc.AddUsers(ctx, []string{"100,", "@alice", "200", "", "@"})
	require.Equal(t, 2, result.Added)
	require.Equal(t, 1, result.Existed)
	require.Equal(t, []string{"@"}, result.Failed)
}

func TestRemoveUserProtectsAdmins(t *testing.T) {
	svc, _, _ := newAccessService(t)
	ctx := context.Background()

	_, _, err := svc.AddUser(ctx, "100")
	require.NoError(t, err)
	_, err = svc.GrantAdmin(ctx, "100")
	require.NoError(t, err)

	_, err = svc.RemoveUser(ctx, "100")
	require.ErrorIs(t, err, domain.ErrProtectedUser)
	require.True(t, svc.IsAdmin(ctx, 100))
}

func TestRemoveUserByUsername(t *testing.T) {
	svc, _, _ := newAccessService(t)
	ctx := context.Background()

	_, _, err := svc.AddUser(ctx, "@alice")
	require.NoError(t, err)

	removed, err := svc.RemoveUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", removed.Username)
	require.False(t, svc.IsAuthorized(ctx, 0, "alice"))

	_, err = svc.RemoveUser(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGrantAdmin(t *testing.T) {
	svc, _, _ := newAccessService(t)
	ctx := context.Background()

	_, err := svc.GrantAdmin(ctx, "100")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = svc.AddUser(ctx, "100")
	require.NoError(t, err)

	user, err := svc.GrantAdmin(ctx, "100")
	require.NoError(t, err)
	require.True(t, user.IsAdmin)

	_, err = svc.GrantAdmin(ctx, "100")
	require.ErrorIs(t, err, domain.ErrAlreadyAdmin)
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in       string
		id       int64
		username string
		phone    string
		wantErr  bool
	}{
		{in: "123456", id: 123456},
		{in: " 123456 ", id: 123456},
		{in: "@Alice", username: "alice"},
		{in: "alice", username: "alice"},
		{in: "+79991234567", phone: "+79991234567"},
		{in: "", wantErr: true},
		{in: "@", wantErr: true},
	}

	for _, tt := range tests {
		id, username, phone, err := parseIdentifier(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		require.Equal(t, tt.id, id, "input %q", tt.in)
		require.Equal(t, tt.username, username, "input %q", tt.in)
		require.Equal(t, tt.phone, phone, "input %q", tt.in)
	}
}
