package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
	"github.com/kinoshkola/filmschool-bot/internal/repository/sqlstore"
)

func newAuditService(t *testing.T) (*AuditService, domain.UserRepository) {
	t.Helper()

	db := newTestStore(t)
	users := sqlstore.NewUserRepository(db)
	return NewAuditService(sqlstore.NewActionLogRepository(db), users), users
}

func TestAuditRecordSnapshotsUser(t *testing.T) {
	svc, users := newAuditService(t)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{
		ID: 100, Username: "alice", FirstName: "Алиса", LastName: "Иванова",
	}))

	svc.Record(ctx, 100, domain.ActionStart, "")

	entries, err := svc.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "alice", entries[0].Username)
	require.Equal(t, "Алиса", entries[0].FirstName)
	require.Equal(t, domain.ActionStart, entries[0].Action)
}

func TestAuditRecordUnknownUser(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := context.Background()

	// Pending contacts have no user row; the entry still lands.
	svc.Record(ctx, 555, domain.ActionStart, "")

	entries, err := svc.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.EqualValues(t, 555, entries[0].UserID)
	require.Empty(t, entries[0].Username)
}

func TestAuditStats(t *testing.T) {
	svc, users := newAuditService(t)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{ID: 100, Username: "alice"}))
	require.NoError(t, users.Create(ctx, &domain.User{ID: 200, Username: "bob", IsAdmin: true}))

	svc.Record(ctx, 100, domain.ActionStart, "")
	svc.Record(ctx, 100, domain.ActionStart, "")
	svc.Record(ctx, 200, domain.ActionStartActivated, "")
	svc.Record(ctx, 100, domain.VideoAction(1), "")
	svc.Record(ctx, 200, domain.VideoAction(1), "")
	svc.Record(ctx, 100, domain.VideoAction(1), "")

	buttons := []Button{
		{Number: 1, Text: "Запись последнего занятия", URL: "https://example.com/v1"},
		{Number: 2, Text: "Запись предыдущего занятия"},
	}

	stats, err := svc.Stats(ctx, buttons)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalUsers)
	require.Equal(t, 1, stats.TotalAdmins)
	require.Equal(t, 2, stats.StartedBot)
	require.Len(t, stats.Buttons, 2)

	first := stats.Buttons[0]
	require.Equal(t, 3, first.TotalPresses)
	require.Equal(t, 2, first.UniqueViewers)
	require.Len(t, first.Accesses, 2)

	second := stats.Buttons[1]
	require.Zero(t, second.TotalPresses)
	require.Zero(t, second.UniqueViewers)
}
