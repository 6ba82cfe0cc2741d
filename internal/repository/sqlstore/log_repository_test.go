package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

func TestActionLogRepositoryAppendAndRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i, action := range []string{domain.ActionStart, domain.ActionHelp, domain.VideoAction(1)} {
		err := repo.Append(ctx, &domain.ActionLog{
			UserID:    100,
			Username:  "alice",
			FirstName: "Алиса",
			Action:    action,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, domain.VideoAction(1), recent[0].Action)
	require.Equal(t, domain.ActionHelp, recent[1].Action)
	require.Equal(t, "alice", recent[0].Username)
}

func TestActionLogRepositoryAppendDefaultsTimestamp(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	entry := &domain.ActionLog{UserID: 100, Action: domain.ActionStart}
	require.NoError(t, repo.Append(ctx, entry))
	require.False(t, entry.Timestamp.IsZero())
}

func TestActionLogRepositoryCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	seed := []struct {
		userID int64
		action string
	}{
		{100, domain.ActionStart},
		{100, domain.ActionStart},
		{200, domain.ActionStartActivated},
		{300, domain.VideoAction(1)},
	}
	for _, s := range seed {
		require.NoError(t, repo.Append(ctx, &domain.ActionLog{UserID: s.userID, Action: s.action}))
	}

	count, err := repo.Count(ctx, domain.ActionStart)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	distinct, err := repo.DistinctUsers(ctx, domain.ActionStart, domain.ActionStartActivated)
	require.NoError(t, err)
	require.Equal(t, 2, distinct)

	none, err := repo.DistinctUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, none)
}

func TestActionLogRepositoryAccessesByAction(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	action := domain.VideoAction(2)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	seed := []struct {
		username string
		offset   time.Duration
	}{
		{"alice", 0},
		{"bob", time.Minute},
		{"alice", 2 * time.Minute},
	}
	for _, s := range seed {
		require.NoError(t, repo.Append(ctx, &domain.ActionLog{
			UserID:    100,
			Username:  s.username,
			Action:    action,
			Timestamp: base.Add(s.offset),
		}))
	}
	// A different action never leaks into the report.
	require.NoError(t, repo.Append(ctx, &domain.ActionLog{
		UserID: 300, Username: "carol", Action: domain.VideoAction(1),
	}))

	accesses, err := repo.AccessesByAction(ctx, action)
	require.NoError(t, err)
	require.Len(t, accesses, 2)

	// alice pressed last, so she comes first.
	require.Equal(t, "alice", accesses[0].Username)
	require.Len(t, accesses[0].Times, 2)
	require.Equal(t, "bob", accesses[1].Username)
	require.Len(t, accesses[1].Times, 1)
}
