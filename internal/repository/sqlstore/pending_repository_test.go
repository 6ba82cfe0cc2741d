package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

func TestPendingRepositoryUpsertRefreshes(t *testing.T) {
	db := newTestDB(t)
	repo := NewPendingUserRepository(db)
	ctx := context.Background()

	first := &domain.PendingUser{ID: 555, Username: "@Bob", FirstName: "Боб"}
	require.NoError(t, repo.Upsert(ctx, first))

	got, err := repo.GetByID(ctx, 555)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "bob", got.Username)
	firstRequest := got.RequestedAt

	// Repeat contact refreshes fields and request date under the same key.
	second := &domain.PendingUser{
		ID:          555,
		Username:    "bob",
		FirstName:   "Роберт",
		RequestedAt: firstRequest.Add(time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, second))

	got, err = repo.GetByID(ctx, 555)
	require.NoError(t, err)
	require.Equal(t, "Роберт", got.FirstName)
	require.True(t, got.RequestedAt.After(firstRequest))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPendingRepositoryGetByUsername(t *testing.T) {
	db := newTestDB(t)
	repo := NewPendingUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.PendingUser{ID: 555, Username: "bob"}))

	got, err := repo.GetByUsername(ctx, "@Bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.EqualValues(t, 555, got.ID)

	missing, err := repo.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPendingRepositoryDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewPendingUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.PendingUser{ID: 555, Username: "bob"}))
	require.NoError(t, repo.Delete(ctx, 555))

	got, err := repo.GetByID(ctx, 555)
	require.NoError(t, err)
	require.Nil(t, got)

	// Deleting an absent record is not an error: promotion cleanup may race
	// with an earlier manual delete.
	require.NoError(t, repo.Delete(ctx, 555))
}
