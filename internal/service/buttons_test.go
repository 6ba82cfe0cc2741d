package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kinoshkola/filmschool-bot/internal/repository/sqlstore"
)

func newButtonService(t *testing.T) *ButtonService {
	t.Helper()

	db := newTestStore(t)
	svc := NewButtonService(sqlstore.NewButtonRepository(db), DefaultButtons())
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

func TestButtonServiceDefaults(t *testing.T) {
	svc := newButtonService(t)

	buttons := svc.Buttons()
	require.Len(t, buttons, 2)
	require.Equal(t, 1, buttons[0].Number)
	require.Equal(t, "Запись последнего занятия", buttons[0].Text)
	require.Empty(t, buttons[0].URL)
}

func TestButtonServiceSaveAndReload(t *testing.T) {
	svc := newButtonService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, 1, "Занятие 12 марта", "https://example.com/v12"))

	button, ok := svc.FindByText("Занятие 12 марта")
	require.True(t, ok)
	require.Equal(t, 1, button.Number)
	require.Equal(t, "https://example.com/v12", button.URL)

	// Stored overrides survive a reload and win over the defaults.
	require.NoError(t, svc.Load(ctx))
	button, ok = svc.FindByText("Занятие 12 марта")
	require.True(t, ok)
	require.Equal(t, "https://example.com/v12", button.URL)

	_, ok = svc.FindByText("Запись последнего занятия")
	require.False(t, ok)
}

func TestButtonServiceSaveAddsThirdButton(t *testing.T) {
	svc := newButtonService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, 3, "Дополнительное занятие", "https://example.com/extra"))

	buttons := svc.Buttons()
	require.Len(t, buttons, 3)
	require.Equal(t, 3, buttons[2].Number)
}

func TestButtonServiceSaveRejectsBadNumber(t *testing.T) {
	svc := newButtonService(t)
	ctx := context.Background()

	require.Error(t, svc.Save(ctx, 0, "x", ""))
	require.Error(t, svc.Save(ctx, MaxButtons+1, "x", ""))
}

func TestParseButtonKey(t *testing.T) {
	n, ok := parseButtonKey("button2")
	require.True(t, ok)
	require.Equal(t, 2, n)

	for _, key := range []string{"", "button", "button0", "buttonx", "video1"} {
		_, ok := parseButtonKey(key)
		require.False(t, ok, "key %q", key)
	}
}
