package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"@alice", "alice"},
		{"@ALICE", "alice"},
		{" @Alice ", "alice"},
		{"@", ""},
		{"", ""},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeUsername(tt.in), "input %q", tt.in)
	}
}

func TestUserIsPlaceholder(t *testing.T) {
	require.True(t, (&User{ID: -1}).IsPlaceholder())
	require.False(t, (&User{ID: 100}).IsPlaceholder())
	require.False(t, (&User{}).IsPlaceholder())
}

func TestActionKeys(t *testing.T) {
	require.Equal(t, "get_video_1", VideoAction(1))
	require.Equal(t, "button3", ButtonKey(3))
}
