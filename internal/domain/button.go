package domain

import (
	"context"
	"fmt"
	"time"
)

// ButtonConfig is a stored presentation override for one reply-keyboard
// button: the label shown on the keyboard and the lesson-recording URL sent
// when it is pressed.
type ButtonConfig struct {
	Key       string
	Text      string
	URL       string
	UpdatedAt time.Time
}

// ButtonKey returns the storage key for the numbered button ("button1", ...).
func ButtonKey(n int) string {
	return fmt.Sprintf("button%d", n)
}

// ButtonRepository defines the interface for button override storage.
type ButtonRepository interface {
	Save(ctx context.Context, key, text, url string) error
	LoadAll(ctx context.Context) ([]*ButtonConfig, error)
}
