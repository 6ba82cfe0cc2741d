package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// ButtonRepository implements domain.ButtonRepository.
type ButtonRepository struct {
	db *Database
}

// NewButtonRepository creates a new ButtonRepository.
func NewButtonRepository(db *Database) *ButtonRepository {
	return &ButtonRepository{db: db}
}

// Save upserts the override for one button key.
func (r *ButtonRepository) Save(ctx context.Context, key, text, url string) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO buttons (button_key, button_text, button_url, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (button_key) DO UPDATE SET
			button_text = excluded.button_text,
			button_url = excluded.button_url,
			last_updated = excluded.last_updated
	`, key, text, url, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save button %q: %w", key, err)
	}

	return nil
}

// LoadAll retrieves every stored button override.
func (r *ButtonRepository) LoadAll(ctx context.Context) ([]*domain.ButtonConfig, error) {
	rows, err := r.db.query(ctx, `
		SELECT button_key, button_text, button_url, last_updated
		FROM buttons
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load buttons: %w", err)
	}
	defer rows.Close()

	var buttons []*domain.ButtonConfig
	for rows.Next() {
		button := &domain.ButtonConfig{}
		var text, url sql.NullString
		var updated sql.NullTime

		if err := rows.Scan(&button.Key, &text, &url, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan button: %w", err)
		}

		button.Text = fromNull(text)
		button.URL = fromNull(url)
		if updated.Valid {
			button.UpdatedAt = updated.Time
		}

		buttons = append(buttons, button)
	}

	return buttons, rows.Err()
}
