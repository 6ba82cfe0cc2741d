package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// Button is one reply-keyboard button as currently rendered: compiled-in
// default overridden by the stored configuration when present.
type Button struct {
	Number int
	Text   string
	URL    string
}

// DefaultButtons are the compiled-in button definitions used until an admin
// stores overrides via /buttonN.
func DefaultButtons() []Button {
	return []Button{
		{Number: 1, Text: "Запись последнего занятия", URL: ""},
		{Number: 2, Text: "Запись предыдущего занятия", URL: ""},
	}
}

// MaxButtons bounds the /buttonN command range.
const MaxButtons = 3

// ButtonService holds the current button snapshot. Precedence is fixed:
// stored overrides win over compiled-in defaults, nothing else contributes.
// The snapshot is refreshed by Load at startup and by Save after an admin
// update; /refresh re-sends the keyboard rendered from it.
type ButtonService struct {
	repo     domain.ButtonRepository
	defaults []Button

	mu      sync.RWMutex
	buttons map[int]Button
}

// NewButtonService creates a ButtonService seeded with the defaults. Call
// Load before serving traffic.
func NewButtonService(repo domain.ButtonRepository, defaults []Button) *ButtonService {
	buttons := make(map[int]Button, len(defaults))
	for _, b := range defaults {
		buttons[b.Number] = b
	}
	return &ButtonService{repo: repo, defaults: defaults, buttons: buttons}
}

// Load overlays stored overrides onto the defaults and swaps the snapshot.
func (s *ButtonService) Load(ctx context.Context) error {
	stored, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load button config: %w", err)
	}

	buttons := make(map[int]Button, len(s.defaults))
	for _, b := range s.defaults {
		buttons[b.Number] = b
	}
	for _, cfg := range stored {
		n, ok := parseButtonKey(cfg.Key)
		if !ok {
			log.Warn().Str("button_key", cfg.Key).Msg("ignoring unrecognized button key")
			continue
		}
		buttons[n] = Button{Number: n, Text: cfg.Text, URL: cfg.URL}
	}

	s.mu.Lock()
	s.buttons = buttons
	s.mu.Unlock()

	log.Info().Int("buttons", len(buttons)).Msg("button config loaded")
	return nil
}

// Save stores an override and refreshes the snapshot.
func (s *ButtonService) Save(ctx context.Context, number int, text, url string) error {
	if number < 1 || number > MaxButtons {
		return fmt.Errorf("button number must be between 1 and %d", MaxButtons)
	}

	if err := s.repo.Save(ctx, domain.ButtonKey(number), text, url); err != nil {
		return err
	}

	s.mu.Lock()
	s.buttons[number] = Button{Number: number, Text: text, URL: url}
	s.mu.Unlock()

	return nil
}

// Buttons returns the current snapshot ordered by number.
func (s *ButtonService) Buttons() []Button {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buttons := make([]Button, 0, len(s.buttons))
	for _, b := range s.buttons {
		buttons = append(buttons, b)
	}
	sort.Slice(buttons, func(i, j int) bool { return buttons[i].Number < buttons[j].Number })
	return buttons
}

// FindByText matches a pressed keyboard button by its label.
func (s *ButtonService) FindByText(text string) (Button, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.buttons {
		if b.Text == text {
			return b, true
		}
	}
	return Button{}, false
}

func parseButtonKey(key string) (int, bool) {
	rest, found := strings.CutPrefix(key, "button")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
