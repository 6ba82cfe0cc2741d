package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// ContactOutcome classifies what ReconcileOnContact did with a /start event.
type ContactOutcome int

const (
	// ContactPending: unknown contact, recorded in pending_users.
	ContactPending ContactOutcome = iota
	// ContactWelcomed: already authorized, profile refreshed.
	ContactWelcomed
	// ContactActivated: placeholder identity promoted to the real ID.
	ContactActivated
)

// AddOutcome classifies how an admin "add user" request was satisfied.
type AddOutcome int

const (
	// AddDirect: inserted directly by numeric ID.
	AddDirect AddOutcome = iota
	// AddFromPending: promoted from pending_users.
	AddFromPending
	// AddAsPlaceholder: inserted under a negative ID, to be activated on the
	// person's first /start.
	AddAsPlaceholder
)

// BulkAddResult reports per-item counts for an /addusers command.
type BulkAddResult struct {
	Added   int
	Existed int
	Failed  []string
}

// Contact carries what a Telegram update tells us about its sender.
type Contact struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Phone     string
}

// AccessService owns authorization checks and the identity lifecycle:
// placeholder, pending contact, authorized user, administrator.
type AccessService struct {
	users   domain.UserRepository
	pending domain.PendingUserRepository
}

// NewAccessService creates a new AccessService.
func NewAccessService(users domain.UserRepository, pending domain.PendingUserRepository) *AccessService {
	return &AccessService{users: users, pending: pending}
}

// IsAuthorized reports whether the contact may use the bot: a user row with
// the same ID, or failing that one with the same normalized username. An
// ambiguous username still counts as authorized (some row does carry the
// handle); the ambiguity itself is logged for the admin to clean up.
func (s *AccessService) IsAuthorized(ctx context.Context, userID int64, username string) bool {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("authorization lookup failed")
		return false
	}
	if user != nil {
		return true
	}

	if username == "" {
		return false
	}

	user, err = s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrAmbiguousUsername) {
		log.Warn().Err(err).Str("username", username).Msg("ambiguous username during authorization")
		return true
	}
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("authorization lookup failed")
		return false
	}

	return user != nil
}

// IsAdmin reports whether the user ID belongs to an administrator.
func (s *AccessService) IsAdmin(ctx context.Context, userID int64) bool {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("admin lookup failed")
		return false
	}
	return user != nil && user.IsAdmin
}

// ReconcileOnContact runs on every /start. It links a pre-registered
// placeholder to the real Telegram ID when the usernames match, refreshes an
// authorized user's profile, or records the contact as pending.
func (s *AccessService) ReconcileOnContact(ctx context.Context, contact Contact) (ContactOutcome, error) {
	if contact.Username != "" {
		placeholder, err := s.users.GetPlaceholderByUsername(ctx, contact.Username)
		if err != nil && !errors.Is(err, domain.ErrAmbiguousUsername) {
			return ContactPending, err
		}
		if errors.Is(err, domain.ErrAmbiguousUsername) {
			log.Warn().Str("username", contact.Username).Msg("duplicate placeholders for one username, skipping activation")
		}
		if placeholder != nil {
			return s.activate(ctx, placeholder, contact)
		}
	}

	if s.IsAuthorized(ctx, contact.ID, contact.Username) || s.IsAdmin(ctx, contact.ID) {
		err := s.users.UpdateProfile(ctx, contact.ID, domain.NormalizeUsername(contact.Username), contact.FirstName, contact.LastName)
		if err != nil {
			return ContactWelcomed, err
		}
		return ContactWelcomed, nil
	}

	err := s.pending.Upsert(ctx, &domain.PendingUser{
		ID:        contact.ID,
		Username:  contact.Username,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Phone:     contact.Phone,
	})
	if err != nil {
		return ContactPending, err
	}
	return ContactPending, nil
}

func (s *AccessService) activate(ctx context.Context, placeholder *domain.User, contact Contact) (ContactOutcome, error) {
	// A row under the real ID can already exist if the admin added the same
	// person twice, once by ID and once by username. The real row wins and
	// the stale placeholder is dropped.
	existing, err := s.users.GetByID(ctx, contact.ID)
	if err != nil {
		return ContactPending, err
	}
	if existing != nil {
		if err := s.users.Delete(ctx, placeholder.ID); err != nil {
			return ContactPending, err
		}
		log.Info().Int64("placeholder_id", placeholder.ID).Int64("user_id", contact.ID).Msg("dropped duplicate placeholder")
		return ContactWelcomed, nil
	}

	if err := s.users.ActivatePlaceholder(ctx, placeholder.ID, contact.ID, contact.FirstName, contact.LastName); err != nil {
		return ContactPending, err
	}

	// The person may also have a stale pending record from before the admin
	// pre-registered them.
	if err := s.pending.Delete(ctx, contact.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", contact.ID).Msg("failed to clear pending record after activation")
	}

	log.Info().
		Int64("placeholder_id", placeholder.ID).
		Int64("user_id", contact.ID).
		Str("username", placeholder.Username).
		Msg("placeholder activated")
	return ContactActivated, nil
}

// AddUser authorizes one person, identified by numeric Telegram ID,
// @username (leading @ optional) or phone number.
func (s *AccessService) AddUser(ctx context.Context, identifier string) (AddOutcome, *domain.User, error) {
	id, username, phone, err := parseIdentifier(identifier)
	if err != nil {
		return AddDirect, nil, err
	}

	switch {
	case id != 0:
		return s.addByID(ctx, id)
	case username != "":
		return s.addByUsername(ctx, username)
	default:
		return s.addByPhone(ctx, phone)
	}
}

func (s *AccessService) addByID(ctx context.Context, id int64) (AddOutcome, *domain.User, error) {
	existing, err := s.users.GetByID(ctx, id)
	if err != nil {
		return AddDirect, nil, err
	}
	if existing != nil {
		return AddDirect, existing, fmt.Errorf("user %d: %w", id, domain.ErrAlreadyExists)
	}

	user := &domain.User{ID: id}
	if err := s.users.Create(ctx, user); err != nil {
		return AddDirect, nil, err
	}
	return AddDirect, user, nil
}

func (s *AccessService) addByUsername(ctx context.Context, username string) (AddOutcome, *domain.User, error) {
	existing, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrAmbiguousUsername) {
		return AddDirect, nil, fmt.Errorf("@%s: %w", username, domain.ErrAlreadyExists)
	}
	if err != nil {
		return AddDirect, nil, err
	}
	if existing != nil {
		return AddDirect, existing, fmt.Errorf("@%s: %w", username, domain.ErrAlreadyExists)
	}

	pending, err := s.pending.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrAmbiguousUsername) {
		return AddDirect, nil, err
	}
	if pending != nil {
		user := &domain.User{
			ID:        pending.ID,
			Username:  domain.NormalizeUsername(pending.Username),
			FirstName: pending.FirstName,
			LastName:  pending.LastName,
			Phone:     pending.Phone,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return AddFromPending, nil, err
		}
		if err := s.pending.Delete(ctx, pending.ID); err != nil {
			log.Warn().Err(err).Int64("user_id", pending.ID).Msg("failed to delete promoted pending record")
		}
		return AddFromPending, user, nil
	}

	placeholderID, err := s.users.CreatePlaceholder(ctx, username, "")
	if err != nil {
		return AddAsPlaceholder, nil, err
	}
	return AddAsPlaceholder, &domain.User{ID: placeholderID, Username: domain.NormalizeUsername(username)}, nil
}

func (s *AccessService) addByPhone(ctx context.Context, phone string) (AddOutcome, *domain.User, error) {
	placeholderID, err := s.users.CreatePlaceholder(ctx, "", phone)
	if err != nil {
		return AddAsPlaceholder, nil, err
	}
	return AddAsPlaceholder, &domain.User{ID: placeholderID, Phone: phone}, nil
}

// AddUsers runs AddUser for each identifier and reports per-item counts.
func (s *AccessService) AddUsers(ctx context.Context, identifiers []string) BulkAddResult {
	var result BulkAddResult
	for _, identifier := range identifiers {
		identifier = strings.TrimSpace(strings.TrimSuffix(identifier, ","))
		if identifier == "" {
			continue
		}

		_, _, err := s.AddUser(ctx, identifier)
		switch {
		case err == nil:
			result.Added++
		case errors.Is(err, domain.ErrAlreadyExists):
			result.Existed++
		default:
			log.Warn().Err(err).Str("identifier", identifier).Msg("bulk add item failed")
			result.Failed = append(result.Failed, identifier)
		}
	}
	return result
}

// RemoveUser deletes one user by ID or username. Administrators are
// protected and must be demoted out of band first.
func (s *AccessService) RemoveUser(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin {
		return user, fmt.Errorf("user %d: %w", user.ID, domain.ErrProtectedUser)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return user, err
	}
	return user, nil
}

// GrantAdmin sets the admin flag on an existing user.
func (s *AccessService) GrantAdmin(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin {
		return user, fmt.Errorf("user %d: %w", user.ID, domain.ErrAlreadyAdmin)
	}

	if err := s.users.SetAdmin(ctx, user.ID); err != nil {
		return user, err
	}
	user.IsAdmin = true
	return user, nil
}

// ListUsers returns all authorized users for the admin listing.
func (s *AccessService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.GetAll(ctx)
}

// ListPending returns all contacts waiting for approval.
func (s *AccessService) ListPending(ctx context.Context) ([]*domain.PendingUser, error) {
	return s.pending.GetAll(ctx)
}

func (s *AccessService) resolve(ctx context.Context, identifier string) (*domain.User, error) {
	id, username, _, err := parseIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	switch {
	case id != 0:
		user, err = s.users.GetByID(ctx, id)
	case username != "":
		user, err = s.users.GetByUsername(ctx, username)
	default:
		return nil, fmt.Errorf("identifier %q: %w", identifier, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("identifier %q: %w", identifier, domain.ErrNotFound)
	}
	return user, nil
}

// parseIdentifier splits an admin-supplied identifier into exactly one of a
// numeric Telegram ID, a username (leading @ optional) or a phone number.
func parseIdentifier(identifier string) (int64, string, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, "", "", fmt.Errorf("empty identifier")
	}

	if isDigits(identifier) {
		id, err := strconv.ParseInt(identifier, 10, 64)
		if err != nil {
			return 0, "", "", fmt.Errorf("invalid user id %q: %w", identifier, err)
		}
		return id, "", "", nil
	}

	if strings.HasPrefix(identifier, "+") && isDigits(identifier[1:]) {
		return 0, "", identifier, nil
	}

	username := domain.NormalizeUsername(identifier)
	if username == "" {
		return 0, "", "", fmt.Errorf("invalid identifier %q", identifier)
	}
	return 0, username, "", nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
