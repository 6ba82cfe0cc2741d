package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
)

// AuditService appends to and reads the action log.
type AuditService struct {
	logs  domain.ActionLogRepository
	users domain.UserRepository
}

// NewAuditService creates a new AuditService.
func NewAuditService(logs domain.ActionLogRepository, users domain.UserRepository) *AuditService {
	return &AuditService{logs: logs, users: users}
}

// Record appends one audit entry with a best-effort snapshot of the user's
// current name fields. It never fails the action it documents: storage errors
// are logged and swallowed.
func (s *AuditService) Record(ctx context.Context, userID int64, action, actionData string) {
	entry := &domain.ActionLog{
		UserID:     userID,
		Action:     action,
		ActionData: actionData,
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("audit snapshot lookup failed")
	}
	if user != nil {
		entry.Username = user.Username
		entry.FirstName = user.FirstName
		entry.LastName = user.LastName
	}

	if err := s.logs.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("action", action).Msg("failed to record action")
	}
}

// RecentActions returns the latest audit entries, newest first.
func (s *AuditService) RecentActions(ctx context.Context, limit int) ([]*domain.ActionLog, error) {
	return s.logs.Recent(ctx, limit)
}

// ButtonStats aggregates usage of one video button.
type ButtonStats struct {
	Button        Button
	TotalPresses  int
	UniqueViewers int
	Accesses      []*domain.VideoAccess
}

// Stats is the payload behind the /stats admin command.
type Stats struct {
	TotalUsers  int
	TotalAdmins int
	StartedBot  int
	Buttons     []ButtonStats
}

// Stats gathers usage statistics for the given button set.
func (s *AuditService) Stats(ctx context.Context, buttons []Button) (*Stats, error) {
	stats := &Stats{}
	var err error

	if stats.TotalUsers, err = s.users.CountAll(ctx); err != nil {
		return nil, err
	}
	if stats.TotalAdmins, err = s.users.CountAdmins(ctx); err != nil {
		return nil, err
	}
	if stats.StartedBot, err = s.logs.DistinctUsers(ctx, domain.ActionStart, domain.ActionStartActivated); err != nil {
		return nil, err
	}

	for _, button := range buttons {
		action := domain.VideoAction(button.Number)

		total, err := s.logs.Count(ctx, action)
		if err != nil {
			return nil, err
		}
		accesses, err := s.logs.AccessesByAction(ctx, action)
		if err != nil {
			return nil, err
		}

		stats.Buttons = append(stats.Buttons, ButtonStats{
			Button:        button,
			TotalPresses:  total,
			UniqueViewers: len(accesses),
			Accesses:      accesses,
		})
	}

	return stats, nil
}
