package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
	"github.com/kinoshkola/filmschool-bot/internal/service"
)

const recentActionsLimit = 20

var quotedArgPattern = regexp.MustCompile(`"([^"]*)"`)

// requireAdmin replies with a refusal and returns false for non-admins.
func (b *Bot) requireAdmin(ctx context.Context, message *tgbotapi.Message) bool {
	if b.access.IsAdmin(ctx, message.From.ID) {
		return true
	}
	b.sendMessage(message.Chat.ID, msgNoPermission)
	return false
}

// handleAddUser handles /adduser <user_id|@username|phone>.
func (b *Bot) handleAddUser(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	identifier := strings.TrimSpace(message.CommandArguments())
	if identifier == "" {
		b.sendMessage(message.Chat.ID, "Пожалуйста, укажите Telegram ID или @username пользователя.")
		return
	}

	outcome, user, err := b.access.AddUser(ctx, identifier)
	if errors.Is(err, domain.ErrAlreadyExists) {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь %s уже зарегистрирован.", identifier))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("identifier", identifier).Msg("add user failed")
		b.sendMessage(message.Chat.ID, "Не удалось добавить пользователя. Проверьте ID или @username и попробуйте еще раз.")
		return
	}

	switch outcome {
	case service.AddDirect:
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь с ID %d успешно добавлен.", user.ID))
	case service.AddFromPending:
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь @%s (ID: %d) успешно добавлен.", user.Username, user.ID))
	case service.AddAsPlaceholder:
		b.sendMessage(message.Chat.ID, fmt.Sprintf(
			"Пользователь %s добавлен с временным ID. "+
				"ID будет автоматически обновлен, когда пользователь напишет боту /start.",
			identifier,
		))
	}

	b.audit.Record(ctx, message.From.ID, domain.ActionAddUser, fmt.Sprintf("user_id:%d", user.ID))
}

// handleAddUsers handles /addusers with a whitespace-separated identifier list.
func (b *Bot) handleAddUsers(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	identifiers := strings.Fields(message.CommandArguments())
	if len(identifiers) == 0 {
		b.sendMessage(message.Chat.ID, "Пожалуйста, укажите список @username через пробел.")
		return
	}

	result := b.access.AddUsers(ctx, identifiers)

	text := fmt.Sprintf("Добавлено: %d\nУже зарегистрированы: %d", result.Added, result.Existed)
	if len(result.Failed) > 0 {
		text += fmt.Sprintf("\nНе удалось добавить (%d): %s", len(result.Failed), strings.Join(result.Failed, ", "))
	}
	b.sendMessage(message.Chat.ID, text)

	b.audit.Record(ctx, message.From.ID, domain.ActionAddUsers,
		fmt.Sprintf("added:%d, existed:%d, failed:%d", result.Added, result.Existed, len(result.Failed)))
}

// handleRemoveUser handles /removeuser <user_id|@username>.
func (b *Bot) handleRemoveUser(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	identifier := strings.TrimSpace(message.CommandArguments())
	if identifier == "" {
		b.sendMessage(message.Chat.ID, "Пожалуйста, укажите Telegram ID или @username пользователя.")
		return
	}

	user, err := b.access.RemoveUser(ctx, identifier)
	switch {
	case errors.Is(err, domain.ErrProtectedUser):
		b.sendMessage(message.Chat.ID, "Невозможно удалить администратора.")
		return
	case errors.Is(err, domain.ErrNotFound):
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь %s не найден.", identifier))
		return
	case err != nil:
		log.Error().Err(err).Str("identifier", identifier).Msg("remove user failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь %s (ID: %d) успешно удален.", displayName(user), user.ID))
	b.audit.Record(ctx, message.From.ID, domain.ActionRemoveUser, fmt.Sprintf("user_id:%d", user.ID))
}

// handleMakeAdmin handles /makeadmin <user_id|@username>.
func (b *Bot) handleMakeAdmin(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	identifier := strings.TrimSpace(message.CommandArguments())
	if identifier == "" {
		b.sendMessage(message.Chat.ID, "Пожалуйста, укажите Telegram ID или @username пользователя, которого вы хотите сделать администратором.")
		return
	}

	user, err := b.access.GrantAdmin(ctx, identifier)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь %s не найден.", identifier))
		return
	case errors.Is(err, domain.ErrAlreadyAdmin):
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь %s уже является администратором.", displayName(user)))
		return
	case err != nil:
		log.Error().Err(err).Str("identifier", identifier).Msg("make admin failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("Пользователь %s (ID: %d) успешно назначен администратором.", displayName(user), user.ID))
	b.audit.Record(ctx, message.From.ID, domain.ActionMakeAdmin, fmt.Sprintf("target_user_id:%d", user.ID))
}

// handleListUsers handles /listusers.
func (b *Bot) handleListUsers(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	users, err := b.access.ListUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list users failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}
	if len(users) == 0 {
		b.sendMessage(message.Chat.ID, "В системе нет зарегистрированных пользователей.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Список пользователей:*\n\n")
	for _, user := range users {
		sb.WriteString(fmt.Sprintf("ID: `%d`\n", user.ID))
		if user.Username != "" {
			sb.WriteString(fmt.Sprintf("Username: @%s\n", escapeMarkdown(user.Username)))
		}
		if name := fullName(user.FirstName, user.LastName); name != "" {
			sb.WriteString(fmt.Sprintf("Имя: %s\n", escapeMarkdown(name)))
		}
		if user.IsPlaceholder() {
			sb.WriteString("Ожидает первого запуска бота\n")
		}
		if user.IsAdmin {
			sb.WriteString("*Администратор*\n")
		}
		sb.WriteString("\n")
	}

	b.sendMarkdown(message.Chat.ID, sb.String())
	b.audit.Record(ctx, message.From.ID, domain.ActionListUsers, "admin_command")
}

// handlePendingUsers handles /pendingusers.
func (b *Bot) handlePendingUsers(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	pendings, err := b.access.ListPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list pending failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}
	if len(pendings) == 0 {
		b.sendMessage(message.Chat.ID, "Нет пользователей, ожидающих регистрации.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Пользователи, запросившие доступ:*\n\n")
	for _, pending := range pendings {
		sb.WriteString(fmt.Sprintf("ID: `%d`\n", pending.ID))
		if pending.Username != "" {
			sb.WriteString(fmt.Sprintf("Username: @%s\n", escapeMarkdown(pending.Username)))
		}
		if name := fullName(pending.FirstName, pending.LastName); name != "" {
			sb.WriteString(fmt.Sprintf("Имя: %s\n", escapeMarkdown(name)))
		}
		sb.WriteString(fmt.Sprintf("Дата запроса: %s\n", pending.RequestedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(fmt.Sprintf("Добавить: `/adduser %d`\n\n", pending.ID))
	}

	b.sendMarkdown(message.Chat.ID, sb.String())
	b.audit.Record(ctx, message.From.ID, domain.ActionPendingUsers, "admin_command")
}

// handleStats handles /stats.
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	stats, err := b.audit.Stats(ctx, b.buttons.Buttons())
	if err != nil {
		log.Error().Err(err).Msg("stats failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}

	var sb strings.Builder
	sb.WriteString("*Статистика бота*\n\n")
	sb.WriteString(fmt.Sprintf("Всего пользователей: %d\n", stats.TotalUsers))
	sb.WriteString(fmt.Sprintf("Запустили бота: %d\n", stats.StartedBot))
	sb.WriteString(fmt.Sprintf("Администраторов: %d\n", stats.TotalAdmins))

	for _, buttonStats := range stats.Buttons {
		sb.WriteString(fmt.Sprintf("\n*%s получили (%d):*\n", escapeMarkdown(buttonStats.Button.Text), buttonStats.UniqueViewers))
		if len(buttonStats.Accesses) == 0 {
			sb.WriteString("- Никто еще не запрашивал эту запись\n")
			continue
		}
		for _, access := range buttonStats.Accesses {
			sb.WriteString(fmt.Sprintf("- %s %s\n", accessDisplay(access), accessTimes(access)))
		}
	}

	b.sendMarkdown(message.Chat.ID, sb.String())
	b.audit.Record(ctx, message.From.ID, domain.ActionShowStats, "admin_command")
}

// handleActions handles /actions.
func (b *Bot) handleActions(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	actions, err := b.audit.RecentActions(ctx, recentActionsLimit)
	if err != nil {
		log.Error().Err(err).Msg("recent actions failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}

	var sb strings.Builder
	sb.WriteString("*Последние действия:*\n\n")
	for _, action := range actions {
		who := fmt.Sprintf("ID: %d", action.UserID)
		if action.Username != "" {
			who = "@" + escapeMarkdown(action.Username)
		}
		info := action.Action
		if action.ActionData != "" {
			info += fmt.Sprintf(" (%s)", escapeMarkdown(action.ActionData))
		}
		sb.WriteString(fmt.Sprintf("- %s: %s (%s)\n", who, info, action.Timestamp.Format("2006-01-02 15:04:05")))
	}

	b.sendMarkdown(message.Chat.ID, sb.String())
	b.audit.Record(ctx, message.From.ID, domain.ActionShowActions, "admin_command")
}

// handleUpdateButton handles /buttonN "<text>" "<url>".
func (b *Bot) handleUpdateButton(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(ctx, message) {
		return
	}

	number, err := strconv.Atoi(strings.TrimPrefix(message.Command(), "button"))
	if err != nil || number < 1 || number > service.MaxButtons {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Номер кнопки должен быть от 1 до %d.", service.MaxButtons))
		return
	}

	matches := quotedArgPattern.FindAllStringSubmatch(message.Text, -1)
	if len(matches) < 2 {
		b.sendMessage(message.Chat.ID,
			"Пожалуйста, укажите все необходимые параметры:\n\n"+
				"/button<номер> \"<текст кнопки>\" \"<ссылка>\"\n\n"+
				"Например: /button1 \"Запись занятия 19 мая\" \"https://drive.google.com/...\"")
		return
	}

	text := matches[0][1]
	url := matches[1][1]

	if err := b.buttons.Save(ctx, number, text, url); err != nil {
		log.Error().Err(err).Int("button", number).Msg("button update failed")
		b.sendMessage(message.Chat.ID, "Не удалось обновить кнопку. Пожалуйста, попробуйте еще раз.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"Кнопка %d успешно обновлена!\n\n"+
			"Новый текст кнопки: \"%s\"\n"+
			"Новая ссылка: %s\n\n"+
			"Пользователям необходимо использовать команду /refresh для обновления клавиатуры, "+
			"иначе они будут видеть старый текст кнопок.",
		number, text, url,
	))
	b.audit.Record(ctx, message.From.ID, domain.ActionUpdateButton,
		fmt.Sprintf("button_num:%d, text:%q, url:%s", number, text, url))
}

func displayName(user *domain.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}
	return strconv.FormatInt(user.ID, 10)
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func accessDisplay(access *domain.VideoAccess) string {
	display := ""
	if access.Username != "" {
		display = "@" + escapeMarkdown(access.Username)
	}
	if name := fullName(access.FirstName, access.LastName); name != "" {
		if display != "" {
			display += fmt.Sprintf(" (%s)", escapeMarkdown(name))
		} else {
			display = escapeMarkdown(name)
		}
	}
	return display
}

// accessTimes formats a user's access timestamps, truncated after three to
// keep the Markdown message within Telegram limits.
func accessTimes(access *domain.VideoAccess) string {
	const layout = "2006-01-02 15:04:05"

	var formatted []string
	for _, ts := range access.Times {
		formatted = append(formatted, ts.Format(layout))
	}

	if len(formatted) > 3 {
		return fmt.Sprintf("(%s, %s, ... и еще %d)", formatted[0], formatted[1], len(formatted)-2)
	}
	return fmt.Sprintf("(%s)", strings.Join(formatted, ", "))
}
