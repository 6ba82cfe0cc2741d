package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/kinoshkola/filmschool-bot/internal/domain"
	"github.com/kinoshkola/filmschool-bot/internal/service"
)

const (
	msgNotAuthorized = "У вас нет доступа к этому боту. Пожалуйста, обратитесь к администратору киношколы."
	msgNoPermission  = "У вас нет прав для выполнения этой команды."
	msgInternalError = "Произошла ошибка. Пожалуйста, попробуйте еще раз позже."
)

// Bot represents the Telegram bot.
type Bot struct {
	api     *tgbotapi.BotAPI
	access  *service.AccessService
	audit   *service.AuditService
	buttons *service.ButtonService
	timeout time.Duration
}

// New creates a new Bot instance.
func New(token string, access *service.AccessService, audit *service.AuditService, buttons *service.ButtonService, timeout time.Duration) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("authorized on telegram")

	return &Bot{
		api:     api,
		access:  access,
		audit:   audit,
		buttons: buttons,
		timeout: timeout,
	}, nil
}

// Start runs the polling loop until ctx is cancelled. Updates are handled
// one at a time; per-chat ordering follows from that.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		}
	}

	return nil
}

// handleMessage dispatches one inbound message under a bounded timeout so a
// slow database round-trip cannot stall the process indefinitely.
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	b.handleButtonPress(ctx, message)
}

// handleCommand handles bot commands.
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	switch command {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(ctx, message)
	case "refresh":
		b.handleRefresh(ctx, message)
	case "adduser":
		b.handleAddUser(ctx, message)
	case "addusers":
		b.handleAddUsers(ctx, message)
	case "removeuser":
		b.handleRemoveUser(ctx, message)
	case "listusers":
		b.handleListUsers(ctx, message)
	case "pendingusers":
		b.handlePendingUsers(ctx, message)
	case "makeadmin":
		b.handleMakeAdmin(ctx, message)
	case "stats":
		b.handleStats(ctx, message)
	case "actions":
		b.handleActions(ctx, message)
	default:
		if strings.HasPrefix(command, "button") {
			b.handleUpdateButton(ctx, message)
			return
		}
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Используйте /help для списка команд.")
	}
}

// handleStart reconciles the contact's identity and answers accordingly.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	from := message.From
	contact := service.Contact{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}

	outcome, err := b.access.ReconcileOnContact(ctx, contact)
	if err != nil {
		log.Error().Err(err).Int64("user_id", from.ID).Msg("reconcile failed")
		b.sendMessage(message.Chat.ID, msgInternalError)
		return
	}

	switch outcome {
	case service.ContactActivated:
		text := fmt.Sprintf(
			"Привет, %s! Ваш аккаунт активирован. Теперь вам доступны записи занятий.",
			from.FirstName,
		)
		b.sendWithKeyboard(message.Chat.ID, text)
		b.audit.Record(ctx, from.ID, domain.ActionStartActivated, "account_activation")

	case service.ContactWelcomed:
		text := fmt.Sprintf(
			"Привет, %s! Добро пожаловать в бот киношколы.\n\nИспользуйте кнопки ниже для доступа к записям занятий.",
			from.FirstName,
		)
		if b.access.IsAdmin(ctx, from.ID) {
			text += "\n\nВы имеете права администратора. Используйте /help для просмотра доступных команд."
		}
		b.sendWithKeyboard(message.Chat.ID, text)
		b.audit.Record(ctx, from.ID, domain.ActionStart, "regular_start")

	case service.ContactPending:
		b.sendMessage(message.Chat.ID, fmt.Sprintf(
			"Привет, %s! Для доступа к боту необходимо быть зарегистрированным студентом. "+
				"Пожалуйста, обратитесь к администратору киношколы для регистрации.",
			from.FirstName,
		))
	}
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, message *tgbotapi.Message) {
	from := message.From
	if !b.authorized(ctx, from) {
		b.sendMessage(message.Chat.ID, msgNotAuthorized)
		return
	}

	help := "Доступные команды:\n" +
		"/start - Начать работу с ботом\n" +
		"/help - Показать это сообщение\n" +
		"/refresh - Обновить кнопки\n\n" +
		"Используйте кнопки для доступа к записям занятий."

	if b.access.IsAdmin(ctx, from.ID) {
		help += "\n\nКоманды администратора:\n" +
			"/adduser <user_id или @username> - Добавить нового пользователя\n" +
			"/addusers <@username ...> - Добавить нескольких пользователей\n" +
			"/removeuser <user_id или @username> - Удалить пользователя\n" +
			"/listusers - Показать список всех пользователей\n" +
			"/pendingusers - Показать список пользователей, запросивших доступ\n" +
			"/makeadmin <user_id или @username> - Назначить пользователя администратором\n" +
			"/button<N> \"<текст кнопки>\" \"<ссылка>\" - Обновить кнопку N\n" +
			"/stats - Показать статистику использования бота\n" +
			"/actions - Показать последние действия"
	}

	b.sendMessage(message.Chat.ID, help)
	b.audit.Record(ctx, from.ID, domain.ActionHelp, "command")
}

// handleRefresh re-sends the keyboard with the current button labels.
func (b *Bot) handleRefresh(ctx context.Context, message *tgbotapi.Message) {
	from := message.From
	if !b.authorized(ctx, from) {
		b.sendMessage(message.Chat.ID, msgNotAuthorized)
		return
	}

	var lines []string
	for _, button := range b.buttons.Buttons() {
		lines = append(lines, fmt.Sprintf("Кнопка %d: \"%s\"", button.Number, button.Text))
	}

	text := "Клавиатура обновлена! Теперь вы видите актуальные кнопки:\n\n" + strings.Join(lines, "\n")
	b.sendWithKeyboard(message.Chat.ID, text)
	b.audit.Record(ctx, from.ID, domain.ActionRefresh, "keyboard_updated")
}

// handleButtonPress answers a reply-keyboard press with the configured
// lesson-recording message.
func (b *Bot) handleButtonPress(ctx context.Context, message *tgbotapi.Message) {
	from := message.From
	if !b.authorized(ctx, from) {
		b.sendMessage(message.Chat.ID, msgNotAuthorized)
		return
	}

	button, ok := b.buttons.FindByText(message.Text)
	if !ok {
		b.sendMessage(message.Chat.ID, "Пожалуйста, используйте кнопки для доступа к записям занятий.")
		return
	}

	if button.URL == "" {
		b.sendMessage(message.Chat.ID, "Записи занятий пока не добавлены. Пожалуйста, попробуйте позже.")
		return
	}

	b.sendMarkdown(message.Chat.ID, videoMessage(button))
	b.audit.Record(ctx, from.ID, domain.VideoAction(button.Number), button.Text)
}

func (b *Bot) authorized(ctx context.Context, from *tgbotapi.User) bool {
	return b.access.IsAuthorized(ctx, from.ID, from.UserName) || b.access.IsAdmin(ctx, from.ID)
}

// videoMessage renders the message sent for a button press.
func videoMessage(button service.Button) string {
	return fmt.Sprintf("Запись занятия:\n\n%s\n\nЗапись доступна в течение 7 дней.", button.URL)
}

// keyboard builds the reply keyboard from the current button snapshot.
func (b *Bot) keyboard() tgbotapi.ReplyKeyboardMarkup {
	var row []tgbotapi.KeyboardButton
	for _, button := range b.buttons.Buttons() {
		row = append(row, tgbotapi.NewKeyboardButton(button.Text))
	}

	markup := tgbotapi.NewReplyKeyboard(row)
	markup.ResizeKeyboard = true
	return markup
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = b.keyboard()
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

// escapeMarkdown escapes the legacy-Markdown control characters in
// user-provided strings interpolated into Markdown replies.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "[", "\\[")
	return replacer.Replace(s)
}
