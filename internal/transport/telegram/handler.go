package telegram

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	activityService "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/service"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	messageDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	userDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/user/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
)

const (
	typingInterval = 4 * time.Second
	cooldownSize   = 1024
)

// Directory is the guild channel registry the handler manages
type Directory interface {
	Register(ctx context.Context, channel *channelDomain.Channel) error
	Remove(ctx context.Context, channelID string) (*channelDomain.Channel, error)
	ListChannels(ctx context.Context, guildID string) ([]channelDomain.Channel, error)
	GuildOf(chatID string) (string, bool)
	IsMonitored(chatID string) bool
	MarkSeen(chatID string, at time.Time)
	Guilds() []string
}

// Archive stores observed messages
type Archive interface {
	Archive(ctx context.Context, message *messageDomain.Message) error
	Count(ctx context.Context, channelID string) (int64, error)
	Forget(ctx context.Context, channelID string) error
}

// Activity runs activity queries
type Activity interface {
	Run(ctx context.Context, req activityService.Request) (*activityService.Outcome, error)
}

// Operators decides who may manage the directory
type Operators interface {
	IsAuthorized(userID int64) bool
	IsOperator(userID int64) bool
	Touch(userID int64, username string)
	Operators() ([]*userDomain.User, error)
}

// Members looks up chat memberships
type Members interface {
	Member(ctx context.Context, chatID, userID int64) (*models.ChatMember, error)
	Forget(chatID int64)
}

// Handler handles Telegram bot interactions
type Handler struct {
	cfg       *config.Config
	directory Directory
	messages  Archive
	activity  Activity
	operators Operators
	members   Members
	cooldowns *expirable.LRU[string, time.Time]
	// cooldownMu makes the cooldown check-and-set atomic
	cooldownMu sync.Mutex
	typing     time.Duration
}

// New creates a new Telegram handler
func New(cfg *config.Config, directory Directory, messages Archive, activity Activity, operators Operators, members Members) *Handler {
	cooldown := cfg.CommandCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Handler{
		cfg:       cfg,
		directory: directory,
		messages:  messages,
		activity:  activity,
		operators: operators,
		members:   members,
		cooldowns: expirable.NewLRU[string, time.Time](cooldownSize, nil, cooldown),
		typing:    typingInterval,
	}
}

// RegisterCommands registers bot commands
func (h *Handler) RegisterCommands(b *bot.Bot) {
	commands := []struct {
		name string
		fn   func(ctx context.Context, api API, msg *models.Message)
	}{
		{"start", h.handleStart},
		{"help", h.handleHelp},
		{"addchannel", h.handleAddChannel},
		{"removechannel", h.handleRemoveChannel},
		{"listchannels", h.handleListChannels},
		{"rsslink", h.handleRSSLink},
		{"status", h.handleStatus},
		{"msgcount", h.handleMessageCount},
		{"activeusercount", h.handleActiveUserCount},
		{"auc", h.handleActiveUserCount},
	}
	for _, c := range commands {
		b.RegisterHandlerRegexp(bot.HandlerTypeMessageText, commandPattern(c.name), h.command(c.fn))
	}
}

// commandPattern matches "/name", "/name@bot" and either followed by arguments
func commandPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`^/` + regexp.QuoteMeta(name) + `(?:@\w+)?(?:\s|$)`)
}

// command adapts a handler written against API to the library signature
func (h *Handler) command(fn func(ctx context.Context, api API, msg *models.Message)) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		fn(ctx, b, update.Message)
	}
}

// ArchiveMiddleware stores every message of a registered chat before the
// update reaches its handler, so commands count as activity too
func (h *Handler) ArchiveMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.archiveUpdate(ctx, update)
		next(ctx, b, update)
	}
}

// HandleUpdate processes updates no command matched
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.MyChatMember == nil {
		return
	}

	// membership of the bot changed, cached answers for this chat are stale
	chat := update.MyChatMember.Chat
	h.members.Forget(chat.ID)
	slog.Info("Bot membership changed",
		"chat_id", chat.ID,
		"chat", chat.Title,
		"status", update.MyChatMember.NewChatMember.Type,
		"monitored", h.directory.IsMonitored(strconv.FormatInt(chat.ID, 10)),
	)
}

func (h *Handler) archiveUpdate(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if !h.directory.IsMonitored(chatID) {
		return
	}

	message, ok := toMessage(msg)
	if !ok {
		return
	}

	if err := h.messages.Archive(ctx, message); err != nil {
		slog.Error("Error archiving message", "error", err, "chat_id", chatID, "message_id", msg.ID)
		return
	}
	h.directory.MarkSeen(chatID, message.Date)
	slog.Debug("Message archived", "chat_id", chatID, "message_id", msg.ID, "author_id", message.AuthorID)
}

// toMessage converts a group or channel message into an archive snapshot.
// Posts sent on behalf of a chat are attributed to that chat and treated
// as bot authored.
func toMessage(msg *models.Message) (*messageDomain.Message, bool) {
	if !isGroupChat(string(msg.Chat.Type)) {
		return nil, false
	}

	message := &messageDomain.Message{
		ID:        int64(msg.ID),
		ChannelID: strconv.FormatInt(msg.Chat.ID, 10),
		Text:      msg.Text,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
	}
	if message.Text == "" {
		message.Text = msg.Caption
	}

	switch {
	case msg.SenderChat != nil:
		message.AuthorID = msg.SenderChat.ID
		message.AuthorName = msg.SenderChat.Title
		message.AuthorIsBot = true
	case msg.From != nil:
		message.AuthorID = msg.From.ID
		message.AuthorName = getAuthorName(msg.From)
		message.AuthorIsBot = msg.From.IsBot
	default:
		message.AuthorID = msg.Chat.ID
		message.AuthorName = msg.Chat.Title
		message.AuthorIsBot = true
	}

	return message, true
}

func isGroupChat(chatType string) bool {
	switch chatType {
	case string(models.ChatTypeGroup), string(models.ChatTypeSupergroup), string(models.ChatTypeChannel):
		return true
	default:
		return false
	}
}

func getAuthorName(user *models.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return "Unknown"
}

func (h *Handler) reply(ctx context.Context, api API, msg *models.Message, text string) {
	if _, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	}); err != nil {
		slog.Error("Failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (h *Handler) checkAuthorization(msg *models.Message) bool {
	if !h.operators.IsAuthorized(msg.From.ID) {
		return false
	}
	h.operators.Touch(msg.From.ID, msg.From.Username)
	return true
}
