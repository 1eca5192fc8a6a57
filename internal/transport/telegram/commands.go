package telegram

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	userDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/user/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
)

var guildPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

const helpText = `👋 Guild Activity Bot

I estimate how active a guild's chats are. A guild is a named group of chats registered with me; I count messages I have seen in them.

Available commands:
/help [command] - Show this help message
/addchannel <guild> [@chat|chat_id] - Register a chat in a guild (defaults to this chat)
/removechannel <chat_id> - Remove a chat from its guild
/listchannels [guild] - List the chats of a guild
/msgcount [context] [window] - Count messages
/activeusercount [context] [window] [threshold] - Count active users (alias /auc)
/rsslink [guild] - Get the report feed link
/status - Show bot status

Example:
/msgcount public 7d`

var commandHelp = map[string]string{
	"msgcount": `/msgcount [context] [window]

Counts messages in a search context over a time window.

A context is a single chat, the keyword "all" or the keyword "public". A chat is named by its ID, @username or #title. "all" searches every chat of this guild, "public" only chats with a public @username. Default "public".

The window is a ##d##h##m##s string that looks back from now. Default 24h.

This is slow and approximate: only messages I have seen are counted.

Examples:
/msgcount public 7d
/msgcount all 2d
/msgcount #general 5h`,
	"activeusercount": `/activeusercount [context] [window] [threshold]

Counts users who sent at least threshold messages in the context during the window. Bots do not count. Defaults: context "all", window 24h, threshold 10.

Examples:
/auc
/auc public 7d 25`,
}

func (h *Handler) handleStart(ctx context.Context, api API, msg *models.Message) {
	h.reply(ctx, api, msg, helpText)
}

func (h *Handler) handleHelp(ctx context.Context, api API, msg *models.Message) {
	args := commandArgs(msg.Text)
	if len(args) == 0 {
		h.reply(ctx, api, msg, helpText)
		return
	}

	name := strings.TrimPrefix(strings.ToLower(args[0]), "/")
	if name == "auc" {
		name = "activeusercount"
	}
	text, ok := commandHelp[name]
	if !ok {
		text = helpText
	}
	h.reply(ctx, api, msg, text)
}

func (h *Handler) handleAddChannel(ctx context.Context, api API, msg *models.Message) {
	if !h.checkAuthorization(msg) {
		h.reply(ctx, api, msg, "❌ Unauthorized")
		return
	}

	args := commandArgs(msg.Text)
	if len(args) < 1 || len(args) > 2 {
		h.reply(ctx, api, msg, "Usage: /addchannel <guild> [@chat|chat_id]\nExample: /addchannel wolves @wolves_general")
		return
	}

	guildID := strings.ToLower(args[0])
	if !guildPattern.MatchString(guildID) {
		h.reply(ctx, api, msg, "❌ Guild names may only contain a-z, 0-9, _ and -")
		return
	}

	var target any = msg.Chat.ID
	if len(args) == 2 {
		target = chatReference(args[1])
	}

	chat, err := api.GetChat(ctx, &bot.GetChatParams{ChatID: target})
	if err != nil {
		h.reply(ctx, api, msg, fmt.Sprintf("❌ Failed to get chat info: %v\nMake sure the bot is a member of the chat.", err))
		return
	}
	if !isGroupChat(string(chat.Type)) {
		h.reply(ctx, api, msg, "❌ Only groups, supergroups and channels can be registered.")
		return
	}

	if !h.checkChatAdmin(ctx, api, msg, chat.ID) {
		return
	}

	chatID := strconv.FormatInt(chat.ID, 10)
	if current, ok := h.directory.GuildOf(chatID); ok && current != guildID {
		h.reply(ctx, api, msg, fmt.Sprintf("❌ %s is already registered in guild %s.\nRemove it first with /removechannel %s", chat.Title, current, chatID))
		return
	}

	channel := &channelDomain.Channel{
		ID:       chatID,
		GuildID:  guildID,
		Username: chat.Username,
		Title:    chat.Title,
		Public:   chat.Username != "",
		AddedBy:  msg.From.ID,
		AddedAt:  time.Now(),
	}

	if err := h.directory.Register(ctx, channel); err != nil {
		h.reply(ctx, api, msg, fmt.Sprintf("❌ Failed to save channel: %v", err))
		return
	}

	visibility := lo.Ternary(channel.Public, "public", "private")
	h.reply(ctx, api, msg, fmt.Sprintf("✅ %s added to guild %s (%s)\nChat ID: %s", channel.Name(), guildID, visibility, channel.ID))
}

func (h *Handler) handleRemoveChannel(ctx context.Context, api API, msg *models.Message) {
	if !h.checkAuthorization(msg) {
		h.reply(ctx, api, msg, "❌ Unauthorized")
		return
	}

	args := commandArgs(msg.Text)
	if len(args) != 1 {
		h.reply(ctx, api, msg, "Usage: /removechannel <chat_id>")
		return
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, api, msg, "Usage: /removechannel <chat_id>\nThe chat ID is shown by /listchannels.")
		return
	}

	if !h.checkChatAdmin(ctx, api, msg, chatID) {
		return
	}

	channel, err := h.directory.Remove(ctx, args[0])
	if err != nil {
		if stdErrors.Is(err, errors.ErrChannelNotFound) {
			h.reply(ctx, api, msg, fmt.Sprintf("❌ Channel not found: %s", args[0]))
			return
		}
		h.reply(ctx, api, msg, fmt.Sprintf("❌ Failed to remove channel: %v", err))
		return
	}

	if err := h.messages.Forget(ctx, channel.ID); err != nil {
		h.reply(ctx, api, msg, fmt.Sprintf("⚠️ %s removed, but its archive could not be cleared: %v", channel.Name(), err))
		return
	}
	h.members.Forget(chatID)

	h.reply(ctx, api, msg, fmt.Sprintf("✅ %s removed from guild %s", channel.Name(), channel.GuildID))
}

func (h *Handler) handleListChannels(ctx context.Context, api API, msg *models.Message) {
	if !h.checkAuthorization(msg) {
		h.reply(ctx, api, msg, "❌ Unauthorized")
		return
	}

	guilds := h.guildsFor(msg)
	if len(guilds) == 0 {
		h.reply(ctx, api, msg, "📭 No channels added yet.\nUse /addchannel to add one.")
		return
	}

	var text strings.Builder
	for _, guildID := range guilds {
		channels, err := h.directory.ListChannels(ctx, guildID)
		if err != nil {
			h.reply(ctx, api, msg, fmt.Sprintf("❌ Failed to list channels: %v", err))
			return
		}

		text.WriteString(fmt.Sprintf("📋 Guild %s:\n\n", guildID))
		if len(channels) == 0 {
			text.WriteString("   (no channels)\n\n")
		}
		for i, ch := range channels {
			status := lo.Ternary(ch.Public, "🌐", "🔒")
			text.WriteString(fmt.Sprintf("%s %d. %s\n   ID: %s\n", status, i+1, ch.Name(), ch.ID))
			if !ch.LastUpdate.IsZero() {
				text.WriteString(fmt.Sprintf("   Last message: %s\n", ch.LastUpdate.UTC().Format(time.DateTime)))
			}
			text.WriteString("\n")
		}
	}

	h.reply(ctx, api, msg, text.String())
}

func (h *Handler) handleRSSLink(ctx context.Context, api API, msg *models.Message) {
	if !h.checkAuthorization(msg) {
		h.reply(ctx, api, msg, "❌ Unauthorized")
		return
	}

	guilds := h.guildsFor(msg)
	if len(guilds) == 0 {
		h.reply(ctx, api, msg, "📭 No guilds registered yet.")
		return
	}

	var text strings.Builder
	text.WriteString("🔗 Report Feed Links:\n\n")
	for _, guildID := range guilds {
		text.WriteString(fmt.Sprintf("%s:\nhttp://localhost:%s/guilds/%s/reports.rss\n\n", guildID, h.cfg.HTTPPort, guildID))
	}
	h.reply(ctx, api, msg, text.String())
}

func (h *Handler) handleStatus(ctx context.Context, api API, msg *models.Message) {
	if !h.checkAuthorization(msg) {
		h.reply(ctx, api, msg, "❌ Unauthorized")
		return
	}

	guilds := h.directory.Guilds()
	channels := 0
	var archived int64
	for _, guildID := range guilds {
		list, err := h.directory.ListChannels(ctx, guildID)
		if err != nil {
			h.reply(ctx, api, msg, fmt.Sprintf("❌ Failed to get status: %v", err))
			return
		}
		channels += len(list)
		for _, ch := range list {
			if n, err := h.messages.Count(ctx, ch.ID); err == nil {
				archived += n
			}
		}
	}

	operators := "none (open)"
	if users, err := h.operators.Operators(); err != nil {
		slog.Error("Failed to list operators", "error", err)
		operators = "unknown"
	} else if len(users) > 0 {
		operators = strings.Join(lo.Map(users, func(u *userDomain.User, _ int) string {
			return lo.Ternary(u.Username != "", "@"+u.Username, strconv.FormatInt(u.ID, 10))
		}), ", ")
	}

	text := fmt.Sprintf(`📊 Bot Status:

Guilds: %d
Channels: %d
Archived messages: %d
Operators: %s
Archive: %s
Update Interval: %d seconds
HTTP Port: %s
Storage: %s`,
		len(guilds), channels, archived, operators, h.cfg.ArchiveDriver, h.cfg.UpdateInterval, h.cfg.HTTPPort, h.cfg.StoragePath)

	h.reply(ctx, api, msg, text)
}

// checkChatAdmin lets operators through and otherwise requires the caller to
// own or administer the chat being managed. It replies on refusal.
func (h *Handler) checkChatAdmin(ctx context.Context, api API, msg *models.Message, chatID int64) bool {
	if h.operators.IsOperator(msg.From.ID) || (isAnonymousAdmin(msg) && msg.Chat.ID == chatID) {
		return true
	}

	member, err := h.members.Member(ctx, chatID, msg.From.ID)
	if err != nil {
		slog.Error("Failed to check chat admin", "chat_id", chatID, "user_id", msg.From.ID, "error", err)
		h.reply(ctx, api, msg, "❌ Could not verify your permissions in that chat, try again later.")
		return false
	}
	if !canModerate(member, anyRight) {
		h.reply(ctx, api, msg, "❌ Only an administrator of that chat can do this.")
		return false
	}
	return true
}

func anyRight(*models.ChatMemberAdministrator) bool { return true }

// guildsFor returns the guild named in the command, else the guild of the
// current chat, else every guild
func (h *Handler) guildsFor(msg *models.Message) []string {
	if args := commandArgs(msg.Text); len(args) > 0 {
		return []string{strings.ToLower(args[0])}
	}
	if guildID, ok := h.directory.GuildOf(strconv.FormatInt(msg.Chat.ID, 10)); ok {
		return []string{guildID}
	}
	return h.directory.Guilds()
}

// commandArgs returns the whitespace separated arguments after the command
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

// chatReference turns "@name" or a numeric ID into a getChat chat_id value
func chatReference(ref string) any {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id
	}
	return "@" + strings.TrimPrefix(ref, "@")
}
