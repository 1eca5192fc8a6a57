package telegram

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	activityDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	activityService "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/service"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/oops"
)

var (
	errUsage            = stdErrors.New("usage")
	errInvalidThreshold = stdErrors.New("invalid threshold")
)

type activityCommand struct {
	name    string
	mode    activityDomain.Mode
	usage   string
	maxArgs int
	// right is the administrator right a non-operator caller needs
	right     func(*models.ChatMemberAdministrator) bool
	rightName string
}

var (
	messageCountCommand = activityCommand{
		name:      "msgcount",
		mode:      activityDomain.ModeCount,
		usage:     "Usage: /msgcount [context] [window]\nExample: /msgcount public 7d",
		maxArgs:   2,
		right:     func(a *models.ChatMemberAdministrator) bool { return a.CanDeleteMessages },
		rightName: "delete messages",
	}
	activeUserCountCommand = activityCommand{
		name:      "activeusercount",
		mode:      activityDomain.ModePerAuthor,
		usage:     "Usage: /activeusercount [context] [window] [threshold]\nExample: /auc all 7d 25",
		maxArgs:   3,
		right:     func(a *models.ChatMemberAdministrator) bool { return a.CanRestrictMembers },
		rightName: "restrict members",
	}
)

func (h *Handler) handleMessageCount(ctx context.Context, api API, msg *models.Message) {
	h.runActivity(ctx, api, msg, messageCountCommand)
}

func (h *Handler) handleActiveUserCount(ctx context.Context, api API, msg *models.Message) {
	h.runActivity(ctx, api, msg, activeUserCountCommand)
}

func (h *Handler) runActivity(ctx context.Context, api API, msg *models.Message, cmd activityCommand) {
	guildID, ok := h.directory.GuildOf(strconv.FormatInt(msg.Chat.ID, 10))
	if !ok {
		h.reply(ctx, api, msg, "❌ This chat is not registered in a guild.\nUse /addchannel <guild> in a group first.")
		return
	}

	allowed, err := h.mayRun(ctx, msg, cmd)
	if err != nil {
		slog.Error("Failed to check caller rights", "command", cmd.name, "user_id", msg.From.ID, "error", err)
		h.reply(ctx, api, msg, "❌ Could not verify your permissions, try again later.")
		return
	}
	if !allowed {
		h.reply(ctx, api, msg, fmt.Sprintf("❌ You need to be an administrator who can %s to use /%s.", cmd.rightName, cmd.name))
		return
	}

	req, err := parseActivityArgs(cmd, commandArgs(msg.Text))
	if err != nil {
		h.reply(ctx, api, msg, describeArgsError(cmd, err))
		return
	}
	req.GuildID = guildID
	req.RequestedBy = msg.From.ID
	if isAnonymousAdmin(msg) {
		// reads run as the bot, the sender account is a shared placeholder
		req.RequestedBy = 0
	}

	if wait, limited := h.cooldown(cmd.name, msg.From.ID); limited {
		h.reply(ctx, api, msg, fmt.Sprintf("⏳ /%s is on cooldown, try again in %ds.", cmd.name, int(wait.Seconds()+0.5)))
		return
	}

	slog.Info("Activity command", "command", cmd.name, "guild_id", guildID, "user_id", msg.From.ID, "context", req.Context, "window", req.Window)

	stopTyping := h.keepTyping(ctx, api, msg.Chat.ID)
	outcome, err := h.activity.Run(ctx, req)
	stopTyping()

	if err != nil {
		h.reply(ctx, api, msg, describeRunError(req, err))
		return
	}

	h.reply(ctx, api, msg, fmt.Sprintf("📊 %s\n\n%s", outcome.Summary.Title, outcome.Summary.Description))
}

// mayRun lets operators through and otherwise requires the command's
// administrator right in the chat the command was sent from
func (h *Handler) mayRun(ctx context.Context, msg *models.Message, cmd activityCommand) (bool, error) {
	if h.operators.IsOperator(msg.From.ID) || isAnonymousAdmin(msg) {
		return true, nil
	}
	member, err := h.members.Member(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return false, err
	}
	return canModerate(member, cmd.right), nil
}

// isAnonymousAdmin reports a message an administrator sent on behalf of the
// group itself
func isAnonymousAdmin(msg *models.Message) bool {
	return msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID
}

// cooldown starts a per-user cooldown for the command, or reports how long
// the running one has left
func (h *Handler) cooldown(command string, userID int64) (time.Duration, bool) {
	key := fmt.Sprintf("%s:%d", command, userID)

	h.cooldownMu.Lock()
	defer h.cooldownMu.Unlock()
	if started, ok := h.cooldowns.Get(key); ok {
		left := h.cfg.CommandCooldown - time.Since(started)
		if left > 0 {
			return left, true
		}
	}
	h.cooldowns.Add(key, time.Now())
	return 0, false
}

// keepTyping shows the typing indicator until the returned func is called
func (h *Handler) keepTyping(ctx context.Context, api API, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(h.typing)
		defer ticker.Stop()

		for {
			if _, err := api.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			}); err != nil && ctx.Err() == nil {
				slog.Debug("Failed to send chat action", "chat_id", chatID, "error", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func parseActivityArgs(cmd activityCommand, args []string) (activityService.Request, error) {
	req := activityService.Request{Mode: cmd.mode}
	if len(args) > cmd.maxArgs {
		return req, oops.With("args", len(args)).Wrap(errUsage)
	}

	if len(args) > 0 {
		req.Context = args[0]
	}
	if len(args) > 1 {
		req.Window = args[1]
	}
	if len(args) > 2 {
		threshold, err := strconv.ParseUint(args[2], 10, 0)
		if err != nil {
			return req, oops.With("threshold", args[2]).Wrap(errInvalidThreshold)
		}
		t := uint(threshold)
		req.Threshold = &t
	}
	return req, nil
}

func describeArgsError(cmd activityCommand, err error) string {
	if stdErrors.Is(err, errInvalidThreshold) {
		return "❌ The threshold must be a whole number of 0 or more.\n" + cmd.usage
	}
	return cmd.usage
}

func describeRunError(req activityService.Request, err error) string {
	switch {
	case stdErrors.Is(err, errors.ErrInvalidContext):
		return fmt.Sprintf("❌ Could not resolve the search context %q. Use all, public, or one chat's ID, @username or #title.", req.Context)
	case stdErrors.Is(err, errors.ErrInvalidDuration):
		return fmt.Sprintf("❌ Invalid time window %q. Use the ##d##h##m##s format, e.g. 7d or 2d5h.", req.Window)
	case stdErrors.Is(err, context.Canceled), stdErrors.Is(err, context.DeadlineExceeded):
		return "⚠️ The search was cancelled."
	default:
		slog.Error("Activity query failed", "guild_id", req.GuildID, "mode", req.Mode, "error", err)
		return "❌ Failed to build the report, try again later."
	}
}
