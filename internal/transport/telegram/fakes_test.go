package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	activityService "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/service"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	messageDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	userDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/user/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
)

type fakeAPI struct {
	mu          sync.Mutex
	sent        []string
	actions     int
	chats       map[any]*models.ChatFullInfo
	members     map[int64]*models.ChatMember
	memberCalls int
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params.Text)
	return &models.Message{}, nil
}

func (f *fakeAPI) SendChatAction(context.Context, *bot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions++
	return true, nil
}

func (f *fakeAPI) GetChat(_ context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error) {
	chat, ok := f.chats[params.ChatID]
	if !ok {
		return nil, errors.ErrChannelNotFound
	}
	return chat, nil
}

func (f *fakeAPI) GetChatMember(_ context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	if member, ok := f.members[params.UserID]; ok {
		return member, nil
	}
	return &models.ChatMember{Type: models.ChatMemberTypeLeft}, nil
}

func (f *fakeAPI) replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeAPI) lastReply() string {
	replies := f.replies()
	if len(replies) == 0 {
		return ""
	}
	return replies[len(replies)-1]
}

type fakeDirectory struct {
	mu       sync.Mutex
	channels map[string]*channelDomain.Channel
	seen     map[string]time.Time
}

func newFakeDirectory(channels ...channelDomain.Channel) *fakeDirectory {
	d := &fakeDirectory{channels: map[string]*channelDomain.Channel{}, seen: map[string]time.Time{}}
	for i := range channels {
		d.channels[channels[i].ID] = &channels[i]
	}
	return d
}

func (d *fakeDirectory) Register(_ context.Context, channel *channelDomain.Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[channel.ID] = channel
	return nil
}

func (d *fakeDirectory) Remove(_ context.Context, channelID string) (*channelDomain.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[channelID]
	if !ok {
		return nil, errors.ErrChannelNotFound
	}
	delete(d.channels, channelID)
	return ch, nil
}

func (d *fakeDirectory) ListChannels(_ context.Context, guildID string) ([]channelDomain.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.FilterMap(lo.Values(d.channels), func(ch *channelDomain.Channel, _ int) (channelDomain.Channel, bool) {
		return *ch, ch.GuildID == guildID
	}), nil
}

func (d *fakeDirectory) GuildOf(chatID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[chatID]
	if !ok {
		return "", false
	}
	return ch.GuildID, true
}

func (d *fakeDirectory) IsMonitored(chatID string) bool {
	_, ok := d.GuildOf(chatID)
	return ok
}

func (d *fakeDirectory) MarkSeen(chatID string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[chatID] = at
}

func (d *fakeDirectory) Guilds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Uniq(lo.Map(lo.Values(d.channels), func(ch *channelDomain.Channel, _ int) string { return ch.GuildID }))
}

type fakeArchive struct {
	mu       sync.Mutex
	archived []*messageDomain.Message
	forgot   []string
}

func (a *fakeArchive) Archive(_ context.Context, message *messageDomain.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, message)
	return nil
}

func (a *fakeArchive) Count(_ context.Context, channelID string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(lo.CountBy(a.archived, func(m *messageDomain.Message) bool { return m.ChannelID == channelID })), nil
}

func (a *fakeArchive) Forget(_ context.Context, channelID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forgot = append(a.forgot, channelID)
	return nil
}

type fakeActivity struct {
	RunFunc  func(ctx context.Context, req activityService.Request) (*activityService.Outcome, error)
	requests []activityService.Request
}

func (a *fakeActivity) Run(ctx context.Context, req activityService.Request) (*activityService.Outcome, error) {
	a.requests = append(a.requests, req)
	return a.RunFunc(ctx, req)
}

type fakeOperators struct {
	operators []int64
}

func (o *fakeOperators) IsAuthorized(userID int64) bool {
	return len(o.operators) == 0 || lo.Contains(o.operators, userID)
}

func (o *fakeOperators) IsOperator(userID int64) bool {
	return lo.Contains(o.operators, userID)
}

func (o *fakeOperators) Touch(int64, string) {}

func (o *fakeOperators) Operators() ([]*userDomain.User, error) {
	return lo.Map(o.operators, func(id int64, _ int) *userDomain.User { return &userDomain.User{ID: id, IsAdmin: true} }), nil
}

type handlerFixture struct {
	handler   *Handler
	api       *fakeAPI
	directory *fakeDirectory
	archive   *fakeArchive
	activity  *fakeActivity
	checker   *PermissionChecker
}

func newHandlerFixture(operators []int64, channels ...channelDomain.Channel) *handlerFixture {
	cfg := &config.Config{
		HTTPPort:           "8080",
		CommandCooldown:    time.Minute,
		PermissionCacheTTL: time.Minute,
		UpdateInterval:     60,
		ArchiveDriver:      config.ArchiveDriverSQLite,
	}
	api := &fakeAPI{chats: map[any]*models.ChatFullInfo{}, members: map[int64]*models.ChatMember{}}
	checker := NewPermissionChecker(cfg)
	checker.SetBot(api, botID)

	f := &handlerFixture{
		api:       api,
		directory: newFakeDirectory(channels...),
		archive:   &fakeArchive{},
		activity:  &fakeActivity{},
		checker:   checker,
	}
	f.handler = New(cfg, f.directory, f.archive, f.activity, &fakeOperators{operators: operators}, checker)
	f.handler.typing = 5 * time.Millisecond
	return f
}

const botID int64 = 999

func groupMessage(chatID, userID int64, text string) *models.Message {
	return &models.Message{
		ID:   1,
		Date: int(time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC).Unix()),
		Chat: models.Chat{ID: chatID, Type: models.ChatTypeSupergroup, Title: "General"},
		From: &models.User{ID: userID, FirstName: "Ann", Username: "ann"},
		Text: text,
	}
}
