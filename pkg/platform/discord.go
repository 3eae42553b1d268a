package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/bwmarrin/discordgo"

	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
)

const memberPageSize = 1000

// DiscordSession adapts a discordgo session to Session.
type DiscordSession struct {
	s       *discordgo.Session
	removes []func()
}

// NewDiscordSession builds an unopened session. User tokens are sent as-is;
// bot tokens get the "Bot " prefix.
func NewDiscordSession(token string, bot bool) (*DiscordSession, error) {
	if bot {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, wrap("new session", err)
	}
	s.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent
	return &DiscordSession{s: s}, nil
}

// DialDiscord is the Dialer used outside tests.
func DialDiscord(token string, bot bool) (Session, error) {
	return NewDiscordSession(token, bot)
}

// RouteLibraryLogs sends discordgo's internal log lines to logger.
func RouteLibraryLogs(logger loggerpkg.Logger, verbose bool) {
	discordgo.Logger = func(level, _ int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch level {
		case discordgo.LogError:
			loggerpkg.Error(logger, msg, nil)
		case discordgo.LogWarning:
			loggerpkg.Warn(logger, msg, nil)
		default:
			loggerpkg.Debug(verbose, logger, msg, nil)
		}
	}
}

func (d *DiscordSession) Open(handler EventHandler) error {
	d.removes = append(d.removes,
		d.s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
			handler(Event{Kind: EventReady})
		}),
		d.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if m.Message == nil || m.Author == nil {
				return
			}
			handler(Event{Kind: EventMessage, Message: d.convertMessage(m.Message)})
		}),
	)
	return wrap("open", d.s.Open())
}

func (d *DiscordSession) Close() error {
	for _, remove := range d.removes {
		remove()
	}
	d.removes = nil
	return wrap("close", d.s.Close())
}

func (d *DiscordSession) Me() User {
	if d.s.State == nil {
		return User{}
	}
	d.s.State.RLock()
	defer d.s.State.RUnlock()
	if d.s.State.User == nil {
		return User{}
	}
	return convertUser(d.s.State.User)
}

func (d *DiscordSession) Guilds() []Guild {
	d.s.State.RLock()
	defer d.s.State.RUnlock()
	out := make([]Guild, 0, len(d.s.State.Guilds))
	for _, g := range d.s.State.Guilds {
		out = append(out, Guild{ID: g.ID, Name: g.Name})
	}
	return out
}

func (d *DiscordSession) PrivateChannels() []Channel {
	d.s.State.RLock()
	defer d.s.State.RUnlock()
	out := make([]Channel, 0, len(d.s.State.PrivateChannels))
	for _, c := range d.s.State.PrivateChannels {
		out = append(out, convertChannel(c))
	}
	return out
}

func (d *DiscordSession) Guild(ctx context.Context, id string) (Guild, error) {
	if g, err := d.s.State.Guild(id); err == nil {
		return Guild{ID: g.ID, Name: g.Name}, nil
	}
	g, err := d.s.Guild(id, discordgo.WithContext(ctx))
	if err != nil {
		return Guild{}, wrap("guild "+id, notFound(err))
	}
	return Guild{ID: g.ID, Name: g.Name}, nil
}

func (d *DiscordSession) Channel(ctx context.Context, id string) (Channel, error) {
	if c, err := d.s.State.Channel(id); err == nil {
		return convertChannel(c), nil
	}
	c, err := d.s.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return Channel{}, wrap("channel "+id, notFound(err))
	}
	return convertChannel(c), nil
}

func (d *DiscordSession) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var raw []*discordgo.Channel
	if g, err := d.s.State.Guild(guildID); err == nil && len(g.Channels) > 0 {
		raw = g.Channels
	} else {
		raw, err = d.s.GuildChannels(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap("guild channels", notFound(err))
		}
	}

	sorted := make([]*discordgo.Channel, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	out := make([]Channel, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, convertChannel(c))
	}
	return out, nil
}

func (d *DiscordSession) Members(ctx context.Context, guildID string) ([]Member, error) {
	var out []Member
	after := ""
	for {
		page, err := d.s.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap("guild members", err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			out = append(out, Member{User: convertUser(m.User), Nick: m.Nick, Roles: m.Roles})
			after = m.User.ID
		}
		if len(page) < memberPageSize {
			return out, nil
		}
	}
}

func (d *DiscordSession) Roles(ctx context.Context, guildID string) ([]Role, error) {
	roles, err := d.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("guild roles", err)
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (d *DiscordSession) LeaveGuild(ctx context.Context, guildID string) error {
	return wrap("leave guild", d.s.GuildLeave(guildID, discordgo.WithContext(ctx)))
}

func (d *DiscordSession) Messages(ctx context.Context, channelID string, limit int, after string) ([]Message, error) {
	msgs, err := d.s.ChannelMessages(channelID, limit, "", after, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("channel messages", err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == nil {
			continue
		}
		out = append(out, d.convertMessage(m))
	}
	return out, nil
}

func (d *DiscordSession) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	m, err := d.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, wrap("send message", err)
	}
	return d.convertMessage(m), nil
}

func (d *DiscordSession) EditMessage(ctx context.Context, channelID, messageID, content string) (Message, error) {
	m, err := d.s.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, wrap("edit message", err)
	}
	return d.convertMessage(m), nil
}

// convertMessage resolves the author's nickname from the message payload, then
// from cached guild state.
func (d *DiscordSession) convertMessage(m *discordgo.Message) Message {
	out := Message{
		ID:              m.ID,
		ChannelID:       m.ChannelID,
		GuildID:         m.GuildID,
		Content:         m.Content,
		Timestamp:       m.Timestamp,
		MentionRoles:    m.MentionRoles,
		MentionEveryone: m.MentionEveryone,
	}
	if m.Author != nil {
		out.Author = convertUser(m.Author)
	}
	for _, u := range m.Mentions {
		out.Mentions = append(out.Mentions, u.ID)
	}
	switch {
	case m.Member != nil:
		out.AuthorNick = m.Member.Nick
	case m.GuildID != "" && m.Author != nil:
		if member, err := d.s.State.Member(m.GuildID, m.Author.ID); err == nil {
			out.AuthorNick = member.Nick
		}
	}
	return out
}

func convertUser(u *discordgo.User) User {
	return User{ID: u.ID, Username: u.Username}
}

func convertChannel(c *discordgo.Channel) Channel {
	out := Channel{ID: c.ID, GuildID: c.GuildID, Name: c.Name}
	switch c.Type {
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildCategory, discordgo.ChannelTypeGuildStageVoice:
		out.Text = false
	default:
		out.Text = true
	}
	for _, u := range c.Recipients {
		out.Recipients = append(out.Recipients, convertUser(u))
	}
	return out
}

func notFound(err error) error {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
