// Package platformtest provides an in-memory platform.Session for tests.
package platformtest

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/minhyannv/discord-cli-go/pkg/platform"
)

// Edit records one EditMessage call.
type Edit struct {
	ChannelID string
	MessageID string
	Content   string
}

// Session is a scripted session. Exported fields are read by the methods and
// may be set before Open. Recorded calls are guarded by the embedded mutex.
type Session struct {
	sync.Mutex

	User         platform.User
	GuildList    []platform.Guild
	ChannelsByID map[string]platform.Channel
	// ChannelOrder lists channel ids per guild.
	ChannelOrder map[string][]string
	MemberList   map[string][]platform.Member
	RoleList     map[string][]platform.Role
	Privates     []platform.Channel
	// History holds messages per channel in chronological order.
	History map[string][]platform.Message

	OpenErr  error
	CloseErr error
	SendErr  error

	handler platform.EventHandler
	nextID  int

	Opened int
	Closed int
	Sent   []platform.Message
	Edits  []Edit
	Left   []string
}

// New returns a fake session for the given user.
func New(id, username string) *Session {
	return &Session{
		User:         platform.User{ID: id, Username: username},
		ChannelsByID: map[string]platform.Channel{},
		ChannelOrder: map[string][]string{},
		MemberList:   map[string][]platform.Member{},
		RoleList:     map[string][]platform.Role{},
		History:      map[string][]platform.Message{},
		nextID:       1000,
	}
}

// AddGuild registers a guild and its channels in listing order.
func (f *Session) AddGuild(g platform.Guild, channels ...platform.Channel) {
	f.GuildList = append(f.GuildList, g)
	for _, c := range channels {
		c.GuildID = g.ID
		f.ChannelsByID[c.ID] = c
		f.ChannelOrder[g.ID] = append(f.ChannelOrder[g.ID], c.ID)
	}
}

// Emit delivers an event as the SDK would.
func (f *Session) Emit(ev platform.Event) {
	f.Lock()
	h := f.handler
	f.Unlock()
	if h != nil {
		h(ev)
	}
}

// CloseCount returns how many times Close was called.
func (f *Session) CloseCount() int {
	f.Lock()
	defer f.Unlock()
	return f.Closed
}

// SentMessages returns a copy of messages sent through the session.
func (f *Session) SentMessages() []platform.Message {
	f.Lock()
	defer f.Unlock()
	out := make([]platform.Message, len(f.Sent))
	copy(out, f.Sent)
	return out
}

func (f *Session) Open(handler platform.EventHandler) error {
	f.Lock()
	defer f.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.handler = handler
	f.Opened++
	return nil
}

func (f *Session) Close() error {
	f.Lock()
	defer f.Unlock()
	f.Closed++
	f.handler = nil
	return f.CloseErr
}

func (f *Session) Me() platform.User { return f.User }

func (f *Session) Guilds() []platform.Guild {
	return append([]platform.Guild(nil), f.GuildList...)
}

func (f *Session) PrivateChannels() []platform.Channel { return f.Privates }

func (f *Session) Guild(_ context.Context, id string) (platform.Guild, error) {
	for _, g := range f.GuildList {
		if g.ID == id {
			return g, nil
		}
	}
	return platform.Guild{}, notFound("guild " + id)
}

func (f *Session) Channel(_ context.Context, id string) (platform.Channel, error) {
	c, ok := f.ChannelsByID[id]
	if !ok {
		for _, p := range f.Privates {
			if p.ID == id {
				return p, nil
			}
		}
		return platform.Channel{}, notFound("channel " + id)
	}
	return c, nil
}

func (f *Session) GuildChannels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	if _, err := f.Guild(ctx, guildID); err != nil {
		return nil, err
	}
	out := make([]platform.Channel, 0, len(f.ChannelOrder[guildID]))
	for _, id := range f.ChannelOrder[guildID] {
		out = append(out, f.ChannelsByID[id])
	}
	return out, nil
}

func (f *Session) Members(ctx context.Context, guildID string) ([]platform.Member, error) {
	if _, err := f.Guild(ctx, guildID); err != nil {
		return nil, err
	}
	return f.MemberList[guildID], nil
}

func (f *Session) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	if _, err := f.Guild(ctx, guildID); err != nil {
		return nil, err
	}
	return f.RoleList[guildID], nil
}

func (f *Session) LeaveGuild(ctx context.Context, guildID string) error {
	if _, err := f.Guild(ctx, guildID); err != nil {
		return err
	}
	f.Lock()
	defer f.Unlock()
	f.Left = append(f.Left, guildID)
	kept := f.GuildList[:0]
	for _, g := range f.GuildList {
		if g.ID != guildID {
			kept = append(kept, g)
		}
	}
	f.GuildList = kept
	return nil
}

// Messages mimics the API: newest first, at most limit, optional after cursor
// compared numerically against message ids.
func (f *Session) Messages(ctx context.Context, channelID string, limit int, after string) ([]platform.Message, error) {
	if _, err := f.Channel(ctx, channelID); err != nil {
		return nil, err
	}
	history := f.History[channelID]
	var afterID uint64
	if after != "" {
		afterID, _ = strconv.ParseUint(after, 10, 64)
	}

	var out []platform.Message
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		id, _ := strconv.ParseUint(history[i].ID, 10, 64)
		if after != "" && id <= afterID {
			continue
		}
		out = append(out, history[i])
	}
	return out, nil
}

func (f *Session) SendMessage(ctx context.Context, channelID, content string) (platform.Message, error) {
	if f.SendErr != nil {
		return platform.Message{}, &platform.Error{Op: "send message", Err: f.SendErr}
	}
	c, err := f.Channel(ctx, channelID)
	if err != nil {
		return platform.Message{}, err
	}
	f.Lock()
	defer f.Unlock()
	f.nextID++
	m := platform.Message{
		ID:        strconv.Itoa(f.nextID),
		ChannelID: channelID,
		GuildID:   c.GuildID,
		Author:    f.User,
		Content:   content,
		Timestamp: time.Now(),
	}
	f.Sent = append(f.Sent, m)
	return m, nil
}

func (f *Session) EditMessage(_ context.Context, channelID, messageID, content string) (platform.Message, error) {
	f.Lock()
	defer f.Unlock()
	f.Edits = append(f.Edits, Edit{ChannelID: channelID, MessageID: messageID, Content: content})
	return platform.Message{ID: messageID, ChannelID: channelID, Author: f.User, Content: content}, nil
}

// AddHistory appends messages to a channel, keeping chronological order by id.
func (f *Session) AddHistory(channelID string, msgs ...platform.Message) {
	for i := range msgs {
		msgs[i].ChannelID = channelID
	}
	h := append(f.History[channelID], msgs...)
	sort.SliceStable(h, func(i, j int) bool {
		a, _ := strconv.ParseUint(h[i].ID, 10, 64)
		b, _ := strconv.ParseUint(h[j].ID, 10, 64)
		return a < b
	})
	f.History[channelID] = h
}

func notFound(what string) error {
	return &platform.Error{Op: what, Err: platform.ErrNotFound}
}

var _ platform.Session = (*Session)(nil)

// ErrBoom is a generic failure for error-path tests.
var ErrBoom = errors.New("boom")
