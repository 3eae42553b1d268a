// Package platform is the boundary between the REPL and the chat platform SDK.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned when a guild or channel is not visible to the session.
var ErrNotFound = errors.New("not found")

// Error wraps any failure surfaced by the platform SDK.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "discord: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

type User struct {
	ID       string
	Username string
}

// Mention renders the user in platform mention syntax.
func (u User) Mention() string { return "<@" + u.ID + ">" }

type Member struct {
	User  User
	Nick  string
	Roles []string
}

// DisplayName prefers the guild nickname over the global username.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

// HasRole reports whether the member carries the role id.
func (m Member) HasRole(id string) bool {
	for _, r := range m.Roles {
		if r == id {
			return true
		}
	}
	return false
}

type Role struct {
	ID   string
	Name string
}

type Guild struct {
	ID   string
	Name string
}

type Channel struct {
	ID      string
	GuildID string
	Name    string
	// Text is false for voice channels and categories.
	Text       bool
	Recipients []User
}

type Message struct {
	ID              string
	ChannelID       string
	GuildID         string
	Author          User
	AuthorNick      string
	Content         string
	Timestamp       time.Time
	Mentions        []string
	MentionRoles    []string
	MentionEveryone bool
}

// DisplayName prefers the author's guild nickname over the global username.
func (m Message) DisplayName() string {
	if m.AuthorNick != "" {
		return m.AuthorNick
	}
	return m.Author.Username
}

// MentionsUser reports whether the message pings the user directly, through
// one of roleIDs, or via @everyone.
func (m Message) MentionsUser(userID string, roleIDs ...string) bool {
	if m.MentionEveryone {
		return true
	}
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	for _, id := range m.MentionRoles {
		for _, r := range roleIDs {
			if id == r {
				return true
			}
		}
	}
	return false
}

type EventKind int

const (
	EventReady EventKind = iota
	EventMessage
)

// Event is a push notification delivered by a session.
type Event struct {
	Kind    EventKind
	Message Message
}

// EventHandler receives events from SDK goroutines and must not block for long.
type EventHandler func(Event)

// Session is one authenticated connection to the platform.
type Session interface {
	// Open connects the session and starts delivering events to handler.
	Open(handler EventHandler) error
	Close() error

	Me() User
	Guilds() []Guild
	PrivateChannels() []Channel

	Guild(ctx context.Context, id string) (Guild, error)
	Channel(ctx context.Context, id string) (Channel, error)
	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	Members(ctx context.Context, guildID string) ([]Member, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	LeaveGuild(ctx context.Context, guildID string) error

	// Messages returns up to limit messages newest first. A non-empty after
	// restricts the result to messages with a larger snowflake.
	Messages(ctx context.Context, channelID string, limit int, after string) ([]Message, error)
	SendMessage(ctx context.Context, channelID, content string) (Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) (Message, error)
}

// Dialer creates an unopened session for a token.
type Dialer func(token string, bot bool) (Session, error)

const discordEpochMs = 1420070400000

// SnowflakeAt returns the smallest snowflake id created at or after t, for use
// as an "after" cursor.
func SnowflakeAt(t time.Time) string {
	ms := t.UnixMilli() - discordEpochMs
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms<<22, 10)
}

// Describe renders a guild or channel for the guild/channel commands.
func Describe(id, name string) string {
	return fmt.Sprintf("%s - %s", id, name)
}
