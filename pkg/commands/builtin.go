package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minhyannv/discord-cli-go/pkg/alias"
	"github.com/minhyannv/discord-cli-go/pkg/lastread"
	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
)

const (
	unreadLimit    = 100
	mentionsWindow = 24 * time.Hour
)

// NewBuiltin returns a dispatcher with every REPL command registered.
func NewBuiltin() *Dispatcher {
	d := NewDispatcher()
	for _, cmd := range []Command{
		{Name: "list", Usage: "list [channel]", Summary: "Show the latest messages", MaxArgs: 1, Run: listCommand},
		{Name: "unread", Usage: "unread [channel]", Summary: "Show messages since the last /read", MaxArgs: 1, Run: unreadCommand},
		{Name: "read", Usage: "read", Summary: "Mark everything as read", Run: readCommand},
		{Name: "guilds", Usage: "guilds", Summary: "List guilds", Run: guildsCommand},
		{Name: "guild", Usage: "guild [id]", Summary: "Show or set the current guild", MaxArgs: 1, Run: guildCommand},
		{Name: "leave", Usage: "leave <guild>", Summary: "Leave a guild", MinArgs: 1, MaxArgs: 1, Run: leaveCommand},
		{Name: "channels", Usage: "channels [guild]", Summary: "List channels of a guild", MaxArgs: 1, Run: channelsCommand},
		{Name: "channel", Usage: "channel [id]", Summary: "Show or set the current channel", MaxArgs: 1, Run: channelCommand},
		{Name: "message", Usage: "message <channel> <words...>", Summary: "Send a message to a channel", MinArgs: 2, MaxArgs: Variadic, Run: messageCommand},
		{Name: "edit", Usage: "edit <channel> <message-id> <new words...>", Summary: "Edit one of your messages", MinArgs: 3, MaxArgs: Variadic, Run: editCommand},
		{Name: "members", Usage: "members <guild> [-r role]", Summary: "List members, optionally with a role", MinArgs: 1, MaxArgs: 3, Run: membersCommand},
		{Name: "roles", Usage: "roles <guild>", Summary: "List roles of a guild", MinArgs: 1, MaxArgs: 1, Run: rolesCommand},
		{Name: "mentions", Usage: "mentions [guild]", Summary: "Messages from the last day that mention you", MaxArgs: 1, Run: mentionsCommand},
		{Name: "user", Usage: "user <index>", Summary: "Switch the active session", MinArgs: 1, MaxArgs: 1, Run: userCommand},
		{Name: "users", Usage: "users", Summary: "List logged-in sessions", Run: usersCommand},
		{Name: "me", Usage: "me", Summary: "Show the active session's user", Run: meCommand},
		{Name: "privates", Usage: "privates", Summary: "List private channels", Run: privatesCommand},
		{Name: "alias", Usage: "alias <type> <name> <value>", Summary: "Add an alias (server, channel, user, role)", MinArgs: 3, MaxArgs: 3, Run: aliasCommand},
		{Name: "aliases", Usage: "aliases [type]", Summary: "List aliases", MaxArgs: 1, Run: aliasesCommand},
		{Name: "summary", Usage: "summary [channel]", Summary: "Summarize the latest messages", MaxArgs: 1, Run: summaryCommand},
	} {
		d.Register(cmd)
	}
	d.Register(Command{
		Name:    "help",
		Usage:   "help",
		Summary: "Show this help message",
		Run: func(sc *Context, _ platform.Session, _ []string) error {
			printHelp(sc, d)
			return nil
		},
	})
	return d
}

func printHelp(sc *Context, d *Dispatcher) {
	sc.println("Commands:")
	for _, cmd := range d.Commands() {
		sc.printf("  /%-42s %s\n", cmd.Usage, cmd.Summary)
	}
	sc.printf("  /%-42s %s\n", "exit", "Log out every session and quit")
	sc.println("Anything else is sent to the current channel. @user, &role and #channel expand to mentions.")
}

func (sc *Context) guildArg(s platform.Session, args []string, i int) (platform.Guild, error) {
	if len(args) > i {
		return s.Guild(sc.ctx(), sc.Aliases.Resolve(args[i], alias.Server))
	}
	if sc.Cursor.Guild == nil {
		return platform.Guild{}, ErrNoGuild
	}
	return *sc.Cursor.Guild, nil
}

func (sc *Context) channelArg(s platform.Session, args []string, i int) (platform.Channel, error) {
	if len(args) > i {
		return s.Channel(sc.ctx(), sc.Aliases.Resolve(args[i], alias.Channel))
	}
	if sc.Cursor.Channel == nil {
		return platform.Channel{}, ErrNoChannel
	}
	return *sc.Cursor.Channel, nil
}

// chronological turns newest-first API results oldest-first.
func chronological(msgs []platform.Message) []platform.Message {
	out := make([]platform.Message, len(msgs))
	copy(out, msgs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	for _, m := range out {
		if m.Timestamp.IsZero() {
			return out
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (sc *Context) history(s platform.Session, ch platform.Channel) ([]platform.Message, error) {
	limit := sc.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	msgs, err := s.Messages(sc.ctx(), ch.ID, limit, "")
	if err != nil {
		return nil, err
	}
	return chronological(msgs), nil
}

func listCommand(sc *Context, s platform.Session, args []string) error {
	ch, err := sc.channelArg(s, args, 0)
	if err != nil {
		return err
	}
	msgs, err := sc.history(s, ch)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		PrintMessage(sc.Out, m)
	}
	return nil
}

func unreadCommand(sc *Context, s platform.Session, args []string) error {
	ch, err := sc.channelArg(s, args, 0)
	if err != nil {
		return err
	}
	since, err := lastread.Load(sc.LastReadPath)
	if err != nil {
		return err
	}
	after := ""
	if !since.IsZero() {
		after = platform.SnowflakeAt(since)
	}
	msgs, err := s.Messages(sc.ctx(), ch.ID, unreadLimit, after)
	if err != nil {
		return err
	}

	me := s.Me().ID
	shown := 0
	for _, m := range chronological(msgs) {
		if m.Author.ID == me {
			continue
		}
		PrintMessage(sc.Out, m)
		shown++
	}
	if shown == 0 {
		sc.println("No unread messages.")
	}
	return nil
}

func readCommand(sc *Context, _ platform.Session, _ []string) error {
	return lastread.Mark(sc.LastReadPath, sc.now())
}

func guildsCommand(sc *Context, s platform.Session, _ []string) error {
	for _, g := range s.Guilds() {
		sc.println(platform.Describe(g.ID, g.Name))
	}
	return nil
}

func guildCommand(sc *Context, s platform.Session, args []string) error {
	if len(args) == 0 {
		if sc.Cursor.Guild == nil {
			sc.println("No guild selected.")
			return nil
		}
		sc.println(platform.Describe(sc.Cursor.Guild.ID, sc.Cursor.Guild.Name))
		return nil
	}
	g, err := sc.guildArg(s, args, 0)
	if err != nil {
		return err
	}
	sc.Cursor.Guild = &g
	return nil
}

func leaveCommand(sc *Context, s platform.Session, args []string) error {
	g, err := sc.guildArg(s, args, 0)
	if err != nil {
		return err
	}
	if err := s.LeaveGuild(sc.ctx(), g.ID); err != nil {
		return err
	}
	if sc.Cursor.Guild != nil && sc.Cursor.Guild.ID == g.ID {
		sc.Cursor.Guild = nil
	}
	if sc.Cursor.Channel != nil && sc.Cursor.Channel.GuildID == g.ID {
		sc.Cursor.Channel = nil
	}
	sc.printf("Left %s.\n", g.Name)
	return nil
}

func channelsCommand(sc *Context, s platform.Session, args []string) error {
	g, err := sc.guildArg(s, args, 0)
	if err != nil {
		return err
	}
	channels, err := s.GuildChannels(sc.ctx(), g.ID)
	if err != nil {
		return err
	}
	for _, c := range channels {
		sc.println(platform.Describe(c.ID, c.Name))
	}
	return nil
}

func channelCommand(sc *Context, s platform.Session, args []string) error {
	if len(args) == 0 {
		if sc.Cursor.Channel == nil {
			sc.println("No channel selected.")
			return nil
		}
		sc.println(platform.Describe(sc.Cursor.Channel.ID, sc.Cursor.Channel.Name))
		return nil
	}
	ch, err := sc.channelArg(s, args, 0)
	if err != nil {
		return err
	}
	sc.Cursor.Channel = &ch
	return nil
}

func messageCommand(sc *Context, s platform.Session, args []string) error {
	ch, err := sc.channelArg(s, args, 0)
	if err != nil {
		return err
	}
	_, err = s.SendMessage(sc.ctx(), ch.ID, FormatMessage(sc.Aliases, strings.Join(args[1:], " ")))
	return err
}

func editCommand(sc *Context, s platform.Session, args []string) error {
	channelID := sc.Aliases.Resolve(args[0], alias.Channel)
	_, err := s.EditMessage(sc.ctx(), channelID, args[1], FormatMessage(sc.Aliases, strings.Join(args[2:], " ")))
	return err
}

func membersCommand(sc *Context, s platform.Session, args []string) error {
	g, err := sc.guildArg(s, args, 0)
	if err != nil {
		return err
	}
	roleID := ""
	if rest := args[1:]; len(rest) > 0 {
		if len(rest) != 2 || rest[0] != "-r" {
			return fmt.Errorf("%w: /members <guild> [-r role]", ErrUsage)
		}
		roleID = sc.Aliases.Resolve(rest[1], alias.Role)
	}

	members, err := s.Members(sc.ctx(), g.ID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if roleID != "" && !m.HasRole(roleID) {
			continue
		}
		sc.printf("%s - %s\n", m.User.Mention(), m.DisplayName())
	}
	return nil
}

func rolesCommand(sc *Context, s platform.Session, args []string) error {
	g, err := sc.guildArg(s, args, 0)
	if err != nil {
		return err
	}
	roles, err := s.Roles(sc.ctx(), g.ID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		sc.println(platform.Describe(r.ID, r.Name))
	}
	return nil
}

// mentionsCommand scans the guild's text channels for recent messages that
// mention the active user. Channels the user cannot read are skipped.
func mentionsCommand(sc *Context, s platform.Session, args []string) error {
	g, err := sc.guildArg(s, args, 0)
	if err != nil {
		return err
	}
	channels, err := s.GuildChannels(sc.ctx(), g.ID)
	if err != nil {
		return err
	}

	me := s.Me().ID
	roles := sc.memberRoles(s, g.ID, me)
	after := platform.SnowflakeAt(sc.now().Add(-mentionsWindow))
	found := 0
	for _, c := range channels {
		if !c.Text {
			continue
		}
		msgs, err := s.Messages(sc.ctx(), c.ID, unreadLimit, after)
		if err != nil {
			loggerpkg.Debug(sc.Verbose, sc.Logger, "mentions: channel skipped", map[string]any{
				"channel": c.ID,
				"error":   err.Error(),
			})
			continue
		}
		for _, m := range chronological(msgs) {
			if m.Author.ID == me || !m.MentionsUser(me, roles...) {
				continue
			}
			sc.printf("%s - %s - %s: %s\n", g.Name, c.Name, nameColor.Sprint(m.DisplayName()), m.Content)
			found++
		}
	}
	if found == 0 {
		sc.println("No mentions in the last day.")
	}
	return nil
}

// memberRoles returns the roles userID holds in the guild. Role pings are
// ignored when the member list cannot be read.
func (sc *Context) memberRoles(s platform.Session, guildID, userID string) []string {
	members, err := s.Members(sc.ctx(), guildID)
	if err != nil {
		loggerpkg.Debug(sc.Verbose, sc.Logger, "mentions: member list unavailable", map[string]any{
			"guild": guildID,
			"error": err.Error(),
		})
		return nil
	}
	for _, m := range members {
		if m.User.ID == userID {
			return m.Roles
		}
	}
	return nil
}

func userCommand(sc *Context, _ platform.Session, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: /user <index>: %q is not a number", ErrUsage, args[0])
	}
	if err := sc.Sessions.Switch(index); err != nil {
		return err
	}
	sc.printf("Active session: %d: %s\n", index, sc.Sessions.Active().Me().Username)
	return nil
}

func usersCommand(sc *Context, _ platform.Session, _ []string) error {
	for i, s := range sc.Sessions.Sessions() {
		sc.printf("%d: %s\n", i, s.Me().Username)
	}
	return nil
}

func meCommand(sc *Context, s platform.Session, _ []string) error {
	sc.println(s.Me().Username)
	return nil
}

func privatesCommand(sc *Context, s platform.Session, _ []string) error {
	for _, c := range s.PrivateChannels() {
		names := make([]string, 0, len(c.Recipients))
		for _, u := range c.Recipients {
			names = append(names, u.Username)
		}
		sc.printf("%s - [%s]\n", c.ID, strings.Join(names, ", "))
	}
	return nil
}

func aliasCommand(sc *Context, _ platform.Session, args []string) error {
	category, err := alias.ParseCategory(args[0])
	if err != nil {
		return err
	}
	name, value := args[1], args[2]
	if sc.Aliases.Shadowed(category, name) {
		sc.printf("Warning: %s alias %q already exists; the earlier entry still wins.\n", category, name)
	}
	if err := sc.Aliases.Add(category, name, value); err != nil {
		return err
	}
	loggerpkg.Debug(sc.Verbose, sc.Logger, "alias saved", map[string]any{
		"category": string(category),
		"name":     name,
		"file":     sc.Aliases.Path(),
	})
	return nil
}

func aliasesCommand(sc *Context, _ platform.Session, args []string) error {
	categories := alias.Categories
	if len(args) == 1 {
		c, err := alias.ParseCategory(args[0])
		if err != nil {
			return err
		}
		categories = []alias.Category{c}
	}
	for _, c := range categories {
		for _, e := range sc.Aliases.Entries(c) {
			sc.printf("%s %s -> %s\n", c, e.Name, e.Value)
		}
	}
	return nil
}

func summaryCommand(sc *Context, s platform.Session, args []string) error {
	if sc.Summarizer == nil {
		return errors.New("summaries are disabled: set OPENAI_API_KEY and OPENAI_MODEL")
	}
	ch, err := sc.channelArg(s, args, 0)
	if err != nil {
		return err
	}
	msgs, err := sc.history(s, ch)
	if err != nil {
		return err
	}
	text, err := sc.Summarizer.Summarize(sc.ctx(), ch.Name, msgs)
	if err != nil {
		return err
	}
	sc.println(text)
	return nil
}
