package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/minhyannv/discord-cli-go/pkg/alias"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
)

var nameColor = color.New(color.FgCyan, color.Bold)

// FormatWord rewrites @user, &role and #channel tokens into mention syntax,
// resolving the name through the alias store. Other words are unchanged.
func FormatWord(aliases *alias.Store, word string) string {
	if len(word) < 2 {
		return word
	}
	name := word[1:]
	switch word[0] {
	case '@':
		return "<@" + aliases.Resolve(name, alias.User) + ">"
	case '&':
		return "<@&" + aliases.Resolve(name, alias.Role) + ">"
	case '#':
		return "<#" + aliases.Resolve(name, alias.Channel) + ">"
	}
	return word
}

// FormatMessage applies FormatWord to every space-separated word.
func FormatMessage(aliases *alias.Store, message string) string {
	words := strings.Split(message, " ")
	for i, w := range words {
		words[i] = FormatWord(aliases, w)
	}
	return strings.Join(words, " ")
}

// PrintMessage writes "<display-name>: <content>".
func PrintMessage(out io.Writer, m platform.Message) {
	_, _ = fmt.Fprintf(out, "%s: %s\n", nameColor.Sprint(m.DisplayName()), m.Content)
}

// SendToCursor formats text and sends it to the current channel.
func SendToCursor(sc *Context, s platform.Session, text string) error {
	if sc.Cursor.Channel == nil {
		return ErrNoChannel
	}
	_, err := s.SendMessage(sc.ctx(), sc.Cursor.Channel.ID, FormatMessage(sc.Aliases, text))
	return err
}
