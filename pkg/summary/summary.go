// Package summary condenses channel history with an OpenAI-compatible model.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	configpkg "github.com/minhyannv/discord-cli-go/pkg/config"
	loggerpkg "github.com/minhyannv/discord-cli-go/pkg/logger"
	"github.com/minhyannv/discord-cli-go/pkg/platform"
)

const systemPrompt = `You summarize chat channel history for someone catching up.
Reply with a few short lines of plain text. Name who said what when it matters.
Do not invent messages that are not in the transcript.`

// Summarizer holds the model client.
type Summarizer struct {
	client  openai.Client
	model   string
	logger  loggerpkg.Logger
	verbose bool
}

// Option configures optional runtime dependencies for Summarizer.
type Option func(*deps)

type deps struct {
	logger loggerpkg.Logger
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(d *deps) {
		d.logger = l
	}
}

// New builds a Summarizer from the OpenAI settings in cfg.
func New(cfg configpkg.Config, opts ...Option) (*Summarizer, error) {
	cfg = configpkg.Normalize(cfg)
	d := deps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("OPENAI_MODEL is not set")
	}
	loggerpkg.Debug(cfg.Verbose, d.logger, "summarizer init", map[string]any{
		"model":    cfg.Model,
		"base_url": cfg.BaseURL,
	})
	return &Summarizer{
		client:  newOpenAIClient(cfg),
		model:   cfg.Model,
		logger:  d.logger,
		verbose: cfg.Verbose,
	}, nil
}

func newOpenAIClient(cfg configpkg.Config) openai.Client {
	opts := []option.RequestOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return openai.NewClient(opts...)
}

// Summarize sends messages (chronological order) to the model and returns its reply.
func (s *Summarizer) Summarize(ctx context.Context, channelName string, messages []platform.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("nothing to summarize")
	}
	transcript := Transcript(channelName, messages)
	loggerpkg.Debug(s.verbose, s.logger, "summary request", map[string]any{
		"messages": len(messages),
		"bytes":    len(transcript),
	})

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("summarize: empty completion choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Transcript renders messages as the user message sent to the model.
func Transcript(channelName string, messages []platform.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel #%s\n\n", channelName)
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.UTC().Format("2006-01-02 15:04"), m.DisplayName(), m.Content)
	}
	return b.String()
}
