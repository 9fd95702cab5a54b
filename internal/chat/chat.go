// Package chat relays user text to an OpenAI chat model, keeping a short
// per-user conversation in a memory.Store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"telegram-cipher-bot/internal/logging"
	"telegram-cipher-bot/internal/memory"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gpt-4o-mini"

var (
	ErrUnauthorized  = errors.New("chat: API key rejected")
	ErrRateLimited   = errors.New("chat: rate limited")
	ErrUpstream      = errors.New("chat: upstream request failed")
	ErrEmptyResponse = errors.New("chat: empty response")
	ErrHistory       = errors.New("chat: conversation history unavailable")
)

// Options configures a Service.
type Options struct {
	APIKey       string
	Model        string
	SystemPrompt string
	// HistoryLimit is the number of messages kept per user. Zero disables
	// memory entirely.
	HistoryLimit int
}

// Service is safe for concurrent use as long as its Store is.
type Service struct {
	opts   Options
	store  memory.Store
	client *openai.Client
}

var newOpenAIClient = func(apiKey string) *openai.Client {
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &c
}

var chatCompletion = func(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// New returns a Service that remembers conversations in store.
func New(opts Options, store memory.Store) *Service {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Service{opts: opts, store: store, client: newOpenAIClient(opts.APIKey)}
}

// Reply sends text on behalf of userID and returns the model's answer.
func (s *Service) Reply(ctx context.Context, userID int64, text string) (string, error) {
	log := logging.Ctx(ctx)

	var hist []memory.Message
	if s.opts.HistoryLimit > 0 {
		var err error
		hist, err = s.store.Get(userID)
		if err != nil {
			log.Error().Err(err).Msg("load history")
			return "", fmt.Errorf("%w: %v", ErrHistory, err)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.opts.Model),
		Messages: buildMessages(s.opts.SystemPrompt, hist, text),
	}
	log.Info().Str("event", "chat_request").Str("model", s.opts.Model).Int("history", len(hist)).Str("snippet", logging.Snippet(text, 30)).Msg("sending to model")
	reply, err := chatCompletion(ctx, s.client, params)
	if err != nil {
		log.Error().Err(err).Msg("chat request failed")
		return "", classify(err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	log.Info().Str("event", "chat_response").Str("snippet", logging.Snippet(reply, 30)).Msg("received from model")

	if s.opts.HistoryLimit > 0 {
		now := time.Now().Unix()
		if err := s.remember(userID, now, text, reply); err != nil {
			// the reply is still returned
			log.Warn().Err(err).Msg("save history")
		}
	}
	return reply, nil
}

// Forget clears the user's conversation and returns how many messages it held.
func (s *Service) Forget(userID int64) (int, error) {
	n, err := s.store.Clear(userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHistory, err)
	}
	return n, nil
}

func (s *Service) remember(userID, when int64, question, answer string) error {
	if err := s.store.Append(userID, memory.Message{Role: memory.RoleUser, Content: question, When: when}); err != nil {
		return err
	}
	if err := s.store.Append(userID, memory.Message{Role: memory.RoleAssistant, Content: answer, When: when}); err != nil {
		return err
	}
	return s.store.Trim(userID, s.opts.HistoryLimit)
}

func buildMessages(system string, hist []memory.Message, text string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(hist)+2)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, m := range hist {
		switch m.Role {
		case memory.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return append(msgs, openai.UserMessage(text))
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
