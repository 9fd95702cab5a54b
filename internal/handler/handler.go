package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telegram-cipher-bot/internal/chat"
	"telegram-cipher-bot/internal/command"
	"telegram-cipher-bot/internal/crypt"
	"telegram-cipher-bot/internal/logging"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

const errTooLong = "❌ Error: the message is too long to encrypt into a single reply."

// Sender is the part of *bot.Bot the handler needs.
type Sender interface {
	SendMessage(ctx context.Context, params *tg.SendMessageParams) (*models.Message, error)
}

// Chatter answers free text. *chat.Service implements it.
type Chatter interface {
	Reply(ctx context.Context, userID int64, text string) (string, error)
	Forget(userID int64) (int, error)
}

// Options configures a Handler.
type Options struct {
	// AllowedUsers restricts the bot to these ids. Empty allows everyone.
	AllowedUsers map[int64]bool
	// Chat is nil when no AI backend is configured.
	Chat Chatter
}

// Handler routes Telegram updates to the cipher commands and the chat relay.
type Handler struct {
	allowed map[int64]bool
	chat    Chatter
}

// New returns a Handler.
func New(opts Options) *Handler {
	return &Handler{allowed: opts.AllowedUsers, chat: opts.Chat}
}

// HandleUpdate processes a Telegram update. It never panics on bad input and
// reports every failure back to the chat.
func (h *Handler) HandleUpdate(ctx context.Context, b Sender, upd *models.Update) {
	if upd.Message == nil || upd.Message.Text == "" {
		return
	}
	ctx = logging.Context(ctx)
	msg := upd.Message
	chatID := msg.Chat.ID
	if msg.From != nil {
		ctx = logging.WithUser(ctx, msg.From.ID)
	}
	log := logging.Ctx(ctx)

	if len(h.allowed) > 0 {
		if msg.From == nil || !h.allowed[msg.From.ID] {
			log.Info().Str("event", "access_denied").Int64("chat_id", chatID).Msg("user not allowed")
			h.send(ctx, b, msg, "This bot is configured to work only with specific users in Telegram. But the bot source is open so that you can setup your own bot.")
			return
		}
	}

	cmd, args, ok := parseCommand(msg)
	if !ok {
		log.Info().Str("event", "telegram_request").Int64("chat_id", chatID).Str("snippet", logging.Snippet(msg.Text, 30)).Msg("incoming message")
		h.handleChat(ctx, b, msg)
		return
	}
	log.Info().Str("event", "telegram_command").Int64("chat_id", chatID).Str("command", cmd).Msg("incoming command")

	switch cmd {
	case "encrypt":
		out, err := command.Encrypt(strings.Fields(args))
		h.logCipher(ctx, cmd, err)
		reply := command.Reply(cmd, out, err)
		// a split envelope can't be pasted back into one /decrypt
		if utf8.RuneCountInString(reply) > maxMessageLen {
			log.Info().Str("event", cmd).Int("reply_len", utf8.RuneCountInString(reply)).Msg("envelope too long for one message")
			reply = errTooLong
		}
		h.send(ctx, b, msg, reply)

	case "decrypt":
		out, err := command.Decrypt(strings.Fields(args))
		h.logCipher(ctx, cmd, err)
		h.send(ctx, b, msg, command.Reply(cmd, out, err))

	case "reset":
		if h.chat == nil || msg.From == nil {
			h.send(ctx, b, msg, "Nothing to forget.")
			return
		}
		n, err := h.chat.Forget(msg.From.ID)
		if err != nil {
			log.Error().Err(err).Msg("clear history")
			h.send(ctx, b, msg, "❌ Error: could not clear the conversation.")
			return
		}
		log.Info().Str("event", "reset").Int("removed", n).Msg("history cleared")
		h.send(ctx, b, msg, fmt.Sprintf("Conversation cleared (%d messages).", n))

	default:
		// start, help and anything unknown
		h.send(ctx, b, msg, usage(h.chat != nil))
	}
}

func (h *Handler) handleChat(ctx context.Context, b Sender, msg *models.Message) {
	if h.chat == nil || msg.From == nil {
		h.send(ctx, b, msg, usage(false))
		return
	}
	reply, err := h.chat.Reply(ctx, msg.From.ID, msg.Text)
	if err != nil {
		h.send(ctx, b, msg, "❌ Error: "+chatError(err))
		return
	}
	for _, part := range splitMessage(reply, maxMessageLen) {
		h.send(ctx, b, msg, part)
	}
}

// logCipher records the outcome of a cipher command. Arguments are never
// logged since they contain the password.
func (h *Handler) logCipher(ctx context.Context, cmd string, err error) {
	log := logging.Ctx(ctx)
	if err != nil {
		log.Info().Str("event", cmd).Str("result", "error").Str("reason", errorKind(err)).Msg("cipher command failed")
		return
	}
	log.Info().Str("event", cmd).Str("result", "ok").Msg("cipher command done")
}

func (h *Handler) send(ctx context.Context, b Sender, msg *models.Message, text string) {
	_, err := b.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("send message")
	}
}

func usage(withChat bool) string {
	if !withChat {
		return command.Usage
	}
	return command.Usage + "\n\nAny other text is answered by the AI assistant. /reset clears the conversation."
}

func chatError(err error) string {
	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		return "the AI service rejected the bot's credentials."
	case errors.Is(err, chat.ErrRateLimited):
		return "the AI service is busy, please try again later."
	case errors.Is(err, chat.ErrEmptyResponse):
		return "the AI service returned an empty answer."
	case errors.Is(err, chat.ErrHistory):
		return "the conversation history is unavailable."
	default:
		return "the AI service is unavailable right now."
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, command.ErrArguments):
		return "arguments"
	case errors.Is(err, crypt.ErrDecode):
		return "decode"
	case errors.Is(err, crypt.ErrFormat):
		return "format"
	case errors.Is(err, crypt.ErrAuthenticity):
		return "authenticity"
	case errors.Is(err, crypt.ErrEncoding):
		return "encoding"
	default:
		return "other"
	}
}

func parseCommand(msg *models.Message) (cmd, args string, ok bool) {
	if msg.Text == "" {
		return "", "", false
	}
	for _, e := range msg.Entities {
		if e.Type == models.MessageEntityTypeBotCommand && e.Offset == 0 && e.Length <= len(msg.Text) {
			cmd = strings.TrimPrefix(msg.Text[:e.Length], "/")
			if i := strings.IndexByte(cmd, '@'); i >= 0 {
				cmd = cmd[:i]
			}
			args = strings.TrimSpace(msg.Text[e.Length:])
			return strings.ToLower(cmd), args, true
		}
	}
	return "", "", false
}

// splitMessage cuts s into pieces of at most n runes.
func splitMessage(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	var parts []string
	for len(r) > 0 {
		end := n
		if end > len(r) {
			end = len(r)
		}
		parts = append(parts, string(r[:end]))
		r = r[end:]
	}
	return parts
}
