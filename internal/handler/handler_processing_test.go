package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telegram-cipher-bot/internal/chat"
	"telegram-cipher-bot/internal/crypt"
	"telegram-cipher-bot/internal/logging"
)

// testBot records outgoing messages.
type testBot struct {
	sent   []*tg.SendMessageParams
	failOn int
}

func (b *testBot) SendMessage(ctx context.Context, params *tg.SendMessageParams) (*models.Message, error) {
	b.sent = append(b.sent, params)
	if b.failOn > 0 && len(b.sent) == b.failOn {
		return nil, errors.New("telegram down")
	}
	return &models.Message{ID: len(b.sent)}, nil
}

func (b *testBot) texts() []string {
	var out []string
	for _, p := range b.sent {
		out = append(out, p.Text)
	}
	return out
}

// testChat is a Chatter with canned answers.
type testChat struct {
	reply   string
	err     error
	asked   []string
	forgets int
}

func (c *testChat) Reply(ctx context.Context, userID int64, text string) (string, error) {
	c.asked = append(c.asked, text)
	return c.reply, c.err
}

func (c *testChat) Forget(userID int64) (int, error) {
	c.forgets++
	return 2, nil
}

func update(text string, from int64) *models.Update {
	msg := commandMessage(text)
	if !strings.HasPrefix(text, "/") {
		msg.Entities = nil
	}
	msg.ID = 10
	msg.Chat = models.Chat{ID: 1}
	msg.MessageThreadID = 5
	if from != 0 {
		msg.From = &models.User{ID: from}
	}
	return &models.Update{Message: msg}
}

func TestHandleUpdate_EmptyMessage(t *testing.T) {
	logging.Init("error")
	b := &testBot{}
	New(Options{}).HandleUpdate(context.Background(), b, &models.Update{})
	New(Options{}).HandleUpdate(context.Background(), b, &models.Update{Message: &models.Message{Chat: models.Chat{ID: 1}}})
	if len(b.sent) != 0 {
		t.Fatalf("unexpected messages: %v", b.texts())
	}
}

func TestHandleUpdate_EncryptDecrypt(t *testing.T) {
	logging.Init("error")
	h := New(Options{})
	b := &testBot{}

	h.HandleUpdate(context.Background(), b, update("/encrypt meet me at noon hunter2", 1))
	if len(b.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(b.sent))
	}
	reply := b.sent[0]
	if reply.ChatID != int64(1) || reply.MessageThreadID != 5 || reply.ReplyParameters == nil || reply.ReplyParameters.MessageID != 10 {
		t.Fatalf("reply not threaded to the request: %+v", reply)
	}
	env, ok := strings.CutPrefix(reply.Text, "🔒 Encrypted:\n")
	if !ok {
		t.Fatalf("unexpected reply %q", reply.Text)
	}

	h.HandleUpdate(context.Background(), b, update("/decrypt "+env+" hunter2", 1))
	if got := b.sent[1].Text; got != "🔓 Decrypted:\nmeet me at noon" {
		t.Fatalf("decrypt reply = %q", got)
	}
}

func TestHandleUpdate_CipherErrors(t *testing.T) {
	logging.Init("error")
	cases := []struct {
		text, want string
	}{
		{"/encrypt lonely", "❌ Error: You must provide a message and a password."},
		{"/decrypt", "❌ Error: You must provide a ciphertext and a password."},
		{"/decrypt not-base64!! pw", "❌ Error: the ciphertext is not valid base64."},
		{"/decrypt AAAAAAAAAAAAAAAAAAAAAAA= pw", "❌ Error: the ciphertext is truncated or has the wrong length."},
		{"/decrypt AAECAwQFBgcICQoLDA0ODzkO3ypQCar+9X/zSd7GhKI= passw0rd", "❌ Error: wrong password or corrupted ciphertext."},
	}
	for _, tc := range cases {
		b := &testBot{}
		New(Options{}).HandleUpdate(context.Background(), b, update(tc.text, 1))
		if len(b.sent) != 1 || b.sent[0].Text != tc.want {
			t.Fatalf("%q: got %v want %q", tc.text, b.texts(), tc.want)
		}
	}
}

func TestHandleUpdate_StartAndUnknown(t *testing.T) {
	logging.Init("error")
	for _, text := range []string{"/start", "/help", "/whatever"} {
		b := &testBot{}
		New(Options{}).HandleUpdate(context.Background(), b, update(text, 1))
		if len(b.sent) != 1 || !strings.Contains(b.sent[0].Text, "/encrypt Hello123 password") {
			t.Fatalf("%s: got %v", text, b.texts())
		}
		if strings.Contains(b.sent[0].Text, "/reset") {
			t.Fatalf("%s: chat help shown without chat backend", text)
		}
	}

	b := &testBot{}
	New(Options{Chat: &testChat{}}).HandleUpdate(context.Background(), b, update("/start", 1))
	if !strings.Contains(b.sent[0].Text, "/reset") {
		t.Fatalf("chat help missing: %q", b.sent[0].Text)
	}
}

func TestHandleUpdate_AllowedUsers(t *testing.T) {
	logging.Init("error")
	c := &testChat{reply: "hi"}
	h := New(Options{AllowedUsers: map[int64]bool{7: true}, Chat: c})

	b := &testBot{}
	h.HandleUpdate(context.Background(), b, update("/encrypt a b", 8))
	h.HandleUpdate(context.Background(), b, update("hello", 0))
	for _, txt := range b.texts() {
		if !strings.Contains(txt, "only with specific users") {
			t.Fatalf("expected refusal, got %q", txt)
		}
	}
	if len(c.asked) != 0 {
		t.Fatal("chat should not be called for a refused user")
	}

	b = &testBot{}
	h.HandleUpdate(context.Background(), b, update("hello", 7))
	if len(b.sent) != 1 || b.sent[0].Text != "hi" {
		t.Fatalf("allowed user got %v", b.texts())
	}
}

func TestHandleUpdate_ChatDisabled(t *testing.T) {
	logging.Init("error")
	b := &testBot{}
	New(Options{}).HandleUpdate(context.Background(), b, update("what is the weather", 1))
	if len(b.sent) != 1 || !strings.Contains(b.sent[0].Text, "/encrypt") {
		t.Fatalf("expected usage hint, got %v", b.texts())
	}
}

func TestHandleUpdate_ChatReply(t *testing.T) {
	logging.Init("error")
	long := strings.Repeat("я", maxMessageLen+10)
	c := &testChat{reply: long}
	b := &testBot{}
	New(Options{Chat: c}).HandleUpdate(context.Background(), b, update("tell me a story", 1))

	if len(c.asked) != 1 || c.asked[0] != "tell me a story" {
		t.Fatalf("chat asked %v", c.asked)
	}
	if len(b.sent) != 2 {
		t.Fatalf("expected reply split in 2 parts, got %d", len(b.sent))
	}
	if len([]rune(b.sent[0].Text)) != maxMessageLen || len([]rune(b.sent[1].Text)) != 10 {
		t.Fatal("unexpected split sizes")
	}
}

func TestHandleUpdate_ChatErrors(t *testing.T) {
	logging.Init("error")
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: 401 secret", chat.ErrUnauthorized), "❌ Error: the AI service rejected the bot's credentials."},
		{fmt.Errorf("%w: 429", chat.ErrRateLimited), "❌ Error: the AI service is busy, please try again later."},
		{chat.ErrEmptyResponse, "❌ Error: the AI service returned an empty answer."},
		{fmt.Errorf("%w: bolt", chat.ErrHistory), "❌ Error: the conversation history is unavailable."},
		{fmt.Errorf("%w: dial tcp 10.0.0.1", chat.ErrUpstream), "❌ Error: the AI service is unavailable right now."},
	}
	for _, tc := range cases {
		b := &testBot{}
		New(Options{Chat: &testChat{err: tc.err}}).HandleUpdate(context.Background(), b, update("hi", 1))
		if len(b.sent) != 1 || b.sent[0].Text != tc.want {
			t.Fatalf("%v: got %v want %q", tc.err, b.texts(), tc.want)
		}
	}
}

func TestHandleUpdate_Reset(t *testing.T) {
	logging.Init("error")
	c := &testChat{}
	b := &testBot{}
	New(Options{Chat: c}).HandleUpdate(context.Background(), b, update("/reset", 1))
	if c.forgets != 1 || b.sent[0].Text != "Conversation cleared (2 messages)." {
		t.Fatalf("reset: forgets=%d sent=%v", c.forgets, b.texts())
	}

	b = &testBot{}
	New(Options{}).HandleUpdate(context.Background(), b, update("/reset", 1))
	if b.sent[0].Text != "Nothing to forget." {
		t.Fatalf("reset without chat: %v", b.texts())
	}
}

func TestHandleUpdate_SendFailure(t *testing.T) {
	logging.Init("error")
	b := &testBot{failOn: 1}
	New(Options{}).HandleUpdate(context.Background(), b, update("/encrypt a b", 1))
	if len(b.sent) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(b.sent))
	}
}

func TestErrorKind(t *testing.T) {
	if got := errorKind(fmt.Errorf("x: %w", crypt.ErrFormat)); got != "format" {
		t.Fatalf("errorKind = %q", got)
	}
	if got := errorKind(errors.New("?")); got != "other" {
		t.Fatalf("errorKind = %q", got)
	}
}

func TestHandleUpdate_EncryptTooLong(t *testing.T) {
	logging.Init("error")
	b := &testBot{}
	New(Options{}).HandleUpdate(context.Background(), b, update("/encrypt "+strings.Repeat("я", 3000)+" pw", 1))
	if len(b.sent) != 1 || b.sent[0].Text != errTooLong {
		t.Fatalf("expected a single too-long error, got %d messages", len(b.sent))
	}

	// Just under the limit still gets the envelope.
	b = &testBot{}
	New(Options{}).HandleUpdate(context.Background(), b, update("/encrypt "+strings.Repeat("a", 3000)+" pw", 1))
	if len(b.sent) != 1 || !strings.HasPrefix(b.sent[0].Text, "🔒 Encrypted:\n") {
		t.Fatalf("expected envelope, got %q", b.texts())
	}
	if n := len([]rune(b.sent[0].Text)); n > maxMessageLen {
		t.Fatalf("reply has %d runes", n)
	}
}
