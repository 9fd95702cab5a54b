package bot

import (
	"context"
	"fmt"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telegram-cipher-bot/internal/chat"
	"telegram-cipher-bot/internal/config"
	"telegram-cipher-bot/internal/handler"
	"telegram-cipher-bot/internal/logging"
	"telegram-cipher-bot/internal/memory"
	"telegram-cipher-bot/internal/storage"
)

// Run starts the Telegram bot and listens for updates until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer closeStore()

	h := handler.New(handler.Options{
		AllowedUsers: cfg.AllowedUsers,
		Chat:         newChat(cfg, store),
	})

	b, err := tg.New(cfg.Token,
		tg.WithDefaultHandler(func(ctx context.Context, b *tg.Bot, upd *models.Update) {
			h.HandleUpdate(ctx, b, upd)
		}),
		tg.WithErrorsHandler(func(err error) {
			logging.Log.Error().Err(err).Msg("telegram error")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	logging.Log.Info().Bool("chat", cfg.OpenAIKey != "").Int("allowed_users", len(cfg.AllowedUsers)).Msg("bot started")
	b.Start(ctx)
	logging.Log.Info().Msg("bot stopped")
	return nil
}

// openStore picks bolt when a path is configured and process memory otherwise.
func openStore(cfg *config.Config) (memory.Store, func(), error) {
	if cfg.DBPath == "" {
		return memory.NewInMemory(), func() {}, nil
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			logging.Log.Error().Err(err).Msg("close storage")
		}
	}, nil
}

func newChat(cfg *config.Config, store memory.Store) handler.Chatter {
	if cfg.OpenAIKey == "" {
		return nil
	}
	return chat.New(chat.Options{
		APIKey:       cfg.OpenAIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		HistoryLimit: cfg.HistoryLimit,
	}, store)
}
