package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"telegram-cipher-bot/internal/bot"
	"telegram-cipher-bot/internal/config"
	"telegram-cipher-bot/internal/logging"
)

func runBot(c *cli.Context) error {
	cfg, err := config.Load(c.GlobalString("env-file"))
	if err != nil {
		logging.Log.Error().Err(err).Msg("load config")
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bot.Run(ctx, cfg); err != nil {
		logging.Log.Error().Err(err).Msg("bot failed")
		return err
	}
	return nil
}
