package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"telegram-cipher-bot/internal/config"
	"telegram-cipher-bot/internal/logging"
)

const version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "telegram-cipher-bot"
	app.Usage = "Telegram bot that encrypts and decrypts text with a password"
	app.Version = version
	app.Flags = getFlags()
	app.Before = func(c *cli.Context) error {
		cfg, err := config.Load(c.GlobalString("env-file"))
		if err != nil {
			return err
		}
		level := c.GlobalString("level")
		if level == "" {
			level = cfg.LogLevel
		}
		logging.Init(level)
		return nil
	}
	app.Action = runBot
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "start the bot (default)",
			Action: runBot,
		},
		{
			Name:      "encrypt",
			Usage:     "encrypt a message offline",
			ArgsUsage: "<message...> <password>",
			Action:    cipherAction("encrypt"),
		},
		{
			Name:      "decrypt",
			Usage:     "decrypt a ciphertext offline",
			ArgsUsage: "<ciphertext...> <password>",
			Action:    cipherAction("decrypt"),
		},
	}
	return app
}

func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "env-file, e",
			Usage: "load environment from `FILE` if it exists",
			Value: ".env",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "logging level [debug|info|warn|error] (default: $LOG_LEVEL or info)",
		},
	}
}
