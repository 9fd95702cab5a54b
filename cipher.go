package main

import (
	"fmt"

	"github.com/urfave/cli"

	"telegram-cipher-bot/internal/command"
)

// cipherAction runs a cipher command on the CLI arguments with the same
// message/password convention as the chat commands.
func cipherAction(op string) cli.ActionFunc {
	return func(c *cli.Context) error {
		run := command.Encrypt
		if op == "decrypt" {
			run = command.Decrypt
		}
		out, err := run(c.Args())
		if err != nil {
			return cli.NewExitError(command.Reply(op, "", err), 1)
		}
		fmt.Fprintln(c.App.Writer, out)
		return nil
	}
}
