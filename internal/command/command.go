// Package command implements the /encrypt and /decrypt entry points on top of
// the crypt codec. Arguments arrive as whitespace separated tokens: the last
// token is the password and everything before it is the payload.
package command

import (
	"errors"
	"fmt"
	"strings"

	"telegram-cipher-bot/internal/crypt"
)

// ErrArguments is returned when fewer than two tokens were supplied.
var ErrArguments = errors.New("not enough arguments")

// Usage is shown by /start, /help and on unknown commands.
const Usage = "🔐 Welcome to the cipher bot!\n" +
	"Use /encrypt or /decrypt.\n" +
	"Example:\n" +
	"/encrypt Hello123 password\n" +
	"/decrypt <ciphertext> password"

// Split separates the trailing password from the payload tokens.
func Split(args []string) (text, password string, err error) {
	if len(args) < 2 {
		return "", "", ErrArguments
	}
	last := len(args) - 1
	return strings.Join(args[:last], " "), args[last], nil
}

// Encrypt runs the encrypt command and returns the envelope text.
func Encrypt(args []string) (string, error) {
	text, password, err := Split(args)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return crypt.Encrypt(text, password)
}

// Decrypt runs the decrypt command and returns the recovered plaintext.
func Decrypt(args []string) (string, error) {
	text, password, err := Split(args)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return crypt.Decrypt(text, password)
}

// Reply formats the outcome of op ("encrypt" or "decrypt") for the user.
// Known failures map to fixed messages so internal error text never leaks.
func Reply(op, result string, err error) string {
	if err == nil {
		if op == "encrypt" {
			return "🔒 Encrypted:\n" + result
		}
		return "🔓 Decrypted:\n" + result
	}
	return "❌ Error: " + describe(op, err)
}

func describe(op string, err error) string {
	switch {
	case errors.Is(err, ErrArguments):
		if op == "encrypt" {
			return "You must provide a message and a password."
		}
		return "You must provide a ciphertext and a password."
	case errors.Is(err, crypt.ErrDecode):
		return "the ciphertext is not valid base64."
	case errors.Is(err, crypt.ErrFormat):
		return "the ciphertext is truncated or has the wrong length."
	case errors.Is(err, crypt.ErrAuthenticity):
		return "wrong password or corrupted ciphertext."
	case errors.Is(err, crypt.ErrEncoding):
		return "the decrypted data is not text. Check the password."
	default:
		return "something went wrong, please try again."
	}
}
