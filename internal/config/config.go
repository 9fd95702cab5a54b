package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"telegram-cipher-bot/internal/logging"
)

// Defaults for optional settings.
const (
	DefaultModel        = "gpt-4o-mini"
	DefaultHistoryLimit = 10
	DefaultDBPath       = "bot.db"
)

// ErrNoToken is returned by Validate when no Telegram token is configured.
var ErrNoToken = errors.New("TBOT_TOKEN env var is required")

// Config holds the runtime settings of the bot.
type Config struct {
	Token        string
	AllowedUsers map[int64]bool
	OpenAIKey    string
	Model        string
	SystemPrompt string
	HistoryLimit int
	// DBPath is the bolt file for conversation memory. Empty keeps memory
	// in-process only.
	DBPath   string
	LogLevel string
}

// Load reads envFile (if it exists) into the environment without overriding
// variables that are already set, then builds a Config from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	c := &Config{
		Token:        firstEnv("TBOT_TOKEN", "BOT_TOKEN"),
		AllowedUsers: parseAllowedUsers(os.Getenv("TBOT_ALLOWED_USER_IDS")),
		OpenAIKey:    firstEnv("TBOT_OPENAI_API_KEY", "OPENAI_API_KEY"),
		Model:        DefaultModel,
		SystemPrompt: os.Getenv("TBOT_SYSTEM_PROMPT"),
		HistoryLimit: DefaultHistoryLimit,
		DBPath:       DefaultDBPath,
		LogLevel:     os.Getenv("LOG_LEVEL"),
	}
	if m := os.Getenv("TBOT_OPENAI_MODEL"); m != "" {
		c.Model = m
	}
	if v, ok := os.LookupEnv("TBOT_HISTORY_LIMIT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			logging.Log.Warn().Str("value", v).Msg("invalid TBOT_HISTORY_LIMIT, using default")
		} else {
			c.HistoryLimit = n
		}
	}
	if v, ok := os.LookupEnv("TBOT_DB_PATH"); ok {
		c.DBPath = strings.TrimSpace(v)
	}
	return c
}

// Validate reports settings that make the bot unable to start.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func parseAllowedUsers(idsEnv string) map[int64]bool {
	if idsEnv == "" {
		return nil
	}
	allowed := make(map[int64]bool)
	for _, p := range strings.Split(idsEnv, ",") {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			logging.Log.Warn().Str("user_id", s).Msg("invalid user id in TBOT_ALLOWED_USER_IDS")
			continue
		}
		allowed[id] = true
	}
	return allowed
}
