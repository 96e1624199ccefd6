package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Chats the bot tracks; empty means every chat it is added to.
	AllowedChatIDs []int64 `env:"ALLOWED_CHAT_IDS" envSeparator:":"`

	// Storage
	DataFilePath    string `env:"DATA_FILE_PATH" envDefault:"data/engagement.json"`
	HistoryFilePath string `env:"HISTORY_FILE_PATH" envDefault:"data/history.json"`

	// Ledger behavior
	AttributionCacheSize  int  `env:"ATTRIBUTION_CACHE_SIZE" envDefault:"8192"`
	CountReactionRemovals bool `env:"COUNT_REACTION_REMOVALS" envDefault:"false"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
