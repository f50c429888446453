package config

import (
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings for the bot backend.
type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	UseMemoryStore bool `env:"USE_MEMORY_STORE" env-default:"false"`

	// Database (ignored when UseMemoryStore is set)
	DBUser                 string `env:"DB_USER" env-default:"postgres"`
	DBPass                 string `env:"DB_PASS"`
	DBName                 string `env:"DB_NAME" env-default:"pokebot"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	// WhatsApp Cloud API
	WhatsAppToken       string `env:"WHATSAPP_TOKEN"`
	WhatsAppPhoneID     string `env:"WHATSAPP_PHONE_ID"`
	WhatsAppVerifyToken string `env:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret   string `env:"WHATSAPP_APP_SECRET"`
	GraphAPIVersion     string `env:"GRAPH_API_VERSION" env-default:"v21.0"`

	// Telegram operator console
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	// LLM intent interpreter (optional)
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com"`
	OpenAIModel   string `env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
}

// Load reads .env (local development only) and then the process environment.
func Load() (*Config, error) {
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - using environment variables only")
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WhatsAppConfigured reports whether real WhatsApp sends are possible.
func (c *Config) WhatsAppConfigured() bool {
	return c.WhatsAppToken != "" && c.WhatsAppPhoneID != ""
}

// TelegramConfigured reports whether the operator console can reach Telegram.
func (c *Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
