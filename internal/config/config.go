package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string `mapstructure:"DB_DSN"`
	Environment   string `mapstructure:"ENV"`
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`
	NotifyChatID  int64  `mapstructure:"NOTIFY_CHAT_ID"`
	TrainerID     string `mapstructure:"TRAINER_ID"`
	GraceMinutes  int    `mapstructure:"GRACE_MINUTES"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`
}

func Load() (*Config, error) {
	// .env is optional, real environments set variables directly
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   os.Getenv("ENV"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		TrainerID:     os.Getenv("TRAINER_ID"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}

	if raw := os.Getenv("NOTIFY_CHAT_ID"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse NOTIFY_CHAT_ID: %w", err)
		}
		cfg.NotifyChatID = chatID
	}
	if raw := os.Getenv("GRACE_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse GRACE_MINUTES: %w", err)
		}
		cfg.GraceMinutes = minutes
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.TrainerID == "" {
		return nil, fmt.Errorf("TRAINER_ID is required but not set")
	}

	return cfg, nil
}
