// Package config loads runtime configuration for the orchestrator CLI and
// PE analyzer options from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the orchestrator and its collaborators need that
// isn't part of the pipeline's pure logic: where to persist Outcomes, how
// to reach the oracle, and the PE analyzer options from spec §6.
type Config struct {
	DatabasePath string
	LogLevel     string
	LogFilePath  string

	ScannerURL     string
	ScannerName    string
	ScannerTimeout time.Duration

	MaxOracleCallsPerRun int

	PEIsolate    bool
	PERemove     bool
	PEIgnoreText bool

	TelegramNotifyToken  string
	TelegramNotifyChatID int64
}

// Load reads a .env file if present (absence is not an error — unlike the
// teacher's bot, this tool runs fine from plain environment variables) and
// fills in defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DatabasePath = getenvDefault("AVRED_DATABASE_PATH", "data/avred.db")
	cfg.LogLevel = getenvDefault("AVRED_LOG_LEVEL", "info")
	cfg.LogFilePath = getenvDefault("AVRED_LOG_FILE_PATH", "logs/avred.log")

	cfg.ScannerURL = os.Getenv("AVRED_SCANNER_URL")
	cfg.ScannerName = getenvDefault("AVRED_SCANNER_NAME", "amsi")

	timeoutStr := getenvDefault("AVRED_SCANNER_TIMEOUT_SECONDS", "30")
	timeoutSec, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid AVRED_SCANNER_TIMEOUT_SECONDS: %w", err)
	}
	cfg.ScannerTimeout = time.Duration(timeoutSec) * time.Second

	maxCallsStr := getenvDefault("AVRED_MAX_ORACLE_CALLS", "0")
	maxCalls, err := strconv.Atoi(maxCallsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid AVRED_MAX_ORACLE_CALLS: %w", err)
	}
	cfg.MaxOracleCallsPerRun = maxCalls // 0 means unbounded

	cfg.PEIsolate = os.Getenv("AVRED_PE_ISOLATE") == "true"
	cfg.PERemove = os.Getenv("AVRED_PE_REMOVE") == "true"
	cfg.PEIgnoreText = os.Getenv("AVRED_PE_IGNORE_TEXT") == "true"

	cfg.TelegramNotifyToken = os.Getenv("AVRED_TELEGRAM_TOKEN")
	if chatIDStr := os.Getenv("AVRED_TELEGRAM_CHAT_ID"); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AVRED_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramNotifyChatID = chatID
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
