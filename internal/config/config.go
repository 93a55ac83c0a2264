// Package config loads the process-wide configuration for the council
// deliberation server from the environment, the way ai-notetaking-be's
// internal/config loaded AppConfig/DatabaseConfig/SMTP from os.LookupEnv
// via godotenv. The shape is different — a CouncilConfig plus the API keys
// and transport settings the orchestrator and its HTTP boundary need — but
// the loading idiom (getEnv/getEnvAsInt with fallbacks, godotenv.Load
// first) is kept as-is.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ai-notetaking-be/pkg/council"
)

// Config is the top-level process configuration.
type Config struct {
	App     AppConfig
	Council council.CouncilConfig
	Keys    APIKeys
}

// AppConfig holds the HTTP boundary's own settings: listen port, CORS, and
// how conversations are persisted.
type AppConfig struct {
	Port        string
	Environment string
	LogFilePath string

	CorsAllowedOrigins []string

	PersistStorage    bool
	ConversationsFile string
	DBConnection      string

	RedisURL string
}

// APIKeys holds the credentials the configured ModelClient factory needs.
// A missing ModelAPIKey is a fatal ConfigMissing condition; Load itself
// never fails, so bootstrap.NewContainer checks this and raises the
// boundary error before the orchestrator is constructed.
type APIKeys struct {
	ModelProvider string // "openrouter" or "ollama"
	ModelAPIKey   string
	ModelBaseURL  string
}

// Load reads .env (if present) then the process environment into a Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	defaultModels := "openai/gpt-5.2,google/gemini-3-pro-preview,anthropic/claude-sonnet-4.5,x-ai/grok-4.1-fast"

	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "3000"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "council.log.csv"),

			CorsAllowedOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", "http://localhost:5173"),

			PersistStorage:    getEnvAsBool("PERSIST_STORAGE", false),
			ConversationsFile: getEnv("CONVERSATIONS_FILE", "conversations.json"),
			DBConnection:      getEnv("DB_CONNECTION_STRING", ""),

			RedisURL: getEnv("REDIS_URL", ""),
		},
		Council: council.CouncilConfig{
			Members:            parseCouncilMembers(getEnv("COUNCIL_MODELS", defaultModels)),
			ChairmanModelID:    getEnv("CHAIRMAN_MODEL", "anthropic/claude-opus-4.5"),
			AdjudicatorModelID: getEnv("ADJUDICATOR_MODEL", ""),
			TitleModelID:       getEnv("TITLE_MODEL", ""),

			Stage1Timeout: getEnvAsDuration("STAGE1_TIMEOUT_SECONDS", 45*time.Second),
			Stage2Timeout: getEnvAsDuration("STAGE2_TIMEOUT_SECONDS", 45*time.Second),
			Stage3Timeout: getEnvAsDuration("STAGE3_TIMEOUT_SECONDS", 60*time.Second),
			TitleTimeout:  getEnvAsDuration("TITLE_TIMEOUT_SECONDS", 10*time.Second),

			Retry: council.RetryPolicy{
				MaxAttempts: getEnvAsInt("MODEL_RETRY_MAX_ATTEMPTS", 3),
				BackoffBase: getEnvAsDurationMs("MODEL_RETRY_BACKOFF_BASE_MS", 250*time.Millisecond),
				BackoffCap:  getEnvAsDurationMs("MODEL_RETRY_BACKOFF_CAP_MS", 4*time.Second),
			},

			MaxPromptBytes: getEnvAsInt("MAX_PROMPT_BYTES", 32_000),
			ContractStack:  getEnv("CONTRACT_STACK", ""),
		},
		Keys: APIKeys{
			ModelProvider: getEnv("MODEL_PROVIDER", "openrouter"),
			ModelAPIKey:   getEnv("MODEL_API_KEY", ""),
			ModelBaseURL:  getEnv("MODEL_BASE_URL", ""),
		},
	}
}

// parseCouncilMembers turns a comma-separated COUNCIL_MODELS value into
// ordered CouncilMembers. RoleName is left blank: roles.Table.Assign
// resolves the actual role per model at orchestrator construction time, so
// config stays ignorant of the role table's contents.
func parseCouncilMembers(raw string) []council.CouncilMember {
	ids := splitAndTrim(raw)
	out := make([]council.CouncilMember, 0, len(ids))
	for _, id := range ids {
		out = append(out, council.CouncilMember{ModelID: id})
	}
	return out
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration reads key as a plain integer number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

// getEnvAsDurationMs reads key as a plain integer number of milliseconds.
func getEnvAsDurationMs(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	return splitAndTrim(getEnv(key, fallback))
}
