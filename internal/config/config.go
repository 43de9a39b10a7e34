// Package config loads runtime configuration from the environment with
// an optional YAML file overlay. Service keys are not configured here;
// they are fetched from SSM Parameter Store at first use.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultOpenAIAPIVersion = "2024-02-15-preview"
	defaultHistoryTurns     = 5
	defaultSafetyThreshold  = 2
	defaultStoreWorkers     = 4
)

// Config holds all configuration values.
type Config struct {
	// Azure Content Safety
	ContentSafetyEndpoint string `yaml:"content_safety_endpoint"`

	// Azure OpenAI
	OpenAIEndpoint   string `yaml:"openai_endpoint"`
	OpenAIDeployment string `yaml:"openai_deployment"`
	OpenAIAPIVersion string `yaml:"openai_api_version"`

	// DynamoDB conversation history
	HistoryTable string `yaml:"history_table"`

	// SSM prefix for service keys
	ParamPrefix string `yaml:"param_prefix"`

	// Pipeline tuning
	HistoryTurns    int  `yaml:"history_turns"`
	SafetyThreshold int  `yaml:"safety_threshold"`
	SafetyFailOpen  bool `yaml:"safety_fail_open"`
	StoreWorkers    int  `yaml:"store_workers"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// LogLevelName is the textual level from file/env, parsed into LogLevel.
	LogLevelName string `yaml:"log_level"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		ContentSafetyEndpoint: os.Getenv("CHATBOT_CONTENT_SAFETY_ENDPOINT"),
		OpenAIEndpoint:        os.Getenv("CHATBOT_OPENAI_ENDPOINT"),
		OpenAIDeployment:      os.Getenv("CHATBOT_OPENAI_DEPLOYMENT"),
		OpenAIAPIVersion:      getEnv("CHATBOT_OPENAI_API_VERSION", defaultOpenAIAPIVersion),
		HistoryTable:          os.Getenv("CHATBOT_HISTORY_TABLE"),
		ParamPrefix:           os.Getenv("CHATBOT_PARAM_PREFIX"),
		HistoryTurns:          getEnvInt("CHATBOT_HISTORY_TURNS", defaultHistoryTurns),
		SafetyThreshold:       getEnvInt("CHATBOT_SAFETY_THRESHOLD", defaultSafetyThreshold),
		SafetyFailOpen:        getEnv("CHATBOT_SAFETY_FAIL_OPEN", "false") == "true",
		StoreWorkers:          getEnvInt("CHATBOT_STORE_WORKERS", defaultStoreWorkers),
		LogFile:               getEnv("CHATBOT_LOG_FILE", "/tmp/safety-chatbot.log"),
		LogLevelName:          getEnv("CHATBOT_LOG_LEVEL", "INFO"),
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	return cfg
}

// LoadFile overlays values from a YAML file onto cfg. Fields absent from
// the file keep their current value.
func LoadFile(path string, cfg Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	overlay := cfg
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	overlay.LogLevel = parseLogLevel(overlay.LogLevelName)
	return overlay, nil
}

// Validate checks that every value required to reach the external
// services is present.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ContentSafetyEndpoint) == "" {
		missing = append(missing, "content_safety_endpoint")
	}
	if strings.TrimSpace(c.OpenAIEndpoint) == "" {
		missing = append(missing, "openai_endpoint")
	}
	if strings.TrimSpace(c.OpenAIDeployment) == "" {
		missing = append(missing, "openai_deployment")
	}
	if strings.TrimSpace(c.HistoryTable) == "" {
		missing = append(missing, "history_table")
	}
	if strings.TrimSpace(c.ParamPrefix) == "" {
		missing = append(missing, "param_prefix")
	}
	if len(missing) > 0 {
		return errors.New("config: missing required values: " + strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
