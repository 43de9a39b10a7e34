package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, defaultOpenAIAPIVersion, cfg.OpenAIAPIVersion)
	require.Equal(t, 5, cfg.HistoryTurns)
	require.Equal(t, 2, cfg.SafetyThreshold)
	require.False(t, cfg.SafetyFailOpen)
	require.Equal(t, 4, cfg.StoreWorkers)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHATBOT_HISTORY_TABLE", "chat-turns")
	t.Setenv("CHATBOT_HISTORY_TURNS", "3")
	t.Setenv("CHATBOT_SAFETY_FAIL_OPEN", "true")
	t.Setenv("CHATBOT_LOG_LEVEL", "debug")

	cfg := Load()
	require.Equal(t, "chat-turns", cfg.HistoryTable)
	require.Equal(t, 3, cfg.HistoryTurns)
	require.True(t, cfg.SafetyFailOpen)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_MalformedIntFallsBackToDefault(t *testing.T) {
	t.Setenv("CHATBOT_HISTORY_TURNS", "not-a-number")
	cfg := Load()
	require.Equal(t, defaultHistoryTurns, cfg.HistoryTurns)
}

func TestLoadFile_OverlaysOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"history_table: from-file\nsafety_threshold: 4\nlog_level: error\n",
	), 0644))

	base := Load()
	base.HistoryTurns = 7

	cfg, err := LoadFile(path, base)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.HistoryTable)
	require.Equal(t, 4, cfg.SafetyThreshold)
	require.Equal(t, slog.LevelError, cfg.LogLevel)
	require.Equal(t, 7, cfg.HistoryTurns, "fields absent from the file keep their value")
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Load())
	require.Error(t, err)
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history_table: [unterminated"), 0644))
	_, err := LoadFile(path, Load())
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}

func TestValidate(t *testing.T) {
	cfg := Config{
		ContentSafetyEndpoint: "https://cs.example.com",
		OpenAIEndpoint:        "https://oai.example.com",
		OpenAIDeployment:      "gpt-35-turbo",
		HistoryTable:          "chat-turns",
		ParamPrefix:           "/safety-chatbot",
	}
	require.NoError(t, cfg.Validate())

	cfg.HistoryTable = " "
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "history_table")
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}
