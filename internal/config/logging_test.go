package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLoggerWithWriters_FansOutToBothSinks(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("session started", "user_id", "alice")

	require.Contains(t, stderr.String(), "session started")
	require.Contains(t, stderr.String(), "user_id=alice")

	var record map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &record))
	require.Equal(t, "session started", record["msg"])
	require.Equal(t, "alice", record["user_id"])
}

func TestSetupLoggerWithWriters_RespectsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Info("too quiet")
	logger.Warn("loud enough")

	require.NotContains(t, stderr.String(), "too quiet")
	require.NotContains(t, file.String(), "too quiet")
	require.Contains(t, stderr.String(), "loud enough")
	require.Contains(t, file.String(), "loud enough")
}

func TestSetupLogger_FallsBackWhenFileUnwritable(t *testing.T) {
	logger, cleanup := SetupLogger(filepath.Join(t.TempDir(), "missing", "chatbot.log"), slog.LevelInfo)
	require.NotNil(t, logger)
	require.NoError(t, cleanup())
}

func TestSetupLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())
}
