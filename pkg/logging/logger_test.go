// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:   LevelInfo,
		Service: "matrixd-test",
		Quiet:   true,
		Writer:  &buf,
	})

	logger.Info("config updated", "version", "1.0.1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "config updated", entry["msg"])
	assert.Equal(t, "1.0.1", entry["version"])
	assert.Equal(t, "matrixd-test", entry["service"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelWarn,
		Quiet:  true,
		Writer: &buf,
	})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelInfo,
		Quiet:  true,
		Writer: &buf,
	})

	child := logger.With("persona", "founder", "goal", "automate")
	child.Info("assignment resolved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "founder", entry["persona"])
	assert.Equal(t, "automate", entry["goal"])

	// Parent stays unchanged.
	buf.Reset()
	logger.Info("plain")
	var parent map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parent))
	assert.NotContains(t, parent, "persona")
}

func TestLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "matrixd",
		Quiet:   true,
	})

	logger.Info("file entry", "key", "value")
	require.NoError(t, logger.Close())

	filename := "matrixd_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "file entry")

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "value", entry["key"])
}

func TestCloseWithoutFile(t *testing.T) {
	logger := New(Config{Quiet: true})
	assert.NoError(t, logger.Close())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".matrixd/logs"), expandPath("~/.matrixd/logs"))
	assert.Equal(t, "/var/log/matrixd", expandPath("/var/log/matrixd"))
	assert.Equal(t, "relative/logs", expandPath("relative/logs"))
}
