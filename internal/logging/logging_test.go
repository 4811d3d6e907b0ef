package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{" warning ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForServiceAddsServiceAttribute(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	SetLevel(LevelTrace)
	t.Cleanup(func() {
		SetLevel(slog.LevelInfo)
		Init()
	})

	ForService("audioroute").Info("route changed", "route", "speaker")
	ForService("sim").Log(context.Background(), LevelTrace, "deep detail")

	lines := bytes.Split(bytes.TrimSpace(structured.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "audioroute", first["service"])
	assert.Equal(t, "speaker", first["route"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "TRACE", second["level"])
}

func TestNewFileLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "callctl.log")

	logger, closeFn, err := NewFileLogger(path, "capture", slog.LevelDebug, FileOptions{})
	require.NoError(t, err)

	logger.Debug("grant delivered", "token", 3)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"capture"`)
	assert.Contains(t, string(data), `"token":3`)
}
