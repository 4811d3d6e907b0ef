package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/callctl/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	settings, err := Load(v, writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.True(t, settings.Audio.CommunicationMode)
	assert.True(t, settings.Capture.Supported)
	assert.Equal(t, GrantPolicyManual, settings.Capture.GrantPolicy)
	assert.Equal(t, 250*time.Millisecond, settings.Capture.GrantDelay)
	assert.Equal(t, 64, settings.Server.SubscriberBuffer)
	require.Len(t, settings.Sim.Devices, 2)
	assert.Equal(t, SimDevice{ID: 2, Type: 2, Name: "Speaker"}, settings.Sim.Devices[1])
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
audio:
  communicationmode: false
  initialroute: speaker
capture:
  grantpolicy: deny
  grantdelay: 2s
sim:
  devices:
    - id: 5
      type: 7
      name: Car Kit
`)
	v, err := New()
	require.NoError(t, err)

	settings, err := Load(v, path)
	require.NoError(t, err)

	assert.False(t, settings.Audio.CommunicationMode)
	assert.Equal(t, "speaker", settings.Audio.InitialRoute)
	assert.Equal(t, GrantPolicyDeny, settings.Capture.GrantPolicy)
	assert.Equal(t, 2*time.Second, settings.Capture.GrantDelay)
	assert.Equal(t, []SimDevice{{ID: 5, Type: 7, Name: "Car Kit"}}, settings.Sim.Devices)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("CALLCTL_SERVER_LISTEN", "0.0.0.0:9999")
	t.Setenv("CALLCTL_CAPTURE_SUPPORTED", "false")

	v, err := New()
	require.NoError(t, err)

	settings, err := Load(v, writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9999", settings.Server.Listen)
	assert.False(t, settings.Capture.Supported)
}

func TestInvalidEnvironmentRejected(t *testing.T) {
	t.Setenv("CALLCTL_CAPTURE_GRANTPOLICY", "maybe")

	_, err := New()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestValidateSettings(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Log:     LogSettings{Level: "info"},
			Capture: CaptureSettings{GrantPolicy: GrantPolicyGrant},
			Server:  ServerSettings{Listen: "127.0.0.1:0", SubscriberBuffer: 8},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
		errMsg string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad route", func(s *Settings) { s.Audio.InitialRoute = "car" }, "invalid initial route"},
		{"bad policy", func(s *Settings) { s.Capture.GrantPolicy = "sometimes" }, "invalid grant policy"},
		{"duplicate device", func(s *Settings) {
			s.Sim.Devices = []SimDevice{{ID: 1}, {ID: 1}}
		}, "duplicate simulated device id 1"},
		{"bad listen", func(s *Settings) { s.Server.Listen = "nowhere" }, "invalid server listen address"},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "no DSN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	_, err = Load(v, writeConfig(t, "server:\n  subscriberbuffer: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscriber buffer")
}
