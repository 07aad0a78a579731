package relay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/jiminy/pkg/endpoint"
	"github.com/go-go-golems/jiminy/pkg/helpers"
	"github.com/go-go-golems/jiminy/pkg/session"
)

func TestContinuationPolicyContinue(t *testing.T) {
	assert.False(t, ContinuationPolicy("").Continue(nil))
	assert.False(t, EndOnSilence.Continue(nil))
	assert.True(t, ContinueOnSilence.Continue(nil))

	assert.True(t, EndOnSilence.Continue(helpers.BoolPointer(true)))
	assert.False(t, ContinueOnSilence.Continue(helpers.BoolPointer(false)))
}

func TestContinuationPolicyValidate(t *testing.T) {
	require.NoError(t, ContinuationPolicy("").Validate())
	require.NoError(t, EndOnSilence.Validate())
	require.NoError(t, ContinueOnSilence.Validate())
	require.Error(t, ContinuationPolicy("sometimes").Validate())
}

func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jiminy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettingsMergesOverDefaults(t *testing.T) {
	path := writeSettingsFile(t, `
endpoint:
  host: 10.0.0.5
  timeout: 30
continuation: continue-on-silence
session_max_idle: 600
allowlist:
  - light.*
  - media_player.play_media
home_assistant:
  url: http://homeassistant.local:8123
  token: secret
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", s.Endpoint.Host)
	assert.Equal(t, 30*time.Second, s.Endpoint.Timeout)
	// untouched fields keep their defaults
	assert.Equal(t, endpoint.DefaultPort, s.Endpoint.Port)
	assert.Equal(t, endpoint.DefaultPath, s.Endpoint.Path)
	assert.Equal(t, endpoint.DefaultOverrideEntity, s.OverrideEntity)

	assert.Equal(t, ContinueOnSilence, s.Continuation)
	assert.Equal(t, 10*time.Minute, s.SessionMaxIdle)
	assert.Equal(t, []string{"light.*", "media_player.play_media"}, s.Allowlist)
	assert.Equal(t, "http://homeassistant.local:8123", s.HomeAssistant.URL)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := DefaultSettings()
	s.Endpoint.Host = "10.0.0.5"
	s.Allowlist = []string{"light.*"}

	b, err := yaml.Marshal(s)
	require.NoError(t, err)
	// durations are written as integer seconds
	assert.Contains(t, string(b), "timeout: 10")
	assert.Contains(t, string(b), "session_max_idle: 1800")

	loaded, err := LoadSettings(writeSettingsFile(t, string(b)))
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadSettingsRejectsBadPolicy(t *testing.T) {
	path := writeSettingsFile(t, "continuation: sometimes\n")
	_, err := LoadSettings(path)
	require.Error(t, err)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	s.Tracker = "weird"
	require.Error(t, s.Validate())

	s = DefaultSettings()
	s.Endpoint.Port = -1
	require.Error(t, s.Validate())

	s = DefaultSettings()
	s.Endpoint.Host = ""
	require.Error(t, s.Validate())
}

func TestSettingsClone(t *testing.T) {
	s := DefaultSettings()
	s.Allowlist = []string{"light.*"}

	c := s.Clone()
	c.Endpoint.Host = "elsewhere"
	c.Allowlist[0] = "switch.*"

	assert.Equal(t, endpoint.DefaultHost, s.Endpoint.Host)
	assert.Equal(t, []string{"light.*"}, s.Allowlist)
}

func TestSettingsNewTracker(t *testing.T) {
	s := DefaultSettings()
	_, ok := s.NewTracker().(*session.Registry)
	assert.True(t, ok)

	s.Tracker = TrackerDerived
	_, ok = s.NewTracker().(*session.DerivedTracker)
	assert.True(t, ok)
}
