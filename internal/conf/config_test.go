package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate resets viper and points HOME at an empty directory so no user config is picked up
func isolate(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DataTypeWeekly, settings.Sync.DataType)
	assert.Equal(t, 2*time.Second, settings.Batch.PollInterval)
	assert.Equal(t, 1000, settings.Batch.MaxRows)
	assert.Equal(t, 128, settings.Batch.MaxFilenameLength)
	assert.Equal(t, "csv", settings.Batch.Extension)
	assert.Equal(t, []string{"latitude", "longitude", "type"}, settings.Batch.Columns)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.False(t, settings.MQTT.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
provider:
  baseurl: https://provider.test/cyano
  requestspersecond: 2.5
batch:
  pollinterval: 500ms
  maxrows: 50
sync:
  datatype: DAILY
logging:
  default_level: debug
mqtt:
  enabled: true
  broker: tcp://broker.test:1883
  topic: lakes
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://provider.test/cyano", settings.Provider.BaseURL)
	assert.InDelta(t, 2.5, settings.Provider.RequestsPerSecond, 0)
	assert.Equal(t, 500*time.Millisecond, settings.Batch.PollInterval)
	assert.Equal(t, 50, settings.Batch.MaxRows)
	assert.Equal(t, DataTypeDaily, settings.Sync.DataType)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.True(t, settings.MQTT.Enabled)
	assert.Equal(t, "lakes", settings.MQTT.Topic)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CYANWATCH_DATA_TYPE", "daily")
	t.Setenv("CYANWATCH_TOKEN", "env-token")
	t.Setenv("CYANWATCH_BACKEND_URL", "https://backend.test/api")

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DataTypeDaily, settings.Sync.DataType)
	assert.Equal(t, "env-token", settings.Backend.Token)
	assert.Equal(t, "https://backend.test/api", settings.Backend.BaseURL)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CYANWATCH_USERNAME", "")
	os.Unsetenv("CYANWATCH_USERNAME")
	require.NoError(t, os.WriteFile(".env", []byte("CYANWATCH_USERNAME=dotenv-user\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CYANWATCH_USERNAME") })

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-user", settings.Backend.Username)
}

func TestLoadInvalidSettings(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
sync:
  datatype: monthly
batch:
  pollinterval: 10ms
`)

	_, err := Load(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	isolate(t)

	settings, err := DefaultSettings()
	require.NoError(t, err)
	settings.Backend.Username = "analyst"
	settings.Batch.PollInterval = 3 * time.Second
	settings.Sync.DataType = DataTypeDaily

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	viper.Reset()
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "analyst", loaded.Backend.Username)
	assert.Equal(t, 3*time.Second, loaded.Batch.PollInterval)
	assert.Equal(t, DataTypeDaily, loaded.Sync.DataType)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}
