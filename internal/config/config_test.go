package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "./boot-artifacts", cfg.RootDir)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.HTTPS.Enabled)
	assert.Equal(t, 8443, cfg.HTTPS.Port)
	assert.True(t, cfg.TFTP.Enabled)
	assert.Equal(t, 6969, cfg.TFTP.Port)
	assert.Equal(t, 5*time.Second, cfg.TFTP.AckTimeout)
	assert.Equal(t, 64, cfg.TFTP.MaxSessions)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Streams.Manifest)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root_dir: /srv/boot
logging:
  level: debug
tftp:
  port: 69
  ack_timeout: 250ms
https:
  enabled: true
  cert_file: /etc/ssl/boot.pem
  key_file: /etc/ssl/boot.key
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/boot", cfg.RootDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 69, cfg.TFTP.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.TFTP.AckTimeout)
	assert.True(t, cfg.HTTPS.Enabled)
	assert.Equal(t, "/etc/ssl/boot.pem", cfg.HTTPS.CertFile)
	// untouched keys keep their defaults
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOTSERVER_TFTP_PORT", "7070")
	t.Setenv("BOOTSERVER_LOGGING_LEVEL", "warn")
	t.Setenv("BOOTSERVER_TFTP_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.TFTP.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.TFTP.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestYAMLDump(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	assert.Contains(t, out, "root_dir:")
	assert.Contains(t, out, "tftp:")
	assert.Contains(t, out, "http:")
}
