package streams

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseBasic(t *testing.T) {
	a := Parse(map[string]any{
		"pxe":    map[string]any{"format": "ipxe"},
		"disk":   map[string]any{"location": "coreos.img"},
		"raw.xz": "file1",
	})

	assert.Equal(t, "ipxe", a.PXEFormat)
	assert.Equal(t, "coreos.img", a.DiskLocation)
	assert.Equal(t, "file1", a.RawXZ)
	assert.Empty(t, a.Raw)
}

func TestParseAlternateRaw(t *testing.T) {
	a := Parse(map[string]any{
		"raw": "rawfile",
		"pxe": map[string]any{"format": "undionly"},
	})

	assert.Equal(t, "rawfile", a.Raw)
	assert.Equal(t, "undionly", a.PXEFormat)
	assert.Empty(t, a.RawXZ)
}

func TestParseMissingKeys(t *testing.T) {
	a := Parse(map[string]any{})

	assert.Empty(t, a.PXEFormat)
	assert.Empty(t, a.DiskLocation)
	assert.Empty(t, a.Raw)
	assert.Empty(t, a.RawXZ)
}

func TestParseDiskAsString(t *testing.T) {
	a := Parse(map[string]any{"disk": "diskfile"})

	assert.Equal(t, "diskfile", a.DiskLocation)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"pxe": {"format": "ipxe"}, "disk": {"location": "coreos.img"}}`), 0o600))

	a, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ipxe", a.PXEFormat)
	assert.Equal(t, "coreos.img", a.DiskLocation)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))

	_, err = Load(bad)
	require.Error(t, err)
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"pxe": {"format": "ipxe"}}`), 0o600))

	w := NewWatcher(zap.NewNop().Sugar(), path)
	require.NoError(t, w.Start())

	t.Cleanup(func() { require.NoError(t, w.Stop()) })

	assert.Equal(t, "ipxe", w.Artifacts().PXEFormat)

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"pxe": {"format": "undionly"}}`), 0o600))
	require.NoError(t, w.Reload())

	assert.Equal(t, "undionly", w.Artifacts().PXEFormat)
}

func TestWatcherReloadFailureKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"raw": "rawfile"}`), 0o600))

	w := NewWatcher(zap.NewNop().Sugar(), path)
	require.NoError(t, w.Start())

	t.Cleanup(func() { require.NoError(t, w.Stop()) })

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	require.Error(t, w.Reload())

	assert.Equal(t, "rawfile", w.Artifacts().Raw)
}

func TestWatcherStartRequiresManifest(t *testing.T) {
	w := NewWatcher(zap.NewNop().Sugar(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, w.Start())

	// Stop without a successful Start is a no-op
	require.NoError(t, w.Stop())
}
