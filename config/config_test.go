package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 21, cfg.Port)
	assert.Equal(t, "anonymous", cfg.User)
	assert.Empty(t, cfg.Host)
	assert.True(t, cfg.Remember)
	assert.NotEmpty(t, cfg.DownloadDir)
	assert.Equal(t, cfg.DownloadDir, cfg.ExtractDir)
}

func TestLoad_CorruptFileYieldsDefaultsAndError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(p, []byte("host = [broken"), 0o600))

	cfg, err := Load(p)
	assert.Error(t, err, "corruption is reported")
	require.NotNil(t, cfg, "but a usable config is still returned")
	assert.Equal(t, 21, cfg.Port)
	assert.Equal(t, "anonymous", cfg.User)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "config.toml")

	want := &Config{
		Host:        "ftp.example.com",
		Port:        2121,
		User:        "alice",
		Password:    "secret",
		DownloadDir: "/tmp/dl",
		ExtractDir:  "/tmp/ex",
		Remember:    true,
	}
	require.NoError(t, want.Save(p))

	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "config may hold a password")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(p, []byte("host = \"ftp.example.com\"\n"), 0o600))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.com", cfg.Host)
	assert.Equal(t, 21, cfg.Port, "unset fields keep their defaults")
	assert.Equal(t, "anonymous", cfg.User)
}
