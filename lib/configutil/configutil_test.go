package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server string `json:"server"`
	Delay  *int64 `json:"delay"`
	Name   string `json:"name"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	require.NoError(t, err)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "settings.local.json5", LocalPath("settings.json5"))
	require.Equal(t, filepath.Join("a", "b.local.json"), LocalPath(filepath.Join("a", "b.json")))
	require.Equal(t, "noext.local", LocalPath("noext"))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json5")
	writeFile(t, path, `{
		// comments are allowed
		server: "https://a.example",
		delay: 5,
		name: "base",
	}`)
	writeFile(t, filepath.Join(dir, "settings.local.json5"), `{name: "local"}`)

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "https://a.example", cfg.Server)
	require.Equal(t, "local", cfg.Name)
	require.NotNil(t, cfg.Delay)
	require.Equal(t, int64(5), *cfg.Delay)
}

func TestReadConfigLocalZeroPointer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json5")
	writeFile(t, path, `{delay: 5, name: "base"}`)
	writeFile(t, filepath.Join(dir, "settings.local.json5"), `{delay: 0}`)

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Delay)
	require.Zero(t, *cfg.Delay)
	require.Equal(t, "base", cfg.Name)
}

func TestMergeKeepsUnsetPointer(t *testing.T) {
	five := int64(5)
	base := testConfig{Delay: &five, Name: "base"}

	require.NoError(t, Merge(&base, testConfig{Name: "override"}))
	require.Equal(t, "override", base.Name)
	require.NotNil(t, base.Delay)
	require.Equal(t, int64(5), *base.Delay)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "settings.local.json5"), `{name: "local"}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "settings.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Name)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "settings.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json5")
	writeFile(t, path, `{server: `)

	_, err := ReadConfig[testConfig](path)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0777))
	writeFile(t, filepath.Join(root, "telemetry.json5"), `{name: "found"}`)

	t.Chdir(nested)

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "found", cfg.Name)
}
