package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const settings = `{
	// game world
	server: "https://ts1.example",
	login: "hero",
	pass: "hunter2",
	delay: 5,
	subject: "Join us",
	message: "We are recruiting.",
}`

func writeSettings(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeSettings(t, t.TempDir(), "settings.json5", settings)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "https://ts1.example", cfg.Server)
	require.Equal(t, 5*time.Second, cfg.DelayDuration())
	require.Equal(t, "players.json", cfg.RosterFile)
	require.Equal(t, "dispatch.db", cfg.JournalFile)
	require.Equal(t, "/messages/write", cfg.LandingPage)
	require.Equal(t, 2.0, cfg.RateLimit())
	require.Equal(t, 10*time.Second, cfg.Timeout())
}

func TestLoadLocalAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, "settings.json5", settings)
	writeSettings(t, dir, "settings.local.json5", `{login: "local-hero", roster_file: "local.json"}`)

	cfg, err := Load(path, []string{
		"HOME=/root",
		"APP_PASS=from-env",
		"APP_DELAY=0",
		"APP_MESSAGE=line one",
	})
	require.NoError(t, err)
	require.Equal(t, "local-hero", cfg.Login)
	require.Equal(t, "local.json", cfg.RosterFile)
	require.Equal(t, "from-env", cfg.Pass)
	require.Equal(t, "line one", cfg.Message)
	require.Equal(t, "Join us", cfg.Subject)
	require.NotNil(t, cfg.Delay)
	require.Zero(t, cfg.DelayDuration())
}

func TestLoadExplicitZeroes(t *testing.T) {
	table := []struct {
		name      string
		local     string
		environ   []string
		delay     time.Duration
		rateLimit float64
	}{
		{
			name:      "local delay",
			local:     `{delay: 0}`,
			delay:     0,
			rateLimit: 2,
		},
		{
			name:      "local request cap",
			local:     `{requests_per_second: 0}`,
			delay:     5 * time.Second,
			rateLimit: 0,
		},
		{
			name:      "env delay over local",
			local:     `{delay: 7}`,
			environ:   []string{"APP_DELAY=0"},
			delay:     0,
			rateLimit: 2,
		},
		{
			name:      "local without the fields",
			local:     `{login: "local-hero"}`,
			delay:     5 * time.Second,
			rateLimit: 2,
		},
	}

	for _, row := range table {
		dir := t.TempDir()
		path := writeSettings(t, dir, "settings.json5", settings)
		writeSettings(t, dir, "settings.local.json5", row.local)

		cfg, err := Load(path, row.environ)
		require.NoError(t, err, row.name)
		require.NotNil(t, cfg.Delay, row.name)
		require.Equal(t, row.delay, cfg.DelayDuration(), row.name)
		require.Equal(t, row.rateLimit, cfg.RateLimit(), row.name)
		require.Equal(t, 10*time.Second, cfg.Timeout(), row.name)
	}
}

func TestLoadOnlyEnv(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "settings.json5"), []string{
		"APP_SERVER=http://localhost:8080",
		"APP_LOGIN=hero",
		"APP_PASS=hunter2",
		"APP_DELAY=1",
		"APP_SUBJECT=s",
		"APP_MESSAGE=m",
	})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.Server)
}

func TestLoadInvalid(t *testing.T) {
	table := []struct {
		name     string
		contents string
		environ  []string
		contains string
	}{
		{
			name:     "missing delay",
			contents: `{server: "https://ts1.example", login: "a", pass: "b", subject: "c", message: "d"}`,
			contains: "delay is required",
		},
		{
			name:     "negative delay",
			contents: settings,
			environ:  []string{"APP_DELAY=-1"},
			contains: "delay must not be negative",
		},
		{
			name:     "bad delay",
			contents: settings,
			environ:  []string{"APP_DELAY=soon"},
			contains: "APP_DELAY",
		},
		{
			name:     "relative server",
			contents: settings,
			environ:  []string{"APP_SERVER=ts1.example"},
			contains: "absolute http(s) url",
		},
		{
			name:     "missing message",
			contents: `{server: "https://ts1.example", login: "a", pass: "b", subject: "c", delay: 1}`,
			contains: "message is required",
		},
		{
			name:     "zero timeout",
			contents: `{server: "https://ts1.example", login: "a", pass: "b", subject: "c", message: "d", delay: 1, timeout_seconds: 0}`,
			contains: "timeout_seconds must be positive",
		},
		{
			name:     "negative request cap",
			contents: `{server: "https://ts1.example", login: "a", pass: "b", subject: "c", message: "d", delay: 1, requests_per_second: -1}`,
			contains: "requests_per_second must not be negative",
		},
		{
			name:     "malformed",
			contents: `{server: `,
			contains: "parse",
		},
	}

	for _, row := range table {
		path := writeSettings(t, t.TempDir(), "settings.json5", row.contents)
		_, err := Load(path, row.environ)
		require.ErrorContains(t, err, row.contains, row.name)
	}
}
