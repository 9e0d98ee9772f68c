package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"playermail/lib/configutil"
	"strconv"
	"strings"
	"time"
)

const DefaultPath = "settings.json5"

type Config struct {
	Server  string `json:"server"`
	Login   string `json:"login"`
	Pass    string `json:"pass"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	// Delay is the number of seconds to wait between two messages.
	Delay *int64 `json:"delay"`

	RosterFile        string   `json:"roster_file"`
	JournalFile       string   `json:"journal_file"`
	LandingPage       string   `json:"landing_page"`
	RequestsPerSecond *float64 `json:"requests_per_second"`
	TimeoutSeconds    *float64 `json:"timeout_seconds"`
}

func ptr[T any](v T) *T {
	return &v
}

func (c Config) DelayDuration() time.Duration {
	if c.Delay == nil {
		return 0
	}
	return time.Duration(*c.Delay) * time.Second
}

// RateLimit is the request cap in requests per second, 0 disables it.
func (c Config) RateLimit() float64 {
	if c.RequestsPerSecond == nil {
		return 0
	}
	return *c.RequestsPerSecond
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds == nil {
		return 0
	}
	return time.Duration(*c.TimeoutSeconds * float64(time.Second))
}

func defaults() Config {
	return Config{
		RosterFile:        "players.json",
		JournalFile:       "dispatch.db",
		LandingPage:       "/messages/write",
		RequestsPerSecond: ptr(2.0),
		TimeoutSeconds:    ptr(10.0),
	}
}

// Load reads `path` (and its .local override), then applies APP_* environment
// variables on top. The result is validated.
func Load(path string, environ []string) (Config, error) {
	fromFile, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		// everything can still come from the environment
		err = nil
	}
	if err != nil {
		return Config{}, err
	}

	out := defaults()
	err = configutil.Merge(&out, fromFile)
	if err != nil {
		return Config{}, err
	}

	fromEnv, err := readEnv(environ)
	if err != nil {
		return Config{}, err
	}
	err = configutil.Merge(&out, fromEnv)
	if err != nil {
		return Config{}, err
	}

	err = out.Validate()
	if err != nil {
		return Config{}, err
	}
	return out, nil
}

func readEnv(environ []string) (Config, error) {
	var out Config
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "APP_") {
			continue
		}
		switch strings.ToUpper(strings.TrimPrefix(key, "APP_")) {
		case "SERVER":
			out.Server = value
		case "LOGIN":
			out.Login = value
		case "PASS":
			out.Pass = value
		case "SUBJECT":
			out.Subject = value
		case "MESSAGE":
			out.Message = value
		case "DELAY":
			delay, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return out, fmt.Errorf("APP_DELAY: %w", err)
			}
			out.Delay = &delay
		}
	}
	return out, nil
}

func (c Config) Validate() error {
	var errs []error
	required := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	required("server", c.Server)
	required("login", c.Login)
	required("pass", c.Pass)
	required("subject", c.Subject)
	required("message", c.Message)

	if c.Server != "" {
		server, err := url.Parse(c.Server)
		if err != nil || (server.Scheme != "http" && server.Scheme != "https") || server.Host == "" {
			errs = append(errs, fmt.Errorf("server must be an absolute http(s) url: %q", c.Server))
		}
	}
	if c.Delay == nil {
		errs = append(errs, fmt.Errorf("delay is required"))
	} else if *c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative: %d", *c.Delay))
	}
	if !strings.HasPrefix(c.LandingPage, "/") {
		errs = append(errs, fmt.Errorf("landing_page must be an absolute path: %q", c.LandingPage))
	}
	if c.RateLimit() < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative"))
	}
	if c.Timeout() <= 0 {
		errs = append(errs, fmt.Errorf("timeout_seconds must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
