package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"
	"vtaccess/lib/configutil"
	configlibsql "vtaccess/lib/configutil/libsql"
	"vtaccess/lib/fetch"
	"vtaccess/lib/mailer"
	"vtaccess/lib/restyutil"
)

const (
	usernameEnv = "VTACCESS_USERNAME"
	passwordEnv = "VTACCESS_PASSWORD"
)

type Config struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	TrustPath string `json:"trust_path"`
	// go duration strings, "30s"
	Timeout          string `json:"timeout"`
	SessionMaxAge    string `json:"session_max_age"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`

	Store       configlibsql.Struct `json:"store"`
	Smtp        *mailer.SmtpConfig  `json:"smtp"`
	RestyOutput string              `json:"resty_output"`
}

func (c Config) durations() (timeout time.Duration, maxAge time.Duration, err error) {
	if c.Timeout != "" {
		timeout, err = time.ParseDuration(c.Timeout)
		if err != nil {
			return 0, 0, fmt.Errorf("timeout: %w", err)
		}
	}
	if c.SessionMaxAge != "" {
		maxAge, err = time.ParseDuration(c.SessionMaxAge)
		if err != nil {
			return 0, 0, fmt.Errorf("session_max_age: %w", err)
		}
	}
	return timeout, maxAge, nil
}

func (c Config) fetchOptions() (fetch.Options, error) {
	timeout, _, err := c.durations()
	if err != nil {
		return fetch.Options{}, err
	}
	opts := fetch.Options{
		Timeout:          timeout,
		CloudflareBypass: c.CloudflareBypass,
	}
	if verbose && c.RestyOutput != "" {
		output, err := restyutil.NewFilesystemOutput(c.RestyOutput)
		if err != nil {
			return fetch.Options{}, err
		}
		opts.Output = output
	}
	return opts, nil
}

// loadConfig reads the config file when there is one and lets
// VTACCESS_USERNAME and VTACCESS_PASSWORD (also from .env) override
// the credentials in it.
func loadConfig(path string) (Config, error) {
	err := configutil.LoadEnv(".env")
	if err != nil {
		return Config{}, err
	}

	cfg, err := configutil.ReadRecursively[Config](path)
	if os.IsNotExist(err) {
		slog.Debug("no config file found, using defaults", "path", path)
		cfg = Config{}
	} else if err != nil {
		return Config{}, err
	}

	cfg.Username = configutil.EnvOr(usernameEnv, cfg.Username)
	cfg.Password = configutil.EnvOr(passwordEnv, cfg.Password)

	err = configutil.Validate(cfg)
	if err != nil {
		return Config{}, err
	}
	_, _, err = cfg.durations()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
