package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/cloudbox/sysgate"
)

const (
	defaultBind          = "0.0.0.0"
	defaultPort          = 61209
	defaultCachedTime    = time.Second
	defaultStatsSchedule = "@every 1h"
	defaultProcessCache  = time.Minute
)

type userConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"` //nolint:gosec // user-provided credential field
}

type authConfig struct {
	Users        []userConfig `yaml:"users"`
	PasswordFile string       `yaml:"password-file"`
	BcryptCost   int          `yaml:"bcrypt-cost"`
}

type groupsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type config struct {
	// Listener
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`

	// Snapshot refresh throttle
	CachedTime duration `yaml:"cached-time"`

	// Basic auth for the RPC endpoint
	Auth authConfig `yaml:"authentication"`

	// Exposed metric groups
	Groups  groupsConfig    `yaml:"groups"`
	Aliases []sysgate.Alias `yaml:"aliases"`

	StatsSchedule string   `yaml:"stats-schedule"`
	ProcessCache  duration `yaml:"process-cache"`
	Verbosity     string   `yaml:"verbosity"`
}

// duration is a time.Duration read from YAML as either a duration string
// ("500ms") or a plain number of seconds.
type duration time.Duration

func (d *duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	v, err := parseDuration(raw)
	if err != nil {
		return err
	}

	*d = duration(v)
	return nil
}

func defaultConfig() config {
	return config{
		Bind:          defaultBind,
		Port:          defaultPort,
		CachedTime:    duration(defaultCachedTime),
		StatsSchedule: defaultStatsSchedule,
		ProcessCache:  duration(defaultProcessCache),
	}
}

// readConfig decodes the YAML config at path over the defaults.
// A missing file yields the defaults.
func readConfig(path string) (config, error) {
	cfg := defaultConfig()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.SetStrict(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// override applies the command line flags that were set.
func (c *config) override(bind string, port int, cachedTime string) error {
	if bind != "" {
		c.Bind = bind
	}

	if port != 0 {
		c.Port = port
	}

	if cachedTime != "" {
		d, err := parseDuration(cachedTime)
		if err != nil {
			return fmt.Errorf("cached-time: %w", err)
		}
		c.CachedTime = duration(d)
	}

	if c.CachedTime < 0 {
		return fmt.Errorf("cached-time must not be negative: %v", time.Duration(c.CachedTime))
	}

	if c.ProcessCache < 0 {
		return fmt.Errorf("process-cache must not be negative: %v", time.Duration(c.ProcessCache))
	}

	return nil
}

// parseDuration accepts a duration ("2s") or a plain number of seconds.
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}

	d, err := time.ParseDuration(value + "s")
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}

	return d, nil
}

// loadConfig reads the config file and applies the CLI overrides.
// Calls log.Fatal on any I/O or decode error.
func loadConfig() config {
	cfg, err := readConfig(cli.Config)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("path", cli.Config).
			Msg("Config Load Failed")
	}

	if err := cfg.override(cli.Bind, cli.Port, cli.CachedTime); err != nil {
		log.Fatal().
			Err(err).
			Msg("Config Override Failed")
	}

	return cfg
}

// defaultConfigDirectory prefers the binary's directory when it already holds
// filename, then the user config directory.
func defaultConfigDirectory(app, filename string) string {
	if ex, err := os.Executable(); err == nil {
		dir := filepath.Dir(ex)
		if _, err := os.Stat(filepath.Join(dir, filename)); err == nil {
			return dir
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}

	return "."
}
