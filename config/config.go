package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
)

const baseCfgPath = "feedbot/config.toml"

// Config holds all startup settings. It is read once in main and
// passed down by value; nothing in the program mutates it afterwards.
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Feed     FeedConfig     `toml:"feed"`
}

type TelegramConfig struct {
	Chat string `toml:"chat"` // resolvable chat name, e.g. "@mychannel" or "t.me/mychannel"
}

type FeedConfig struct {
	URL             string `toml:"url"`
	Max             int    `toml:"max"`              // entries delivered per poll cycle
	IntervalSeconds int    `toml:"interval_seconds"` // poll period
	StatePath       string `toml:"state_path"`       // TOML state file for seen ids and cache validators
}

// Interval returns the poll period as a duration.
func (f FeedConfig) Interval() time.Duration {
	return time.Duration(f.IntervalSeconds) * time.Second
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	return conf, nil
}

// Write encodes cfg to cfgPath, creating parent directories as
// needed. Used to seed a skeleton config on first run.
func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

// Validate reports the first missing required setting. The process
// must not start without a feed URL and a destination chat.
func (c Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Telegram.Chat == "" {
		return fmt.Errorf("telegram.chat is required")
	}
	if c.Feed.Max <= 0 {
		return fmt.Errorf("feed.max must be positive, got %d", c.Feed.Max)
	}
	if c.Feed.IntervalSeconds <= 0 {
		return fmt.Errorf("feed.interval_seconds must be positive, got %d", c.Feed.IntervalSeconds)
	}
	return nil
}

func Default() Config {
	return Config{
		Feed: FeedConfig{
			Max:             1,
			IntervalSeconds: 600,
			StatePath:       DefaultStatePath(),
		},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config file")
}

func DefaultStatePath() string {
	var dataHome = os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = path.Join(os.Getenv("HOME"), ".local/share")
	}
	return path.Join(dataHome, "feedbot", "state.toml")
}
