package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestRead_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[telegram]
chat = "@news"

[feed]
url = "https://example.com/feed.xml"
`)

	conf, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if conf.Feed.Max != 1 {
		t.Errorf("Max = %d, want default 1", conf.Feed.Max)
	}
	if conf.Feed.IntervalSeconds != 600 {
		t.Errorf("IntervalSeconds = %d, want default 600", conf.Feed.IntervalSeconds)
	}
	if conf.Feed.StatePath == "" {
		t.Error("StatePath default not applied")
	}
	if err := conf.Validate(); err != nil {
		t.Errorf("Validate failed on complete config: %v", err)
	}
}

func TestRead_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[telegram]
chat = "@news"

[feed]
url = "https://example.com/feed.xml"
max = 5
interval_seconds = 60
state_path = "/tmp/state.toml"
`)

	conf, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if conf.Feed.Max != 5 || conf.Feed.IntervalSeconds != 60 {
		t.Errorf("overrides not applied: %+v", conf.Feed)
	}
	if conf.Feed.StatePath != "/tmp/state.toml" {
		t.Errorf("StatePath = %q", conf.Feed.StatePath)
	}
}

func TestValidate_RequiredKeys(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"missing feed url", func(c *Config) { c.Feed.URL = "" }},
		{"missing chat", func(c *Config) { c.Telegram.Chat = "" }},
		{"zero max", func(c *Config) { c.Feed.Max = 0 }},
		{"zero interval", func(c *Config) { c.Feed.IntervalSeconds = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := Default()
			conf.Feed.URL = "https://example.com/feed.xml"
			conf.Telegram.Chat = "@news"
			tt.mod(&conf)
			if err := conf.Validate(); err == nil {
				t.Error("Validate accepted incomplete config")
			}
		})
	}
}
