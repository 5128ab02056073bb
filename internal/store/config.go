package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config mirrors config.toml. Every key is optional.
type Config struct {
	Log    LogConfig    `toml:"log" json:"log"`
	Views  ViewsConfig  `toml:"views" json:"views"`
	Sync   SyncConfig   `toml:"sync" json:"sync"`
	Export ExportConfig `toml:"export" json:"export"`
}

type LogConfig struct {
	Level  string `toml:"level" json:"level"`   // trace|debug|info|warn|error
	Format string `toml:"format" json:"format"` // text|json
}

type ViewsConfig struct {
	WeekDays      int    `toml:"week_days" json:"week_days"`
	DefaultFilter string `toml:"default_filter" json:"default_filter"` // all|active|completed
	GroupBy       string `toml:"group_by" json:"group_by"`             // none|category|priority
	ShowTotals    bool   `toml:"show_totals" json:"show_totals"`
	Format        string `toml:"format" json:"format"` // text|chat
}

type SyncConfig struct {
	RedisAddr string `toml:"redis_addr" json:"redis_addr"`
	Key       string `toml:"key" json:"key"`
	Channel   string `toml:"channel" json:"channel"`
}

type ExportConfig struct {
	Dir string `toml:"dir" json:"dir"`
}

func DefaultConfig() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Views: ViewsConfig{WeekDays: 7, DefaultFilter: "all"},
		Sync: SyncConfig{
			Key:     "medtodo:tasks",
			Channel: "medtodo:updates",
		},
	}
}

// LoadConfig decodes path over the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, configFile, err)
	}
	if cfg.Views.WeekDays <= 0 {
		cfg.Views.WeekDays = 7
	}
	if strings.TrimSpace(cfg.Sync.Key) == "" {
		cfg.Sync.Key = DefaultConfig().Sync.Key
	}
	if strings.TrimSpace(cfg.Sync.Channel) == "" {
		cfg.Sync.Channel = DefaultConfig().Sync.Channel
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func (c Config) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", err
	}
	return b.String(), nil
}
