// Package config loads and exposes adapter configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/memohai/chatgate/dispatch"
	"github.com/memohai/chatgate/replypolicy"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath    = "config.toml"
	DefaultReplyMode     = "mention_only"
	DefaultFollowUpSecs  = replypolicy.DefaultFollowUpWindowSeconds
	DefaultChunkLimit    = dispatch.DefaultChunkLimit
	DefaultRatePerMinute = 20
)

// Config is the root adapter configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Account  AccountConfig  `toml:"account"`
	Outbound OutboundConfig `toml:"outbound"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AccountConfig holds the account-level reply policy defaults and per-group
// overrides, keyed by conversation id.
type AccountConfig struct {
	BotName               string                 `toml:"bot_name"`
	ReplyMode             string                 `toml:"reply_mode"`
	RequireMention        *bool                  `toml:"require_mention"`
	WatchList             []string               `toml:"watch_list"`
	FollowUpEnabled       bool                   `toml:"follow_up_enabled"`
	FollowUpWindowSeconds int                    `toml:"follow_up_window_seconds"`
	ExtraSystemPrompt     string                 `toml:"extra_system_prompt"`
	Groups                map[string]GroupConfig `toml:"groups"`
}

// GroupConfig holds per-conversation overrides; unset fields fall back to
// the account level.
type GroupConfig struct {
	ReplyMode             string   `toml:"reply_mode"`
	FollowUpEnabled       *bool    `toml:"follow_up_enabled"`
	FollowUpWindowSeconds *int     `toml:"follow_up_window_seconds"`
	WatchList             []string `toml:"watch_list"`
	ExtraSystemPrompt     string   `toml:"extra_system_prompt"`
}

// OutboundConfig tunes dispatch behavior.
type OutboundConfig struct {
	ChunkLimit    int `toml:"chunk_limit"`
	RatePerMinute int `toml:"rate_per_minute"`
}

// Policy converts the loaded account section into the resolver's input type.
func (c AccountConfig) Policy() replypolicy.AccountConfig {
	account := replypolicy.AccountConfig{
		BotName:               c.BotName,
		ReplyMode:             c.ReplyMode,
		RequireMention:        c.RequireMention,
		WatchList:             c.WatchList,
		FollowUpEnabled:       c.FollowUpEnabled,
		FollowUpWindowSeconds: c.FollowUpWindowSeconds,
		ExtraSystemPrompt:     c.ExtraSystemPrompt,
	}
	if len(c.Groups) > 0 {
		account.Groups = make(map[string]replypolicy.GroupOverride, len(c.Groups))
		for id, group := range c.Groups {
			account.Groups[id] = replypolicy.GroupOverride{
				ReplyMode:             group.ReplyMode,
				FollowUpEnabled:       group.FollowUpEnabled,
				FollowUpWindowSeconds: group.FollowUpWindowSeconds,
				WatchList:             group.WatchList,
				ExtraSystemPrompt:     group.ExtraSystemPrompt,
			}
		}
	}
	return account
}

// Load reads and parses the TOML config file at path and applies default
// values for missing fields. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Account: AccountConfig{
			ReplyMode:             DefaultReplyMode,
			FollowUpWindowSeconds: DefaultFollowUpSecs,
		},
		Outbound: OutboundConfig{
			ChunkLimit:    DefaultChunkLimit,
			RatePerMinute: DefaultRatePerMinute,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if cfg.Outbound.ChunkLimit <= 0 {
		cfg.Outbound.ChunkLimit = DefaultChunkLimit
	}
	if cfg.Outbound.RatePerMinute <= 0 {
		cfg.Outbound.RatePerMinute = DefaultRatePerMinute
	}
	return cfg, nil
}
