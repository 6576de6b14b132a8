package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent hellochat configuration stored as
// config.toml in the .hellochat/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Relay    RelayConfig    `toml:"relay"`
	Cache    CacheConfig    `toml:"cache"`
	Events   EventsConfig   `toml:"events"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Listen      string   `toml:"listen,omitempty"`
	CORSOrigins []string `toml:"cors_origins,omitempty"`
}

// UpstreamConfig holds the completion provider settings.
type UpstreamConfig struct {
	APIURL       string `toml:"api_url,omitempty"`
	APIKey       string `toml:"api_key,omitempty"`
	Model        string `toml:"model,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
}

// RelayConfig holds the per-mode call policies. Durations are stored as
// Go duration strings (e.g. "15s").
type RelayConfig struct {
	OneShotTimeout         string  `toml:"one_shot_timeout,omitempty"`
	ProgressiveTimeout     string  `toml:"progressive_timeout,omitempty"`
	OneShotMaxTokens       int     `toml:"one_shot_max_tokens,omitempty"`
	ProgressiveMaxTokens   int     `toml:"progressive_max_tokens,omitempty"`
	OneShotTemperature     float64 `toml:"one_shot_temperature,omitempty"`
	ProgressiveTemperature float64 `toml:"progressive_temperature,omitempty"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Provider              string `toml:"provider,omitempty"`
	Size                  int    `toml:"size,omitempty"`
	TTL                   string `toml:"ttl,omitempty"`
	ShortMessageThreshold int    `toml:"short_message_threshold,omitempty"`
	RedisAddr             string `toml:"redis_addr,omitempty"`
}

// EventsConfig holds completion event publishing settings.
type EventsConfig struct {
	Provider     string   `toml:"provider,omitempty"`
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// ClientConfig holds settings for "hellochat chat", which connects to a
// running relay server. Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target      string `toml:"target,omitempty"`
	RevealDelay string `toml:"reveal_delay,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen":       stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.cors_origins": listKey(func(c *Config) *[]string { return &c.Server.CORSOrigins }),

	"upstream.api_url":       stringKey(func(c *Config) *string { return &c.Upstream.APIURL }),
	"upstream.api_key":       stringKey(func(c *Config) *string { return &c.Upstream.APIKey }),
	"upstream.model":         stringKey(func(c *Config) *string { return &c.Upstream.Model }),
	"upstream.system_prompt": stringKey(func(c *Config) *string { return &c.Upstream.SystemPrompt }),

	"relay.one_shot_timeout":        durationKey("relay.one_shot_timeout", func(c *Config) *string { return &c.Relay.OneShotTimeout }),
	"relay.progressive_timeout":     durationKey("relay.progressive_timeout", func(c *Config) *string { return &c.Relay.ProgressiveTimeout }),
	"relay.one_shot_max_tokens":     intKey("relay.one_shot_max_tokens", func(c *Config) *int { return &c.Relay.OneShotMaxTokens }),
	"relay.progressive_max_tokens":  intKey("relay.progressive_max_tokens", func(c *Config) *int { return &c.Relay.ProgressiveMaxTokens }),
	"relay.one_shot_temperature":    floatKey("relay.one_shot_temperature", func(c *Config) *float64 { return &c.Relay.OneShotTemperature }),
	"relay.progressive_temperature": floatKey("relay.progressive_temperature", func(c *Config) *float64 { return &c.Relay.ProgressiveTemperature }),

	"cache.provider":                stringKey(func(c *Config) *string { return &c.Cache.Provider }),
	"cache.size":                    intKey("cache.size", func(c *Config) *int { return &c.Cache.Size }),
	"cache.ttl":                     durationKey("cache.ttl", func(c *Config) *string { return &c.Cache.TTL }),
	"cache.short_message_threshold": intKey("cache.short_message_threshold", func(c *Config) *int { return &c.Cache.ShortMessageThreshold }),
	"cache.redis_addr":              stringKey(func(c *Config) *string { return &c.Cache.RedisAddr }),

	"events.provider":      stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.kafka_brokers": listKey(func(c *Config) *[]string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic":   stringKey(func(c *Config) *string { return &c.Events.KafkaTopic }),

	"client.target":       stringKey(func(c *Config) *string { return &c.Client.Target }),
	"client.reveal_delay": durationKey("client.reveal_delay", func(c *Config) *string { return &c.Client.RevealDelay }),
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// listKey exposes a string slice as a comma separated value.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			*field(c) = splitList(v)
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
