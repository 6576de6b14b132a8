package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/hellochat/pkg/dotdir"
)

// providerEnv lists the provider-native environment variables accepted
// alongside the HELLOCHAT_ prefixed names.
var providerEnv = map[string]string{
	"upstream.api_key": "DEEPSEEK_API_KEY",
	"upstream.api_url": "DEEPSEEK_API_URL",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the HELLOCHAT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (HELLOCHAT_SERVER_LISTEN, DEEPSEEK_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: HELLOCHAT_SERVER_LISTEN, HELLOCHAT_CACHE_PROVIDER, etc.
	v.SetEnvPrefix("HELLOCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range providerEnv {
		prefixed := "HELLOCHAT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	// Upstream
	v.SetDefault("upstream.api_url", d.Upstream.APIURL)
	v.SetDefault("upstream.api_key", d.Upstream.APIKey)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.system_prompt", d.Upstream.SystemPrompt)

	// Relay
	v.SetDefault("relay.one_shot_timeout", d.Relay.OneShotTimeout)
	v.SetDefault("relay.progressive_timeout", d.Relay.ProgressiveTimeout)
	v.SetDefault("relay.one_shot_max_tokens", d.Relay.OneShotMaxTokens)
	v.SetDefault("relay.progressive_max_tokens", d.Relay.ProgressiveMaxTokens)
	v.SetDefault("relay.one_shot_temperature", d.Relay.OneShotTemperature)
	v.SetDefault("relay.progressive_temperature", d.Relay.ProgressiveTemperature)

	// Cache
	v.SetDefault("cache.provider", d.Cache.Provider)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.short_message_threshold", d.Cache.ShortMessageThreshold)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	// Client
	v.SetDefault("client.target", d.Client.Target)
	v.SetDefault("client.reveal_delay", d.Client.RevealDelay)
}

// GetList reads a list key, splitting comma separated entries such as
// HELLOCHAT_SERVER_CORS_ORIGINS="https://a.example,https://b.example".
func GetList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, splitList(item)...)
	}
	return out
}
