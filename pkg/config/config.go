package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .hellochat/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// orderedKeys lists config keys in the TOML section layout order.
var orderedKeys = []string{
	"server.listen",
	"server.cors_origins",
	"upstream.api_url",
	"upstream.api_key",
	"upstream.model",
	"upstream.system_prompt",
	"relay.one_shot_timeout",
	"relay.progressive_timeout",
	"relay.one_shot_max_tokens",
	"relay.progressive_max_tokens",
	"relay.one_shot_temperature",
	"relay.progressive_temperature",
	"cache.provider",
	"cache.size",
	"cache.ttl",
	"cache.short_message_threshold",
	"cache.redis_addr",
	"events.provider",
	"events.kafka_brokers",
	"events.kafka_topic",
	"client.target",
	"client.reveal_delay",
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order matching the TOML section layout.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// IsSecretConfigKey reports whether a key's value should be masked on display.
func IsSecretConfigKey(key string) bool {
	return key == "upstream.api_key"
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target
// .hellochat/ directory. If the file does not exist, returns
// NewDefaultConfig() so callers always receive a fully-populated Config.
// Fields explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = d.Server.Listen
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = d.Server.CORSOrigins
	}

	if cfg.Upstream.APIURL == "" {
		cfg.Upstream.APIURL = d.Upstream.APIURL
	}
	if cfg.Upstream.Model == "" {
		cfg.Upstream.Model = d.Upstream.Model
	}

	if cfg.Relay.OneShotTimeout == "" {
		cfg.Relay.OneShotTimeout = d.Relay.OneShotTimeout
	}
	if cfg.Relay.ProgressiveTimeout == "" {
		cfg.Relay.ProgressiveTimeout = d.Relay.ProgressiveTimeout
	}
	if cfg.Relay.OneShotMaxTokens == 0 {
		cfg.Relay.OneShotMaxTokens = d.Relay.OneShotMaxTokens
	}
	if cfg.Relay.ProgressiveMaxTokens == 0 {
		cfg.Relay.ProgressiveMaxTokens = d.Relay.ProgressiveMaxTokens
	}
	if cfg.Relay.OneShotTemperature == 0 {
		cfg.Relay.OneShotTemperature = d.Relay.OneShotTemperature
	}
	if cfg.Relay.ProgressiveTemperature == 0 {
		cfg.Relay.ProgressiveTemperature = d.Relay.ProgressiveTemperature
	}

	if cfg.Cache.Provider == "" {
		cfg.Cache.Provider = d.Cache.Provider
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = d.Cache.Size
	}
	if cfg.Cache.TTL == "" {
		cfg.Cache.TTL = d.Cache.TTL
	}
	if cfg.Cache.ShortMessageThreshold == 0 {
		cfg.Cache.ShortMessageThreshold = d.Cache.ShortMessageThreshold
	}

	if cfg.Events.Provider == "" {
		cfg.Events.Provider = d.Events.Provider
	}
	if cfg.Events.KafkaTopic == "" {
		cfg.Events.KafkaTopic = d.Events.KafkaTopic
	}

	if cfg.Client.Target == "" {
		cfg.Client.Target = d.Client.Target
	}
	if cfg.Client.RevealDelay == "" {
		cfg.Client.RevealDelay = d.Client.RevealDelay
	}
}

// SaveConfig persists the configuration to config.toml in the target .hellochat/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config for the named deployment preset.
// Supported presets: "local", "shared", "nocache".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "local":
		return cfg, nil

	case "shared":
		// Several relay replicas behind a load balancer share one cache
		// and report completions to Kafka.
		cfg.Server.Listen = ":8080"
		cfg.Cache.Provider = cache.ProviderRedis
		cfg.Cache.RedisAddr = "localhost:6379"
		cfg.Events.Provider = EventsProviderKafka
		cfg.Events.KafkaBrokers = []string{"localhost:9092"}
		return cfg, nil

	case "nocache":
		cfg.Cache.Provider = cache.ProviderNone
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "shared", "nocache"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
